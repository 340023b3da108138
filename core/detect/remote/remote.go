// Package remote provides a detector backed by an HTTP named-entity
// recognition service, such as a spaCy server hosting the TEI2GO model.
//
// Protocol:
//
//	POST {endpoint}
//	{"text": "On the third day"}
//
//	200 OK
//	{"entities": [{"start": 3, "end": 16, "label": "TIMEX"}]}
//
// Offsets in the response are code-point offsets; the detector converts
// them to byte offsets.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/FocuswithJustin/JuniperTimex/core/detect"
	"github.com/FocuswithJustin/JuniperTimex/core/errors"
)

// DefaultTimeout bounds a single detection request.
const DefaultTimeout = 30 * time.Second

// maxResponseSize caps the response body read from the service.
const maxResponseSize = 16 << 20

// Config configures a remote detector.
type Config struct {
	Endpoint string        // Detection URL
	Model    string        // Optional model name sent with each request
	Timeout  time.Duration // Per-request timeout (default DefaultTimeout)
	Client   *http.Client  // Optional HTTP client
}

type request struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type response struct {
	Entities []detect.Span `json:"entities"`
}

// Detector calls a remote NER service.
type Detector struct {
	endpoint string
	model    string
	client   *http.Client
}

// New creates a detector and probes the service with an empty document.
// The probe must succeed; a detector whose service cannot be reached is
// never returned.
func New(ctx context.Context, cfg Config) (*Detector, error) {
	if cfg.Endpoint == "" {
		return nil, errors.NewDetector("remote", "endpoint is required", nil)
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, errors.NewDetector("remote", "parsing endpoint", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.NewDetector("remote", "endpoint "+cfg.Endpoint,
			errors.NewUnsupported("endpoint scheme", strconv.Quote(u.Scheme)))
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	d := &Detector{endpoint: cfg.Endpoint, model: cfg.Model, client: client}
	if _, err := d.call(ctx, ""); err != nil {
		return nil, errors.NewDetector("remote", "probing "+cfg.Endpoint, err)
	}
	return d, nil
}

// Endpoint returns the service URL.
func (d *Detector) Endpoint() string {
	return d.endpoint
}

// Detect sends text to the service and returns byte-offset spans.
func (d *Detector) Detect(ctx context.Context, text string) ([]detect.Span, error) {
	spans, err := d.call(ctx, text)
	if err != nil {
		return nil, errors.NewDetector("remote", "detecting entities", err)
	}
	return detect.RuneOffsetsToBytes(text, spans), nil
}

func (d *Detector) call(ctx context.Context, text string) ([]detect.Span, error) {
	body, err := json.Marshal(request{Text: text, Model: d.model})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("service returned %s: %s", resp.Status, bytes.TrimSpace(data))
	}

	var out response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return out.Entities, nil
}
