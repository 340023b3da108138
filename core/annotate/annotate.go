// Package annotate inserts inline temporal-expression markers into XML
// documents.
//
// For every target element the annotator sends each text segment (the
// element's leading text and each child's trailing text) to a detector and
// splices the detected spans back into the tree as marker children:
//
//	<verse>On the third day he rose.</verse>
//
// becomes
//
//	<verse>On <TIMEX3 tid="t1">the third day</TIMEX3> he rose.</verse>
//
// All text outside the spans is kept byte for byte in its original position.
// Marker content is never annotated again; marker tails are.
package annotate

import (
	"log/slog"
	"maps"

	"github.com/FocuswithJustin/JuniperTimex/core/detect"
	"github.com/FocuswithJustin/JuniperTimex/core/errors"
	"github.com/FocuswithJustin/JuniperTimex/core/xml"
)

// Defaults for Config.
const (
	DefaultXPath  = ".//verse"
	DefaultIDAttr = "tid"
)

// Config holds annotator settings.
type Config struct {
	XPath      string            // Target selection, relative to the root element
	Namespaces map[string]string // Prefix to URI map for XPath
	Label      string            // Detector label to keep
	MarkerName string            // Tag of inserted markers
	IDAttr     string            // Marker id attribute
	Logger     *slog.Logger
}

// Option configures an Annotator.
type Option func(*Config)

// WithXPath sets the target selection expression.
func WithXPath(expr string) Option {
	return func(c *Config) { c.XPath = expr }
}

// WithNamespaces sets the namespace prefixes available to the XPath.
func WithNamespaces(ns map[string]string) Option {
	return func(c *Config) { c.Namespaces = maps.Clone(ns) }
}

// WithLabel sets the detector label that produces markers.
func WithLabel(label string) Option {
	return func(c *Config) { c.Label = label }
}

// WithMarkerName sets the tag of inserted markers. Elements with this name
// in parsed input are treated as existing markers.
func WithMarkerName(name string) Option {
	return func(c *Config) { c.MarkerName = name }
}

// WithIDAttr sets the name of the marker id attribute.
func WithIDAttr(name string) Option {
	return func(c *Config) { c.IDAttr = name }
}

// WithLogger sets the logger used for per-target debug output.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Stats counts the work done on a document.
type Stats struct {
	Targets        int // Elements selected and walked
	Segments       int // Non-empty segments sent to the detector
	Markers        int // Markers inserted
	SkippedMarkers int // Existing markers whose content was left alone
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Targets += o.Targets
	s.Segments += o.Segments
	s.Markers += o.Markers
	s.SkippedMarkers += o.SkippedMarkers
}

// Annotator splices detected spans into XML trees.
//
// An Annotator owns the marker id counter: ids run t1, t2, ... across every
// document it processes and are never reused. It is not safe for concurrent
// use; create one per goroutine.
type Annotator struct {
	detector detect.Detector
	cfg      Config
	query    *xml.Query
	next     int
	totals   Stats
}

// New creates an Annotator backed by d. An invalid XPath is reported as a
// ValidationError.
func New(d detect.Detector, opts ...Option) (*Annotator, error) {
	if d == nil {
		return nil, errors.NewValidation("detector", "a detector is required")
	}

	cfg := Config{
		XPath:      DefaultXPath,
		Label:      detect.LabelTimex,
		MarkerName: xml.DefaultMarkerName,
		IDAttr:     DefaultIDAttr,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	switch {
	case cfg.XPath == "":
		return nil, errors.NewValidation("xpath", "expression is empty")
	case cfg.Label == "":
		return nil, errors.NewValidation("label", "label is empty")
	case cfg.MarkerName == "":
		return nil, errors.NewValidation("marker", "marker name is empty")
	case cfg.IDAttr == "":
		return nil, errors.NewValidation("id-attr", "id attribute name is empty")
	}

	query, err := xml.CompileQuery(cfg.XPath, cfg.Namespaces)
	if err != nil {
		return nil, errors.NewValidation("xpath", err.Error())
	}

	return &Annotator{
		detector: d,
		cfg:      cfg,
		query:    query,
		next:     1,
	}, nil
}

// Config returns the effective configuration.
func (a *Annotator) Config() Config {
	return a.cfg
}

// Issued returns the number of markers created so far.
func (a *Annotator) Issued() int {
	return a.next - 1
}

// Totals returns the accumulated statistics of every document annotated
// by a.
func (a *Annotator) Totals() Stats {
	return a.totals
}
