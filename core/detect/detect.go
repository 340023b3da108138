// Package detect defines the entity detection boundary used by the
// annotator and helpers shared by detector backends.
package detect

import (
	"context"
	"unicode/utf8"
)

// LabelTimex is the label detectors use for temporal expressions.
const LabelTimex = "TIMEX"

// Span is a detected entity: the half-open byte range [Start, End) of the
// UTF-8 text passed to Detect, plus the entity label.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Text returns the span's substring of text. It panics if the span is out
// of range.
func (s Span) Text(text string) string {
	return text[s.Start:s.End]
}

// Detector finds entity spans in a string. Spans may be returned in any
// order and with any labels; callers filter and sort.
type Detector interface {
	Detect(ctx context.Context, text string) ([]Span, error)
}

// Func adapts a function to the Detector interface.
type Func func(ctx context.Context, text string) ([]Span, error)

// Detect calls f.
func (f Func) Detect(ctx context.Context, text string) ([]Span, error) {
	return f(ctx, text)
}

// Filter returns the spans carrying label, preserving order.
func Filter(spans []Span, label string) []Span {
	var out []Span
	for _, s := range spans {
		if s.Label == label {
			out = append(out, s)
		}
	}
	return out
}

// RuneOffsetsToBytes converts spans expressed in code-point offsets (as
// reported by most NLP toolkits) into byte offsets into text. Offsets past
// the end of text map to len(text)+excess so that range validation still
// rejects them.
func RuneOffsetsToBytes(text string, spans []Span) []Span {
	if len(spans) == 0 {
		return spans
	}
	// byteAt[i] is the byte offset of rune i; byteAt[runeCount] == len(text).
	byteAt := make([]int, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		byteAt = append(byteAt, i)
	}
	byteAt = append(byteAt, len(text))
	runes := len(byteAt) - 1

	conv := func(off int) int {
		switch {
		case off < 0:
			return off
		case off <= runes:
			return byteAt[off]
		default:
			return len(text) + (off - runes)
		}
	}

	out := make([]Span, len(spans))
	for i, s := range spans {
		out[i] = Span{Start: conv(s.Start), End: conv(s.End), Label: s.Label}
	}
	return out
}
