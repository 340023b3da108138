package annotate

import (
	"context"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/FocuswithJustin/JuniperTimex/core/detect"
	"github.com/FocuswithJustin/JuniperTimex/core/errors"
	"github.com/FocuswithJustin/JuniperTimex/core/xml"
)

// annotateSegment detects entities in the text held in parent's slot after
// (xml.Leading or a child index) and inserts a marker for each of them
// directly after that slot. It returns the index of the last inserted
// marker, or after when nothing was inserted.
//
// Text between spans goes to the slot at the cursor: the origin slot until
// the first marker exists, then the previous marker's tail. The origin slot
// is always materialised once a marker is inserted, even when the first
// span starts at offset 0.
func (a *Annotator) annotateSegment(ctx context.Context, parent *xml.Node, after int, st *Stats) (int, error) {
	segment, _ := parent.SlotText(after)
	if segment == "" {
		return after, nil
	}
	st.Segments++

	spans, err := a.detect(ctx, segment)
	if err != nil {
		return after, err
	}

	// Consume the segment so that writing back cannot duplicate it.
	parent.ClearSlot(after)
	if len(spans) == 0 {
		parent.AppendSlot(after, segment)
		return after, nil
	}

	cursor, pos := after, 0
	for _, s := range spans {
		if cursor == after {
			parent.AnchorSlot(after)
		}
		if s.Start > pos {
			parent.AppendSlot(cursor, segment[pos:s.Start])
		}
		marker := xml.NewMarker(a.cfg.MarkerName, a.cfg.IDAttr, a.nextID(), segment[s.Start:s.End])
		parent.Insert(cursor+1, marker)
		cursor++
		pos = s.End
		st.Markers++
	}
	if pos < len(segment) {
		parent.AppendSlot(cursor, segment[pos:])
	}
	return cursor, nil
}

// detect runs the detector on segment and returns the configured label's
// spans sorted by start. Spans are validated before the tree is touched.
func (a *Annotator) detect(ctx context.Context, segment string) ([]detect.Span, error) {
	found, err := a.detector.Detect(ctx, segment)
	if err != nil {
		if !errors.Is(err, errors.ErrDetector) {
			err = errors.NewDetector("custom", "detect failed", err)
		}
		return nil, errors.Wrap(err, "detecting entities")
	}
	spans := detect.Filter(found, a.cfg.Label)
	slices.SortStableFunc(spans, func(x, y detect.Span) int {
		return x.Start - y.Start
	})
	if err := validateSpans(segment, spans); err != nil {
		return nil, err
	}
	return spans, nil
}

// validateSpans rejects spans that are out of range, empty, overlapping
// or not aligned to rune boundaries. spans must be sorted by start.
func validateSpans(segment string, spans []detect.Span) error {
	n := len(segment)
	prevEnd := 0
	for _, s := range spans {
		switch {
		case s.Start < 0 || s.End > n:
			return errors.NewSpan(s.Start, s.End, n, "out of range")
		case s.Start >= s.End:
			return errors.NewSpan(s.Start, s.End, n, "empty")
		case s.Start < prevEnd:
			return errors.NewSpan(s.Start, s.End, n, "overlaps previous span")
		case !onRuneBoundary(segment, s.Start) || !onRuneBoundary(segment, s.End):
			return errors.NewSpan(s.Start, s.End, n, "splits a UTF-8 sequence")
		}
		prevEnd = s.End
	}
	return nil
}

func onRuneBoundary(s string, i int) bool {
	return i == len(s) || utf8.RuneStart(s[i])
}

func (a *Annotator) nextID() string {
	id := "t" + strconv.Itoa(a.next)
	a.next++
	return id
}
