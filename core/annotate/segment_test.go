package annotate

import (
	"context"
	"testing"

	"github.com/FocuswithJustin/JuniperTimex/core/detect"
	"github.com/FocuswithJustin/JuniperTimex/core/errors"
	"github.com/FocuswithJustin/JuniperTimex/core/xml"
)

// fixed returns a detector reporting spans regardless of the text and
// counting its calls.
func fixed(calls *int, spans ...detect.Span) detect.Detector {
	return detect.Func(func(_ context.Context, _ string) ([]detect.Span, error) {
		if calls != nil {
			*calls++
		}
		return append([]detect.Span(nil), spans...), nil
	})
}

func timex(start, end int) detect.Span {
	return detect.Span{Start: start, End: end, Label: detect.LabelTimex}
}

func newTestAnnotator(t *testing.T, d detect.Detector, opts ...Option) *Annotator {
	t.Helper()
	a, err := New(d, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a
}

func verse(text string) *xml.Node {
	v := xml.NewElement("verse")
	v.AppendSlot(xml.Leading, text)
	return v
}

// marker checks that child i of parent is a marker with the given text,
// id and tail (nil for unset).
func checkMarker(t *testing.T, parent *xml.Node, i int, text, id string, tail *string) {
	t.Helper()
	if i >= parent.Len() {
		t.Fatalf("child %d missing; parent has %d children", i, parent.Len())
	}
	m := parent.Child(i)
	if !m.IsMarker() {
		t.Fatalf("child %d is %v, want marker", i, m.Kind)
	}
	if m.Name != xml.DefaultMarkerName {
		t.Errorf("child %d name = %q", i, m.Name)
	}
	if got := m.TextValue(); got != text {
		t.Errorf("child %d text = %q, want %q", i, got, text)
	}
	if got := m.Attr(DefaultIDAttr); got != id {
		t.Errorf("child %d id = %q, want %q", i, got, id)
	}
	switch {
	case tail == nil && m.Tail != nil:
		t.Errorf("child %d tail = %q, want unset", i, *m.Tail)
	case tail != nil && m.Tail == nil:
		t.Errorf("child %d tail unset, want %q", i, *tail)
	case tail != nil && *m.Tail != *tail:
		t.Errorf("child %d tail = %q, want %q", i, *m.Tail, *tail)
	}
}

func ptr(s string) *string { return &s }

func TestAnnotateSegmentSplitsText(t *testing.T) {
	a := newTestAnnotator(t, fixed(nil, timex(3, 12)))
	v := verse("On the third day he rose.")

	cursor, err := a.annotateSegment(context.Background(), v, xml.Leading, &Stats{})
	if err != nil {
		t.Fatalf("annotateSegment failed: %v", err)
	}
	if cursor != 0 {
		t.Errorf("cursor = %d, want 0", cursor)
	}
	if got := v.TextValue(); got != "On " {
		t.Errorf("leading text = %q, want %q", got, "On ")
	}
	if v.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", v.Len())
	}
	checkMarker(t, v, 0, "the third", "t1", ptr(" day he rose."))
}

func TestAnnotateSegmentMarkerTextFollowsOffsets(t *testing.T) {
	a := newTestAnnotator(t, fixed(nil, timex(7, 16)))
	v := verse("On the third day he rose.")

	if _, err := a.annotateSegment(context.Background(), v, xml.Leading, &Stats{}); err != nil {
		t.Fatalf("annotateSegment failed: %v", err)
	}
	if got := v.TextValue(); got != "On the " {
		t.Errorf("leading text = %q, want %q", got, "On the ")
	}
	checkMarker(t, v, 0, "third day", "t1", ptr(" he rose."))
}

func TestAnnotateSegmentNoSpans(t *testing.T) {
	a := newTestAnnotator(t, fixed(nil))
	v := verse("In the beginning God created the heaven.")

	var st Stats
	cursor, err := a.annotateSegment(context.Background(), v, xml.Leading, &st)
	if err != nil {
		t.Fatalf("annotateSegment failed: %v", err)
	}
	if cursor != xml.Leading {
		t.Errorf("cursor = %d, want %d", cursor, xml.Leading)
	}
	if got := v.TextValue(); got != "In the beginning God created the heaven." {
		t.Errorf("text changed to %q", got)
	}
	if v.Len() != 0 {
		t.Errorf("children inserted: %d", v.Len())
	}
	if st.Segments != 1 || st.Markers != 0 {
		t.Errorf("stats = %+v", st)
	}
	if a.Issued() != 0 {
		t.Errorf("Issued() = %d, want 0", a.Issued())
	}
}

func TestAnnotateSegmentEmpty(t *testing.T) {
	calls := 0
	a := newTestAnnotator(t, fixed(&calls, timex(0, 1)))

	unset := xml.NewElement("verse")
	anchored := xml.NewElement("verse")
	anchored.AnchorSlot(xml.Leading)

	for name, v := range map[string]*xml.Node{"unset": unset, "anchored": anchored} {
		t.Run(name, func(t *testing.T) {
			before := v.OuterXML()
			cursor, err := a.annotateSegment(context.Background(), v, xml.Leading, &Stats{})
			if err != nil {
				t.Fatalf("annotateSegment failed: %v", err)
			}
			if cursor != xml.Leading {
				t.Errorf("cursor = %d", cursor)
			}
			if got := v.OuterXML(); got != before {
				t.Errorf("tree changed: %q -> %q", before, got)
			}
		})
	}
	if calls != 0 {
		t.Errorf("detector called %d times for empty segments", calls)
	}
}

func TestAnnotateSegmentSpanAtStart(t *testing.T) {
	a := newTestAnnotator(t, fixed(nil, timex(0, 7)))
	v := verse("Morning came.")

	if _, err := a.annotateSegment(context.Background(), v, xml.Leading, &Stats{}); err != nil {
		t.Fatalf("annotateSegment failed: %v", err)
	}
	if v.Text == nil || *v.Text != "" {
		t.Errorf("leading text should be anchored as empty, got %v", v.Text)
	}
	checkMarker(t, v, 0, "Morning", "t1", ptr(" came."))
	if got := v.OuterXML(); got != `<verse><TIMEX3 tid="t1">Morning</TIMEX3> came.</verse>` {
		t.Errorf("OuterXML() = %q", got)
	}
}

func TestAnnotateSegmentWholeText(t *testing.T) {
	a := newTestAnnotator(t, fixed(nil, timex(0, 9)))
	v := verse("third day")

	if _, err := a.annotateSegment(context.Background(), v, xml.Leading, &Stats{}); err != nil {
		t.Fatalf("annotateSegment failed: %v", err)
	}
	checkMarker(t, v, 0, "third day", "t1", nil)
	if got := v.OuterXML(); got != `<verse><TIMEX3 tid="t1">third day</TIMEX3></verse>` {
		t.Errorf("OuterXML() = %q", got)
	}
}

func TestAnnotateSegmentAdjacentSpans(t *testing.T) {
	a := newTestAnnotator(t, fixed(nil, timex(0, 3), timex(3, 6)))
	v := verse("abcdef!")

	cursor, err := a.annotateSegment(context.Background(), v, xml.Leading, &Stats{})
	if err != nil {
		t.Fatalf("annotateSegment failed: %v", err)
	}
	if cursor != 1 {
		t.Errorf("cursor = %d, want 1", cursor)
	}
	checkMarker(t, v, 0, "abc", "t1", nil)
	checkMarker(t, v, 1, "def", "t2", ptr("!"))
}

func TestAnnotateSegmentSortsSpans(t *testing.T) {
	text := "at dawn and at dusk"
	a := newTestAnnotator(t, fixed(nil, timex(15, 19), timex(3, 7)))
	v := verse(text)

	if _, err := a.annotateSegment(context.Background(), v, xml.Leading, &Stats{}); err != nil {
		t.Fatalf("annotateSegment failed: %v", err)
	}
	if got := v.TextValue(); got != "at " {
		t.Errorf("leading text = %q", got)
	}
	checkMarker(t, v, 0, "dawn", "t1", ptr(" and at "))
	checkMarker(t, v, 1, "dusk", "t2", nil)
}

func TestAnnotateSegmentFiltersLabels(t *testing.T) {
	a := newTestAnnotator(t, fixed(nil,
		detect.Span{Start: 0, End: 5, Label: "PERSON"},
		timex(11, 16),
	))
	v := verse("Jesus rose early")

	if _, err := a.annotateSegment(context.Background(), v, xml.Leading, &Stats{}); err != nil {
		t.Fatalf("annotateSegment failed: %v", err)
	}
	if v.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", v.Len())
	}
	checkMarker(t, v, 0, "early", "t1", nil)

	b := newTestAnnotator(t, fixed(nil, detect.Span{Start: 0, End: 5, Label: "PERSON"}), WithLabel("PERSON"))
	w := verse("Jesus wept.")
	if _, err := b.annotateSegment(context.Background(), w, xml.Leading, &Stats{}); err != nil {
		t.Fatalf("annotateSegment failed: %v", err)
	}
	checkMarker(t, w, 0, "Jesus", "t1", ptr(" wept."))
}

func TestAnnotateSegmentTail(t *testing.T) {
	a := newTestAnnotator(t, fixed(nil, timex(4, 13)))
	v := verse("He said")
	note := xml.NewElement("note")
	v.Append(note)
	v.AppendSlot(0, " on the third day, rise.")

	cursor, err := a.annotateSegment(context.Background(), v, 0, &Stats{})
	if err != nil {
		t.Fatalf("annotateSegment failed: %v", err)
	}
	if cursor != 1 {
		t.Errorf("cursor = %d, want 1", cursor)
	}
	if got := note.TailValue(); got != " on " {
		t.Errorf("note tail = %q, want %q", got, " on ")
	}
	checkMarker(t, v, 1, "the third", "t1", ptr(" day, rise."))
	if got := v.TextValue(); got != "He said" {
		t.Errorf("leading text changed to %q", got)
	}
}

func TestAnnotateSegmentMultibyte(t *testing.T) {
	text := "τῇ τρίτῃ ἡμέρᾳ ἐγερθήσεται"
	start := len("τῇ ")
	end := start + len("τρίτῃ ἡμέρᾳ")
	a := newTestAnnotator(t, fixed(nil, timex(start, end)))
	v := verse(text)

	if _, err := a.annotateSegment(context.Background(), v, xml.Leading, &Stats{}); err != nil {
		t.Fatalf("annotateSegment failed: %v", err)
	}
	checkMarker(t, v, 0, "τρίτῃ ἡμέρᾳ", "t1", ptr(" ἐγερθήσεται"))
	if got := v.InnerText(); got != text {
		t.Errorf("InnerText() = %q, want %q", got, text)
	}
}

func TestAnnotateSegmentRejectsBadSpans(t *testing.T) {
	text := "día one"
	tests := []struct {
		name  string
		spans []detect.Span
	}{
		{"negative start", []detect.Span{timex(-1, 2)}},
		{"past end", []detect.Span{timex(4, 20)}},
		{"empty", []detect.Span{timex(2, 2)}},
		{"reversed", []detect.Span{timex(3, 1)}},
		{"overlapping", []detect.Span{timex(0, 4), timex(2, 6)}},
		{"splits rune", []detect.Span{timex(0, 2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnnotator(t, fixed(nil, tt.spans...))
			v := verse(text)

			_, err := a.annotateSegment(context.Background(), v, xml.Leading, &Stats{})
			var serr *errors.SpanError
			if !errors.As(err, &serr) {
				t.Fatalf("error = %v, want SpanError", err)
			}
			if serr.Length != len(text) {
				t.Errorf("SpanError.Length = %d, want %d", serr.Length, len(text))
			}
			if !errors.Is(err, errors.ErrDetector) {
				t.Error("SpanError should match ErrDetector")
			}
			if got := v.TextValue(); got != text || v.Len() != 0 {
				t.Errorf("tree changed after rejected span: %q", v.OuterXML())
			}
			if a.Issued() != 0 {
				t.Errorf("ids issued for rejected spans: %d", a.Issued())
			}
		})
	}
}

func TestAnnotateSegmentDetectorError(t *testing.T) {
	boom := errors.NewDetector("remote", "service unavailable", nil)
	a := newTestAnnotator(t, detect.Func(func(context.Context, string) ([]detect.Span, error) {
		return nil, boom
	}))
	v := verse("On the third day")

	_, err := a.annotateSegment(context.Background(), v, xml.Leading, &Stats{})
	if !errors.Is(err, errors.ErrDetector) {
		t.Fatalf("error = %v, want ErrDetector", err)
	}
	if got := v.TextValue(); got != "On the third day" {
		t.Errorf("text changed to %q", got)
	}
}

func TestAnnotateSegmentPlainDetectorError(t *testing.T) {
	a := newTestAnnotator(t, detect.Func(func(context.Context, string) ([]detect.Span, error) {
		return nil, context.DeadlineExceeded
	}))

	_, err := a.annotateSegment(context.Background(), verse("On the third day"), xml.Leading, &Stats{})
	if !errors.Is(err, errors.ErrDetector) {
		t.Errorf("error = %v, want ErrDetector", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want cause kept", err)
	}
}
