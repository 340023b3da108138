package xml

import (
	"testing"
)

const sampleBook = `<?xml version="1.0"?>
<book>
	<chapter n="1">
		<verse n="1">In the beginning</verse>
		<verse n="2">And the evening and the morning were the first day.</verse>
	</chapter>
	<chapter n="2">
		<verse n="1">Thus the heavens <note>and the earth</note> were finished.</verse>
		<TIMEX3 tid="t9">seventh day</TIMEX3>
	</chapter>
</book>`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return doc
}

func TestXPathQuery(t *testing.T) {
	doc := mustParse(t, sampleBook)

	tests := []struct {
		expr string
		want int
	}{
		{".//verse", 3},
		{"//verse", 3},
		{"//chapter[@n='2']/verse", 1},
		{"//verse[contains(., 'morning')]", 1},
		{"//chapter", 2},
		{"/book", 1},
		{".//TIMEX3", 1},
		{"//verse/@n", 0},
		{"//verse/text()", 0},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := doc.XPath(tt.expr)
			if err != nil {
				t.Fatalf("XPath failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("XPath(%q) returned %d nodes, want %d", tt.expr, len(got), tt.want)
			}
		})
	}
}

func TestXPathDocumentOrder(t *testing.T) {
	doc := mustParse(t, sampleBook)
	got, err := doc.XPath("//verse")
	if err != nil {
		t.Fatalf("XPath failed: %v", err)
	}
	want := []string{"In the beginning", "And the evening", "Thus the heavens "}
	for i, w := range want {
		if got[i].TextValue()[:len(w)] != w {
			t.Errorf("result %d text = %q, want prefix %q", i, got[i].TextValue(), w)
		}
	}
}

func TestXPathInvalidExpression(t *testing.T) {
	doc := mustParse(t, `<root/>`)
	if _, err := doc.XPath("//[invalid"); err == nil {
		t.Error("XPath should fail for invalid expression")
	}
}

func TestXPathNamespaces(t *testing.T) {
	doc := mustParse(t, `<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><l>one</l><l>two</l></text></TEI>`)

	q, err := CompileQuery(".//tei:l", map[string]string{"tei": "http://www.tei-c.org/ns/1.0"})
	if err != nil {
		t.Fatalf("CompileQuery failed: %v", err)
	}
	if got := doc.Select(q); len(got) != 2 {
		t.Errorf("Select returned %d nodes, want 2", len(got))
	}
	if q.String() != ".//tei:l" {
		t.Errorf("String() = %q", q.String())
	}
}

func TestXPathSeesMutations(t *testing.T) {
	doc := mustParse(t, `<verse>On the third day</verse>`)
	root := doc.Root()
	root.ClearSlot(Leading)
	root.AppendSlot(Leading, "On ")
	root.Insert(0, NewMarker("TIMEX3", "tid", "t1", "the third"))
	root.AppendSlot(0, " day")

	got, err := doc.XPath("//TIMEX3[@tid='t1']")
	if err != nil {
		t.Fatalf("XPath failed: %v", err)
	}
	if len(got) != 1 || !got[0].IsMarker() {
		t.Fatalf("XPath did not find inserted marker: %v", got)
	}

	texts, err := doc.XPath("//verse[text()=' day']")
	if err != nil {
		t.Fatalf("XPath failed: %v", err)
	}
	if len(texts) != 1 {
		t.Errorf("tail text not visible to XPath: %d results", len(texts))
	}
}

func TestNavigatorSiblingText(t *testing.T) {
	doc := mustParse(t, `<p>a<b/>c<d/></p>`)
	nav := newNavigator(doc.node, doc.Root())

	if !nav.MoveToChild() {
		t.Fatal("MoveToChild failed")
	}
	steps := []struct {
		typ   string
		value string
	}{
		{"text", "a"},
		{"b", ""},
		{"text", "c"},
		{"d", ""},
	}
	for i, step := range steps {
		if i > 0 && !nav.MoveToNext() {
			t.Fatalf("MoveToNext failed at step %d", i)
		}
		if step.typ == "text" {
			if nav.Value() != step.value {
				t.Errorf("step %d value = %q, want %q", i, nav.Value(), step.value)
			}
		} else if nav.LocalName() != step.typ {
			t.Errorf("step %d name = %q, want %q", i, nav.LocalName(), step.typ)
		}
	}
	if nav.MoveToNext() {
		t.Error("MoveToNext past last child should fail")
	}
	for i := len(steps) - 2; i >= 0; i-- {
		if !nav.MoveToPrevious() {
			t.Fatalf("MoveToPrevious failed going back to step %d", i)
		}
	}
	if nav.Value() != "a" {
		t.Errorf("after walking back value = %q, want %q", nav.Value(), "a")
	}
	if !nav.MoveToParent() || nav.LocalName() != "p" {
		t.Error("MoveToParent from leading text should return to p")
	}
}
