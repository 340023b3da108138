package xml

import (
	"bytes"
	"slices"
	"strings"
)

// Kind identifies the role of a Node in the tree.
type Kind int

const (
	// KindDocument is the synthetic node holding the top-level items of a Document.
	KindDocument Kind = iota
	// KindElement is an ordinary element.
	KindElement
	// KindMarker is a temporal marker element. Markers are classified when
	// they are parsed or created and are never re-annotated.
	KindMarker
	// KindComment is a comment; Data holds its body.
	KindComment
	// KindInstruction is a processing instruction; Name holds the target
	// and Data the instruction content.
	KindInstruction
)

func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindElement:
		return "element"
	case KindMarker:
		return "marker"
	case KindComment:
		return "comment"
	case KindInstruction:
		return "instruction"
	default:
		return "unknown"
	}
}

// Leading is the slot index addressing an element's own leading text.
// Any other slot index addresses the tail of the child at that index.
const Leading = -1

// Attr is an element attribute.
type Attr struct {
	Prefix       string
	Name         string
	Value        string
	NamespaceURI string
}

// Node is a node of a mixed-content tree. Text that appears before the
// first child is held in Text; text that follows a child, up to the next
// sibling or the parent's end tag, is held in that child's Tail. A nil
// Text or Tail means the slot was never set; an empty string means it was
// materialised but holds nothing.
type Node struct {
	Kind         Kind
	Prefix       string
	Name         string
	NamespaceURI string
	Attrs        []Attr
	Data         string
	Text         *string
	Tail         *string
	Children     []*Node

	parent *Node
}

// NewElement creates an element with the given local name.
func NewElement(name string) *Node {
	return &Node{Kind: KindElement, Name: name}
}

// NewMarker creates a marker element named name whose idAttr attribute is
// set to id and whose text is text.
func NewMarker(name, idAttr, id, text string) *Node {
	return &Node{
		Kind:  KindMarker,
		Name:  name,
		Attrs: []Attr{{Name: idAttr, Value: id}},
		Text:  &text,
	}
}

// Parent returns the parent node, or nil for a detached node.
func (n *Node) Parent() *Node {
	return n.parent
}

// IsMarker reports whether n is a marker element.
func (n *Node) IsMarker() bool {
	return n.Kind == KindMarker
}

// IsElement reports whether n is an element, marker or not.
func (n *Node) IsElement() bool {
	return n.Kind == KindElement || n.Kind == KindMarker
}

// QName returns the prefixed name of an element.
func (n *Node) QName() string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Name
	}
	return n.Name
}

// Len returns the number of children.
func (n *Node) Len() int {
	return len(n.Children)
}

// Child returns the child at index i.
func (n *Node) Child(i int) *Node {
	return n.Children[i]
}

// Index returns the position of child among n's children, or -1.
func (n *Node) Index(child *Node) int {
	return slices.Index(n.Children, child)
}

// Append adds child as the last child of n.
func (n *Node) Append(child *Node) {
	child.parent = n
	n.Children = append(n.Children, child)
}

// Insert places child at position i, shifting later children right.
// i may equal Len() to append.
func (n *Node) Insert(i int, child *Node) {
	child.parent = n
	n.Children = slices.Insert(n.Children, i, child)
}

// Attr returns the value of the unprefixed attribute name.
func (n *Node) Attr(name string) string {
	for _, a := range n.Attrs {
		if a.Prefix == "" && a.Name == name {
			return a.Value
		}
	}
	return ""
}

// SetAttr sets or adds the unprefixed attribute name.
func (n *Node) SetAttr(name, value string) {
	for i, a := range n.Attrs {
		if a.Prefix == "" && a.Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// TextValue returns the leading text, or "" when unset.
func (n *Node) TextValue() string {
	if n.Text == nil {
		return ""
	}
	return *n.Text
}

// TailValue returns the trailing text, or "" when unset.
func (n *Node) TailValue() string {
	if n.Tail == nil {
		return ""
	}
	return *n.Tail
}

func (n *Node) slot(i int) **string {
	if i == Leading {
		return &n.Text
	}
	return &n.Children[i].Tail
}

// SlotText returns the text held in slot i and whether the slot is set.
func (n *Node) SlotText(i int) (string, bool) {
	p := n.slot(i)
	if *p == nil {
		return "", false
	}
	return **p, true
}

// AppendSlot appends s to slot i, materialising the slot if unset.
func (n *Node) AppendSlot(i int, s string) {
	p := n.slot(i)
	if *p == nil {
		v := s
		*p = &v
		return
	}
	v := **p + s
	*p = &v
}

// AnchorSlot materialises slot i as "" if it is unset. A set slot is left
// untouched.
func (n *Node) AnchorSlot(i int) {
	p := n.slot(i)
	if *p == nil {
		v := ""
		*p = &v
	}
}

// ClearSlot resets slot i to unset.
func (n *Node) ClearSlot(i int) {
	*n.slot(i) = nil
}

// InnerText returns the concatenated character data of n and its element
// descendants, including tails, in document order.
func (n *Node) InnerText() string {
	var sb strings.Builder
	n.writeText(&sb)
	return sb.String()
}

func (n *Node) writeText(sb *strings.Builder) {
	if n.Kind == KindComment || n.Kind == KindInstruction {
		return
	}
	sb.WriteString(n.TextValue())
	for _, c := range n.Children {
		c.writeText(sb)
		sb.WriteString(c.TailValue())
	}
}

// OuterXML serializes n without its tail.
func (n *Node) OuterXML() string {
	var buf bytes.Buffer
	writeNode(&buf, n)
	return buf.String()
}
