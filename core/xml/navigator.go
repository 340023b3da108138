package xml

import (
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/JuniperTimex/core/errors"
)

// text positions of a navigator
const (
	onNode = iota
	onLeading
	onTail
)

// navigator implements xpath.NodeNavigator over the live tree. Leading and
// trailing text are exposed as text nodes positioned before the first child
// and after the owning child respectively; unset or empty text is not.
type navigator struct {
	doc  *Node
	cur  *Node
	text int
	attr int
}

func newNavigator(doc, start *Node) *navigator {
	return &navigator{doc: doc, cur: start, attr: -1}
}

func (x *navigator) NodeType() xpath.NodeType {
	switch {
	case x.attr != -1:
		return xpath.AttributeNode
	case x.text != onNode:
		return xpath.TextNode
	}
	switch x.cur.Kind {
	case KindDocument:
		return xpath.RootNode
	case KindComment, KindInstruction:
		return xpath.CommentNode
	default:
		return xpath.ElementNode
	}
}

func (x *navigator) LocalName() string {
	if x.attr != -1 {
		return x.cur.Attrs[x.attr].Name
	}
	if x.text != onNode || !x.cur.IsElement() {
		return ""
	}
	return x.cur.Name
}

func (x *navigator) Prefix() string {
	if x.attr != -1 {
		return x.cur.Attrs[x.attr].Prefix
	}
	if x.text != onNode {
		return ""
	}
	return x.cur.Prefix
}

func (x *navigator) NamespaceURL() string {
	if x.attr != -1 {
		return x.cur.Attrs[x.attr].NamespaceURI
	}
	if x.text != onNode {
		return ""
	}
	return x.cur.NamespaceURI
}

func (x *navigator) Value() string {
	switch {
	case x.attr != -1:
		return x.cur.Attrs[x.attr].Value
	case x.text == onLeading:
		return x.cur.TextValue()
	case x.text == onTail:
		return x.cur.TailValue()
	}
	if x.cur.Kind == KindComment || x.cur.Kind == KindInstruction {
		return x.cur.Data
	}
	return x.cur.InnerText()
}

func (x *navigator) Copy() xpath.NodeNavigator {
	n := *x
	return &n
}

func (x *navigator) MoveToRoot() {
	x.cur = x.doc
	x.text = onNode
	x.attr = -1
}

func (x *navigator) MoveToParent() bool {
	switch {
	case x.attr != -1:
		x.attr = -1
		return true
	case x.text == onLeading:
		x.text = onNode
		return true
	case x.text == onTail:
		x.text = onNode
	}
	if x.cur.parent == nil {
		return false
	}
	x.cur = x.cur.parent
	return true
}

func (x *navigator) MoveToNextAttribute() bool {
	if x.text != onNode || !x.cur.IsElement() {
		return false
	}
	if x.attr+1 >= len(x.cur.Attrs) {
		return false
	}
	x.attr++
	return true
}

func (x *navigator) MoveToChild() bool {
	if x.attr != -1 || x.text != onNode {
		return false
	}
	return x.moveToFirstOf(x.cur)
}

func (x *navigator) MoveToFirst() bool {
	if x.attr != -1 {
		return false
	}
	parent := x.cur.parent
	if x.text == onLeading {
		parent = x.cur
	}
	if parent == nil {
		return false
	}
	return x.moveToFirstOf(parent)
}

func (x *navigator) moveToFirstOf(parent *Node) bool {
	if parent.TextValue() != "" {
		x.cur = parent
		x.text = onLeading
		return true
	}
	if len(parent.Children) == 0 {
		return false
	}
	x.cur = parent.Children[0]
	x.text = onNode
	return true
}

func (x *navigator) MoveToNext() bool {
	if x.attr != -1 {
		return false
	}
	switch x.text {
	case onLeading:
		if len(x.cur.Children) == 0 {
			return false
		}
		x.cur = x.cur.Children[0]
		x.text = onNode
		return true
	case onNode:
		if x.cur.parent == nil {
			return false
		}
		if x.cur.TailValue() != "" {
			x.text = onTail
			return true
		}
	}
	parent := x.cur.parent
	if parent == nil {
		return false
	}
	i := parent.Index(x.cur)
	if i+1 >= len(parent.Children) {
		return false
	}
	x.cur = parent.Children[i+1]
	x.text = onNode
	return true
}

func (x *navigator) MoveToPrevious() bool {
	switch {
	case x.attr != -1 || x.text == onLeading:
		return false
	case x.text == onTail:
		x.text = onNode
		return true
	}
	parent := x.cur.parent
	if parent == nil {
		return false
	}
	i := parent.Index(x.cur)
	if i == 0 {
		if parent.TextValue() == "" {
			return false
		}
		x.cur = parent
		x.text = onLeading
		return true
	}
	x.cur = parent.Children[i-1]
	if x.cur.TailValue() != "" {
		x.text = onTail
	}
	return true
}

func (x *navigator) MoveTo(other xpath.NodeNavigator) bool {
	node, ok := other.(*navigator)
	if !ok || node.doc != x.doc {
		return false
	}
	*x = *node
	return true
}

// Query is a compiled XPath expression.
type Query struct {
	src  string
	expr *xpath.Expr
}

// CompileQuery compiles expr, resolving prefixes through namespaces.
func CompileQuery(expr string, namespaces map[string]string) (*Query, error) {
	compiled, err := xpath.CompileWithNS(expr, namespaces)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid xpath %q", expr)
	}
	return &Query{src: expr, expr: compiled}, nil
}

// String returns the source expression.
func (q *Query) String() string {
	return q.src
}

// Select evaluates q with the root element as context node and returns the
// matching elements in document order. Non-element results are dropped.
// Evaluation sees the tree as it is now, including inserted markers.
func (d *Document) Select(q *Query) []*Node {
	root := d.Root()
	if root == nil {
		return nil
	}
	var out []*Node
	seen := make(map[*Node]bool)
	iter := q.expr.Select(newNavigator(d.node, root))
	for iter.MoveNext() {
		nav, ok := iter.Current().(*navigator)
		if !ok || nav.attr != -1 || nav.text != onNode || !nav.cur.IsElement() {
			continue
		}
		if seen[nav.cur] {
			continue
		}
		seen[nav.cur] = true
		out = append(out, nav.cur)
	}
	return out
}

// XPath compiles expr without namespaces and selects matching elements.
func (d *Document) XPath(expr string) ([]*Node, error) {
	q, err := CompileQuery(expr, nil)
	if err != nil {
		return nil, err
	}
	return d.Select(q), nil
}
