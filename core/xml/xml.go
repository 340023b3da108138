// Package xml provides the mixed-content XML tree used by the annotator:
// parsing, XPath selection and serialization.
//
// Security Notes:
//   - XXE (External Entity) attacks are mitigated by using Go's xml.Decoder
//     which doesn't fetch external entities.
//   - The xmlquery library is used for parsing, which uses Go's encoding/xml
//     internally and inherits its security properties.
package xml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/FocuswithJustin/JuniperTimex/core/encoding"
	"github.com/FocuswithJustin/JuniperTimex/core/errors"
	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html/charset"
)

// DefaultMarkerName is the element name of temporal markers.
const DefaultMarkerName = "TIMEX3"

// Document is a parsed XML document.
type Document struct {
	// Version is taken from the input's XML declaration ("1.0" if absent).
	Version string
	// Standalone is taken from the input's XML declaration, if present.
	Standalone string
	// Doctype is the verbatim document type declaration, if present.
	Doctype string

	node *Node
}

// Options controls parsing.
type Options struct {
	// MarkerName is the local name of elements classified as markers.
	// Defaults to DefaultMarkerName.
	MarkerName string
}

// Parse parses XML data and returns a Document.
func Parse(data []byte) (*Document, error) {
	return ParseWithOptions(data, Options{})
}

// ParseWithOptions parses XML data, classifying elements named
// opts.MarkerName (in any namespace) as markers.
func ParseWithOptions(data []byte, opts Options) (*Document, error) {
	if opts.MarkerName == "" {
		opts.MarkerName = DefaultMarkerName
	}

	doctype, entities, err := scanDoctype(data)
	if err != nil {
		return nil, errors.Wrap(err, "parsing XML")
	}

	top, err := xmlquery.ParseWithOptions(bytes.NewReader(data), xmlquery.ParserOptions{
		Decoder: &xmlquery.DecoderOptions{
			Strict:        true,
			Entity:        entities,
			CharsetReader: charset.NewReaderLabel,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "parsing XML")
	}

	doc := &Document{
		Version: "1.0",
		Doctype: doctype,
		node:    &Node{Kind: KindDocument},
	}
	c := converter{markerName: opts.MarkerName}
	for q := top.FirstChild; q != nil; q = q.NextSibling {
		if q.Type == xmlquery.DeclarationNode && q.Data == "xml" {
			if v := q.SelectAttr("version"); v != "" {
				doc.Version = v
			}
			doc.Standalone = q.SelectAttr("standalone")
			continue
		}
		if n := c.convert(q); n != nil {
			doc.node.Append(n)
		}
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("parsing XML: no root element")
	}
	return doc, nil
}

// entityDecl matches an internal general entity with a literal value.
// Parameter entities and external (SYSTEM/PUBLIC) entities are not matched.
var entityDecl = regexp.MustCompile(`<!ENTITY\s+([^\s%]+)\s+(?:"([^"]*)"|'([^']*)')\s*>`)

// scanDoctype returns the document type declaration preceding the root
// element, if any, along with the general entities its internal subset
// declares. xmlquery keeps neither.
func scanDoctype(data []byte) (string, map[string]string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	for {
		tok, err := decoder.RawToken()
		if err == io.EOF {
			return "", nil, nil
		}
		if err != nil {
			return "", nil, err
		}
		switch t := tok.(type) {
		case xml.Directive:
			if strings.HasPrefix(strings.TrimSpace(string(t)), "DOCTYPE") {
				return "<!" + string(t) + ">", parseEntities(string(t)), nil
			}
		case xml.StartElement:
			return "", nil, nil
		}
	}
}

// parseEntities collects entity declarations from a DOCTYPE body. The first
// declaration of a name wins.
func parseEntities(doctype string) map[string]string {
	matches := entityDecl.FindAllStringSubmatch(doctype, -1)
	if len(matches) == 0 {
		return nil
	}
	entities := make(map[string]string, len(matches))
	for _, m := range matches {
		if _, ok := entities[m[1]]; ok {
			continue
		}
		entities[m[1]] = m[2] + m[3]
	}
	return entities
}

type converter struct {
	markerName string
}

func (c converter) convert(q *xmlquery.Node) *Node {
	switch q.Type {
	case xmlquery.ElementNode:
		n := &Node{
			Kind:         KindElement,
			Prefix:       q.Prefix,
			Name:         q.Data,
			NamespaceURI: q.NamespaceURI,
		}
		if q.Data == c.markerName {
			n.Kind = KindMarker
		}
		for _, a := range q.Attr {
			n.Attrs = append(n.Attrs, Attr{
				Prefix:       a.Name.Space,
				Name:         a.Name.Local,
				Value:        a.Value,
				NamespaceURI: a.NamespaceURI,
			})
		}
		slot := Leading
		for child := q.FirstChild; child != nil; child = child.NextSibling {
			switch child.Type {
			case xmlquery.TextNode, xmlquery.CharDataNode:
				n.AppendSlot(slot, child.Data)
			default:
				if cn := c.convert(child); cn != nil {
					n.Append(cn)
					slot = n.Len() - 1
				}
			}
		}
		return n

	case xmlquery.CommentNode:
		return &Node{Kind: KindComment, Data: q.Data}

	case xmlquery.DeclarationNode:
		pairs := make([]string, 0, len(q.Attr))
		for _, a := range q.Attr {
			pairs = append(pairs, a.Name.Local+`="`+a.Value+`"`)
		}
		return &Node{Kind: KindInstruction, Name: q.Data, Data: strings.Join(pairs, " ")}

	case xmlquery.ProcessingInstruction:
		return &Node{Kind: KindInstruction, Name: q.ProcInst.Target, Data: q.ProcInst.Inst}
	}
	return nil
}

// Root returns the root element of the document.
func (d *Document) Root() *Node {
	for _, n := range d.node.Children {
		if n.IsElement() {
			return n
		}
	}
	return nil
}

// Nodes returns the top-level nodes in document order: prolog comments and
// processing instructions, the root element, and any trailing items.
func (d *Document) Nodes() []*Node {
	return d.node.Children
}

// Serialize writes the document as UTF-8 XML, always starting with an XML
// declaration and keeping the input's document type declaration.
func (d *Document) Serialize() []byte {
	var buf bytes.Buffer
	d.WriteTo(&buf)
	return buf.Bytes()
}

// WriteTo writes the serialized document to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	version := d.Version
	if version == "" {
		version = "1.0"
	}
	buf.WriteString(`<?xml version="`)
	buf.WriteString(encoding.EscapeXMLAttr(version))
	buf.WriteString(`" encoding="UTF-8"`)
	if d.Standalone != "" {
		buf.WriteString(` standalone="`)
		buf.WriteString(encoding.EscapeXMLAttr(d.Standalone))
		buf.WriteString(`"`)
	}
	buf.WriteString("?>\n")
	if d.Doctype != "" {
		buf.WriteString(d.Doctype)
		buf.WriteString("\n")
	}
	for _, n := range d.node.Children {
		buf.WriteString(n.OuterXML())
		buf.WriteString("\n")
	}
	return buf.WriteTo(w)
}

// writeNode serializes n without its tail.
func writeNode(w *bytes.Buffer, n *Node) {
	switch n.Kind {
	case KindDocument:
		for _, c := range n.Children {
			writeNode(w, c)
		}

	case KindElement, KindMarker:
		w.WriteString("<")
		w.WriteString(n.QName())
		for _, a := range n.Attrs {
			w.WriteString(" ")
			if a.Prefix != "" {
				w.WriteString(a.Prefix)
				w.WriteString(":")
			}
			w.WriteString(a.Name)
			w.WriteString(`="`)
			w.WriteString(encoding.EscapeXMLAttr(a.Value))
			w.WriteString(`"`)
		}
		if n.Text == nil && len(n.Children) == 0 {
			w.WriteString("/>")
			return
		}
		w.WriteString(">")
		writeContent(w, n)
		w.WriteString("</")
		w.WriteString(n.QName())
		w.WriteString(">")

	case KindComment:
		w.WriteString("<!--")
		w.WriteString(n.Data)
		w.WriteString("-->")

	case KindInstruction:
		w.WriteString("<?")
		w.WriteString(n.Name)
		if n.Data != "" {
			w.WriteString(" ")
			w.WriteString(n.Data)
		}
		w.WriteString("?>")
	}
}

// writeContent serializes the mixed content of n.
func writeContent(w *bytes.Buffer, n *Node) {
	w.WriteString(encoding.EscapeXMLText(n.TextValue()))
	for _, c := range n.Children {
		writeNode(w, c)
		w.WriteString(encoding.EscapeXMLText(c.TailValue()))
	}
}
