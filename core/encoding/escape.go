// Package encoding provides shared text escaping utilities for XML output.
package encoding

import "strings"

// textEscaper replaces the characters that cannot appear literally in XML
// character data.
var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\r", "&#13;",
)

// attrEscaper additionally escapes quotes and the whitespace characters that
// attribute-value normalisation would otherwise fold into spaces.
var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"\n", "&#10;",
	"\r", "&#13;",
	"\t", "&#9;",
)

// EscapeXMLText escapes text content. Quotes and newlines are kept as-is.
func EscapeXMLText(s string) string {
	return textEscaper.Replace(s)
}

// EscapeXMLAttr escapes text for use in a double-quoted XML attribute.
func EscapeXMLAttr(s string) string {
	return attrEscaper.Replace(s)
}
