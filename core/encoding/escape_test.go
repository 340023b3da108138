package encoding

import "testing"

func TestEscapeXMLText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain text", "In the beginning", "In the beginning"},
		{"ampersand", "Moses & Aaron", "Moses &amp; Aaron"},
		{"less than", "a < b", "a &lt; b"},
		{"greater than", "a > b", "a &gt; b"},
		{"quotes preserved", `He said "Peace"`, `He said "Peace"`},
		{"newline preserved", "line one\n  line two", "line one\n  line two"},
		{"carriage return", "a\rb", "a&#13;b"},
		{"unicode", "ἐν ἀρχῇ & אלהים", "ἐν ἀρχῇ &amp; אלהים"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EscapeXMLText(tt.input)
			if got != tt.want {
				t.Errorf("EscapeXMLText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEscapeXMLAttr(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "Matt.1.1", "Matt.1.1"},
		{"quote", `say "amen"`, "say &quot;amen&quot;"},
		{"apostrophe kept", "it's", "it's"},
		{"entities", "<a&b>", "&lt;a&amp;b&gt;"},
		{"whitespace", "a\tb\nc", "a&#9;b&#10;c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EscapeXMLAttr(tt.input)
			if got != tt.want {
				t.Errorf("EscapeXMLAttr(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
