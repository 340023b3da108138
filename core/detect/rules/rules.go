// Package rules implements a deterministic token-pattern entity detector.
//
// Rules are written in a small language:
//
//	# comment
//	TIMEX: on the (first|second|third) day ;
//	TIMEX: /[0-2]?[0-9]:[0-9]{2}/ ;
//	TIMEX: <digit> (day|days) ;
//
// Text is split into tokens (words, digit groups such as 12:30, and single
// punctuation marks). At each token the longest matching rule wins and
// matching resumes after it, so spans never overlap.
package rules

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/JuniperTimex/core/detect"
	"github.com/FocuswithJustin/JuniperTimex/core/errors"
)

//go:embed default.rules
var defaultRules []byte

// ruleFile is the participle grammar for a rules file.
//
//nolint:govet // participle grammar tags are not standard struct tags
type ruleFile struct {
	Rules []*ruleDecl `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type ruleDecl struct {
	Pos   lexer.Position
	Label string      `@Ident ":"`
	Terms []*termDecl `@@+ ";"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type termDecl struct {
	Digit bool     `  @Digit`
	Regex *string  `| @Regex`
	Alt   []string `| "(" @Ident ( "|" @Ident )* ")"`
	Word  *string  `| @Ident`
}

// rulesLexer defines the lexer for rule files.
var rulesLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Regex", Pattern: `/(?:\\.|[^/\\\n])+/`},
	{Name: "Digit", Pattern: `<digit>`},
	{Name: "Ident", Pattern: `[\p{L}\p{N}][\p{L}\p{N}_'-]*`},
	{Name: "Punct", Pattern: `[:;()|]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// rulesParser is the participle parser for rule files.
var rulesParser = participle.MustBuild[ruleFile](
	participle.Lexer(rulesLexer),
	participle.Elide("Whitespace", "Comment"),
)

// tokenPattern splits text into digit groups (with optional colon parts),
// words (with apostrophe-joined parts) and single punctuation marks.
var tokenPattern = regexp.MustCompile(`[0-9]+(?::[0-9]+)*|[\p{L}\p{M}\p{N}]+(?:['’][\p{L}\p{M}]+)*|[^\s\p{L}\p{M}\p{N}]`)

type term struct {
	words []string
	re    *regexp.Regexp
	digit bool
}

func (t term) match(tok string) bool {
	switch {
	case t.digit:
		for _, r := range tok {
			if !unicode.IsDigit(r) {
				return false
			}
		}
		return tok != ""
	case t.re != nil:
		return t.re.MatchString(tok)
	}
	for _, w := range t.words {
		if strings.EqualFold(w, tok) {
			return true
		}
	}
	return false
}

func (t term) String() string {
	switch {
	case t.digit:
		return "<digit>"
	case t.re != nil:
		src := t.re.String()
		return "/" + src[len("^(?:"):len(src)-len(")$")] + "/"
	case len(t.words) == 1:
		return t.words[0]
	}
	return "(" + strings.Join(t.words, "|") + ")"
}

// Rule is one compiled pattern.
type Rule struct {
	Label string
	Line  int
	terms []term
}

// String renders the rule in rule-file syntax.
func (r Rule) String() string {
	parts := make([]string, len(r.terms))
	for i, t := range r.terms {
		parts[i] = t.String()
	}
	return r.Label + ": " + strings.Join(parts, " ") + " ;"
}

// matchAt returns the number of tokens r matches starting at toks[i], or 0.
func (r Rule) matchAt(toks []token, i int) int {
	if i+len(r.terms) > len(toks) {
		return 0
	}
	for k, t := range r.terms {
		if !t.match(toks[i+k].text) {
			return 0
		}
	}
	return len(r.terms)
}

type token struct {
	text       string
	start, end int
}

func tokenize(text string) []token {
	locs := tokenPattern.FindAllStringIndex(text, -1)
	toks := make([]token, len(locs))
	for i, loc := range locs {
		toks[i] = token{text: text[loc[0]:loc[1]], start: loc[0], end: loc[1]}
	}
	return toks
}

// Parse compiles rule-file source. name is used in error messages.
func Parse(name string, src []byte) ([]Rule, error) {
	file, err := rulesParser.ParseBytes(name, src)
	if err != nil {
		perr := errors.NewParse("rules", name, err.Error())
		perr.Err = err
		return nil, perr
	}

	out := make([]Rule, 0, len(file.Rules))
	for _, decl := range file.Rules {
		rule := Rule{Label: decl.Label, Line: decl.Pos.Line}
		for _, td := range decl.Terms {
			var t term
			switch {
			case td.Digit:
				t.digit = true
			case td.Regex != nil:
				body := strings.TrimSuffix(strings.TrimPrefix(*td.Regex, "/"), "/")
				re, err := regexp.Compile("^(?:" + body + ")$")
				if err != nil {
					return nil, errors.NewParse("rules", name, fmt.Sprintf("line %d: %v", decl.Pos.Line, err))
				}
				t.re = re
			case len(td.Alt) > 0:
				t.words = td.Alt
			case td.Word != nil:
				t.words = []string{*td.Word}
			}
			rule.terms = append(rule.terms, t)
		}
		out = append(out, rule)
	}
	return out, nil
}

// Detector matches compiled rules against text.
type Detector struct {
	rules []Rule
}

// New creates a detector from compiled rules.
func New(rules []Rule) (*Detector, error) {
	if len(rules) == 0 {
		return nil, errors.NewDetector("rules", "no rules loaded", nil)
	}
	return &Detector{rules: rules}, nil
}

// Default returns a detector using the built-in temporal expression rules.
func Default() *Detector {
	rules, err := Parse("default.rules", defaultRules)
	if err != nil {
		panic(fmt.Sprintf("rules: built-in rules do not compile: %v", err))
	}
	return &Detector{rules: rules}
}

// DefaultSource returns the built-in rule file.
func DefaultSource() []byte {
	return append([]byte(nil), defaultRules...)
}

// Load reads and compiles a rules file.
func Load(path string) (*Detector, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewDetector("rules", "loading rules", errors.NewIO("read", path, err))
	}
	rules, err := Parse(path, src)
	if err != nil {
		return nil, errors.NewDetector("rules", "compiling rules", err)
	}
	return New(rules)
}

// Rules returns the compiled rules in file order.
func (d *Detector) Rules() []Rule {
	return d.rules
}

// Detect returns the non-overlapping rule matches in text, in order.
func (d *Detector) Detect(ctx context.Context, text string) ([]detect.Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	toks := tokenize(text)
	var spans []detect.Span
	for i := 0; i < len(toks); {
		best, bestRule := 0, -1
		for ri, r := range d.rules {
			if n := r.matchAt(toks, i); n > best {
				best, bestRule = n, ri
			}
		}
		if best == 0 {
			i++
			continue
		}
		spans = append(spans, detect.Span{
			Start: toks[i].start,
			End:   toks[i+best-1].end,
			Label: d.rules[bestRule].Label,
		})
		i += best
	}
	return spans, nil
}
