package parser

import "strings"

// Prefix marks the start of every directive.
const Prefix = "$"

// directiveNames is the closed set of directives that may appear in compact
// or call form inside a string. Form-only markers like $args or $then are
// recognized separately by the builder.
var directiveNames = map[string]bool{
	"var":     true,
	"import":  true,
	"sweep":   true,
	"symbol":  true,
	"call":    true,
	"model":   true,
	"for":     true,
	"switch":  true,
	"item":    true,
	"index":   true,
	"uuid":    true,
	"date":    true,
	"cmd":     true,
	"tmp_dir": true,
	"rand":    true,
}

// Directive is a raw directive descriptor: name plus parsed (but not yet
// validated) positional and keyword arguments.
type Directive struct {
	Name   string
	Args   []any
	Kwargs map[string]any
}

// Token is one fragment of a scanned string: either a run of literal text or
// a directive match.
type Token struct {
	Text      string     // literal text; empty for directive tokens
	Directive *Directive // nil for text tokens
	Source    string     // the matched source span, for diagnostics
}

// Scan splits a string into literal runs and directive matches (compact or
// call form). A '$' followed by an identifier outside the directive set is
// literal text; a known directive name followed by '(' must close its
// argument list on the same level — nested parentheses are rejected with a
// hint to use the extended form.
func Scan(s string) ([]Token, error) {
	var tokens []Token
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			tokens = append(tokens, Token{Text: text.String(), Source: text.String()})
			text.Reset()
		}
	}

	i := 0
	for i < len(s) {
		if s[i] != '$' {
			text.WriteByte(s[i])
			i++
			continue
		}
		name, end := scanIdent(s, i+1)
		if name == "" || !directiveNames[name] {
			// Not a directive: '$' and whatever follows stay literal.
			text.WriteByte('$')
			i++
			continue
		}
		if end < len(s) && s[end] == '(' {
			argText, close_, err := scanCallArgs(s, end)
			if err != nil {
				return nil, err
			}
			args, kwargs, err := parseArgs(argText)
			if err != nil {
				return nil, &SyntaxError{Code: s[i:close_], Msg: err.Error(), Err: err}
			}
			flush()
			tokens = append(tokens, Token{
				Directive: &Directive{Name: name, Args: args, Kwargs: kwargs},
				Source:    s[i:close_],
			})
			i = close_
			continue
		}
		// Compact form: the identifier scan already guarantees the name is
		// followed by a non-identifier character or the end of the string.
		flush()
		tokens = append(tokens, Token{
			Directive: &Directive{Name: name, Kwargs: map[string]any{}},
			Source:    s[i:end],
		})
		i = end
	}
	flush()
	if tokens == nil {
		tokens = []Token{{Text: "", Source: ""}}
	}
	return tokens, nil
}

// ScanWhole matches a string that is exactly one directive with nothing
// around it. It returns nil with no error when the string is plain text or
// contains surrounding text.
func ScanWhole(s string) (*Directive, error) {
	tokens, err := Scan(s)
	if err != nil {
		return nil, err
	}
	if len(tokens) != 1 || tokens[0].Directive == nil {
		return nil, nil
	}
	return tokens[0].Directive, nil
}

// scanIdent reads an identifier ([a-zA-Z_][a-zA-Z0-9_]*) starting at pos and
// returns it with the index just past its end.
func scanIdent(s string, pos int) (string, int) {
	i := pos
	for i < len(s) && isIdentChar(s[i], i == pos) {
		i++
	}
	return s[pos:i], i
}

func isIdentChar(c byte, first bool) bool {
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	return !first && c >= '0' && c <= '9'
}

// scanCallArgs reads the argument span of a call form, starting at the '('.
// It returns the raw argument text and the index just past the ')'.
func scanCallArgs(s string, open int) (string, int, error) {
	for i := open + 1; i < len(s); i++ {
		switch s[i] {
		case '(':
			return "", 0, &SyntaxError{
				Code: s,
				Msg:  "nested parentheses are not supported in call form; use the extended form ($directive/$args/$kwargs) instead",
			}
		case ')':
			return s[open+1 : i], i + 1, nil
		}
	}
	return "", 0, &SyntaxError{Code: s, Msg: "unbalanced parentheses in directive call"}
}
