package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// The argument grammar of call-form directives mirrors a single function
// call argument list: literals (numbers, quoted strings, booleans, null),
// bare dotted identifiers (kept as path strings, never evaluated), one level
// of list/dict literals, and keyword arguments. Whitespace-insensitive,
// trailing commas tolerated.

type argLexer struct {
	src string
	pos int
}

func parseArgs(src string) ([]any, map[string]any, error) {
	lx := &argLexer{src: src}
	var args []any
	kwargs := map[string]any{}

	for {
		lx.skipSpace()
		if lx.eof() {
			break
		}
		key, ok := lx.tryKwargKey()
		if ok {
			if _, dup := kwargs[key]; dup {
				return nil, nil, fmt.Errorf("duplicate keyword argument %q", key)
			}
			val, err := lx.value(0)
			if err != nil {
				return nil, nil, err
			}
			kwargs[key] = val
		} else {
			if len(kwargs) > 0 {
				return nil, nil, fmt.Errorf("positional argument after keyword argument at offset %d", lx.pos)
			}
			val, err := lx.value(0)
			if err != nil {
				return nil, nil, err
			}
			args = append(args, val)
		}
		lx.skipSpace()
		if lx.eof() {
			break
		}
		if !lx.consume(',') {
			return nil, nil, fmt.Errorf("expected ',' at offset %d", lx.pos)
		}
	}
	return args, kwargs, nil
}

func (lx *argLexer) eof() bool { return lx.pos >= len(lx.src) }

func (lx *argLexer) peek() byte { return lx.src[lx.pos] }

func (lx *argLexer) consume(c byte) bool {
	if !lx.eof() && lx.peek() == c {
		lx.pos++
		return true
	}
	return false
}

func (lx *argLexer) skipSpace() {
	for !lx.eof() {
		switch lx.peek() {
		case ' ', '\t', '\n', '\r':
			lx.pos++
		default:
			return
		}
	}
}

// tryKwargKey matches "ident =" (not "==") and consumes it, returning the
// key. On no match the cursor is left untouched.
func (lx *argLexer) tryKwargKey() (string, bool) {
	save := lx.pos
	ident, end := scanIdent(lx.src, lx.pos)
	if ident == "" {
		return "", false
	}
	lx.pos = end
	lx.skipSpace()
	if lx.eof() || lx.peek() != '=' || (lx.pos+1 < len(lx.src) && lx.src[lx.pos+1] == '=') {
		lx.pos = save
		return "", false
	}
	lx.pos++
	lx.skipSpace()
	return ident, true
}

// value parses one argument value. depth > 0 means we are inside a container
// literal, where further nesting is rejected.
func (lx *argLexer) value(depth int) (any, error) {
	lx.skipSpace()
	if lx.eof() {
		return nil, fmt.Errorf("unexpected end of arguments")
	}
	switch c := lx.peek(); {
	case c == '\'' || c == '"':
		return lx.quotedString()
	case c == '[':
		if depth > 0 {
			return nil, fmt.Errorf("nested container literals are not supported in call form; use the extended form")
		}
		return lx.list(depth + 1)
	case c == '{':
		if depth > 0 {
			return nil, fmt.Errorf("nested container literals are not supported in call form; use the extended form")
		}
		return lx.dict(depth + 1)
	case c == '(' || c == ')':
		return nil, fmt.Errorf("unexpected %q at offset %d", string(c), lx.pos)
	case c >= '0' && c <= '9' || c == '-' || c == '+' || c == '.':
		return lx.number()
	case isIdentChar(c, true):
		return lx.identValue()
	default:
		return nil, fmt.Errorf("unexpected %q at offset %d", string(c), lx.pos)
	}
}

func (lx *argLexer) quotedString() (string, error) {
	quote := lx.peek()
	lx.pos++
	var sb strings.Builder
	for !lx.eof() {
		c := lx.peek()
		lx.pos++
		switch c {
		case quote:
			return sb.String(), nil
		case '\\':
			if lx.eof() {
				return "", fmt.Errorf("dangling escape in string literal")
			}
			e := lx.peek()
			lx.pos++
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '\'', '"':
				sb.WriteByte(e)
			default:
				sb.WriteByte('\\')
				sb.WriteByte(e)
			}
		default:
			sb.WriteByte(c)
		}
	}
	return "", fmt.Errorf("unbalanced quote in string literal")
}

func (lx *argLexer) number() (any, error) {
	start := lx.pos
	if c := lx.peek(); c == '-' || c == '+' {
		lx.pos++
	}
	seenDigit := false
	for !lx.eof() {
		c := lx.peek()
		if c >= '0' && c <= '9' {
			seenDigit = true
			lx.pos++
		} else if c == '.' || c == 'e' || c == 'E' {
			lx.pos++
		} else if (c == '-' || c == '+') && (lx.src[lx.pos-1] == 'e' || lx.src[lx.pos-1] == 'E') {
			lx.pos++
		} else {
			break
		}
	}
	text := lx.src[start:lx.pos]
	if !seenDigit {
		return nil, fmt.Errorf("invalid number %q at offset %d", text, start)
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return int(i), nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q at offset %d", text, start)
	}
	return f, nil
}

// identValue reads a bare identifier, possibly dotted ("foo.bar.baz").
// Boolean and null keywords become typed values; anything else is kept as a
// path string.
func (lx *argLexer) identValue() (any, error) {
	start := lx.pos
	for !lx.eof() {
		c := lx.peek()
		if isIdentChar(c, lx.pos == start) || c == '.' {
			lx.pos++
		} else {
			break
		}
	}
	text := lx.src[start:lx.pos]
	switch text {
	case "true", "True":
		return true, nil
	case "false", "False":
		return false, nil
	case "null", "none", "None":
		return nil, nil
	}
	if strings.HasPrefix(text, ".") || strings.HasSuffix(text, ".") || strings.Contains(text, "..") {
		return nil, fmt.Errorf("invalid identifier path %q at offset %d", text, start)
	}
	return text, nil
}

func (lx *argLexer) list(depth int) ([]any, error) {
	lx.pos++ // '['
	var out []any
	for {
		lx.skipSpace()
		if lx.eof() {
			return nil, fmt.Errorf("unbalanced '[' in argument list")
		}
		if lx.consume(']') {
			return out, nil
		}
		v, err := lx.value(depth)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		lx.skipSpace()
		if lx.consume(']') {
			return out, nil
		}
		if !lx.consume(',') {
			return nil, fmt.Errorf("expected ',' or ']' at offset %d", lx.pos)
		}
	}
}

func (lx *argLexer) dict(depth int) (map[string]any, error) {
	lx.pos++ // '{'
	out := map[string]any{}
	for {
		lx.skipSpace()
		if lx.eof() {
			return nil, fmt.Errorf("unbalanced '{' in argument list")
		}
		if lx.consume('}') {
			return out, nil
		}
		var key string
		if c := lx.peek(); c == '\'' || c == '"' {
			k, err := lx.quotedString()
			if err != nil {
				return nil, err
			}
			key = k
		} else {
			ident, end := scanIdent(lx.src, lx.pos)
			if ident == "" {
				return nil, fmt.Errorf("expected dict key at offset %d", lx.pos)
			}
			lx.pos = end
			key = ident
		}
		lx.skipSpace()
		if !lx.consume(':') {
			return nil, fmt.Errorf("expected ':' after dict key %q", key)
		}
		v, err := lx.value(depth)
		if err != nil {
			return nil, err
		}
		out[key] = v
		lx.skipSpace()
		if lx.consume('}') {
			return out, nil
		}
		if !lx.consume(',') {
			return nil, fmt.Errorf("expected ',' or '}' at offset %d", lx.pos)
		}
	}
}
