package parser

import (
	"fmt"
	"strings"
)

// SyntaxError is a build-time failure: malformed directive syntax, an
// unknown directive in a directive-only form, or arguments that do not fit
// the directive's signature. Path locates the offending node in the source
// tree (e.g. "root.foo[2].bar").
type SyntaxError struct {
	Path string
	Code string // the offending source text, when it is a string snippet
	Msg  string
	Err  error
}

func (e *SyntaxError) Error() string {
	msg := fmt.Sprintf("syntax error at %s: %s", e.Path, e.Msg)
	if e.Code != "" {
		msg += fmt.Sprintf(" (in %q)", e.Code)
	}
	return msg
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// CyclicImportError reports an import cycle detected while resolving nested
// imports at build time. Chain holds the absolute paths from the first file
// back to the repeated one.
type CyclicImportError struct {
	Chain []string
}

func (e *CyclicImportError) Error() string {
	return "cyclic import: " + strings.Join(e.Chain, " -> ")
}

// ImportError reports a file that could not be loaded while resolving an
// import directive.
type ImportError struct {
	Path string
	Err  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s: %v", e.Path, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

func syntaxErr(path, code, format string, args ...any) *SyntaxError {
	return &SyntaxError{Path: path, Code: code, Msg: fmt.Sprintf(format, args...)}
}
