package engine

import "fmt"

// MissingVariableError reports a $var whose path is absent from the context,
// the environment fallback (when enabled), and has no default.
type MissingVariableError struct {
	Path string
	Help string
}

func (e *MissingVariableError) Error() string {
	msg := fmt.Sprintf("variable %q not found in context", e.Path)
	if e.Help != "" {
		msg += " (" + e.Help + ")"
	}
	return msg
}

// MissingSwitchCaseError reports a $switch whose key is absent from the
// context, or whose key value matched no case and no default exists.
type MissingSwitchCaseError struct {
	Path  string
	Value any
	// KeyMissing distinguishes an absent key from an unmatched value.
	KeyMissing bool
}

func (e *MissingSwitchCaseError) Error() string {
	if e.KeyMissing {
		return fmt.Sprintf("switch key %q not found in context", e.Path)
	}
	return fmt.Sprintf("no switch case matches %v for key %q and no default is given", e.Value, e.Path)
}

// BranchingViolationError reports a branching directive reached by a
// single-result evaluation.
type BranchingViolationError struct {
	Kind string
}

func (e *BranchingViolationError) Error() string {
	return fmt.Sprintf("%s directive reached during single-result processing; use ProcessAll", e.Kind)
}

// SymbolResolutionError wraps a failed $symbol, $call or $model target
// resolution or invocation.
type SymbolResolutionError struct {
	Target string
	Err    error
}

func (e *SymbolResolutionError) Error() string {
	return fmt.Sprintf("resolve symbol %q: %v", e.Target, e.Err)
}

func (e *SymbolResolutionError) Unwrap() error { return e.Err }

// SubprocessError reports a $cmd whose command failed or timed out.
type SubprocessError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *SubprocessError) Error() string {
	msg := fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *SubprocessError) Unwrap() error { return e.Err }

// LoopError reports a malformed loop: a missing iterable, a non-iterable
// value, or an item/index reference outside any active loop.
type LoopError struct {
	Msg string
}

func (e *LoopError) Error() string { return e.Msg }

func loopErr(format string, args ...any) *LoopError {
	return &LoopError{Msg: fmt.Sprintf(format, args...)}
}
