// Package ast defines the syntax tree produced by the configuration parser.
// The node set is closed: structural nodes (literal, dict, list, bundles)
// plus one node per directive kind. Consumers dispatch with a type switch,
// which the compiler can check for exhaustiveness against this package.
package ast

// Node is an element of the configuration syntax tree. The interface is
// sealed; only types in this package implement it.
type Node interface {
	// Kind returns a short name for diagnostics ("dict", "var", "sweep", ...).
	Kind() string

	node()
}

// ---------------------------------------------------------------------------
// Structural nodes

// Literal holds any non-directive scalar, forwarded unchanged by evaluation.
type Literal struct {
	Value any
}

// DictEntry is one key/value pair of a Dict. Keys are nodes because a key may
// itself contain directives ("item_$index: ...").
type DictEntry struct {
	Key   Node
	Value Node
}

// Dict is a mapping node. Entry order mirrors the source key order.
type Dict struct {
	Entries []DictEntry
}

// List is a sequence node.
type List struct {
	Items []Node
}

// StrBundle is a scalar string interleaving literal fragments and inline
// directives; it evaluates to their concatenation.
type StrBundle struct {
	Parts []Node
}

// DictBundle represents a mapping that mixes several key-value-form
// directives (and optionally plain entries): each part evaluates to a
// mapping and the results are unioned in order, later keys winning.
type DictBundle struct {
	Parts []Node
}

// ---------------------------------------------------------------------------
// Directive nodes

// Var reads a dotted path from the context, falling back to the environment
// and then to a default.
type Var struct {
	Path    string
	Default Node // nil when no default was given (an explicit null default is Literal{nil})
	Env     bool
	Help    string
}

// Import splices the parsed content of another file. Resolution happens at
// build time, so the node carries both the path as written and the already
// built sub-tree.
type Import struct {
	RawPath string
	Path    string // absolute, resolved against the importing file's directory
	Body    Node
}

// Sweep is the only branching node: each case becomes one candidate world.
type Sweep struct {
	Cases []Node
}

// Symbol resolves a target string to a live object without invoking it.
type Symbol struct {
	Target Node
}

// Call resolves a target and invokes it with evaluated keyword arguments.
type Call struct {
	Target Node
	Args   Node // Dict or DictBundle
}

// Model resolves a record type and constructs an instance from evaluated
// keyword arguments.
type Model struct {
	Target Node
	Args   Node // Dict or DictBundle
}

// AggKind is the aggregation shape of a for-loop body, fixed at build time
// whenever the body shape is syntactically evident.
type AggKind int

const (
	// AggAuto defers to the runtime type of the first iteration result.
	AggAuto AggKind = iota
	AggDict
	AggList
	AggString
)

// For iterates its body once per element of an iterable (a literal count or
// a context path), aggregating results according to Agg.
type For struct {
	Iterable Node // Literal int or Literal string (context path)
	Body     Node
	ID       string // loop identifier; empty means auto-generated
	Agg      AggKind
}

// SwitchCase pairs a match value (or list of values) with the body produced
// when the switch key equals one of them.
type SwitchCase struct {
	Match Node
	Body  Node
}

// Switch selects the first case whose value matches a context path.
type Switch struct {
	Path    string
	Cases   []SwitchCase
	Default Node // nil when no default entry is present
}

// Item yields the current element of an active loop, optionally addressed by
// loop identifier and a sub-path into the element.
type Item struct {
	ID  string // empty means innermost active loop
	Sub string // optional dotted path into the item
}

// Index yields the zero-based iteration counter of an active loop.
type Index struct {
	ID string // empty means innermost active loop
}

// UUID yields a freshly generated random UUID string on every evaluation.
type UUID struct{}

// Date yields the current time, formatted with strftime-style verbs or as
// ISO-8601 when Format is empty.
type Date struct {
	Format string
}

// Cmd runs a shell command and yields its trimmed standard output.
type Cmd struct {
	Command Node
}

// TmpDir yields a process-lifetime temporary directory path. The same name
// resolves to the same path within one process.
type TmpDir struct {
	Name string // empty means a per-evaluation random name
}

// Rand yields a random scalar or list. Bounds are optional; integer bounds
// produce integers. PDF overrides uniform sampling.
type Rand struct {
	Args []Node // 0..2 positional bounds
	N    Node   // nil for a scalar result
	PDF  Node   // nil for uniform sampling
}

func (*Literal) Kind() string    { return "literal" }
func (*Dict) Kind() string       { return "dict" }
func (*List) Kind() string       { return "list" }
func (*StrBundle) Kind() string  { return "str-bundle" }
func (*DictBundle) Kind() string { return "dict-bundle" }
func (*Var) Kind() string        { return "var" }
func (*Import) Kind() string     { return "import" }
func (*Sweep) Kind() string      { return "sweep" }
func (*Symbol) Kind() string     { return "symbol" }
func (*Call) Kind() string       { return "call" }
func (*Model) Kind() string      { return "model" }
func (*For) Kind() string        { return "for" }
func (*Switch) Kind() string     { return "switch" }
func (*Item) Kind() string       { return "item" }
func (*Index) Kind() string      { return "index" }
func (*UUID) Kind() string       { return "uuid" }
func (*Date) Kind() string       { return "date" }
func (*Cmd) Kind() string        { return "cmd" }
func (*TmpDir) Kind() string     { return "tmp_dir" }
func (*Rand) Kind() string       { return "rand" }

func (*Literal) node()    {}
func (*Dict) node()       {}
func (*List) node()       {}
func (*StrBundle) node()  {}
func (*DictBundle) node() {}
func (*Var) node()        {}
func (*Import) node()     {}
func (*Sweep) node()      {}
func (*Symbol) node()     {}
func (*Call) node()       {}
func (*Model) node()      {}
func (*For) node()        {}
func (*Switch) node()     {}
func (*Item) node()       {}
func (*Index) node()      {}
func (*UUID) node()       {}
func (*Date) node()       {}
func (*Cmd) node()        {}
func (*TmpDir) node()     {}
func (*Rand) node()       {}
