package engine

import (
	"sort"
	"strings"

	"github.com/ormasoftchile/confix/pkg/ast"
	"github.com/ormasoftchile/confix/pkg/dotpath"
)

// Inspection is the static report of a tree: everything it would need from
// the outside world, gathered without evaluating anything.
type Inspection struct {
	// Imports lists the absolute paths of all imported files, recursively.
	Imports []string `json:"imports" yaml:"imports"`

	// Variables nests every referenced context path, mapped to its default
	// value or nil when the reference has none.
	Variables map[string]any `json:"variables" yaml:"variables"`

	// Environ maps the environment variable names consulted by env-enabled
	// references to their defaults.
	Environ map[string]any `json:"environ" yaml:"environ"`

	// Symbols lists the literal targets of symbol, call and model
	// directives. Computed targets cannot be known statically and are
	// omitted.
	Symbols []string `json:"symbols" yaml:"symbols"`

	// Processed reports whether evaluation would change the tree at all.
	Processed bool `json:"processed" yaml:"processed"`
}

// Inspect statically analyzes a tree. No context is needed and no directive
// is evaluated.
func Inspect(node ast.Node) *Inspection {
	ins := &Inspection{
		Variables: map[string]any{},
		Environ:   map[string]any{},
	}
	imports := map[string]bool{}
	symbols := map[string]bool{}

	ast.Inspect(node, func(n ast.Node) bool {
		switch t := n.(type) {
		case *ast.Var:
			var def any
			if lit, ok := t.Default.(*ast.Literal); ok {
				def = lit.Value
			}
			ins.addVariable(t.Path, def)
			if t.Env {
				segs := dotpath.Parse(t.Path)
				ins.Environ[strings.ToUpper(segs[len(segs)-1].Key)] = def
			}
		case *ast.Import:
			imports[t.Path] = true
		case *ast.For:
			if lit, ok := t.Iterable.(*ast.Literal); ok {
				if path, ok := lit.Value.(string); ok {
					ins.addVariable(path, nil)
				}
			}
		case *ast.Switch:
			ins.addVariable(t.Path, nil)
		case *ast.Symbol:
			addLiteralTarget(symbols, t.Target)
		case *ast.Call:
			addLiteralTarget(symbols, t.Target)
		case *ast.Model:
			addLiteralTarget(symbols, t.Target)
		}
		return true
	})

	ins.Imports = sortedKeys(imports)
	ins.Symbols = sortedKeys(symbols)
	ins.Processed = !ast.IsStatic(node)
	return ins
}

// addVariable records a referenced path, nesting it into the variables map.
// A value already present at the path is kept unless it is nil.
func (ins *Inspection) addVariable(path string, value any) {
	nested, ok := dotpath.Set(map[string]any{}, path, value).(map[string]any)
	if !ok {
		return
	}
	ins.Variables = dotpath.Merge(ins.Variables, nested)
}

func addLiteralTarget(set map[string]bool, target ast.Node) {
	if lit, ok := target.(*ast.Literal); ok {
		if s, ok := lit.Value.(string); ok {
			set[s] = true
		}
	}
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
