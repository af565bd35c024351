package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ormasoftchile/confix/pkg/ast"
	"github.com/ormasoftchile/confix/pkg/ordered"
)

// Unparse converts a tree back into the raw structure it was built from.
// Directives come out in call form when their arguments fit its restricted
// grammar, and in the extended mapping form otherwise; rebuilding the result
// yields an equivalent tree.
func Unparse(node ast.Node) any {
	switch n := node.(type) {
	case *ast.Literal:
		return n.Value
	case *ast.Dict:
		m := ordered.NewMap()
		for _, e := range n.Entries {
			m.Set(unparseKey(e.Key), Unparse(e.Value))
		}
		return m
	case *ast.List:
		out := make([]any, len(n.Items))
		for i, item := range n.Items {
			out[i] = Unparse(item)
		}
		return out
	case *ast.StrBundle:
		var sb strings.Builder
		for _, part := range n.Parts {
			sb.WriteString(unparseKey(part))
		}
		return sb.String()
	case *ast.DictBundle:
		merged := ordered.NewMap()
		for _, part := range n.Parts {
			pm, ok := Unparse(part).(*ordered.Map)
			if !ok {
				continue
			}
			pm.Range(func(k string, v any) bool {
				merged.Set(k, v)
				return true
			})
		}
		return merged
	case *ast.Var:
		kwargs := ordered.NewMap()
		if n.Default != nil {
			kwargs.Set("default", Unparse(n.Default))
		}
		if n.Env {
			kwargs.Set("env", true)
		}
		if n.Help != "" {
			kwargs.Set("help", n.Help)
		}
		return directive("var", []any{bare(n.Path)}, kwargs)
	case *ast.Import:
		return directive("import", []any{n.RawPath}, nil)
	case *ast.Sweep:
		args := make([]any, len(n.Cases))
		for i, c := range n.Cases {
			args[i] = Unparse(c)
		}
		return directive("sweep", args, nil)
	case *ast.Symbol:
		return directive("symbol", []any{Unparse(n.Target)}, nil)
	case *ast.Call:
		m := ordered.NewMap()
		m.Set("$call", Unparse(n.Target))
		m.Set("$args", Unparse(n.Args))
		return m
	case *ast.Model:
		m := ordered.NewMap()
		m.Set("$model", Unparse(n.Target))
		m.Set("$args", Unparse(n.Args))
		return m
	case *ast.For:
		args := []any{}
		if lit, ok := n.Iterable.(*ast.Literal); ok {
			if s, isStr := lit.Value.(string); isStr {
				args = append(args, bare(s))
			} else {
				args = append(args, lit.Value)
			}
		}
		if n.ID != "" {
			args = append(args, bare(n.ID))
		}
		key, _ := callForm("for", args, nil)
		m := ordered.NewMap()
		m.Set(key, Unparse(n.Body))
		return m
	case *ast.Switch:
		key, _ := callForm("switch", []any{bare(n.Path)}, nil)
		entries := make([]any, 0, len(n.Cases)+1)
		for _, c := range n.Cases {
			em := ordered.NewMap()
			em.Set("$case", Unparse(c.Match))
			em.Set("$then", Unparse(c.Body))
			entries = append(entries, em)
		}
		if n.Default != nil {
			em := ordered.NewMap()
			em.Set("$default", Unparse(n.Default))
			entries = append(entries, em)
		}
		m := ordered.NewMap()
		m.Set(key, entries)
		return m
	case *ast.Item:
		ref := n.ID
		if n.Sub != "" {
			ref += "." + n.Sub
		}
		if ref == "" {
			return "$item"
		}
		return directive("item", []any{bare(ref)}, nil)
	case *ast.Index:
		if n.ID == "" {
			return "$index"
		}
		return directive("index", []any{bare(n.ID)}, nil)
	case *ast.UUID:
		return "$uuid"
	case *ast.Date:
		if n.Format == "" {
			return "$date"
		}
		return directive("date", []any{n.Format}, nil)
	case *ast.Cmd:
		return directive("cmd", []any{Unparse(n.Command)}, nil)
	case *ast.TmpDir:
		if n.Name == "" {
			return "$tmp_dir"
		}
		return directive("tmp_dir", []any{bare(n.Name)}, nil)
	case *ast.Rand:
		args := make([]any, len(n.Args))
		for i, a := range n.Args {
			args[i] = Unparse(a)
		}
		kwargs := ordered.NewMap()
		if n.N != nil {
			kwargs.Set("n", Unparse(n.N))
		}
		if n.PDF != nil {
			kwargs.Set("pdf", Unparse(n.PDF))
		}
		return directive("rand", args, kwargs)
	default:
		return nil
	}
}

// unparseKey renders a node destined for string position (mapping keys,
// string bundle fragments).
func unparseKey(n ast.Node) string {
	raw := Unparse(n)
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", raw)
}

// bareIdent wraps a string that renders unquoted in call form: directive
// paths and loop identifiers.
type bareIdent string

func bare(s string) any { return bareIdent(s) }

// directive renders a directive in call form when its arguments allow it,
// falling back to the extended mapping form.
func directive(name string, args []any, kwargs *ordered.Map) any {
	if s, ok := callForm(name, args, kwargs); ok {
		return s
	}
	m := ordered.NewMap()
	m.Set("$directive", name)
	if len(args) > 0 {
		plain := make([]any, len(args))
		for i, a := range args {
			plain[i] = unwrapBare(a)
		}
		m.Set("$args", plain)
	}
	if kwargs != nil && kwargs.Len() > 0 {
		kw := ordered.NewMap()
		kwargs.Range(func(k string, v any) bool {
			kw.Set(k, unwrapBare(v))
			return true
		})
		m.Set("$kwargs", kw)
	}
	return m
}

func unwrapBare(v any) any {
	if b, ok := v.(bareIdent); ok {
		return string(b)
	}
	return v
}

func callForm(name string, args []any, kwargs *ordered.Map) (string, bool) {
	var parts []string
	for _, a := range args {
		s, ok := renderArg(a, false)
		if !ok {
			return "", false
		}
		parts = append(parts, s)
	}
	ok := true
	if kwargs != nil {
		kwargs.Range(func(k string, v any) bool {
			s, fits := renderArg(v, false)
			if !fits {
				ok = false
				return false
			}
			parts = append(parts, k+"="+s)
			return true
		})
	}
	if !ok {
		return "", false
	}
	if len(parts) == 0 {
		return "$" + name, true
	}
	return "$" + name + "(" + strings.Join(parts, ", ") + ")", true
}

// renderArg renders one call-form argument. Containers render one level
// deep; anything deeper, and strings that would not survive the round trip,
// reject the call form.
func renderArg(v any, nested bool) (string, bool) {
	switch t := v.(type) {
	case bareIdent:
		return string(t), true
	case nil:
		return "null", true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), true
	case string:
		if strings.ContainsAny(t, "'\\\n()$") {
			return "", false
		}
		return "'" + t + "'", true
	case []any:
		if nested {
			return "", false
		}
		items := make([]string, len(t))
		for i, item := range t {
			s, ok := renderArg(item, true)
			if !ok {
				return "", false
			}
			items[i] = s
		}
		return "[" + strings.Join(items, ", ") + "]", true
	case map[string]any:
		if nested {
			return "", false
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		items := make([]string, len(keys))
		for i, k := range keys {
			s, ok := renderArg(t[k], true)
			if !ok {
				return "", false
			}
			items[i] = "'" + k + "': " + s
		}
		return "{" + strings.Join(items, ", ") + "}", true
	default:
		return "", false
	}
}
