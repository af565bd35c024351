// Package parser turns raw decoded configuration structures into syntax
// trees. Directives are recognized in four surface forms: compact ("$uuid"),
// call ("$var(a.b, default=1)"), extended (a mapping with $directive, $args
// and $kwargs keys) and key-value ("$for(...)" or "$switch(...)" used as a
// mapping key). Imports are resolved while building, so the returned tree is
// self-contained.
package parser

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ormasoftchile/confix/pkg/ast"
	"github.com/ormasoftchile/confix/pkg/markup"
	"github.com/ormasoftchile/confix/pkg/ordered"
)

// Reserved keys of the mapping-based directive forms.
const (
	keyDirective = "$directive"
	keyArgs      = "$args"
	keyKwargs    = "$kwargs"
	keyCall      = "$call"
	keyModel     = "$model"
	keyCase      = "$case"
	keyThen      = "$then"
	keyDefault   = "$default"
)

// Builder converts raw structures into syntax trees. The zero value is not
// usable; construct one with NewBuilder. A Builder tracks the chain of files
// being imported so that cycles fail instead of recursing forever.
type Builder struct {
	importStack []string
}

// NewBuilder returns a Builder with an empty import chain.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build parses a raw structure into a syntax tree. Relative import paths
// resolve against cwd; pass "." when the structure has no file of origin.
func Build(raw any, cwd string) (ast.Node, error) {
	return NewBuilder().Build(raw, cwd)
}

// BuildFile loads a markup file and parses it into a syntax tree. Relative
// imports inside the file resolve against the file's directory.
func BuildFile(path string) (ast.Node, error) {
	return NewBuilder().BuildFile(path)
}

// Build parses a raw structure into a syntax tree.
func (b *Builder) Build(raw any, cwd string) (ast.Node, error) {
	return b.build(raw, "root", cwd)
}

// BuildFile loads and parses a markup file, guarding against import cycles
// that pass through the file itself.
func (b *Builder) BuildFile(path string) (ast.Node, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ImportError{Path: path, Err: err}
	}
	for _, p := range b.importStack {
		if p == abs {
			return nil, &CyclicImportError{Chain: append(append([]string{}, b.importStack...), abs)}
		}
	}
	raw, err := markup.Load(abs)
	if err != nil {
		return nil, &ImportError{Path: abs, Err: err}
	}
	b.importStack = append(b.importStack, abs)
	node, err := b.build(raw, "root", filepath.Dir(abs))
	b.importStack = b.importStack[:len(b.importStack)-1]
	return node, err
}

func (b *Builder) build(raw any, path, cwd string) (ast.Node, error) {
	switch v := raw.(type) {
	case nil:
		return &ast.Literal{Value: nil}, nil
	case string:
		return b.buildString(v, path, cwd)
	case *ordered.Map:
		return b.buildDict(v, path, cwd)
	case map[string]any:
		return b.buildDict(orderMap(v), path, cwd)
	case []any:
		items := make([]ast.Node, len(v))
		for i, item := range v {
			n, err := b.build(item, fmt.Sprintf("%s[%d]", path, i), cwd)
			if err != nil {
				return nil, err
			}
			items[i] = n
		}
		return &ast.List{Items: items}, nil
	default:
		return &ast.Literal{Value: raw}, nil
	}
}

// buildString scans a string for inline directives. A string that is exactly
// one directive becomes that directive's node, preserving the result type; a
// mixed string becomes a StrBundle that stringifies its parts.
func (b *Builder) buildString(s, path, cwd string) (ast.Node, error) {
	tokens, err := Scan(s)
	if err != nil {
		if serr, ok := err.(*SyntaxError); ok && serr.Path == "" {
			serr.Path = path
		}
		return nil, err
	}
	if len(tokens) == 1 {
		if tokens[0].Directive == nil {
			return &ast.Literal{Value: tokens[0].Text}, nil
		}
		return b.makeDirective(tokens[0].Directive, path, cwd, tokens[0].Source)
	}
	parts := make([]ast.Node, len(tokens))
	for i, tok := range tokens {
		if tok.Directive == nil {
			parts[i] = &ast.Literal{Value: tok.Text}
			continue
		}
		n, err := b.makeDirective(tok.Directive, path, cwd, tok.Source)
		if err != nil {
			return nil, err
		}
		parts[i] = n
	}
	return &ast.StrBundle{Parts: parts}, nil
}

// buildDict dispatches a mapping to one of the three mapping-based forms
// (special, extended, key-value) before falling back to a plain Dict. A
// mapping that mixes key-value directives with plain entries becomes a
// DictBundle: directive parts in source order, the plain remainder last.
func (b *Builder) buildDict(m *ordered.Map, path, cwd string) (ast.Node, error) {
	if m.Has(keyCall) || m.Has(keyModel) {
		return b.buildSpecialForm(m, path, cwd)
	}
	if m.Has(keyDirective) {
		return b.buildExtendedForm(m, path, cwd)
	}

	var parts []ast.Node
	var plain []ast.DictEntry
	for _, key := range m.Keys() {
		value, _ := m.Get(key)
		entryPath := path + "." + key

		dir, err := ScanWhole(key)
		if err != nil {
			if serr, ok := err.(*SyntaxError); ok && serr.Path == "" {
				serr.Path = entryPath
			}
			return nil, err
		}
		if dir != nil && (dir.Name == "for" || dir.Name == "switch") {
			var n ast.Node
			switch dir.Name {
			case "for":
				n, err = b.buildFor(dir, value, entryPath, cwd)
			case "switch":
				n, err = b.buildSwitch(dir, value, entryPath, cwd)
			}
			if err != nil {
				return nil, err
			}
			parts = append(parts, n)
			continue
		}

		keyNode, err := b.buildString(key, entryPath, cwd)
		if err != nil {
			return nil, err
		}
		valNode, err := b.build(value, entryPath, cwd)
		if err != nil {
			return nil, err
		}
		plain = append(plain, ast.DictEntry{Key: keyNode, Value: valNode})
	}

	if len(parts) == 0 {
		return &ast.Dict{Entries: plain}, nil
	}
	if len(plain) == 0 && len(parts) == 1 {
		return parts[0], nil
	}
	if len(plain) > 0 {
		parts = append(parts, &ast.Dict{Entries: plain})
	}
	return &ast.DictBundle{Parts: parts}, nil
}

// buildSpecialForm handles {"$call": target, "$args": {...}} and its $model
// twin. $args is optional and defaults to an empty mapping.
func (b *Builder) buildSpecialForm(m *ordered.Map, path, cwd string) (ast.Node, error) {
	name := keyCall
	if m.Has(keyModel) {
		name = keyModel
	}
	for _, key := range m.Keys() {
		if key != name && key != keyArgs {
			return nil, syntaxErr(path, "", "unexpected key %q next to %q", key, name)
		}
	}
	targetRaw, _ := m.Get(name)
	target, err := b.build(targetRaw, path+"."+name, cwd)
	if err != nil {
		return nil, err
	}
	var args ast.Node = &ast.Dict{}
	if rawArgs, ok := m.Get(keyArgs); ok {
		args, err = b.build(rawArgs, path+"."+keyArgs, cwd)
		if err != nil {
			return nil, err
		}
		switch args.(type) {
		case *ast.Dict, *ast.DictBundle:
		default:
			return nil, syntaxErr(path, "", "%s arguments must be a mapping", name)
		}
	}
	if name == keyModel {
		return &ast.Model{Target: target, Args: args}, nil
	}
	return &ast.Call{Target: target, Args: args}, nil
}

// buildExtendedForm handles {"$directive": name, "$args": [...], "$kwargs":
// {...}}. Unlike the call form, argument values here are full raw structures.
func (b *Builder) buildExtendedForm(m *ordered.Map, path, cwd string) (ast.Node, error) {
	for _, key := range m.Keys() {
		switch key {
		case keyDirective, keyArgs, keyKwargs:
		default:
			return nil, syntaxErr(path, "", "unexpected key %q in extended directive form", key)
		}
	}
	nameRaw, _ := m.Get(keyDirective)
	name, ok := nameRaw.(string)
	if !ok {
		return nil, syntaxErr(path, "", "%s must be a string, got %T", keyDirective, nameRaw)
	}
	if !directiveNames[name] {
		return nil, syntaxErr(path, "", "unknown directive %q", name)
	}
	var args []any
	if rawArgs, present := m.Get(keyArgs); present {
		args, ok = rawArgs.([]any)
		if !ok {
			return nil, syntaxErr(path, "", "%s must be a list, got %T", keyArgs, rawArgs)
		}
	}
	kwargs := map[string]any{}
	if rawKwargs, present := m.Get(keyKwargs); present {
		om, ok := rawKwargs.(*ordered.Map)
		if !ok {
			return nil, syntaxErr(path, "", "%s must be a mapping, got %T", keyKwargs, rawKwargs)
		}
		om.Range(func(k string, v any) bool {
			kwargs[k] = v
			return true
		})
	}
	return b.makeDirective(&Directive{Name: name, Args: args, Kwargs: kwargs}, path, cwd, "")
}

// buildFor handles a "$for(iterable, id)" mapping key. The mapping value is
// the loop body; its aggregation shape is fixed here when it is evident from
// the syntax.
func (b *Builder) buildFor(dir *Directive, body any, path, cwd string) (ast.Node, error) {
	if len(dir.Args) < 1 || len(dir.Args) > 2 {
		return nil, syntaxErr(path, "", "$for takes an iterable and an optional loop identifier, got %d arguments", len(dir.Args))
	}
	if err := noKwargs(dir, path); err != nil {
		return nil, err
	}
	switch dir.Args[0].(type) {
	case string, int:
	default:
		return nil, syntaxErr(path, "", "$for iterable must be a context path or an integer count, got %T", dir.Args[0])
	}
	id := ""
	if len(dir.Args) == 2 {
		s, ok := dir.Args[1].(string)
		if !ok {
			return nil, syntaxErr(path, "", "$for loop identifier must be a plain name, got %T", dir.Args[1])
		}
		id = s
	}
	bodyNode, err := b.build(body, path, cwd)
	if err != nil {
		return nil, err
	}
	return &ast.For{
		Iterable: &ast.Literal{Value: dir.Args[0]},
		Body:     bodyNode,
		ID:       id,
		Agg:      computeAgg(bodyNode),
	}, nil
}

// buildSwitch handles a "$switch(path)" mapping key. The value must be a list
// of case entries; at most one may be a default.
func (b *Builder) buildSwitch(dir *Directive, body any, path, cwd string) (ast.Node, error) {
	if len(dir.Args) != 1 {
		return nil, syntaxErr(path, "", "$switch takes exactly one context path, got %d arguments", len(dir.Args))
	}
	if err := noKwargs(dir, path); err != nil {
		return nil, err
	}
	key, ok := dir.Args[0].(string)
	if !ok {
		return nil, syntaxErr(path, "", "$switch path must be a string, got %T", dir.Args[0])
	}
	entries, ok := body.([]any)
	if !ok {
		return nil, syntaxErr(path, "", "$switch body must be a list of case entries, got %T", body)
	}

	sw := &ast.Switch{Path: key}
	for i, entry := range entries {
		entryPath := fmt.Sprintf("%s[%d]", path, i)
		em, ok := entry.(*ordered.Map)
		if !ok {
			return nil, syntaxErr(entryPath, "", "switch case entry must be a mapping, got %T", entry)
		}
		if defRaw, isDefault := em.Get(keyDefault); isDefault {
			if em.Len() != 1 {
				return nil, syntaxErr(entryPath, "", "a %s entry takes no other keys", keyDefault)
			}
			if sw.Default != nil {
				return nil, syntaxErr(entryPath, "", "duplicate %s entry", keyDefault)
			}
			def, err := b.build(defRaw, entryPath, cwd)
			if err != nil {
				return nil, err
			}
			sw.Default = def
			continue
		}
		caseRaw, hasCase := em.Get(keyCase)
		thenRaw, hasThen := em.Get(keyThen)
		if !hasCase || !hasThen || em.Len() != 2 {
			return nil, syntaxErr(entryPath, "", "switch case entry must hold exactly %s and %s", keyCase, keyThen)
		}
		match, err := b.build(caseRaw, entryPath+"."+keyCase, cwd)
		if err != nil {
			return nil, err
		}
		then, err := b.build(thenRaw, entryPath+"."+keyThen, cwd)
		if err != nil {
			return nil, err
		}
		sw.Cases = append(sw.Cases, ast.SwitchCase{Match: match, Body: then})
	}
	return sw, nil
}

// makeDirective validates a raw directive against its signature and builds
// the corresponding node. Argument values in value position are built
// recursively so that nested directive strings keep working.
func (b *Builder) makeDirective(d *Directive, path, cwd, source string) (ast.Node, error) {
	fail := func(format string, args ...any) (ast.Node, error) {
		return nil, syntaxErr(path, source, format, args...)
	}

	switch d.Name {
	case "var":
		if len(d.Args) != 1 {
			return fail("$var takes exactly one context path, got %d arguments", len(d.Args))
		}
		varPath, ok := d.Args[0].(string)
		if !ok {
			return fail("$var path must be a string, got %T", d.Args[0])
		}
		node := &ast.Var{Path: varPath}
		for k, v := range d.Kwargs {
			switch k {
			case "default":
				def, err := b.build(v, path+".default", cwd)
				if err != nil {
					return nil, err
				}
				node.Default = def
			case "env":
				flag, ok := v.(bool)
				if !ok {
					return fail("$var env must be a boolean, got %T", v)
				}
				node.Env = flag
			case "help":
				help, ok := v.(string)
				if !ok {
					return fail("$var help must be a string, got %T", v)
				}
				node.Help = help
			default:
				return fail("$var does not take a %q argument", k)
			}
		}
		return node, nil

	case "import":
		if len(d.Args) != 1 || len(d.Kwargs) != 0 {
			return fail("$import takes exactly one file path")
		}
		rawPath, ok := d.Args[0].(string)
		if !ok {
			return fail("$import path must be a string, got %T", d.Args[0])
		}
		return b.resolveImport(rawPath, path, cwd, source)

	case "sweep":
		if len(d.Args) == 0 {
			return fail("$sweep needs at least one case")
		}
		if err := noKwargs(d, path); err != nil {
			return nil, err
		}
		cases := make([]ast.Node, len(d.Args))
		for i, arg := range d.Args {
			n, err := b.build(arg, fmt.Sprintf("%s[%d]", path, i), cwd)
			if err != nil {
				return nil, err
			}
			cases[i] = n
		}
		return &ast.Sweep{Cases: cases}, nil

	case "symbol":
		if len(d.Args) != 1 || len(d.Kwargs) != 0 {
			return fail("$symbol takes exactly one target")
		}
		target, err := b.build(d.Args[0], path, cwd)
		if err != nil {
			return nil, err
		}
		return &ast.Symbol{Target: target}, nil

	case "call", "model":
		return fail("$%s is only valid in its mapping form {%q: ..., %q: {...}}", d.Name, "$"+d.Name, keyArgs)

	case "for", "switch":
		return fail("$%s is only valid as a mapping key", d.Name)

	case "item":
		node := &ast.Item{}
		switch len(d.Args) {
		case 0:
		case 1:
			ref, ok := d.Args[0].(string)
			if !ok {
				return fail("$item reference must be a string, got %T", d.Args[0])
			}
			node.ID, node.Sub, _ = cutDot(ref)
		default:
			return fail("$item takes at most one reference, got %d arguments", len(d.Args))
		}
		if err := noKwargs(d, path); err != nil {
			return nil, err
		}
		return node, nil

	case "index":
		node := &ast.Index{}
		switch len(d.Args) {
		case 0:
		case 1:
			id, ok := d.Args[0].(string)
			if !ok {
				return fail("$index loop identifier must be a string, got %T", d.Args[0])
			}
			node.ID = id
		default:
			return fail("$index takes at most one loop identifier, got %d arguments", len(d.Args))
		}
		if err := noKwargs(d, path); err != nil {
			return nil, err
		}
		return node, nil

	case "uuid":
		if len(d.Args) != 0 || len(d.Kwargs) != 0 {
			return fail("$uuid takes no arguments")
		}
		return &ast.UUID{}, nil

	case "date":
		node := &ast.Date{}
		switch len(d.Args) {
		case 0:
		case 1:
			format, ok := d.Args[0].(string)
			if !ok {
				return fail("$date format must be a string, got %T", d.Args[0])
			}
			node.Format = format
		default:
			return fail("$date takes at most one format, got %d arguments", len(d.Args))
		}
		if err := noKwargs(d, path); err != nil {
			return nil, err
		}
		return node, nil

	case "cmd":
		if len(d.Args) != 1 || len(d.Kwargs) != 0 {
			return fail("$cmd takes exactly one command string")
		}
		cmd, err := b.build(d.Args[0], path, cwd)
		if err != nil {
			return nil, err
		}
		return &ast.Cmd{Command: cmd}, nil

	case "tmp_dir":
		node := &ast.TmpDir{}
		switch len(d.Args) {
		case 0:
		case 1:
			name, ok := d.Args[0].(string)
			if !ok {
				return fail("$tmp_dir name must be a string, got %T", d.Args[0])
			}
			node.Name = name
		default:
			return fail("$tmp_dir takes at most one name, got %d arguments", len(d.Args))
		}
		if err := noKwargs(d, path); err != nil {
			return nil, err
		}
		return node, nil

	case "rand":
		if len(d.Args) > 2 {
			return fail("$rand takes at most two bounds, got %d arguments", len(d.Args))
		}
		node := &ast.Rand{}
		for i, arg := range d.Args {
			n, err := b.build(arg, fmt.Sprintf("%s[%d]", path, i), cwd)
			if err != nil {
				return nil, err
			}
			node.Args = append(node.Args, n)
		}
		for k, v := range d.Kwargs {
			switch k {
			case "n":
				n, err := b.build(v, path+".n", cwd)
				if err != nil {
					return nil, err
				}
				node.N = n
			case "pdf":
				n, err := b.build(v, path+".pdf", cwd)
				if err != nil {
					return nil, err
				}
				node.PDF = n
			default:
				return fail("$rand does not take a %q argument", k)
			}
		}
		return node, nil

	default:
		return fail("unknown directive %q", d.Name)
	}
}

// resolveImport loads and builds the imported file right away. The path must
// be fully literal because resolution happens before any context exists.
func (b *Builder) resolveImport(rawPath, path, cwd, source string) (ast.Node, error) {
	tokens, err := Scan(rawPath)
	if err != nil {
		return nil, err
	}
	if len(tokens) != 1 || tokens[0].Directive != nil {
		return nil, syntaxErr(path, source, "$import path must be a literal string")
	}
	abs := rawPath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(cwd, abs)
	}
	abs, err = filepath.Abs(abs)
	if err != nil {
		return nil, &ImportError{Path: rawPath, Err: err}
	}
	body, err := b.BuildFile(abs)
	if err != nil {
		return nil, err
	}
	return &ast.Import{RawPath: rawPath, Path: abs, Body: body}, nil
}

// computeAgg fixes the aggregation shape of a loop body when its syntax makes
// the shape evident. Anything else is decided at evaluation time from the
// first iteration result.
func computeAgg(body ast.Node) ast.AggKind {
	switch t := body.(type) {
	case *ast.Dict, *ast.DictBundle:
		return ast.AggDict
	case *ast.List:
		return ast.AggList
	case *ast.StrBundle:
		return ast.AggString
	case *ast.Literal:
		switch t.Value.(type) {
		case string, int, int64, float64, bool:
			return ast.AggString
		}
		return ast.AggAuto
	case *ast.For:
		return t.Agg
	default:
		return ast.AggAuto
	}
}

func noKwargs(d *Directive, path string) error {
	for k := range d.Kwargs {
		return syntaxErr(path, "", "$%s does not take a %q argument", d.Name, k)
	}
	return nil
}

// cutDot splits a dotted reference on its first dot.
func cutDot(s string) (head, rest string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// orderMap adapts a plain Go map into an ordered one with sorted keys, for
// callers that hand in literal structures instead of decoded markup.
func orderMap(m map[string]any) *ordered.Map {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	om := ordered.NewMap()
	for _, k := range keys {
		om.Set(k, m[k])
	}
	return om
}
