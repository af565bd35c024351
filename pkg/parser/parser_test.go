package parser

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ormasoftchile/confix/pkg/ast"
	"github.com/ormasoftchile/confix/pkg/ordered"
)

// TestBuildScalars verifies that plain scalars become literals.
func TestBuildScalars(t *testing.T) {
	for _, v := range []any{nil, 42, 3.14, true, "plain text"} {
		n, err := Build(v, ".")
		if err != nil {
			t.Fatalf("Build(%v): %v", v, err)
		}
		lit, ok := n.(*ast.Literal)
		if !ok {
			t.Fatalf("Build(%v) = %T, want *ast.Literal", v, n)
		}
		if lit.Value != v {
			t.Errorf("literal value = %v, want %v", lit.Value, v)
		}
	}
}

// TestBuildWholeDirectiveString verifies that a string holding exactly one
// directive becomes that directive's node, not a string bundle.
func TestBuildWholeDirectiveString(t *testing.T) {
	n, err := Build("$var(params.lr, default=0.01)", ".")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	v, ok := n.(*ast.Var)
	if !ok {
		t.Fatalf("got %T, want *ast.Var", n)
	}
	if v.Path != "params.lr" {
		t.Errorf("path = %q", v.Path)
	}
	def, ok := v.Default.(*ast.Literal)
	if !ok || def.Value != 0.01 {
		t.Errorf("default = %+v", v.Default)
	}
}

// TestBuildStringBundle verifies that mixed strings become bundles with the
// fragments in order.
func TestBuildStringBundle(t *testing.T) {
	n, err := Build("run_$index of $var(n)", ".")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sb, ok := n.(*ast.StrBundle)
	if !ok {
		t.Fatalf("got %T, want *ast.StrBundle", n)
	}
	kinds := make([]string, len(sb.Parts))
	for i, p := range sb.Parts {
		kinds[i] = p.Kind()
	}
	want := []string{"literal", "index", "literal", "var"}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("part kinds = %v, want %v", kinds, want)
		}
	}
}

// TestBuildNestedDefault verifies that directive strings in value position of
// another directive's arguments are parsed recursively.
func TestBuildNestedDefault(t *testing.T) {
	n, err := Build("$var(a, default='$var(b)')", ".")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	v := n.(*ast.Var)
	inner, ok := v.Default.(*ast.Var)
	if !ok {
		t.Fatalf("default = %T, want *ast.Var", v.Default)
	}
	if inner.Path != "b" {
		t.Errorf("inner path = %q", inner.Path)
	}
}

// TestBuildDictKeysKeepOrder verifies that mapping entries preserve source
// key order and that keys with inline directives become nodes.
func TestBuildDictKeysKeepOrder(t *testing.T) {
	m := ordered.NewMap()
	m.Set("zeta", 1)
	m.Set("alpha", 2)
	m.Set("key_$index", 3)
	n, err := Build(m, ".")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	d, ok := n.(*ast.Dict)
	if !ok {
		t.Fatalf("got %T, want *ast.Dict", n)
	}
	if len(d.Entries) != 3 {
		t.Fatalf("entries = %d", len(d.Entries))
	}
	if k := d.Entries[0].Key.(*ast.Literal); k.Value != "zeta" {
		t.Errorf("first key = %v", k.Value)
	}
	if k := d.Entries[1].Key.(*ast.Literal); k.Value != "alpha" {
		t.Errorf("second key = %v", k.Value)
	}
	if _, ok := d.Entries[2].Key.(*ast.StrBundle); !ok {
		t.Errorf("third key = %T, want *ast.StrBundle", d.Entries[2].Key)
	}
}

// TestBuildForKey verifies the key-value form of the for directive, including
// the parse-time aggregation shape.
func TestBuildForKey(t *testing.T) {
	m := ordered.NewMap()
	body := ordered.NewMap()
	body.Set("node_$index", "$item")
	m.Set("$for(nodes, n)", body)
	n, err := Build(m, ".")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	f, ok := n.(*ast.For)
	if !ok {
		t.Fatalf("got %T, want *ast.For", n)
	}
	if f.ID != "n" {
		t.Errorf("loop id = %q", f.ID)
	}
	if it := f.Iterable.(*ast.Literal); it.Value != "nodes" {
		t.Errorf("iterable = %v", it.Value)
	}
	if f.Agg != ast.AggDict {
		t.Errorf("agg = %v, want AggDict", f.Agg)
	}
}

// TestBuildForAggKinds verifies aggregation inference for list, string, and
// scalar bodies.
func TestBuildForAggKinds(t *testing.T) {
	tests := []struct {
		body any
		want ast.AggKind
	}{
		{[]any{"$item"}, ast.AggList},
		{"x=$item ", ast.AggString},
		{7, ast.AggString},
		{"$item", ast.AggAuto},
	}
	for _, tt := range tests {
		m := ordered.NewMap()
		m.Set("$for(3)", tt.body)
		n, err := Build(m, ".")
		if err != nil {
			t.Fatalf("Build(%v): %v", tt.body, err)
		}
		if f := n.(*ast.For); f.Agg != tt.want {
			t.Errorf("body %v: agg = %v, want %v", tt.body, f.Agg, tt.want)
		}
	}
}

// TestBuildDictBundle verifies that a mapping mixing a for directive with
// plain entries becomes a bundle with the plain remainder last.
func TestBuildDictBundle(t *testing.T) {
	m := ordered.NewMap()
	m.Set("$for(3, i)", ordered.FromPairs("a_$index(i)", "$index(i)"))
	m.Set("static", true)
	n, err := Build(m, ".")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	db, ok := n.(*ast.DictBundle)
	if !ok {
		t.Fatalf("got %T, want *ast.DictBundle", n)
	}
	if len(db.Parts) != 2 {
		t.Fatalf("parts = %d", len(db.Parts))
	}
	if _, ok := db.Parts[0].(*ast.For); !ok {
		t.Errorf("first part = %T, want *ast.For", db.Parts[0])
	}
	if _, ok := db.Parts[1].(*ast.Dict); !ok {
		t.Errorf("last part = %T, want *ast.Dict", db.Parts[1])
	}
}

// TestBuildSwitchKey verifies the key-value form of the switch directive.
func TestBuildSwitchKey(t *testing.T) {
	m := ordered.NewMap()
	m.Set("$switch(env.stage)", []any{
		ordered.FromPairs("$case", []any{"dev", "local"}, "$then", "debug"),
		ordered.FromPairs("$case", "prod", "$then", "warning"),
		ordered.FromPairs("$default", "info"),
	})
	n, err := Build(m, ".")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sw, ok := n.(*ast.Switch)
	if !ok {
		t.Fatalf("got %T, want *ast.Switch", n)
	}
	if sw.Path != "env.stage" {
		t.Errorf("path = %q", sw.Path)
	}
	if len(sw.Cases) != 2 || sw.Default == nil {
		t.Fatalf("cases = %d, default = %v", len(sw.Cases), sw.Default)
	}
	if _, ok := sw.Cases[0].Match.(*ast.List); !ok {
		t.Errorf("first match = %T, want *ast.List", sw.Cases[0].Match)
	}
}

// TestBuildSwitchRejectsMalformedCases verifies validation of case entries.
func TestBuildSwitchRejectsMalformedCases(t *testing.T) {
	bad := [][]any{
		{ordered.FromPairs("$case", "x")},                                  // missing $then
		{ordered.FromPairs("$default", 1), ordered.FromPairs("$default", 2)}, // duplicate default
		{"not a mapping"},
	}
	for _, entries := range bad {
		m := ordered.NewMap()
		m.Set("$switch(k)", entries)
		if _, err := Build(m, "."); err == nil {
			t.Errorf("Build(%v) succeeded, want error", entries)
		}
	}
}

// TestBuildExtendedForm verifies the $directive/$args/$kwargs mapping form,
// which is the only way to pass container arguments that nest.
func TestBuildExtendedForm(t *testing.T) {
	m := ordered.NewMap()
	m.Set("$directive", "sweep")
	m.Set("$args", []any{
		ordered.FromPairs("lr", 0.1),
		ordered.FromPairs("lr", 0.01),
	})
	n, err := Build(m, ".")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	sw, ok := n.(*ast.Sweep)
	if !ok {
		t.Fatalf("got %T, want *ast.Sweep", n)
	}
	if len(sw.Cases) != 2 {
		t.Fatalf("cases = %d", len(sw.Cases))
	}
	if _, ok := sw.Cases[0].(*ast.Dict); !ok {
		t.Errorf("case = %T, want *ast.Dict", sw.Cases[0])
	}
}

// TestBuildExtendedFormRejectsUnknown verifies that unknown names in the
// extended form are errors, unlike in plain strings.
func TestBuildExtendedFormRejectsUnknown(t *testing.T) {
	m := ordered.NewMap()
	m.Set("$directive", "frobnicate")
	var serr *SyntaxError
	if _, err := Build(m, "."); !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *SyntaxError", err)
	}
}

// TestBuildSpecialForms verifies the $call and $model mapping forms.
func TestBuildSpecialForms(t *testing.T) {
	m := ordered.NewMap()
	m.Set("$call", "math.make_adder")
	m.Set("$args", ordered.FromPairs("delta", 5))
	n, err := Build(m, ".")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	c, ok := n.(*ast.Call)
	if !ok {
		t.Fatalf("got %T, want *ast.Call", n)
	}
	if tgt := c.Target.(*ast.Literal); tgt.Value != "math.make_adder" {
		t.Errorf("target = %v", tgt.Value)
	}

	m2 := ordered.NewMap()
	m2.Set("$model", "records.Point")
	if n2, err := Build(m2, "."); err != nil {
		t.Fatalf("Build: %v", err)
	} else if _, ok := n2.(*ast.Model); !ok {
		t.Fatalf("got %T, want *ast.Model", n2)
	}
}

// TestBuildItemPartitionsReference verifies that an item reference splits
// into loop id and sub-path on the first dot.
func TestBuildItemPartitionsReference(t *testing.T) {
	n, err := Build("$item(outer.cfg.name)", ".")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	it := n.(*ast.Item)
	if it.ID != "outer" || it.Sub != "cfg.name" {
		t.Errorf("item = {%q %q}", it.ID, it.Sub)
	}

	n, err = Build("$item", ".")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if it := n.(*ast.Item); it.ID != "" || it.Sub != "" {
		t.Errorf("bare item = {%q %q}", it.ID, it.Sub)
	}
}

// TestBuildImport verifies build-time import resolution relative to the
// importing file's directory.
func TestBuildImport(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(path, content string) {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write(filepath.Join(dir, "main.yml"), "name: top\nnested: $import('sub/inner.yml')\n")
	write(filepath.Join(sub, "inner.yml"), "leaf: $import('leaf.yml')\n")
	write(filepath.Join(sub, "leaf.yml"), "value: 42\n")

	n, err := BuildFile(filepath.Join(dir, "main.yml"))
	if err != nil {
		t.Fatalf("BuildFile: %v", err)
	}
	d := n.(*ast.Dict)
	imp, ok := d.Entries[1].Value.(*ast.Import)
	if !ok {
		t.Fatalf("nested = %T, want *ast.Import", d.Entries[1].Value)
	}
	if imp.RawPath != "sub/inner.yml" {
		t.Errorf("raw path = %q", imp.RawPath)
	}
	inner := imp.Body.(*ast.Dict)
	leaf, ok := inner.Entries[0].Value.(*ast.Import)
	if !ok {
		t.Fatalf("leaf = %T, want *ast.Import", inner.Entries[0].Value)
	}
	if filepath.Dir(leaf.Path) != sub {
		t.Errorf("leaf resolved to %q, want a file under %q", leaf.Path, sub)
	}
}

// TestBuildImportCycle verifies that mutually importing files fail with a
// cycle error instead of recursing.
func TestBuildImportCycle(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yml")
	bFile := filepath.Join(dir, "b.yml")
	if err := os.WriteFile(a, []byte("x: $import('b.yml')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bFile, []byte("y: $import('a.yml')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var cerr *CyclicImportError
	if _, err := BuildFile(a); !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *CyclicImportError", err)
	}
	if len(cerr.Chain) != 3 {
		t.Errorf("chain = %v", cerr.Chain)
	}
}

// TestBuildRejectsDirectiveMisuse verifies signature validation of the
// string-form directives.
func TestBuildRejectsDirectiveMisuse(t *testing.T) {
	bad := []string{
		"$var()",
		"$var(a, b)",
		"$var(a, bogus=1)",
		"$sweep()",
		"$uuid(1)",
		"$call(fn)",
		"$for(3)",
		"$import('a.yml', 'b.yml')",
	}
	for _, s := range bad {
		if _, err := Build(s, "."); err == nil {
			t.Errorf("Build(%q) succeeded, want error", s)
		}
	}
}
