package engine

import (
	"testing"

	"github.com/ormasoftchile/confix/pkg/ordered"
	"github.com/ormasoftchile/confix/pkg/parser"
)

// TestInspectVariables verifies that variable references nest into a report
// skeleton with their defaults, without any context.
func TestInspectVariables(t *testing.T) {
	raw := ordered.FromPairs(
		"lr", "$var(params.lr, default=0.01)",
		"bs", "$var(params.batch_size)",
		"home", "$var(run.home, env=True)",
	)
	ins := Inspect(mustBuild(t, raw))

	params, ok := ins.Variables["params"].(map[string]any)
	if !ok {
		t.Fatalf("variables = %v", ins.Variables)
	}
	if params["lr"] != 0.01 {
		t.Errorf("lr default = %v", params["lr"])
	}
	if v, present := params["batch_size"]; !present || v != nil {
		t.Errorf("batch_size = %v (present=%v)", v, present)
	}
	if _, present := ins.Environ["HOME"]; !present {
		t.Errorf("environ = %v", ins.Environ)
	}
	if !ins.Processed {
		t.Errorf("processed should be true for a tree with directives")
	}
}

// TestInspectStaticTree verifies that directive-free trees report nothing.
func TestInspectStaticTree(t *testing.T) {
	ins := Inspect(mustBuild(t, ordered.FromPairs("a", 1, "b", []any{2, 3})))
	if ins.Processed {
		t.Errorf("processed should be false")
	}
	if len(ins.Variables) != 0 || len(ins.Imports) != 0 || len(ins.Symbols) != 0 {
		t.Errorf("report not empty: %+v", ins)
	}
}

// TestInspectLoopsAndSwitches verifies that iterable and switch paths count
// as referenced variables.
func TestInspectLoopsAndSwitches(t *testing.T) {
	raw := ordered.FromPairs(
		"$for(data.samples)", []any{"$item"},
		"$switch(env.stage)", []any{ordered.FromPairs("$default", 1)},
	)
	ins := Inspect(mustBuild(t, raw))
	data, _ := ins.Variables["data"].(map[string]any)
	if _, present := data["samples"]; !present {
		t.Errorf("iterable path missing: %v", ins.Variables)
	}
	env, _ := ins.Variables["env"].(map[string]any)
	if _, present := env["stage"]; !present {
		t.Errorf("switch path missing: %v", ins.Variables)
	}
}

// TestInspectSymbolsAndImports verifies symbol targets and recursive import
// collection.
func TestInspectSymbolsAndImports(t *testing.T) {
	dir := t.TempDir()
	writeFileOrFatal(t, dir+"/leaf.yml", "v: $var(leaf.v)\n")
	writeFileOrFatal(t, dir+"/main.yml", "fn: $symbol(pkg.helper)\nsub: $import('leaf.yml')\n")

	node, err := parser.BuildFile(dir + "/main.yml")
	if err != nil {
		t.Fatalf("BuildFile: %v", err)
	}
	ins := Inspect(node)
	if len(ins.Imports) != 1 {
		t.Fatalf("imports = %v", ins.Imports)
	}
	if len(ins.Symbols) != 1 || ins.Symbols[0] != "pkg.helper" {
		t.Errorf("symbols = %v", ins.Symbols)
	}
	leaf, _ := ins.Variables["leaf"].(map[string]any)
	if _, present := leaf["v"]; !present {
		t.Errorf("imported variables missing: %v", ins.Variables)
	}
}
