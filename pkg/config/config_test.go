package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ormasoftchile/confix/pkg/ordered"
)

func writeFileOrFatal(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// TestProcessFromFile verifies the full pipeline: load, resolve a relative
// import, evaluate against a context, and save.
func TestProcessFromFile(t *testing.T) {
	dir := t.TempDir()
	writeFileOrFatal(t, filepath.Join(dir, "defaults.yml"), "workers: 4\n")
	writeFileOrFatal(t, filepath.Join(dir, "main.yml"),
		"name: $var(job.name)\nruntime: $import('defaults.yml')\n")

	cfg, err := FromFile(filepath.Join(dir, "main.yml"))
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	out, err := cfg.Process(context.Background(), Options{
		Vars: map[string]any{"job": map[string]any{"name": "train"}},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := ordered.FromPairs(
		"name", "train",
		"runtime", ordered.FromPairs("workers", 4),
	)
	if !ordered.DeepEqual(out.Data(), want) {
		t.Errorf("got %v, want %v", out.Data(), want)
	}

	saved := filepath.Join(dir, "out", "final.json")
	if err := out.SaveTo(saved); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	back, err := FromFile(saved)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !ordered.DeepEqual(back.Data(), want) {
		t.Errorf("reloaded %v, want %v", back.Data(), want)
	}
}

// TestProcessTrainingFixture verifies a realistic configuration with loops,
// switches, defaults and date interpolation.
func TestProcessTrainingFixture(t *testing.T) {
	cfg, err := FromFile("testdata/train.yml")
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	out, err := cfg.Process(context.Background(), Options{
		Vars: map[string]any{
			"run": map[string]any{"name": "exp", "verbosity": "debug"},
			"data": map[string]any{"folds": []any{
				map[string]any{"path": "/d/0", "split": "train"},
				map[string]any{"path": "/d/1", "split": "val"},
			}},
		},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	name, _ := out.DeepGet("run_name")
	if !strings.HasPrefix(name.(string), "exp_20") {
		t.Errorf("run_name = %v", name)
	}
	if v, _ := out.DeepGet("model.backbone"); v != "resnet18" {
		t.Errorf("backbone default = %v", v)
	}
	if v, _ := out.DeepGet("datasets.fold_1.split"); v != "val" {
		t.Errorf("fold_1.split = %v", v)
	}
	if v, _ := out.DeepGet("logging.level"); v != 10 {
		t.Errorf("logging.level = %v", v)
	}
}

// TestProcessAllBranches verifies branch expansion through the front end.
func TestProcessAllBranches(t *testing.T) {
	cfg := New(ordered.FromPairs("lr", "$sweep(0.1, 0.01)"))
	branches, err := cfg.ProcessAll(context.Background(), Options{})
	if err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}
	if len(branches) != 2 {
		t.Fatalf("branches = %d", len(branches))
	}
	if v, _ := branches[0].DeepGet("lr"); v != 0.1 {
		t.Errorf("first branch lr = %v", v)
	}
}

// TestDeepAccess verifies DeepGet, DeepSet and DeepUpdate.
func TestDeepAccess(t *testing.T) {
	cfg := New(ordered.FromPairs("a", ordered.FromPairs("b", 1)))
	if v, ok := cfg.DeepGet("a.b"); !ok || v != 1 {
		t.Errorf("DeepGet = %v, %v", v, ok)
	}
	cfg.DeepSet("a.c[1]", "x")
	if v, _ := cfg.DeepGet("a.c[1]"); v != "x" {
		t.Errorf("DeepSet = %v", v)
	}

	other := New(ordered.FromPairs(
		"a", ordered.FromPairs("b", 2),
		"new", true,
	))
	cfg.DeepUpdate(other)
	if v, _ := cfg.DeepGet("a.b"); v != 2 {
		t.Errorf("merged a.b = %v", v)
	}
	if v, _ := cfg.DeepGet("a.c[1]"); v != "x" {
		t.Errorf("merge dropped sibling: %v", v)
	}
	if v, _ := cfg.DeepGet("new"); v != true {
		t.Errorf("merged new = %v", v)
	}
}

// TestInspectThroughFrontEnd verifies the inspection entry point.
func TestInspectThroughFrontEnd(t *testing.T) {
	cfg := New(ordered.FromPairs("x", "$var(params.x, default=1)"))
	report, err := cfg.Inspect()
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	params, _ := report.Variables["params"].(map[string]any)
	if params["x"] != 1 {
		t.Errorf("variables = %v", report.Variables)
	}
}

// TestValidate verifies schema acceptance and rejection.
func TestValidate(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"},
			"workers": {"type": "integer", "minimum": 1}
		}
	}`)

	good := New(ordered.FromPairs("name", "job", "workers", 2))
	if err := good.Validate(schema); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
	bad := New(ordered.FromPairs("workers", 0))
	if err := bad.Validate(schema); err == nil {
		t.Errorf("invalid config accepted")
	}
}

// TestAttachedSchema verifies that Process validates against an attached
// schema, that UnsafeProcess skips validation, and IsValid reporting.
func TestAttachedSchema(t *testing.T) {
	schema := []byte(`{
		"type": "object",
		"properties": {"workers": {"type": "integer", "minimum": 1}}
	}`)

	cfg := New(ordered.FromPairs("workers", "$var(n, default=0)"))
	cfg.SetSchema(schema)
	if _, err := cfg.Process(context.Background(), Options{}); err == nil {
		t.Errorf("schema violation not reported by Process")
	}
	out, err := cfg.UnsafeProcess(context.Background(), Options{})
	if err != nil {
		t.Fatalf("UnsafeProcess: %v", err)
	}
	if out.IsValid() {
		t.Errorf("invalid result reported valid")
	}

	out, err = cfg.Process(context.Background(), Options{
		Vars: map[string]any{"n": 4},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !out.IsValid() {
		t.Errorf("valid result reported invalid")
	}
	if !New(ordered.NewMap()).IsValid() {
		t.Errorf("schemaless config must be trivially valid")
	}
}

// TestGenerateInspectionSchema verifies that the reflected schema is
// produced and mentions the report fields.
func TestGenerateInspectionSchema(t *testing.T) {
	data, err := GenerateInspectionSchema()
	if err != nil {
		t.Fatalf("GenerateInspectionSchema: %v", err)
	}
	for _, field := range []string{"variables", "imports", "symbols", "processed"} {
		if !strings.Contains(string(data), field) {
			t.Errorf("schema missing field %q", field)
		}
	}
}
