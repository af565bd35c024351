// Package config is the file-level front end: it couples a raw configuration
// structure with its file of origin and exposes processing, inspection,
// deep access and persistence in one place.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ormasoftchile/confix/pkg/dotpath"
	"github.com/ormasoftchile/confix/pkg/engine"
	"github.com/ormasoftchile/confix/pkg/markup"
	"github.com/ormasoftchile/confix/pkg/ordered"
	"github.com/ormasoftchile/confix/pkg/parser"
	"github.com/ormasoftchile/confix/pkg/symbols"
)

// Config is a configuration structure plus the file it came from. The file
// path anchors relative imports; in-memory configurations resolve them
// against the working directory.
type Config struct {
	data   any
	path   string
	schema []byte
}

// Options tunes evaluation.
type Options struct {
	// Vars is the variable context: *ordered.Map, map[string]any, or nil.
	Vars any

	// Symbols resolves symbol, call and model targets.
	Symbols symbols.Resolver

	// Prompter is consulted for variables missing from Vars.
	Prompter engine.Prompter

	// CmdTimeout bounds command directives; zero keeps the engine default.
	CmdTimeout time.Duration
}

// New wraps an in-memory structure.
func New(data any) *Config {
	return &Config{data: data}
}

// FromFile loads a YAML or JSON configuration.
func FromFile(path string) (*Config, error) {
	data, err := markup.Load(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	return &Config{data: data, path: abs}, nil
}

// Data returns the underlying raw structure.
func (c *Config) Data() any { return c.data }

// Path returns the file of origin, or "" for in-memory configurations.
func (c *Config) Path() string { return c.path }

func (c *Config) cwd() string {
	if c.path == "" {
		return "."
	}
	return filepath.Dir(c.path)
}

func (c *Config) processor(opts Options) *engine.Processor {
	p := engine.NewProcessor(opts.Vars)
	p.Symbols = opts.Symbols
	p.Prompter = opts.Prompter
	p.CmdTimeout = opts.CmdTimeout
	return p
}

// Process evaluates the configuration to a single result. Any branching
// directive fails the evaluation. When a schema is attached, the result is
// validated against it.
func (c *Config) Process(ctx context.Context, opts Options) (*Config, error) {
	return c.process(ctx, opts, true)
}

// UnsafeProcess is Process without the attached-schema validation step.
func (c *Config) UnsafeProcess(ctx context.Context, opts Options) (*Config, error) {
	return c.process(ctx, opts, false)
}

func (c *Config) process(ctx context.Context, opts Options, validate bool) (*Config, error) {
	node, err := parser.Build(c.data, c.cwd())
	if err != nil {
		return nil, err
	}
	out, err := c.processor(opts).Process(ctx, node)
	if err != nil {
		return nil, err
	}
	result := &Config{data: out, path: c.path, schema: c.schema}
	if validate && c.schema != nil {
		if err := result.Validate(c.schema); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ProcessAll evaluates the configuration to one result per sweep branch
// combination, the leftmost sweep varying slowest. When a schema is
// attached, every branch is validated against it.
func (c *Config) ProcessAll(ctx context.Context, opts Options) ([]*Config, error) {
	return c.processAll(ctx, opts, true)
}

// UnsafeProcessAll is ProcessAll without the attached-schema validation step.
func (c *Config) UnsafeProcessAll(ctx context.Context, opts Options) ([]*Config, error) {
	return c.processAll(ctx, opts, false)
}

func (c *Config) processAll(ctx context.Context, opts Options, validate bool) ([]*Config, error) {
	node, err := parser.Build(c.data, c.cwd())
	if err != nil {
		return nil, err
	}
	branches, err := c.processor(opts).ProcessAll(ctx, node)
	if err != nil {
		return nil, err
	}
	out := make([]*Config, len(branches))
	for i, b := range branches {
		out[i] = &Config{data: b, path: c.path, schema: c.schema}
		if validate && c.schema != nil {
			if err := out[i].Validate(c.schema); err != nil {
				return nil, fmt.Errorf("branch %d: %w", i, err)
			}
		}
	}
	return out, nil
}

// Inspect statically reports the configuration's external requirements.
func (c *Config) Inspect() (*engine.Inspection, error) {
	node, err := parser.Build(c.data, c.cwd())
	if err != nil {
		return nil, err
	}
	return engine.Inspect(node), nil
}

// Walk enumerates the configuration's leaves in source order.
func (c *Config) Walk() []engine.Entry {
	return engine.Walk(c.data)
}

// DeepGet reads a dotted path ("a.b[0].c") from the structure.
func (c *Config) DeepGet(path string) (any, bool) {
	return dotpath.Get(c.data, path)
}

// DeepSet writes a dotted path, creating intermediate containers as needed.
func (c *Config) DeepSet(path string, value any) {
	c.data = dotpath.Set(c.data, path, value)
}

// DeepUpdate merges another configuration into this one. Mappings merge
// recursively; anything else in src replaces the value in place.
func (c *Config) DeepUpdate(src *Config) {
	c.data = deepUpdate(c.data, src.data)
}

func deepUpdate(dst, src any) any {
	dm, dok := asMap(dst)
	sm, sok := asMap(src)
	if !dok || !sok {
		return ordered.DeepCopy(src)
	}
	sm.Range(func(k string, sv any) bool {
		if dv, ok := dm.Get(k); ok {
			dm.Set(k, deepUpdate(dv, sv))
		} else {
			dm.Set(k, ordered.DeepCopy(sv))
		}
		return true
	})
	return dm
}

func asMap(v any) (*ordered.Map, bool) {
	switch t := v.(type) {
	case *ordered.Map:
		return t, true
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := ordered.NewMap()
		for _, k := range keys {
			m.Set(k, t[k])
		}
		return m, true
	default:
		return nil, false
	}
}

// SaveTo writes the structure to a file, choosing the format from the
// extension.
func (c *Config) SaveTo(path string) error {
	return markup.Dump(c.data, path)
}

// SetSchema attaches a JSON Schema document. Process and ProcessAll validate
// their results against it; results inherit the attachment.
func (c *Config) SetSchema(schemaJSON []byte) {
	c.schema = schemaJSON
}

// IsValid reports whether the structure satisfies the attached schema.
// A configuration without a schema is trivially valid.
func (c *Config) IsValid() bool {
	if c.schema == nil {
		return true
	}
	return c.Validate(c.schema) == nil
}

// Validate checks the structure against a JSON Schema document.
func (c *Config) Validate(schemaJSON []byte) error {
	schemaDoc, err := sjsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return fmt.Errorf("unmarshal schema: %w", err)
	}
	compiler := sjsonschema.NewCompiler()
	if err := compiler.AddResource("config.json", schemaDoc); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	sch, err := compiler.Compile("config.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	data, err := json.Marshal(c.data)
	if err != nil {
		return fmt.Errorf("marshal for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal for validation: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	return nil
}
