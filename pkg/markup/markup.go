// Package markup loads and saves raw structures from markup files. YAML and
// JSON are supported; both are decoded through the YAML parser (JSON is a
// YAML subset) so mapping key order is preserved either way.
package markup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ormasoftchile/confix/pkg/ordered"
)

// Decode parses markup text into a raw structure: *ordered.Map for mappings,
// []any for sequences, Go scalars for everything else.
func Decode(data []byte) (any, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	return ordered.DecodeNode(&node)
}

// Load reads and decodes the file at path.
func Load(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}

// Encode serializes a raw structure. ext selects the format: ".json" emits
// indented JSON, anything else emits YAML.
func Encode(v any, ext string) ([]byte, error) {
	if strings.EqualFold(ext, ".json") {
		return json.MarshalIndent(v, "", "  ")
	}
	return yaml.Marshal(v)
}

// Dump serializes a raw structure to path, creating parent directories.
// The file extension selects the format as in Encode.
func Dump(v any, path string) error {
	data, err := Encode(v, filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
