// Package ordered provides an insertion-ordered string-keyed mapping used as
// the mapping flavor of the engine's raw structures. Plain Go maps do not
// preserve key order, but configuration round-trips must: a processed file has
// to serialize with the same key order the author wrote.
package ordered

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Map is a string-keyed mapping that remembers insertion order. The zero
// value is not usable; create instances with NewMap.
type Map struct {
	keys   []string
	values map[string]any
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{values: make(map[string]any)}
}

// FromPairs creates a Map from alternating key/value arguments, in order.
// It panics if an odd number of arguments is given or a key is not a string;
// it is meant for literals in tests and examples.
func FromPairs(pairs ...any) *Map {
	if len(pairs)%2 != 0 {
		panic("ordered.FromPairs: odd number of arguments")
	}
	m := NewMap()
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1])
	}
	return m
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order. The returned slice is shared;
// callers must not modify it.
func (m *Map) Keys() []string {
	return m.keys
}

// Get returns the value stored under key and whether it is present.
func (m *Map) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Set stores value under key. An existing key keeps its original position;
// a new key is appended.
func (m *Map) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key if present.
func (m *Map) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(key string, value any) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Clone returns a shallow copy: entries are copied, values are shared.
func (m *Map) Clone() *Map {
	out := &Map{
		keys:   append([]string(nil), m.keys...),
		values: make(map[string]any, len(m.values)),
	}
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}

// Equal reports deep equality with another Map, including key order.
func (m *Map) Equal(other *Map) bool {
	if other == nil || len(m.keys) != len(other.keys) {
		return false
	}
	for i, k := range m.keys {
		if other.keys[i] != k {
			return false
		}
		if !DeepEqual(m.values[k], other.values[k]) {
			return false
		}
	}
	return true
}

// DeepEqual compares two raw structures, descending through Maps and slices.
func DeepEqual(a, b any) bool {
	switch av := a.(type) {
	case *Map:
		bv, ok := b.(*Map)
		return ok && av.Equal(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// DeepCopy returns a deep copy of a raw structure. Scalars are returned as-is.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case *Map:
		out := NewMap()
		t.Range(func(k string, val any) bool {
			out.Set(k, DeepCopy(val))
			return true
		})
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = DeepCopy(x)
		}
		return out
	default:
		return v
	}
}

func (m *Map) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s: %v", k, m.values[k])
	}
	buf.WriteByte('}')
	return buf.String()
}

// MarshalYAML encodes the map as a YAML mapping node in insertion order.
func (m *Map) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, k := range m.keys {
		keyNode := &yaml.Node{}
		keyNode.SetString(k)
		valNode := &yaml.Node{}
		if err := valNode.Encode(m.values[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content, keyNode, valNode)
	}
	return node, nil
}

// UnmarshalYAML decodes a YAML mapping node, preserving key order and
// decoding nested mappings as *Map.
func (m *Map) UnmarshalYAML(node *yaml.Node) error {
	decoded, err := DecodeNode(node)
	if err != nil {
		return err
	}
	dm, ok := decoded.(*Map)
	if !ok {
		return fmt.Errorf("expected a mapping, got %s", node.Tag)
	}
	*m = *dm
	return nil
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeNode converts a yaml.Node tree into a raw structure: *Map for
// mappings, []any for sequences, and Go scalars (string, int, float64, bool,
// nil) for scalar nodes. Mapping keys must be scalars; they are kept as their
// string form.
func DecodeNode(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return DecodeNode(node.Content[0])
	case yaml.AliasNode:
		return DecodeNode(node.Alias)
	case yaml.MappingNode:
		m := NewMap()
		for i := 0; i+1 < len(node.Content); i += 2 {
			k := node.Content[i]
			if len(k.Content) > 0 {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", k.Line)
			}
			v, err := DecodeNode(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, v)
		}
		return m, nil
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, c := range node.Content {
			v, err := DecodeNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.ScalarNode:
		return decodeScalar(node)
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node kind %d", node.Line, node.Kind)
	}
}

func decodeScalar(node *yaml.Node) (any, error) {
	switch node.Tag {
	case "!!null":
		return nil, nil
	case "!!bool":
		b, err := strconv.ParseBool(node.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid bool %q", node.Line, node.Value)
		}
		return b, nil
	case "!!int":
		i, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid int %q", node.Line, node.Value)
		}
		return int(i), nil
	case "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid float %q", node.Line, node.Value)
		}
		return f, nil
	default:
		// Strings, timestamps and anything else keep their literal form.
		return node.Value, nil
	}
}
