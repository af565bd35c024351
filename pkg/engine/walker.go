package engine

import (
	"fmt"
	"sort"

	"github.com/ormasoftchile/confix/pkg/ordered"
)

// Entry is one leaf of a walked structure: the dotted path to it and its
// value. List positions render as bracketed indices ("a.b[0].c").
type Entry struct {
	Path  string
	Value any
}

// Walk flattens a raw structure into its leaves in source order. Scalars and
// empty containers are leaves.
func Walk(v any) []Entry {
	var out []Entry
	walk(v, "", &out)
	return out
}

func walk(v any, path string, out *[]Entry) {
	switch t := v.(type) {
	case *ordered.Map:
		if t.Len() == 0 {
			*out = append(*out, Entry{Path: path, Value: t})
			return
		}
		t.Range(func(k string, val any) bool {
			walk(val, joinKey(path, k), out)
			return true
		})
	case map[string]any:
		if len(t) == 0 {
			*out = append(*out, Entry{Path: path, Value: t})
			return
		}
		for _, k := range sortedMapKeys(t) {
			walk(t[k], joinKey(path, k), out)
		}
	case []any:
		if len(t) == 0 {
			*out = append(*out, Entry{Path: path, Value: t})
			return
		}
		for i, item := range t {
			walk(item, fmt.Sprintf("%s[%d]", path, i), out)
		}
	default:
		*out = append(*out, Entry{Path: path, Value: v})
	}
}

func joinKey(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func sortedMapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Plain maps have no source order; sort for determinism.
	sort.Strings(keys)
	return keys
}
