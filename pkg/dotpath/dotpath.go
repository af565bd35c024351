// Package dotpath implements dotted-path addressing into nested structures
// made of mappings (map[string]any or *ordered.Map), slices and scalars.
// Paths look like "a.b.0.d" or "a.b[0].d": the dot walks mapping keys, while
// a numeric segment or a bracket suffix indexes a sequence.
package dotpath

import (
	"strconv"
	"strings"

	"github.com/ormasoftchile/confix/pkg/ordered"
)

// Segment is one step of a parsed path: either a mapping key or a sequence
// index. Exactly one of Key/Index is meaningful, discriminated by IsIndex.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Parse splits a dotted path into segments. Bracketed indices may be glued to
// a key ("b[0]" yields "b" then index 0) and bare numeric segments are
// treated as indices.
func Parse(path string) []Segment {
	var segs []Segment
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			continue
		}
		for {
			open := strings.IndexByte(part, '[')
			if open < 0 {
				break
			}
			head := part[:open]
			if head != "" {
				segs = append(segs, keySegment(head))
			}
			close_ := strings.IndexByte(part, ']')
			if close_ < open {
				// Unbalanced bracket: keep the raw text as a key.
				segs = append(segs, Segment{Key: part[open:]})
				part = ""
				break
			}
			idx, err := strconv.Atoi(part[open+1 : close_])
			if err != nil {
				segs = append(segs, Segment{Key: part[open+1 : close_]})
			} else {
				segs = append(segs, Segment{Index: idx, IsIndex: true})
			}
			part = part[close_+1:]
		}
		if part != "" {
			segs = append(segs, keySegment(part))
		}
	}
	return segs
}

func keySegment(s string) Segment {
	if idx, err := strconv.Atoi(s); err == nil {
		return Segment{Index: idx, IsIndex: true}
	}
	return Segment{Key: s}
}

// Get resolves path inside root and reports whether every segment was found.
func Get(root any, path string) (any, bool) {
	cur := root
	for _, seg := range Parse(path) {
		switch node := cur.(type) {
		case *ordered.Map:
			if seg.IsIndex {
				return nil, false
			}
			v, ok := node.Get(seg.Key)
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]any:
			if seg.IsIndex {
				return nil, false
			}
			v, ok := node[seg.Key]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			if !seg.IsIndex || seg.Index < 0 || seg.Index >= len(node) {
				return nil, false
			}
			cur = node[seg.Index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Has reports whether path resolves inside root.
func Has(root any, path string) bool {
	_, ok := Get(root, path)
	return ok
}

// Set writes value at path inside root, creating intermediate mappings and
// extending sequences as needed, and returns the (possibly replaced) root.
// New mappings are created as map[string]any unless the surrounding structure
// already uses *ordered.Map at that position.
func Set(root any, path string, value any) any {
	return setSegments(root, Parse(path), value)
}

func setSegments(node any, segs []Segment, value any) any {
	if len(segs) == 0 {
		return value
	}
	seg := segs[0]
	if seg.IsIndex {
		seq, _ := node.([]any)
		for len(seq) <= seg.Index {
			seq = append(seq, nil)
		}
		seq[seg.Index] = setSegments(seq[seg.Index], segs[1:], value)
		return seq
	}
	switch m := node.(type) {
	case *ordered.Map:
		cur, _ := m.Get(seg.Key)
		m.Set(seg.Key, setSegments(cur, segs[1:], value))
		return m
	case map[string]any:
		m[seg.Key] = setSegments(m[seg.Key], segs[1:], value)
		return m
	default:
		m2 := map[string]any{}
		m2[seg.Key] = setSegments(nil, segs[1:], value)
		return m2
	}
}

// Merge deep-merges src into dst. Nested mappings are merged recursively;
// for scalar collisions an existing non-nil value in dst wins, so defaults
// collected earlier are not clobbered by later nils.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, sv := range src {
		dv, ok := dst[k]
		if !ok {
			dst[k] = sv
			continue
		}
		dm, dIsMap := dv.(map[string]any)
		sm, sIsMap := sv.(map[string]any)
		switch {
		case dIsMap && sIsMap:
			dst[k] = Merge(dm, sm)
		case dv == nil && sv != nil:
			dst[k] = sv
		}
	}
	return dst
}
