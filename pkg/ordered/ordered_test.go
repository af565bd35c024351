package ordered

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestMapKeepsInsertionOrder verifies ordering through Set, overwrite and
// Delete.
func TestMapKeepsInsertionOrder(t *testing.T) {
	m := NewMap()
	m.Set("c", 1)
	m.Set("a", 2)
	m.Set("b", 3)
	m.Set("a", 4) // overwrite keeps position

	want := []string{"c", "a", "b"}
	for i, k := range m.Keys() {
		if k != want[i] {
			t.Fatalf("keys = %v, want %v", m.Keys(), want)
		}
	}
	if v, _ := m.Get("a"); v != 4 {
		t.Errorf("a = %v", v)
	}
	m.Delete("a")
	if m.Len() != 2 || m.Has("a") {
		t.Errorf("after delete: keys = %v", m.Keys())
	}
}

// TestDecodeNodePreservesOrderAndTypes verifies YAML decoding into ordered
// maps with native scalar types.
func TestDecodeNodePreservesOrderAndTypes(t *testing.T) {
	src := "zeta: 1\nalpha: 2.5\nflag: true\nnothing: null\nname: text\nseq:\n  - 1\n  - x\n"
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(src), &node); err != nil {
		t.Fatal(err)
	}
	raw, err := DecodeNode(&node)
	if err != nil {
		t.Fatal(err)
	}
	m := raw.(*Map)
	wantKeys := []string{"zeta", "alpha", "flag", "nothing", "name", "seq"}
	for i, k := range m.Keys() {
		if k != wantKeys[i] {
			t.Fatalf("keys = %v", m.Keys())
		}
	}
	if v, _ := m.Get("zeta"); v != 1 {
		t.Errorf("zeta = %v (%T)", v, v)
	}
	if v, _ := m.Get("alpha"); v != 2.5 {
		t.Errorf("alpha = %v (%T)", v, v)
	}
	if v, _ := m.Get("flag"); v != true {
		t.Errorf("flag = %v", v)
	}
	if v, _ := m.Get("nothing"); v != nil {
		t.Errorf("nothing = %v", v)
	}
	seq, _ := m.Get("seq")
	if !DeepEqual(seq, []any{1, "x"}) {
		t.Errorf("seq = %v", seq)
	}
}

// TestYAMLRoundTrip verifies that marshalling keeps insertion order.
func TestYAMLRoundTrip(t *testing.T) {
	m := FromPairs("z", 1, "a", FromPairs("y", 2, "b", 3), "list", []any{1, 2})
	data, err := yaml.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		t.Fatal(err)
	}
	back, err := DecodeNode(&node)
	if err != nil {
		t.Fatal(err)
	}
	if !DeepEqual(back, m) {
		t.Errorf("round trip: %v != %v", back, m)
	}
}

// TestJSONMarshalOrder verifies ordered JSON object encoding.
func TestJSONMarshalOrder(t *testing.T) {
	m := FromPairs("z", 1, "a", 2)
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"z":1,"a":2}` {
		t.Errorf("json = %s", data)
	}
}

// TestDeepCopyDetachesValues verifies that copies do not alias nested
// containers.
func TestDeepCopyDetachesValues(t *testing.T) {
	m := FromPairs("a", FromPairs("k", 1), "l", []any{1})
	cp := DeepCopy(m).(*Map)
	inner, _ := cp.Get("a")
	inner.(*Map).Set("k", 99)
	orig, _ := m.Get("a")
	if v, _ := orig.(*Map).Get("k"); v != 1 {
		t.Errorf("original mutated through copy")
	}
}

// TestDeepEqualOrderSensitivity verifies that key order participates in
// equality.
func TestDeepEqualOrderSensitivity(t *testing.T) {
	if DeepEqual(FromPairs("a", 1, "b", 2), FromPairs("b", 2, "a", 1)) {
		t.Errorf("maps with different key order compare equal")
	}
	if !DeepEqual(FromPairs("a", 1), FromPairs("a", 1)) {
		t.Errorf("identical maps compare unequal")
	}
}
