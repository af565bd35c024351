package ast

// Children returns the direct child nodes of n in source order. Nil optional
// children are skipped.
func Children(n Node) []Node {
	switch t := n.(type) {
	case *Literal, *Item, *Index, *UUID, *Date, *TmpDir, nil:
		return nil
	case *Dict:
		out := make([]Node, 0, 2*len(t.Entries))
		for _, e := range t.Entries {
			out = append(out, e.Key, e.Value)
		}
		return out
	case *List:
		return t.Items
	case *StrBundle:
		return t.Parts
	case *DictBundle:
		return t.Parts
	case *Var:
		return compact(t.Default)
	case *Import:
		return compact(t.Body)
	case *Sweep:
		return t.Cases
	case *Symbol:
		return compact(t.Target)
	case *Call:
		return compact(t.Target, t.Args)
	case *Model:
		return compact(t.Target, t.Args)
	case *For:
		return compact(t.Iterable, t.Body)
	case *Switch:
		out := make([]Node, 0, 2*len(t.Cases)+1)
		for _, c := range t.Cases {
			out = append(out, c.Match, c.Body)
		}
		if t.Default != nil {
			out = append(out, t.Default)
		}
		return out
	case *Cmd:
		return compact(t.Command)
	case *Rand:
		out := append([]Node(nil), t.Args...)
		return append(out, compact(t.N, t.PDF)...)
	default:
		return nil
	}
}

func compact(nodes ...Node) []Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Inspect traverses the tree rooted at n in depth-first order, calling fn for
// each node. If fn returns false the node's children are skipped.
func Inspect(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, fn)
	}
}

// IsStatic reports whether the tree rooted at n contains only structural
// nodes and literals, i.e. evaluation would forward it unchanged.
func IsStatic(n Node) bool {
	static := true
	Inspect(n, func(c Node) bool {
		switch c.(type) {
		case *Literal, *Dict, *List:
			return true
		default:
			static = false
			return false
		}
	})
	return static
}
