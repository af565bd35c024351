// Package engine evaluates syntax trees against a read-only context.
// Internally every node evaluates to a list of branches; non-branching nodes
// return one. Process demands a single branch and fails on any branching
// directive, ProcessAll returns the cartesian product of all sweeps with the
// leftmost sweep varying slowest.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ormasoftchile/confix/pkg/ast"
	"github.com/ormasoftchile/confix/pkg/dotpath"
	"github.com/ormasoftchile/confix/pkg/markup"
	"github.com/ormasoftchile/confix/pkg/ordered"
	"github.com/ormasoftchile/confix/pkg/randutil"
	"github.com/ormasoftchile/confix/pkg/symbols"
)

// DefaultCmdTimeout bounds $cmd subprocesses unless overridden.
const DefaultCmdTimeout = 30 * time.Second

// Prompter supplies values for context variables that are missing at
// evaluation time, as a last resort before failing.
type Prompter interface {
	// Ask requests a value for the given variable path. The second return
	// is false when the prompter cannot supply one.
	Ask(path, help string) (any, bool)
}

// Processor evaluates syntax trees. The context is never mutated; values
// read from it are deep-copied into results.
type Processor struct {
	// Context holds the variables visible to $var, $for and $switch.
	// Accepted shapes: *ordered.Map, map[string]any, or nil.
	Context any

	// Symbols resolves $symbol, $call and $model targets. Nil makes those
	// directives fail.
	Symbols symbols.Resolver

	// Prompter, when set, is consulted for missing variables before a
	// MissingVariableError is returned.
	Prompter Prompter

	// CmdTimeout bounds each $cmd subprocess. Zero means DefaultCmdTimeout.
	CmdTimeout time.Duration

	allowBranching bool
	tmpKey         string
}

// NewProcessor returns a Processor over the given context.
func NewProcessor(vars any) *Processor {
	return &Processor{Context: vars, tmpKey: uuid.NewString()}
}

// Process evaluates node to exactly one result. Reaching a branching
// directive is a BranchingViolationError.
func (p *Processor) Process(ctx context.Context, node ast.Node) (any, error) {
	p.ensureTmpKey()
	run := *p
	run.allowBranching = false
	branches, err := run.eval(ctx, node, nil)
	if err != nil {
		return nil, err
	}
	return branches[0], nil
}

// ProcessAll evaluates node to every branch produced by its sweeps. Without
// sweeps the result is a single branch. The first evaluation error aborts
// the whole product.
func (p *Processor) ProcessAll(ctx context.Context, node ast.Node) ([]any, error) {
	p.ensureTmpKey()
	run := *p
	run.allowBranching = true
	return run.eval(ctx, node, nil)
}

// ensureTmpKey backs literal-constructed processors: unnamed $tmp_dir still
// gets a folder of its own instead of the shared session root.
func (p *Processor) ensureTmpKey() {
	if p.tmpKey == "" {
		p.tmpKey = uuid.NewString()
	}
}

// contextLookup reads a context path, consulting the prompter before
// reporting a miss.
func (p *Processor) contextLookup(path string) (any, bool) {
	if value, ok := dotpath.Get(p.Context, path); ok {
		return value, true
	}
	if p.Prompter != nil {
		if value, ok := p.Prompter.Ask(path, ""); ok {
			return value, true
		}
	}
	return nil, false
}

// loopFrame is one active $for iteration, innermost last.
type loopFrame struct {
	id    string
	item  any
	index int
}

func (p *Processor) eval(ctx context.Context, node ast.Node, frames []loopFrame) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch n := node.(type) {
	case *ast.Literal:
		return []any{n.Value}, nil
	case *ast.Dict:
		return p.evalDict(ctx, n, frames)
	case *ast.List:
		rows, err := p.evalRows(ctx, n.Items, frames)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(rows))
		for i, row := range rows {
			out[i] = append([]any{}, row...)
		}
		return out, nil
	case *ast.StrBundle:
		rows, err := p.evalRows(ctx, n.Parts, frames)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(rows))
		for i, row := range rows {
			var sb strings.Builder
			for _, v := range row {
				sb.WriteString(stringify(v))
			}
			out[i] = sb.String()
		}
		return out, nil
	case *ast.DictBundle:
		rows, err := p.evalRows(ctx, n.Parts, frames)
		if err != nil {
			return nil, err
		}
		out := make([]any, len(rows))
		for i, row := range rows {
			merged := ordered.NewMap()
			for _, part := range row {
				pm, ok := part.(*ordered.Map)
				if !ok {
					return nil, fmt.Errorf("mapping directive produced %T, expected a mapping", part)
				}
				pm.Range(func(k string, v any) bool {
					merged.Set(k, v)
					return true
				})
			}
			out[i] = merged
		}
		return out, nil
	case *ast.Var:
		return p.evalVar(ctx, n, frames)
	case *ast.Import:
		return p.eval(ctx, n.Body, frames)
	case *ast.Sweep:
		if !p.allowBranching {
			return nil, &BranchingViolationError{Kind: "sweep"}
		}
		var out []any
		for _, c := range n.Cases {
			branches, err := p.eval(ctx, c, frames)
			if err != nil {
				return nil, err
			}
			out = append(out, branches...)
		}
		return out, nil
	case *ast.Symbol:
		return p.evalSymbol(ctx, n, frames)
	case *ast.Call:
		return p.evalCall(ctx, n.Target, n.Args, frames, false)
	case *ast.Model:
		return p.evalCall(ctx, n.Target, n.Args, frames, true)
	case *ast.For:
		return p.evalFor(ctx, n, frames)
	case *ast.Switch:
		return p.evalSwitch(ctx, n, frames)
	case *ast.Item:
		return p.evalItem(n, frames)
	case *ast.Index:
		return p.evalIndex(n, frames)
	case *ast.UUID:
		return []any{uuid.NewString()}, nil
	case *ast.Date:
		now := time.Now()
		if n.Format == "" {
			return []any{now.Format(time.RFC3339)}, nil
		}
		return []any{strftime(now, n.Format)}, nil
	case *ast.Cmd:
		return p.evalCmd(ctx, n, frames)
	case *ast.TmpDir:
		name := n.Name
		if name == "" {
			name = p.tmpKey
		}
		dir, err := markup.TempSubdir(name)
		if err != nil {
			return nil, err
		}
		return []any{dir}, nil
	case *ast.Rand:
		return p.evalRand(ctx, n, frames)
	default:
		return nil, fmt.Errorf("unsupported node kind %q", node.Kind())
	}
}

// evalRows evaluates a slice of nodes and returns the cartesian product of
// their branches as rows, one value per node. Earlier nodes vary slowest.
func (p *Processor) evalRows(ctx context.Context, nodes []ast.Node, frames []loopFrame) ([][]any, error) {
	rows := [][]any{{}}
	for _, n := range nodes {
		branches, err := p.eval(ctx, n, frames)
		if err != nil {
			return nil, err
		}
		next := make([][]any, 0, len(rows)*len(branches))
		for _, row := range rows {
			for _, b := range branches {
				grown := make([]any, len(row)+1)
				copy(grown, row)
				grown[len(row)] = b
				next = append(next, grown)
			}
		}
		rows = next
	}
	return rows, nil
}

func (p *Processor) evalDict(ctx context.Context, d *ast.Dict, frames []loopFrame) ([]any, error) {
	nodes := make([]ast.Node, 0, 2*len(d.Entries))
	for _, e := range d.Entries {
		nodes = append(nodes, e.Key, e.Value)
	}
	rows, err := p.evalRows(ctx, nodes, frames)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(rows))
	for i, row := range rows {
		m := ordered.NewMap()
		for j := 0; j < len(row); j += 2 {
			m.Set(stringify(row[j]), row[j+1])
		}
		out[i] = m
	}
	return out, nil
}

// evalVar resolves a variable: context path first, then the environment when
// env lookup is enabled, then the default, then the prompter.
func (p *Processor) evalVar(ctx context.Context, v *ast.Var, frames []loopFrame) ([]any, error) {
	if value, ok := dotpath.Get(p.Context, v.Path); ok {
		return []any{ordered.DeepCopy(value)}, nil
	}
	if v.Env {
		segs := dotpath.Parse(v.Path)
		name := strings.ToUpper(segs[len(segs)-1].Key)
		if value, ok := os.LookupEnv(name); ok {
			return []any{value}, nil
		}
	}
	if v.Default != nil {
		return p.eval(ctx, v.Default, frames)
	}
	if p.Prompter != nil {
		if value, ok := p.Prompter.Ask(v.Path, v.Help); ok {
			return []any{value}, nil
		}
	}
	return nil, &MissingVariableError{Path: v.Path, Help: v.Help}
}

func (p *Processor) evalSymbol(ctx context.Context, s *ast.Symbol, frames []loopFrame) ([]any, error) {
	targets, err := p.eval(ctx, s.Target, frames)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(targets))
	for i, t := range targets {
		target := stringify(t)
		if p.Symbols == nil {
			return nil, &SymbolResolutionError{Target: target, Err: errors.New("no symbol resolver configured")}
		}
		value, err := p.Symbols.Resolve(target)
		if err != nil {
			return nil, &SymbolResolutionError{Target: target, Err: err}
		}
		out[i] = value
	}
	return out, nil
}

func (p *Processor) evalCall(ctx context.Context, target, args ast.Node, frames []loopFrame, construct bool) ([]any, error) {
	rows, err := p.evalRows(ctx, []ast.Node{target, args}, frames)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(rows))
	for i, row := range rows {
		name := stringify(row[0])
		argMap, ok := row[1].(*ordered.Map)
		if !ok {
			return nil, fmt.Errorf("arguments for %q evaluated to %T, expected a mapping", name, row[1])
		}
		kwargs := make(map[string]any, argMap.Len())
		argMap.Range(func(k string, v any) bool {
			kwargs[k] = v
			return true
		})
		if p.Symbols == nil {
			return nil, &SymbolResolutionError{Target: name, Err: errors.New("no symbol resolver configured")}
		}
		var value any
		if construct {
			value, err = p.Symbols.New(name, kwargs)
		} else {
			value, err = p.Symbols.Call(name, kwargs)
		}
		if err != nil {
			return nil, &SymbolResolutionError{Target: name, Err: err}
		}
		out[i] = value
	}
	return out, nil
}

func (p *Processor) evalFor(ctx context.Context, f *ast.For, frames []loopFrame) ([]any, error) {
	items, err := p.loopItems(f)
	if err != nil {
		return nil, err
	}
	// Iterations behave like sibling nodes: branches inside the body
	// multiply across iterations, earlier iterations varying slowest.
	combos := [][]any{{}}
	for idx, item := range items {
		branches, err := p.eval(ctx, f.Body, append(frames, loopFrame{id: f.ID, item: item, index: idx}))
		if err != nil {
			return nil, err
		}
		next := make([][]any, 0, len(combos)*len(branches))
		for _, combo := range combos {
			for _, b := range branches {
				grown := make([]any, len(combo)+1)
				copy(grown, combo)
				grown[len(combo)] = b
				next = append(next, grown)
			}
		}
		combos = next
	}
	out := make([]any, len(combos))
	for i, combo := range combos {
		agg, err := aggregate(combo, f.Agg)
		if err != nil {
			return nil, err
		}
		out[i] = agg
	}
	return out, nil
}

func (p *Processor) loopItems(f *ast.For) ([]any, error) {
	lit, ok := f.Iterable.(*ast.Literal)
	if !ok {
		return nil, loopErr("loop iterable must be a count or a context path")
	}
	switch it := lit.Value.(type) {
	case int:
		items := make([]any, it)
		for i := range items {
			items[i] = i
		}
		return items, nil
	case string:
		value, found := p.contextLookup(it)
		if !found {
			return nil, &MissingVariableError{Path: it}
		}
		switch v := value.(type) {
		case []any:
			return v, nil
		case int:
			items := make([]any, v)
			for i := range items {
				items[i] = i
			}
			return items, nil
		default:
			return nil, loopErr("loop iterable %q is %T, expected a list or an integer", it, value)
		}
	default:
		return nil, loopErr("loop iterable must be a count or a context path, got %T", lit.Value)
	}
}

// aggregate folds one combo of per-iteration results into a single value
// according to the loop's aggregation shape.
func aggregate(results []any, kind ast.AggKind) (any, error) {
	if kind == ast.AggAuto {
		if len(results) == 0 {
			return nil, nil
		}
		switch results[0].(type) {
		case *ordered.Map:
			kind = ast.AggDict
		case []any:
			kind = ast.AggList
		default:
			kind = ast.AggString
		}
	}
	switch kind {
	case ast.AggDict:
		merged := ordered.NewMap()
		for _, r := range results {
			m, ok := r.(*ordered.Map)
			if !ok {
				return nil, loopErr("loop iteration produced %T, expected a mapping", r)
			}
			m.Range(func(k string, v any) bool {
				merged.Set(k, v)
				return true
			})
		}
		return merged, nil
	case ast.AggList:
		out := []any{}
		for _, r := range results {
			items, ok := r.([]any)
			if !ok {
				return nil, loopErr("loop iteration produced %T, expected a list", r)
			}
			out = append(out, items...)
		}
		return out, nil
	default:
		var sb strings.Builder
		for _, r := range results {
			sb.WriteString(stringify(r))
		}
		return sb.String(), nil
	}
}

// evalSwitch matches the context value at the switch path against each case
// in order. Only the matched body (or the default) is evaluated.
func (p *Processor) evalSwitch(ctx context.Context, s *ast.Switch, frames []loopFrame) ([]any, error) {
	key, found := p.contextLookup(s.Path)
	if !found {
		return nil, &MissingSwitchCaseError{Path: s.Path, KeyMissing: true}
	}
	for _, c := range s.Cases {
		matches, err := p.eval(ctx, c.Match, frames)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if caseMatches(m, key) {
				return p.eval(ctx, c.Body, frames)
			}
		}
	}
	if s.Default != nil {
		return p.eval(ctx, s.Default, frames)
	}
	return nil, &MissingSwitchCaseError{Path: s.Path, Value: key}
}

// caseMatches compares a case value against the switch key; a list case
// matches when any element does.
func caseMatches(caseValue, key any) bool {
	if list, ok := caseValue.([]any); ok {
		for _, v := range list {
			if ordered.DeepEqual(v, key) {
				return true
			}
		}
		return false
	}
	return ordered.DeepEqual(caseValue, key)
}

func (p *Processor) evalItem(it *ast.Item, frames []loopFrame) ([]any, error) {
	frame, sub, err := lookupLoop(frames, it.ID, it.Sub)
	if err != nil {
		return nil, err
	}
	if sub == "" {
		return []any{ordered.DeepCopy(frame.item)}, nil
	}
	value, found := dotpath.Get(frame.item, sub)
	if !found {
		ref := it.Sub
		if it.ID != "" {
			ref = it.ID
			if it.Sub != "" {
				ref = it.ID + "." + it.Sub
			}
		}
		return nil, &MissingVariableError{Path: ref}
	}
	return []any{ordered.DeepCopy(value)}, nil
}

func (p *Processor) evalIndex(ix *ast.Index, frames []loopFrame) ([]any, error) {
	if len(frames) == 0 {
		return nil, loopErr("index reference outside any loop")
	}
	if ix.ID == "" {
		return []any{frames[len(frames)-1].index}, nil
	}
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].id == ix.ID {
			return []any{frames[i].index}, nil
		}
	}
	return nil, loopErr("no active loop named %q", ix.ID)
}

// lookupLoop resolves an item reference. An explicit id addresses the
// nearest loop with that id; an id matching no loop is reinterpreted as a
// path into the innermost loop's item.
func lookupLoop(frames []loopFrame, id, sub string) (loopFrame, string, error) {
	if len(frames) == 0 {
		return loopFrame{}, "", loopErr("item reference outside any loop")
	}
	if id == "" {
		return frames[len(frames)-1], sub, nil
	}
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].id == id {
			return frames[i], sub, nil
		}
	}
	full := id
	if sub != "" {
		full = id + "." + sub
	}
	return frames[len(frames)-1], full, nil
}

func (p *Processor) evalCmd(ctx context.Context, c *ast.Cmd, frames []loopFrame) ([]any, error) {
	commands, err := p.eval(ctx, c.Command, frames)
	if err != nil {
		return nil, err
	}
	timeout := p.CmdTimeout
	if timeout == 0 {
		timeout = DefaultCmdTimeout
	}
	out := make([]any, len(commands))
	for i, cv := range commands {
		command := stringify(cv)
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		var stdout, stderr bytes.Buffer
		cmd := exec.CommandContext(runCtx, "sh", "-c", command)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		err := cmd.Run()
		cancel()
		if err != nil {
			return nil, &SubprocessError{Command: command, Stderr: strings.TrimSpace(stderr.String()), Err: err}
		}
		out[i] = strings.TrimSpace(stdout.String())
	}
	return out, nil
}

func (p *Processor) evalRand(ctx context.Context, r *ast.Rand, frames []loopFrame) ([]any, error) {
	nodes := append([]ast.Node{}, r.Args...)
	nIdx, pdfIdx := -1, -1
	if r.N != nil {
		nIdx = len(nodes)
		nodes = append(nodes, r.N)
	}
	if r.PDF != nil {
		pdfIdx = len(nodes)
		nodes = append(nodes, r.PDF)
	}
	rows, err := p.evalRows(ctx, nodes, frames)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(rows))
	for i, row := range rows {
		var pdf any
		if pdfIdx >= 0 {
			pdf = row[pdfIdx]
		}
		sampler, err := randutil.NewSampler(row[:len(r.Args)], pdf)
		if err != nil {
			return nil, fmt.Errorf("rand: %w", err)
		}
		if nIdx < 0 {
			out[i] = sampler.Sample()
			continue
		}
		n, ok := row[nIdx].(int)
		if !ok {
			return nil, fmt.Errorf("rand: sample count must be an integer, got %T", row[nIdx])
		}
		out[i] = sampler.SampleN(n)
	}
	return out, nil
}

// stringify renders an evaluated value for string interpolation and for use
// as a mapping key.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
