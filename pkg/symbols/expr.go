package symbols

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// ExprResolver resolves targets that miss the registry by evaluating them as
// expressions over the registry's values plus an optional extra environment.
// A target like "len" or "2 ** 10" therefore works without registration,
// while registered names keep exact-match priority.
type ExprResolver struct {
	Base *Registry
	Env  map[string]any
}

// NewExprResolver wraps a registry with expression fallback.
func NewExprResolver(base *Registry, env map[string]any) *ExprResolver {
	if base == nil {
		base = NewRegistry()
	}
	return &ExprResolver{Base: base, Env: env}
}

func (r *ExprResolver) environment() map[string]any {
	env := make(map[string]any, len(r.Base.values)+len(r.Env))
	for k, v := range r.Base.values {
		env[k] = v
	}
	for k, v := range r.Env {
		env[k] = v
	}
	return env
}

func (r *ExprResolver) Resolve(target string) (any, error) {
	if v, err := r.Base.Resolve(target); err == nil {
		return v, nil
	}
	out, err := expr.Eval(target, r.environment())
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", target, err)
	}
	return out, nil
}

func (r *ExprResolver) Call(target string, kwargs map[string]any) (any, error) {
	if _, err := r.Base.Resolve(target); err == nil {
		return r.Base.Call(target, kwargs)
	}
	v, err := r.Resolve(target)
	if err != nil {
		return nil, err
	}
	return invoke(target, v, kwargs)
}

func (r *ExprResolver) New(target string, kwargs map[string]any) (any, error) {
	return r.Base.New(target, kwargs)
}
