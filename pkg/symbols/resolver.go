// Package symbols resolves directive targets to live Go values: plain
// lookups for $symbol, invocations for $call, and typed record construction
// for $model. Resolution is pluggable; the engine only sees the Resolver
// interface.
package symbols

import (
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Resolver maps dotted target strings to values. Implementations decide the
// namespace: a hand-filled registry, an expression evaluator, or both.
type Resolver interface {
	// Resolve returns the value bound to target without invoking it.
	Resolve(target string) (any, error)

	// Call resolves target and invokes it with keyword arguments.
	Call(target string, kwargs map[string]any) (any, error)

	// New resolves target to a record type and constructs an instance from
	// keyword arguments.
	New(target string, kwargs map[string]any) (any, error)
}

// NotFoundError reports a target absent from a resolver's namespace.
type NotFoundError struct {
	Target string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("symbol %q not found", e.Target)
}

// Registry is a Resolver backed by explicit registrations. The zero value is
// ready to use. Registry is not safe for concurrent mutation; register
// everything up front.
type Registry struct {
	values map[string]any
	models map[string]reflect.Type
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register binds a target name to an arbitrary value. Functions registered
// here become callable through Call when they take a single map argument.
func (r *Registry) Register(target string, value any) {
	if r.values == nil {
		r.values = map[string]any{}
	}
	r.values[target] = value
}

// RegisterFunc binds a target name to a keyword-argument function.
func (r *Registry) RegisterFunc(target string, fn func(kwargs map[string]any) (any, error)) {
	r.Register(target, fn)
}

// RegisterModel binds a target name to a record prototype. New constructs
// fresh instances of the prototype's type; pass a pointer to get pointers
// back.
func (r *Registry) RegisterModel(target string, prototype any) {
	if r.models == nil {
		r.models = map[string]reflect.Type{}
	}
	r.models[target] = reflect.TypeOf(prototype)
}

func (r *Registry) Resolve(target string) (any, error) {
	if v, ok := r.values[target]; ok {
		return v, nil
	}
	if t, ok := r.models[target]; ok {
		return t, nil
	}
	return nil, &NotFoundError{Target: target}
}

func (r *Registry) Call(target string, kwargs map[string]any) (any, error) {
	v, err := r.Resolve(target)
	if err != nil {
		return nil, err
	}
	return invoke(target, v, kwargs)
}

func (r *Registry) New(target string, kwargs map[string]any) (any, error) {
	t, ok := r.models[target]
	if !ok {
		return nil, &NotFoundError{Target: target}
	}
	return construct(target, t, kwargs)
}

// invoke calls a registered function value with keyword arguments. Supported
// shapes: func(map[string]any) (any, error), func(map[string]any) any, and
// func() (any, error) / func() any for argument-free targets.
func invoke(target string, v any, kwargs map[string]any) (any, error) {
	switch fn := v.(type) {
	case func(map[string]any) (any, error):
		return fn(kwargs)
	case func(map[string]any) any:
		return fn(kwargs), nil
	case func() (any, error):
		if len(kwargs) != 0 {
			return nil, fmt.Errorf("symbol %q takes no arguments", target)
		}
		return fn()
	case func() any:
		if len(kwargs) != 0 {
			return nil, fmt.Errorf("symbol %q takes no arguments", target)
		}
		return fn(), nil
	default:
		return nil, fmt.Errorf("symbol %q is not callable (%T)", target, v)
	}
}

// construct builds an instance of t by round-tripping the keyword arguments
// through YAML into the new value, honoring the type's yaml tags.
func construct(target string, t reflect.Type, kwargs map[string]any) (any, error) {
	elem := t
	pointer := false
	if t.Kind() == reflect.Pointer {
		elem = t.Elem()
		pointer = true
	}
	if elem.Kind() != reflect.Struct {
		return nil, fmt.Errorf("model %q is not a struct type (%s)", target, t)
	}
	data, err := yaml.Marshal(kwargs)
	if err != nil {
		return nil, fmt.Errorf("model %q: encode arguments: %w", target, err)
	}
	out := reflect.New(elem)
	if err := yaml.Unmarshal(data, out.Interface()); err != nil {
		return nil, fmt.Errorf("model %q: %w", target, err)
	}
	if pointer {
		return out.Interface(), nil
	}
	return out.Elem().Interface(), nil
}
