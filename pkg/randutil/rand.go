// Package randutil implements the sampling behind the $rand directive:
// uniform draws over an optional range, or draws from a caller-supplied
// density given as bin weights, as (x, density) control points, or as an
// expression of x.
package randutil

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/expr-lang/expr"
)

// exprSteps is the discretization resolution for expression densities.
const exprSteps = 1024

// Sampler draws values from a fixed range and density. Integer samplers
// floor their draws, matching half-open integer ranges.
type Sampler struct {
	low, high float64
	integer   bool

	// xs/cdf describe the normalized cumulative distribution; nil means
	// uniform. Src is the uniform [0,1) source, overridable for tests.
	xs  []float64
	cdf []float64
	Src func() float64
}

// NewSampler builds a sampler from the positional bounds of a $rand call.
// No bounds means uniform floats in [0, 1); one bound is [0, x); two bounds
// are [x, y). All-integer bounds produce integers.
func NewSampler(bounds []any, pdf any) (*Sampler, error) {
	s := &Sampler{low: 0, high: 1, Src: rand.Float64}
	switch len(bounds) {
	case 0:
	case 1:
		hi, isInt, err := toFloat(bounds[0])
		if err != nil {
			return nil, err
		}
		s.high = hi
		s.integer = isInt
	case 2:
		lo, loInt, err := toFloat(bounds[0])
		if err != nil {
			return nil, err
		}
		hi, hiInt, err := toFloat(bounds[1])
		if err != nil {
			return nil, err
		}
		s.low, s.high = lo, hi
		s.integer = loInt && hiInt
	default:
		return nil, fmt.Errorf("at most two bounds allowed, got %d", len(bounds))
	}
	if s.high <= s.low {
		return nil, fmt.Errorf("empty range [%v, %v)", s.low, s.high)
	}
	if pdf != nil {
		if err := s.setPDF(pdf); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Sample draws one value: an int for integer samplers, a float64 otherwise.
func (s *Sampler) Sample() any {
	x := s.draw()
	if s.integer {
		n := int(math.Floor(x))
		if n >= int(s.high) {
			n = int(s.high) - 1
		}
		return n
	}
	return x
}

// SampleN draws n values.
func (s *Sampler) SampleN(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = s.Sample()
	}
	return out
}

func (s *Sampler) draw() float64 {
	u := s.Src()
	if s.cdf == nil {
		return s.low + u*(s.high-s.low)
	}
	// Inverse transform: find the CDF segment holding u and interpolate.
	i := sort.SearchFloat64s(s.cdf, u)
	if i == 0 {
		return s.xs[0]
	}
	if i >= len(s.cdf) {
		return s.xs[len(s.xs)-1]
	}
	span := s.cdf[i] - s.cdf[i-1]
	frac := 0.0
	if span > 0 {
		frac = (u - s.cdf[i-1]) / span
	}
	return s.xs[i-1] + frac*(s.xs[i]-s.xs[i-1])
}

// setPDF installs a non-uniform density. Accepted forms:
//   - a list of numbers: bin weights over equal subdivisions of the range
//   - a list of [x, density] pairs: piecewise linear density, x ascending
//   - a string: an expression of x, discretized over the range
func (s *Sampler) setPDF(pdf any) error {
	switch v := pdf.(type) {
	case string:
		return s.setExprPDF(v)
	case []any:
		if len(v) == 0 {
			return fmt.Errorf("empty density")
		}
		if _, ok := v[0].([]any); ok {
			return s.setPairPDF(v)
		}
		return s.setWeightPDF(v)
	default:
		return fmt.Errorf("unsupported density %T", pdf)
	}
}

func (s *Sampler) setWeightPDF(weights []any) error {
	n := len(weights)
	xs := make([]float64, n+1)
	cum := make([]float64, n+1)
	step := (s.high - s.low) / float64(n)
	for i, w := range weights {
		f, _, err := toFloat(w)
		if err != nil {
			return fmt.Errorf("density weight %d: %w", i, err)
		}
		if f < 0 {
			return fmt.Errorf("density weight %d is negative", i)
		}
		xs[i] = s.low + float64(i)*step
		cum[i+1] = cum[i] + f
	}
	xs[n] = s.high
	return s.install(xs, cum)
}

func (s *Sampler) setPairPDF(pairs []any) error {
	if len(pairs) < 2 {
		return fmt.Errorf("a piecewise linear density needs at least two points")
	}
	xs := make([]float64, len(pairs))
	ys := make([]float64, len(pairs))
	for i, raw := range pairs {
		pair, ok := raw.([]any)
		if !ok || len(pair) != 2 {
			return fmt.Errorf("density point %d must be an [x, density] pair", i)
		}
		x, _, err := toFloat(pair[0])
		if err != nil {
			return fmt.Errorf("density point %d: %w", i, err)
		}
		y, _, err := toFloat(pair[1])
		if err != nil {
			return fmt.Errorf("density point %d: %w", i, err)
		}
		if y < 0 {
			return fmt.Errorf("density point %d is negative", i)
		}
		if i > 0 && x <= xs[i-1] {
			return fmt.Errorf("density x values must be strictly ascending")
		}
		xs[i], ys[i] = x, y
	}
	// The control points define the support.
	s.low, s.high = xs[0], xs[len(xs)-1]
	cum := make([]float64, len(xs))
	for i := 1; i < len(xs); i++ {
		cum[i] = cum[i-1] + (xs[i]-xs[i-1])*(ys[i]+ys[i-1])/2
	}
	return s.install(xs, cum)
}

func (s *Sampler) setExprPDF(src string) error {
	program, err := expr.Compile(src, expr.Env(map[string]any{"x": 0.0}))
	if err != nil {
		return fmt.Errorf("compile density %q: %w", src, err)
	}
	xs := make([]float64, exprSteps+1)
	cum := make([]float64, exprSteps+1)
	step := (s.high - s.low) / exprSteps
	prev := 0.0
	for i := 0; i <= exprSteps; i++ {
		x := s.low + float64(i)*step
		out, err := expr.Run(program, map[string]any{"x": x})
		if err != nil {
			return fmt.Errorf("evaluate density %q at x=%v: %w", src, x, err)
		}
		y, _, err := toFloat(out)
		if err != nil {
			return fmt.Errorf("density %q at x=%v: %w", src, x, err)
		}
		if y < 0 {
			return fmt.Errorf("density %q is negative at x=%v", src, x)
		}
		xs[i] = x
		if i > 0 {
			cum[i] = cum[i-1] + step*(y+prev)/2
		}
		prev = y
	}
	return s.install(xs, cum)
}

// install normalizes a cumulative mass table and stores it.
func (s *Sampler) install(xs, cum []float64) error {
	total := cum[len(cum)-1]
	if total <= 0 {
		return fmt.Errorf("density has zero total mass")
	}
	for i := range cum {
		cum[i] /= total
	}
	s.xs, s.cdf = xs, cum
	return nil
}

func toFloat(v any) (f float64, isInt bool, err error) {
	switch t := v.(type) {
	case int:
		return float64(t), true, nil
	case int64:
		return float64(t), true, nil
	case float64:
		return t, false, nil
	default:
		return 0, false, fmt.Errorf("expected a number, got %T", v)
	}
}
