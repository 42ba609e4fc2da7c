package aspect

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// WeightTolerance is the allowed deviation of a table's weight sum from 1.0.
const WeightTolerance = 1e-6

// ErrInvalidWeights is returned when a weight table fails validation.
var ErrInvalidWeights = errors.New("invalid weight table")

// Weight assigns a scoring weight to one aspect. Label and Headers override the built-in definition
// and are required in practice for aspects that have no built-in definition.
type Weight struct {
	Aspect  Aspect   `koanf:"aspect" yaml:"aspect" json:"aspect"`
	Weight  float64  `koanf:"weight" yaml:"weight" json:"weight"`
	Label   string   `koanf:"label" yaml:"label,omitempty" json:"label,omitempty"`
	Headers []string `koanf:"headers" yaml:"headers,omitempty" json:"headers,omitempty"`
}

// WeightTable is a versioned, ordered set of aspect weights.
type WeightTable struct {
	Version string   `koanf:"version" yaml:"version" json:"version"`
	Weights []Weight `koanf:"weights" yaml:"weights" json:"weights"`
}

// V1 is the five-aspect table.
func V1() WeightTable {
	return WeightTable{
		Version: "v1",
		Weights: []Weight{
			{Aspect: Skills, Weight: 0.35},
			{Aspect: Experience, Weight: 0.25},
			{Aspect: Projects, Weight: 0.15},
			{Aspect: Location, Weight: 0.10},
			{Aspect: Profile, Weight: 0.15},
		},
	}
}

// V2 is the seven-aspect table.
func V2() WeightTable {
	return WeightTable{
		Version: "v2",
		Weights: []Weight{
			{Aspect: Skills, Weight: 0.30},
			{Aspect: Experience, Weight: 0.20},
			{Aspect: Projects, Weight: 0.15},
			{Aspect: Education, Weight: 0.10},
			{Aspect: Location, Weight: 0.05},
			{Aspect: Profile, Weight: 0.10},
			{Aspect: Additional, Weight: 0.10},
		},
	}
}

// Validate checks that the table is non-empty, has no duplicate or negative entries,
// and sums to 1.0 within WeightTolerance.
func (t WeightTable) Validate() error {
	if t.Version == "" {
		return fmt.Errorf("%w: missing version", ErrInvalidWeights)
	}
	if len(t.Weights) == 0 {
		return fmt.Errorf("%w: %s has no aspects", ErrInvalidWeights, t.Version)
	}
	seen := make(map[Aspect]struct{}, len(t.Weights))
	var sum float64
	for _, w := range t.Weights {
		if w.Aspect == "" {
			return fmt.Errorf("%w: %s has an unnamed aspect", ErrInvalidWeights, t.Version)
		}
		if _, dup := seen[w.Aspect]; dup {
			return fmt.Errorf("%w: %s lists %q twice", ErrInvalidWeights, t.Version, w.Aspect)
		}
		seen[w.Aspect] = struct{}{}
		if w.Weight < 0 || math.IsNaN(w.Weight) {
			return fmt.Errorf("%w: %s weight for %q is negative", ErrInvalidWeights, t.Version, w.Aspect)
		}
		sum += w.Weight
	}
	if math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("%w: %s weights sum to %.6f, want 1.0", ErrInvalidWeights, t.Version, sum)
	}
	return nil
}

// Aspects returns the table's aspects in table order.
func (t WeightTable) Aspects() []Aspect {
	out := make([]Aspect, len(t.Weights))
	for i, w := range t.Weights {
		out[i] = w.Aspect
	}
	return out
}

// Weight returns the weight of a, or 0 when a is not in the table.
func (t WeightTable) Weight(a Aspect) float64 {
	for _, w := range t.Weights {
		if w.Aspect == a {
			return w.Weight
		}
	}
	return 0
}

// Has reports whether a is part of the table.
func (t WeightTable) Has(a Aspect) bool {
	for _, w := range t.Weights {
		if w.Aspect == a {
			return true
		}
	}
	return false
}

// Map returns the weights keyed by aspect.
func (t WeightTable) Map() map[Aspect]float64 {
	out := make(map[Aspect]float64, len(t.Weights))
	for _, w := range t.Weights {
		out[w.Aspect] = w.Weight
	}
	return out
}

// Definitions returns the definition of every aspect in the table, ordered by header precedence:
// built-in aspects first in their fixed order, then custom aspects in table order.
func (t WeightTable) Definitions() []Definition {
	defs := make([]Definition, 0, len(t.Weights))
	for _, w := range t.Weights {
		d, ok := Lookup(w.Aspect)
		if !ok {
			d = Definition{Aspect: w.Aspect, Label: defaultLabel(w.Aspect)}
		}
		if w.Label != "" {
			d.Label = w.Label
		}
		if len(w.Headers) > 0 {
			d.Headers = append([]string(nil), w.Headers...)
		}
		if len(d.Headers) == 0 {
			d.Headers = []string{d.Label}
		}
		defs = append(defs, d)
	}
	sort.SliceStable(defs, func(i, j int) bool {
		pi, pj := precedence(defs[i].Aspect), precedence(defs[j].Aspect)
		switch {
		case pi >= 0 && pj >= 0:
			return pi < pj
		case pi >= 0:
			return true
		default:
			return false
		}
	})
	return defs
}

// Registry holds the validated weight tables by version.
type Registry struct {
	tables map[string]WeightTable
}

// NewRegistry validates the built-in tables plus extra. An extra table with a built-in version replaces it.
func NewRegistry(extra ...WeightTable) (*Registry, error) {
	r := &Registry{tables: make(map[string]WeightTable)}
	for _, t := range append([]WeightTable{V1(), V2()}, extra...) {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		r.tables[t.Version] = t
	}
	return r, nil
}

// Get returns the table for version.
func (r *Registry) Get(version string) (WeightTable, error) {
	t, ok := r.tables[version]
	if !ok {
		return WeightTable{}, fmt.Errorf("%w: unknown version %q", ErrInvalidWeights, version)
	}
	return t, nil
}

// Versions returns the registered versions sorted.
func (r *Registry) Versions() []string {
	out := make([]string, 0, len(r.tables))
	for v := range r.tables {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
