package aspect

import (
	"errors"
	"math"
	"testing"
)

func TestBuiltinTablesSumToOne(t *testing.T) {
	for _, table := range []WeightTable{V1(), V2()} {
		var sum float64
		for _, w := range table.Weights {
			if w.Weight < 0 {
				t.Errorf("%s: negative weight for %s", table.Version, w.Aspect)
			}
			sum += w.Weight
		}
		if math.Abs(sum-1) > WeightTolerance {
			t.Errorf("%s: sum = %v, want 1", table.Version, sum)
		}
		if err := table.Validate(); err != nil {
			t.Errorf("%s: Validate: %v", table.Version, err)
		}
	}
}

func TestWeightTable_Validate(t *testing.T) {
	tests := []struct {
		name  string
		table WeightTable
	}{
		{"no version", WeightTable{Weights: []Weight{{Aspect: Skills, Weight: 1}}}},
		{"empty", WeightTable{Version: "x"}},
		{"negative", WeightTable{Version: "x", Weights: []Weight{{Aspect: Skills, Weight: 1.5}, {Aspect: Location, Weight: -0.5}}}},
		{"duplicate", WeightTable{Version: "x", Weights: []Weight{{Aspect: Skills, Weight: 0.5}, {Aspect: Skills, Weight: 0.5}}}},
		{"sum too low", WeightTable{Version: "x", Weights: []Weight{{Aspect: Skills, Weight: 0.5}, {Aspect: Location, Weight: 0.4}}}},
		{"unnamed", WeightTable{Version: "x", Weights: []Weight{{Weight: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if !errors.Is(err, ErrInvalidWeights) {
				t.Errorf("Validate() = %v, want ErrInvalidWeights", err)
			}
		})
	}
}

func TestWeightTable_ToleratesFloatDrift(t *testing.T) {
	table := WeightTable{Version: "thirds", Weights: []Weight{
		{Aspect: Skills, Weight: 1.0 / 3},
		{Aspect: Experience, Weight: 1.0 / 3},
		{Aspect: Projects, Weight: 1.0 / 3},
	}}
	if err := table.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestWeightTable_DefinitionsOrder(t *testing.T) {
	table := WeightTable{Version: "custom", Weights: []Weight{
		{Aspect: "soft_skills", Weight: 0.2},
		{Aspect: Location, Weight: 0.3},
		{Aspect: Skills, Weight: 0.5},
	}}
	defs := table.Definitions()
	if len(defs) != 3 {
		t.Fatalf("len = %d, want 3", len(defs))
	}
	if defs[0].Aspect != Skills || defs[1].Aspect != Location || defs[2].Aspect != "soft_skills" {
		t.Errorf("order = %v, %v, %v", defs[0].Aspect, defs[1].Aspect, defs[2].Aspect)
	}
	if defs[2].Label != "Soft Skills" {
		t.Errorf("custom label = %q", defs[2].Label)
	}
	if len(defs[2].Headers) != 1 || defs[2].Headers[0] != "Soft Skills" {
		t.Errorf("custom headers = %v", defs[2].Headers)
	}
}

func TestRegistry(t *testing.T) {
	custom := WeightTable{Version: "lean", Weights: []Weight{{Aspect: Skills, Weight: 0.7}, {Aspect: Experience, Weight: 0.3}}}
	r, err := NewRegistry(custom)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	for _, v := range []string{"v1", "v2", "lean"} {
		if _, err := r.Get(v); err != nil {
			t.Errorf("Get(%q): %v", v, err)
		}
	}
	if _, err := r.Get("v9"); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("Get(v9) = %v, want ErrInvalidWeights", err)
	}
	if got := r.Versions(); len(got) != 3 || got[0] != "lean" {
		t.Errorf("Versions = %v", got)
	}

	bad := WeightTable{Version: "bad", Weights: []Weight{{Aspect: Skills, Weight: 2}}}
	if _, err := NewRegistry(bad); err == nil {
		t.Error("expected error for invalid extra table")
	}
}
