package plan

import (
	"errors"
	"math"
	"testing"

	"reliefplan/internal/model"
)

func TestCostCombinesWeightedTerms(t *testing.T) {
	c := model.Constraints{DistanceWeight: 2, RiskWeight: 3, FairnessWeight: 0.5}
	got, err := Cost(10, 4, -2, c)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	want := 10*2.0 + 4*3.0 + (-2)*0.5
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("cost: got %v, want %v", got, want)
	}
}

func TestCostRejectsInvalidInputs(t *testing.T) {
	ok := model.Constraints{DistanceWeight: 1}
	tests := []struct {
		name             string
		dist, risk, fair float64
		c                model.Constraints
	}{
		{"negative distance", -1, 0, 0, ok},
		{"NaN distance", math.NaN(), 0, 0, ok},
		{"negative risk", 0, -0.1, 0, ok},
		{"infinite fairness", 0, 0, math.Inf(1), ok},
		{"negative weight", 0, 0, 0, model.Constraints{DistanceWeight: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Cost(tt.dist, tt.risk, tt.fair, tt.c)
			var cie *CostInputError
			if !errors.As(err, &cie) {
				t.Fatalf("want CostInputError, got %v", err)
			}
		})
	}
}

func TestCostAllowsNegativeFairness(t *testing.T) {
	got, err := Cost(0, 0, -5, model.Constraints{FairnessWeight: 1})
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if got != -5 {
		t.Fatalf("cost: got %v, want -5", got)
	}
}

func TestRiskScoreLookup(t *testing.T) {
	layers := map[string]float64{
		"w1-c1": 2.5,
		"w2-c1": -3,
		"w3-c1": math.NaN(),
	}
	if got := RiskScore(layers, "w1", "c1"); got != 2.5 {
		t.Fatalf("stored score: got %v", got)
	}
	if got := RiskScore(layers, "w9", "c1"); got != 0 {
		t.Fatalf("absent pair: got %v, want 0", got)
	}
	if got := RiskScore(layers, "w2", "c1"); got != 0 {
		t.Fatalf("negative score: got %v, want 0", got)
	}
	if got := RiskScore(layers, "w3", "c1"); got != 0 {
		t.Fatalf("NaN score: got %v, want 0", got)
	}
	if got := RiskScore(nil, "w1", "c1"); got != 0 {
		t.Fatalf("nil layers: got %v, want 0", got)
	}
}
