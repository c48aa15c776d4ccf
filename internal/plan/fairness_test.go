package plan

import (
	"errors"
	"math"
	"testing"
)

func TestFairnessRecordRejectsNegative(t *testing.T) {
	tr := NewFairnessTracker()
	err := tr.Record("P1", "food", -1)
	var qe *QuantityError
	if !errors.As(err, &qe) {
		t.Fatalf("want QuantityError, got %v", err)
	}
	if err := tr.Record("P1", "food", 0); err != nil {
		t.Fatalf("zero quantity should be accepted: %v", err)
	}
}

func TestFairnessPenaltyNoBaseline(t *testing.T) {
	tr := NewFairnessTracker()
	if got := tr.Penalty("P1", "food", nil); got != 0 {
		t.Fatalf("empty ledger: got %v, want 0", got)
	}
	// explicit zero target with a positive allocation counts as over-served
	if err := tr.Record("P1", "food", 10); err != nil {
		t.Fatal(err)
	}
	zero := 0.0
	if got := tr.Penalty("P1", "food", &zero); got != 10 {
		t.Fatalf("allocation against zero target: got %v, want 10", got)
	}
}

func TestFairnessPenaltyBands(t *testing.T) {
	target := 100.0
	tests := []struct {
		name    string
		current float64
		want    float64
	}{
		{"under-served", 50, -10 * (0.8 - 0.5)},
		{"lower edge of fair band", 80, 0},
		{"fairly served", 100, 0},
		{"upper edge of fair band", 120, 0},
		{"over-served", 150, 10 * (1.5 - 1.2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewFairnessTracker()
			if err := tr.Record("P1", "food", tt.current); err != nil {
				t.Fatal(err)
			}
			got := tr.Penalty("P1", "food", &target)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("penalty(current=%v): got %v, want %v", tt.current, got, tt.want)
			}
		})
	}
}

func TestFairnessPenaltyMeanTarget(t *testing.T) {
	tr := NewFairnessTracker()
	// P1: 100, P2: 200, P3: 0 -> mean of non-zero = 150
	for parish, qty := range map[string]float64{"P1": 100, "P2": 200} {
		if err := tr.Record(parish, "food", qty); err != nil {
			t.Fatal(err)
		}
	}
	// P1 ratio = 100/150 ~= 0.667 -> bonus
	got := tr.Penalty("P1", "food", nil)
	want := -10 * (0.8 - 100.0/150.0)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("P1 penalty: got %v, want %v", got, want)
	}
	// P3 has nothing yet: ratio 0, strongest bonus
	got = tr.Penalty("P3", "food", nil)
	want = -10 * 0.8
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("P3 penalty: got %v, want %v", got, want)
	}
	// other items are tracked independently
	if got := tr.Penalty("P1", "water", nil); got != 0 {
		t.Fatalf("water penalty: got %v, want 0", got)
	}
}

func TestFairnessAccumulates(t *testing.T) {
	tr := NewFairnessTracker()
	for i := 0; i < 3; i++ {
		if err := tr.Record("P1", "food", 10); err != nil {
			t.Fatal(err)
		}
	}
	if got := tr.Allocated("P1", "food"); got != 30 {
		t.Fatalf("allocated: got %v, want 30", got)
	}
}
