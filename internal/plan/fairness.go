package plan

// Fairness thresholds: parishes below 80% of the target allocation get a
// bonus, parishes above 120% get a penalty, both scaled by 10 per unit of
// ratio shortfall/excess. A bounded heuristic to bias the greedy search, not
// a proportional-fairness optimizer.
const (
	fairnessUnderRatio = 0.8
	fairnessOverRatio  = 1.2
	fairnessScale      = 10.0
)

// FairnessTracker keeps a per-parish, per-item ledger of cumulative
// allocated quantity for one planning run. One tracker per Plan call; it is
// not safe for concurrent use and must not be shared across runs.
type FairnessTracker struct {
	alloc map[string]map[string]float64 // parishID -> itemCode -> quantity
}

func NewFairnessTracker() *FairnessTracker {
	return &FairnessTracker{alloc: map[string]map[string]float64{}}
}

// Record adds quantity to the running total for a parish/item pair.
func (t *FairnessTracker) Record(parishID, itemCode string, quantity float64) error {
	if !isFinite(quantity) || quantity < 0 {
		return &QuantityError{Value: quantity}
	}
	m := t.alloc[parishID]
	if m == nil {
		m = map[string]float64{}
		t.alloc[parishID] = m
	}
	m[itemCode] += quantity
	return nil
}

// Allocated returns the cumulative quantity recorded for a parish/item pair.
func (t *FairnessTracker) Allocated(parishID, itemCode string) float64 {
	return t.alloc[parishID][itemCode]
}

// Penalty compares a parish's cumulative allocation for an item against a
// target and returns a cost adjustment: negative (a bonus) for under-served
// parishes, positive for over-served ones, 0 in the fair band. When target is
// nil the target is the mean of all parishes' non-zero cumulative
// allocations for the item.
func (t *FairnessTracker) Penalty(parishID, itemCode string, target *float64) float64 {
	current := t.alloc[parishID][itemCode]
	var tgt float64
	if target != nil {
		tgt = *target
	} else {
		tgt = t.meanNonZero(itemCode)
	}
	if tgt <= 0 {
		if current == 0 {
			return 0
		}
		// any allocation against no baseline counts as over-served
		return fairnessScale
	}
	ratio := current / tgt
	switch {
	case ratio < fairnessUnderRatio:
		return -fairnessScale * (fairnessUnderRatio - ratio)
	case ratio > fairnessOverRatio:
		return fairnessScale * (ratio - fairnessOverRatio)
	default:
		return 0
	}
}

func (t *FairnessTracker) meanNonZero(itemCode string) float64 {
	sum := 0.0
	n := 0
	for _, items := range t.alloc {
		if q := items[itemCode]; q > 0 {
			sum += q
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
