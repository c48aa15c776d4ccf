package plan

import (
	"fmt"
	"math"
	"sort"
	"time"

	"reliefplan/internal/model"
)

// GreedyMinCostPlanner produces a single-pass allocation snapshot: needs are
// processed priority-first, each filled from the cheapest feasible warehouses
// until satisfied or infeasible. Deterministic for a given input ordering;
// ties in cost keep warehouse list order via stable sorts.
type GreedyMinCostPlanner struct{}

func NewGreedyMinCostPlanner() *GreedyMinCostPlanner {
	return &GreedyMinCostPlanner{}
}

// RunMetrics captures per-run solver counters for the admin metrics view.
type RunMetrics struct {
	NeedsProcessed      int     `json:"needsProcessed"`
	CandidatesEvaluated int     `json:"candidatesEvaluated"`
	Shipments           int     `json:"shipments"`
	UnmetNeeds          int     `json:"unmetNeeds"`
	FulfillmentRate     float64 `json:"fulfillmentRate"`
	DurationMs          int64   `json:"durationMs"`
}

// stockState is the per-call arena for inventory bookkeeping. current holds
// remaining units; min holds the reserve floor (initial x reserveFraction),
// which allocations never cross.
type stockState struct {
	current map[string]map[string]int     // warehouseID -> itemCode -> units
	min     map[string]map[string]float64 // warehouseID -> itemCode -> floor
}

func newStockState(warehouses []model.Warehouse, reserveFraction float64) *stockState {
	st := &stockState{
		current: map[string]map[string]int{},
		min:     map[string]map[string]float64{},
	}
	for _, w := range warehouses {
		cur := map[string]int{}
		floor := map[string]float64{}
		for _, line := range w.Inventory {
			cur[line.ItemCode] = line.Quantity
			floor[line.ItemCode] = float64(line.Quantity) * reserveFraction
		}
		st.current[w.ID] = cur
		st.min[w.ID] = floor
	}
	return st
}

// available returns whole units allocatable above the reserve floor.
func (st *stockState) available(warehouseID, itemCode string) int {
	cur, ok := st.current[warehouseID][itemCode]
	if !ok {
		return 0
	}
	avail := float64(cur) - st.min[warehouseID][itemCode]
	if avail <= 0 {
		return 0
	}
	return int(math.Floor(avail + 1e-9))
}

func (st *stockState) deduct(warehouseID, itemCode string, quantity int) error {
	cur := st.current[warehouseID][itemCode]
	next := cur - quantity
	if float64(next) < st.min[warehouseID][itemCode]-1e-9 {
		return &StockUnderflowError{WarehouseID: warehouseID, ItemCode: itemCode}
	}
	st.current[warehouseID][itemCode] = next
	return nil
}

type candidate struct {
	warehouse  *model.Warehouse
	distanceKm float64
	cost       float64
}

// Plan validates the problem, then allocates greedily. Validation failures
// abort before any state exists; per-need infeasibility degrades to recorded
// unmet needs; a reserve-floor breach aborts the run as an internal defect.
func (p *GreedyMinCostPlanner) Plan(problem model.GlobalPlanningProblem) (model.GlobalPlanningResult, RunMetrics, error) {
	start := time.Now()
	var m RunMetrics
	if violations := ValidateProblem(problem); len(violations) > 0 {
		return model.GlobalPlanningResult{}, m, &InvalidProblemError{Violations: violations}
	}

	stock := newStockState(problem.Warehouses, problem.Constraints.ReserveFraction)
	fairness := NewFairnessTracker()

	communities := map[string]*model.Community{}
	for i := range problem.Communities {
		communities[problem.Communities[i].ID] = &problem.Communities[i]
	}

	// Stable priority order; equal priorities keep input order.
	needs := append([]model.CommunityNeed(nil), problem.CommunityNeeds...)
	sort.SliceStable(needs, func(i, j int) bool { return needs[i].Priority < needs[j].Priority })

	shipments := []model.Shipment{}
	unmet := []model.CommunityNeed{}

	for _, need := range needs {
		m.NeedsProcessed++
		community, ok := communities[need.CommunityID]
		if !ok {
			unmet = append(unmet, need)
			continue
		}

		candidates := p.discoverCandidates(problem, stock, community, need)
		if len(candidates) == 0 {
			unmet = append(unmet, need)
			continue
		}

		// Score and rank; ties keep discovery (warehouse list) order.
		for i := range candidates {
			risk := RiskScore(problem.RiskLayers, candidates[i].warehouse.ID, need.CommunityID)
			penalty := fairness.Penalty(community.ParishID, need.ItemCode, nil)
			cost, err := Cost(candidates[i].distanceKm, risk, penalty, problem.Constraints)
			if err != nil {
				return model.GlobalPlanningResult{}, m, err
			}
			candidates[i].cost = cost
			m.CandidatesEvaluated++
		}
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].cost < candidates[j].cost })

		remaining := need.Quantity
		for _, cand := range candidates {
			if remaining == 0 {
				break
			}
			// re-derive: earlier fills within this need may have drained it
			avail := stock.available(cand.warehouse.ID, need.ItemCode)
			quantity := remaining
			if avail < quantity {
				quantity = avail
			}
			if quantity <= 0 {
				continue
			}
			if err := stock.deduct(cand.warehouse.ID, need.ItemCode, quantity); err != nil {
				return model.GlobalPlanningResult{}, m, err
			}
			if err := fairness.Record(community.ParishID, need.ItemCode, float64(quantity)); err != nil {
				return model.GlobalPlanningResult{}, m, err
			}
			shipments = append(shipments, model.Shipment{
				FromWarehouseID: cand.warehouse.ID,
				ToCommunityID:   need.CommunityID,
				ItemCode:        need.ItemCode,
				Quantity:        quantity,
				Cost:            cand.cost,
			})
			remaining -= quantity
		}
		if remaining > 0 {
			short := need
			short.Quantity = remaining
			unmet = append(unmet, short)
		}
	}

	result := model.GlobalPlanningResult{
		Shipments: shipments,
		Summary:   buildSummary(problem.CommunityNeeds, shipments, unmet),
	}
	m.Shipments = len(shipments)
	m.UnmetNeeds = len(unmet)
	m.FulfillmentRate = result.Summary.FulfillmentRate
	m.DurationMs = time.Since(start).Milliseconds()
	return result, m, nil
}

// discoverCandidates keeps warehouses that stock the item, have allocatable
// units above the reserve floor, and sit within the distance limit.
// Exclusion, not penalization.
func (p *GreedyMinCostPlanner) discoverCandidates(problem model.GlobalPlanningProblem, stock *stockState, community *model.Community, need model.CommunityNeed) []candidate {
	var out []candidate
	for i := range problem.Warehouses {
		w := &problem.Warehouses[i]
		if stock.available(w.ID, need.ItemCode) <= 0 {
			continue
		}
		dist := HaversineKm(w.Lat, w.Lng, community.Lat, community.Lng)
		if !isFinite(dist) || dist > problem.Constraints.MaxDistanceKm {
			continue
		}
		out = append(out, candidate{warehouse: w, distanceKm: dist})
	}
	return out
}

func buildSummary(original []model.CommunityNeed, shipments []model.Shipment, unmet []model.CommunityNeed) model.PlanningSummary {
	totalItems := 0
	totalCost := 0.0
	for _, s := range shipments {
		totalItems += s.Quantity
		totalCost += s.Cost
	}
	requested := 0
	for _, n := range original {
		requested += n.Quantity
	}
	missed := 0
	for _, n := range unmet {
		missed += n.Quantity
	}
	rate := 1.0
	if requested > 0 {
		rate = float64(requested-missed) / float64(requested)
	}
	return model.PlanningSummary{
		TotalShipments:      len(shipments),
		TotalItemsAllocated: totalItems,
		TotalCost:           totalCost,
		UnmetNeeds:          unmet,
		FulfillmentRate:     rate,
	}
}

// ValidateProblem runs the schema-level structural and numeric-range checks
// and returns one message per violated field, empty when valid.
func ValidateProblem(problem model.GlobalPlanningProblem) []string {
	var v []string
	if len(problem.Warehouses) == 0 {
		v = append(v, "warehouses: at least one warehouse is required")
	}
	if len(problem.Communities) == 0 {
		v = append(v, "communities: at least one community is required")
	}
	if len(problem.CommunityNeeds) == 0 {
		v = append(v, "communityNeeds: at least one need is required")
	}
	c := problem.Constraints
	if !isFinite(c.ReserveFraction) || c.ReserveFraction < 0 || c.ReserveFraction > 1 {
		v = append(v, fmt.Sprintf("constraints.reserveFraction: must be in [0,1], got %v", c.ReserveFraction))
	}
	if !isFinite(c.MaxDistanceKm) || c.MaxDistanceKm <= 0 {
		v = append(v, fmt.Sprintf("constraints.maxDistanceKm: must be > 0, got %v", c.MaxDistanceKm))
	}
	if !isFinite(c.DistanceWeight) || c.DistanceWeight < 0 {
		v = append(v, fmt.Sprintf("constraints.distanceWeight: must be >= 0, got %v", c.DistanceWeight))
	}
	if !isFinite(c.RiskWeight) || c.RiskWeight < 0 {
		v = append(v, fmt.Sprintf("constraints.riskWeight: must be >= 0, got %v", c.RiskWeight))
	}
	if !isFinite(c.FairnessWeight) || c.FairnessWeight < 0 {
		v = append(v, fmt.Sprintf("constraints.fairnessWeight: must be >= 0, got %v", c.FairnessWeight))
	}
	for i, w := range problem.Warehouses {
		if w.ID == "" {
			v = append(v, fmt.Sprintf("warehouses[%d].id: must not be empty", i))
		}
		if !isFinite(w.Lat) || !isFinite(w.Lng) {
			v = append(v, fmt.Sprintf("warehouses[%d]: coordinates must be finite", i))
		}
		for j, line := range w.Inventory {
			if line.ItemCode == "" {
				v = append(v, fmt.Sprintf("warehouses[%d].inventory[%d].itemCode: must not be empty", i, j))
			}
			if line.Quantity < 0 {
				v = append(v, fmt.Sprintf("warehouses[%d].inventory[%d].quantity: must be >= 0, got %d", i, j, line.Quantity))
			}
		}
	}
	for i, cm := range problem.Communities {
		if cm.ID == "" {
			v = append(v, fmt.Sprintf("communities[%d].id: must not be empty", i))
		}
		if !isFinite(cm.Lat) || !isFinite(cm.Lng) {
			v = append(v, fmt.Sprintf("communities[%d]: coordinates must be finite", i))
		}
	}
	for i, n := range problem.CommunityNeeds {
		if n.CommunityID == "" {
			v = append(v, fmt.Sprintf("communityNeeds[%d].communityId: must not be empty", i))
		}
		if n.ItemCode == "" {
			v = append(v, fmt.Sprintf("communityNeeds[%d].itemCode: must not be empty", i))
		}
		if n.Quantity <= 0 {
			v = append(v, fmt.Sprintf("communityNeeds[%d].quantity: must be > 0, got %d", i, n.Quantity))
		}
		if n.Priority < 1 {
			v = append(v, fmt.Sprintf("communityNeeds[%d].priority: must be a positive integer, got %d", i, n.Priority))
		}
	}
	return v
}
