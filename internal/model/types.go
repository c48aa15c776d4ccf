package model

import "time"

// Core domain types for the allocation planner.

// InventoryLine is one item position held by a warehouse.
type InventoryLine struct {
	ItemCode string `json:"itemCode"`
	Quantity int    `json:"quantity"`
}

// Warehouse is a supply node. It is never mutated during planning;
// stock movement is tracked in planner-local state.
type Warehouse struct {
	ID        string          `json:"id"`
	ParishID  string          `json:"parishId"`
	Lat       float64         `json:"lat"`
	Lng       float64         `json:"lng"`
	Inventory []InventoryLine `json:"inventory"`
}

// Community is a demand location.
type Community struct {
	ID       string  `json:"id"`
	ParishID string  `json:"parishId"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// CommunityNeed is one unmet requirement: a community may carry several,
// one per item. Priority 1 is the most urgent.
type CommunityNeed struct {
	CommunityID string `json:"communityId"`
	ItemCode    string `json:"itemCode"`
	Quantity    int    `json:"quantity"`
	Priority    int    `json:"priority"`
}

// Constraints are the global tuning parameters for one planning run.
type Constraints struct {
	ReserveFraction float64 `json:"reserveFraction"`
	MaxDistanceKm   float64 `json:"maxDistanceKm"`
	DistanceWeight  float64 `json:"distanceWeight"`
	RiskWeight      float64 `json:"riskWeight"`
	FairnessWeight  float64 `json:"fairnessWeight"`
}

// GlobalPlanningProblem is the full input to one planning run.
// RiskLayers is keyed by "<warehouseId>-<communityId>".
type GlobalPlanningProblem struct {
	Warehouses     []Warehouse        `json:"warehouses"`
	Communities    []Community        `json:"communities"`
	CommunityNeeds []CommunityNeed    `json:"communityNeeds"`
	Constraints    Constraints        `json:"constraints"`
	RiskLayers     map[string]float64 `json:"riskLayers,omitempty"`
}

// Shipment is one resolved allocation from a warehouse to a community.
type Shipment struct {
	FromWarehouseID string  `json:"fromWarehouseId"`
	ToCommunityID   string  `json:"toCommunityId"`
	ItemCode        string  `json:"itemCode"`
	Quantity        int     `json:"quantity"`
	Cost            float64 `json:"cost"`
}

// PlanningSummary aggregates one run's outcome. UnmetNeeds holds needs, or
// remainders of needs, that could not be satisfied; it is never nil.
type PlanningSummary struct {
	TotalShipments      int             `json:"totalShipments"`
	TotalItemsAllocated int             `json:"totalItemsAllocated"`
	TotalCost           float64         `json:"totalCost"`
	UnmetNeeds          []CommunityNeed `json:"unmetNeeds"`
	FulfillmentRate     float64         `json:"fulfillmentRate"`
}

// GlobalPlanningResult is the output of one planning run.
type GlobalPlanningResult struct {
	Shipments []Shipment      `json:"shipments"`
	Summary   PlanningSummary `json:"summary"`
}

// PlanFromStoreRequest drives POST /v1/plan/from-db: the problem is
// assembled from persisted warehouse/community/need records.
type PlanFromStoreRequest struct {
	ParishIDs    []string           `json:"parishIds,omitempty"`
	CommunityIDs []string           `json:"communityIds,omitempty"`
	Constraints  Constraints        `json:"constraints"`
	RiskLayers   map[string]float64 `json:"riskLayers,omitempty"`
}

// NeedRecord is a persisted community requirement as dataset ingest
// delivers it. Urgency maps to planner priority at problem-assembly time.
type NeedRecord struct {
	CommunityID string `json:"communityId"`
	ItemCode    string `json:"itemCode"`
	Quantity    int    `json:"quantity"`
	Urgency     string `json:"urgency,omitempty"` // critical, high, medium, low
	Status      string `json:"status,omitempty"`  // open (default), fulfilled, cancelled
}

// PlanRecord is a persisted plan snapshot.
type PlanRecord struct {
	ID        string                `json:"id"`
	CreatedAt time.Time             `json:"createdAt"`
	Problem   GlobalPlanningProblem `json:"problem"`
	Result    GlobalPlanningResult  `json:"result"`
}

// PlanListItem is the lightweight row returned by GET /v1/plans.
type PlanListItem struct {
	ID                  string    `json:"id"`
	CreatedAt           time.Time `json:"createdAt"`
	TotalShipments      int       `json:"totalShipments"`
	TotalItemsAllocated int       `json:"totalItemsAllocated"`
	FulfillmentRate     float64   `json:"fulfillmentRate"`
}

// Webhook subscriptions (plan.computed notifications).
type SubscriptionRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret"`
}

type Subscription struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Secret string   `json:"secret,omitempty"`
}
