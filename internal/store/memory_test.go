package store

import (
	"context"
	"testing"

	"reliefplan/internal/model"
)

func seedMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	ctx := context.Background()
	_, err := m.UpsertWarehouses(ctx, []model.Warehouse{
		{ID: "w1", ParishID: "kingston", Lat: 17.98, Lng: -76.80,
			Inventory: []model.InventoryLine{{ItemCode: "water", Quantity: 100}}},
		{ID: "w2", ParishID: "portland", Lat: 18.18, Lng: -76.45,
			Inventory: []model.InventoryLine{{ItemCode: "tarps", Quantity: 50}}},
	})
	if err != nil {
		t.Fatalf("upsert warehouses: %v", err)
	}
	_, err = m.UpsertCommunities(ctx, []model.Community{
		{ID: "c1", ParishID: "kingston", Lat: 17.99, Lng: -76.79},
		{ID: "c2", ParishID: "portland", Lat: 18.17, Lng: -76.44},
	})
	if err != nil {
		t.Fatalf("upsert communities: %v", err)
	}
	_, err = m.UpsertNeeds(ctx, []model.NeedRecord{
		{CommunityID: "c1", ItemCode: "water", Quantity: 40, Urgency: "critical"},
		{CommunityID: "c2", ItemCode: "tarps", Quantity: 20, Urgency: "low"},
		{CommunityID: "c2", ItemCode: "water", Quantity: 10, Status: "fulfilled"},
	})
	if err != nil {
		t.Fatalf("upsert needs: %v", err)
	}
	return m
}

func TestLoadProblemFiltersParish(t *testing.T) {
	m := seedMemory(t)
	problem, err := m.LoadProblem(context.Background(), ProblemFilter{ParishIDs: []string{"kingston"}})
	if err != nil {
		t.Fatalf("load problem: %v", err)
	}
	if len(problem.Warehouses) != 1 || problem.Warehouses[0].ID != "w1" {
		t.Fatalf("warehouses: %+v", problem.Warehouses)
	}
	if len(problem.Communities) != 1 || problem.Communities[0].ID != "c1" {
		t.Fatalf("communities: %+v", problem.Communities)
	}
	if len(problem.CommunityNeeds) != 1 {
		t.Fatalf("needs: %+v", problem.CommunityNeeds)
	}
	if got := problem.CommunityNeeds[0].Priority; got != 1 {
		t.Fatalf("critical urgency should map to priority 1, got %d", got)
	}
}

func TestLoadProblemSkipsClosedAndZeroNeeds(t *testing.T) {
	m := seedMemory(t)
	problem, err := m.LoadProblem(context.Background(), ProblemFilter{})
	if err != nil {
		t.Fatalf("load problem: %v", err)
	}
	// the fulfilled water need for c2 must be excluded
	for _, n := range problem.CommunityNeeds {
		if n.CommunityID == "c2" && n.ItemCode == "water" {
			t.Fatalf("fulfilled need included: %+v", n)
		}
	}
	if len(problem.CommunityNeeds) != 2 {
		t.Fatalf("expected 2 open needs, got %+v", problem.CommunityNeeds)
	}
}

func TestLoadProblemCommunityScope(t *testing.T) {
	m := seedMemory(t)
	problem, err := m.LoadProblem(context.Background(), ProblemFilter{CommunityIDs: []string{"c2"}})
	if err != nil {
		t.Fatalf("load problem: %v", err)
	}
	// community scoping keeps all warehouses but only the named communities
	if len(problem.Warehouses) != 2 {
		t.Fatalf("warehouses: %+v", problem.Warehouses)
	}
	if len(problem.Communities) != 1 || problem.Communities[0].ID != "c2" {
		t.Fatalf("communities: %+v", problem.Communities)
	}
	if len(problem.CommunityNeeds) != 1 || problem.CommunityNeeds[0].ItemCode != "tarps" {
		t.Fatalf("needs: %+v", problem.CommunityNeeds)
	}
}

func TestUpsertOverwritesByID(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()
	_, _ = m.UpsertWarehouses(ctx, []model.Warehouse{
		{ID: "w1", ParishID: "kingston", Lat: 17.98, Lng: -76.80,
			Inventory: []model.InventoryLine{{ItemCode: "water", Quantity: 5}}},
	})
	items, _ := m.ListWarehouses(ctx)
	if len(items) != 2 {
		t.Fatalf("expected 2 warehouses after re-upsert, got %d", len(items))
	}
	if items[0].Inventory[0].Quantity != 5 {
		t.Fatalf("inventory not replaced: %+v", items[0].Inventory)
	}
}

func TestUrgencyPriority(t *testing.T) {
	cases := map[string]int{
		"critical": 1,
		"high":     2,
		"medium":   3,
		"low":      4,
		"":         5,
		"unknown":  5,
		"CRITICAL": 1,
	}
	for urgency, want := range cases {
		if got := UrgencyPriority(urgency); got != want {
			t.Errorf("UrgencyPriority(%q) = %d, want %d", urgency, got, want)
		}
	}
}

func TestPlansPagination(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := m.SavePlan(ctx, model.GlobalPlanningProblem{}, model.GlobalPlanningResult{}); err != nil {
			t.Fatalf("save plan: %v", err)
		}
	}
	first, cursor, err := m.ListPlans(ctx, "", 2)
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	if len(first) != 2 || cursor == "" {
		t.Fatalf("first page: %d items, cursor %q", len(first), cursor)
	}
	second, _, err := m.ListPlans(ctx, cursor, 2)
	if err != nil {
		t.Fatalf("list plans page 2: %v", err)
	}
	if len(second) != 2 || second[0].ID == first[1].ID {
		t.Fatalf("second page overlaps: %+v", second)
	}
}

func TestSubscriptionsForEvent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "https://a.example", Events: []string{"plan.computed"}})
	_, _ = m.CreateSubscription(ctx, model.SubscriptionRequest{URL: "https://b.example", Events: []string{"other.event"}})
	subs, err := m.GetSubscriptionsForEvent(ctx, "plan.computed")
	if err != nil {
		t.Fatalf("get subscriptions: %v", err)
	}
	if len(subs) != 1 || subs[0].URL != "https://a.example" {
		t.Fatalf("subscriptions: %+v", subs)
	}
	if err := m.DeleteSubscription(ctx, subs[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := m.DeleteSubscription(ctx, subs[0].ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
