package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"reliefplan/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
// Insertion order is preserved so problem assembly stays deterministic.
type Memory struct {
	mu          sync.Mutex
	warehouses  map[string]model.Warehouse
	whOrder     []string
	communities map[string]model.Community
	cmOrder     []string
	needs       map[string]model.NeedRecord // key: communityId|itemCode
	needOrder   []string
	plans       map[string]model.PlanRecord
	planOrder   []string
	subs        []model.Subscription
	deliveries  map[string]*memDelivery
	delOrder    []string
}

func NewMemory() *Memory {
	return &Memory{
		warehouses:  map[string]model.Warehouse{},
		communities: map[string]model.Community{},
		needs:       map[string]model.NeedRecord{},
		plans:       map[string]model.PlanRecord{},
		deliveries:  map[string]*memDelivery{},
	}
}

// memDelivery augments WebhookDelivery with scheduling state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
}

func (m *Memory) UpsertWarehouses(ctx context.Context, items []model.Warehouse) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range items {
		if _, ok := m.warehouses[w.ID]; !ok {
			m.whOrder = append(m.whOrder, w.ID)
		}
		m.warehouses[w.ID] = w
	}
	return len(items), nil
}

func (m *Memory) ListWarehouses(ctx context.Context) ([]model.Warehouse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Warehouse, 0, len(m.whOrder))
	for _, id := range m.whOrder {
		out = append(out, m.warehouses[id])
	}
	return out, nil
}

func (m *Memory) UpsertCommunities(ctx context.Context, items []model.Community) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range items {
		if _, ok := m.communities[c.ID]; !ok {
			m.cmOrder = append(m.cmOrder, c.ID)
		}
		m.communities[c.ID] = c
	}
	return len(items), nil
}

func (m *Memory) ListCommunities(ctx context.Context) ([]model.Community, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Community, 0, len(m.cmOrder))
	for _, id := range m.cmOrder {
		out = append(out, m.communities[id])
	}
	return out, nil
}

func (m *Memory) UpsertNeeds(ctx context.Context, items []model.NeedRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range items {
		key := n.CommunityID + "|" + n.ItemCode
		if _, ok := m.needs[key]; !ok {
			m.needOrder = append(m.needOrder, key)
		}
		m.needs[key] = n
	}
	return len(items), nil
}

func (m *Memory) ListNeeds(ctx context.Context) ([]model.NeedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.NeedRecord, 0, len(m.needOrder))
	for _, key := range m.needOrder {
		out = append(out, m.needs[key])
	}
	return out, nil
}

func (m *Memory) LoadProblem(ctx context.Context, filter ProblemFilter) (model.GlobalPlanningProblem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parishes := toSet(filter.ParishIDs)
	wanted := toSet(filter.CommunityIDs)

	var problem model.GlobalPlanningProblem
	for _, id := range m.whOrder {
		w := m.warehouses[id]
		if parishes != nil && !parishes[w.ParishID] {
			continue
		}
		problem.Warehouses = append(problem.Warehouses, w)
	}
	included := map[string]bool{}
	for _, id := range m.cmOrder {
		c := m.communities[id]
		if parishes != nil && !parishes[c.ParishID] {
			continue
		}
		if wanted != nil && !wanted[c.ID] {
			continue
		}
		problem.Communities = append(problem.Communities, c)
		included[c.ID] = true
	}
	for _, key := range m.needOrder {
		n := m.needs[key]
		if !included[n.CommunityID] {
			continue
		}
		if n.Quantity <= 0 || (n.Status != "" && n.Status != "open") {
			continue
		}
		problem.CommunityNeeds = append(problem.CommunityNeeds, model.CommunityNeed{
			CommunityID: n.CommunityID,
			ItemCode:    n.ItemCode,
			Quantity:    n.Quantity,
			Priority:    UrgencyPriority(n.Urgency),
		})
	}
	return problem, nil
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	s := map[string]bool{}
	for _, id := range ids {
		s[id] = true
	}
	return s
}

func (m *Memory) SavePlan(ctx context.Context, problem model.GlobalPlanningProblem, result model.GlobalPlanningResult) (model.PlanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := model.PlanRecord{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Problem:   problem,
		Result:    result,
	}
	m.plans[rec.ID] = rec
	m.planOrder = append(m.planOrder, rec.ID)
	return rec, nil
}

func (m *Memory) GetPlan(ctx context.Context, id string) (model.PlanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.plans[id]
	if !ok {
		return model.PlanRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) ListPlans(ctx context.Context, cursor string, limit int) ([]model.PlanListItem, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		for i, id := range m.planOrder {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	out := []model.PlanListItem{}
	for i := start; i < len(m.planOrder) && len(out) < limit; i++ {
		rec := m.plans[m.planOrder[i]]
		out = append(out, model.PlanListItem{
			ID:                  rec.ID,
			CreatedAt:           rec.CreatedAt,
			TotalShipments:      rec.Result.Summary.TotalShipments,
			TotalItemsAllocated: rec.Result.Summary.TotalItemsAllocated,
			FulfillmentRate:     rec.Result.Summary.FulfillmentRate,
		})
	}
	next := ""
	if len(out) == limit && start+len(out) < len(m.planOrder) {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs = append(m.subs, s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		for i := range m.subs {
			if m.subs[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(m.subs) {
		end = len(m.subs)
	}
	items := append([]model.Subscription(nil), m.subs[start:end]...)
	next := ""
	if end < len(m.subs) {
		next = m.subs[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Subscription, 0, len(m.subs))
	found := false
	for _, s := range m.subs {
		if s.ID != id {
			out = append(out, s)
		} else {
			found = true
		}
	}
	m.subs = out
	if !found {
		return ErrNotFound
	}
	return nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{ID: id, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"},
		NextAttemptAt:   time.Now(),
	}
	m.delOrder = append(m.delOrder, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.delOrder {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
	} else {
		d.Status = "retry"
		d.LastError = lastError
		if nextAttemptAt != nil {
			d.NextAttemptAt = *nextAttemptAt
		} else {
			d.NextAttemptAt = time.Now().Add(1 * time.Minute)
		}
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d != nil {
		d.Status = "failed"
		d.LastError = lastError
		d.ResponseCode = responseCode
		d.LatencyMs = latencyMs
	}
	return nil
}
