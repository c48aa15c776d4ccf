package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"reliefplan/internal/model"
)

// Store is the persistence interface used by the API server: the relief
// dataset feeding /v1/plan/from-db, plan snapshots, and the webhook delivery
// queue.
type Store interface {
	// Relief dataset
	UpsertWarehouses(ctx context.Context, items []model.Warehouse) (int, error)
	ListWarehouses(ctx context.Context) ([]model.Warehouse, error)
	UpsertCommunities(ctx context.Context, items []model.Community) (int, error)
	ListCommunities(ctx context.Context) ([]model.Community, error)
	UpsertNeeds(ctx context.Context, items []model.NeedRecord) (int, error)
	ListNeeds(ctx context.Context) ([]model.NeedRecord, error)

	// Problem assembly for /v1/plan/from-db
	LoadProblem(ctx context.Context, filter ProblemFilter) (model.GlobalPlanningProblem, error)

	// Plan snapshots
	SavePlan(ctx context.Context, problem model.GlobalPlanningProblem, result model.GlobalPlanningResult) (model.PlanRecord, error)
	GetPlan(ctx context.Context, id string) (model.PlanRecord, error)
	ListPlans(ctx context.Context, cursor string, limit int) ([]model.PlanListItem, string, error)

	// Webhook subscriptions and delivery queue
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, id string) error
	EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
}

// ProblemFilter narrows the dataset loaded for problem assembly. Empty
// slices mean no filtering on that dimension.
type ProblemFilter struct {
	ParishIDs    []string
	CommunityIDs []string
}

var ErrNotFound = errors.New("not found")

// UrgencyPriority maps a persisted need's urgency label to a planner
// priority. Unknown labels rank after the named tiers.
func UrgencyPriority(urgency string) int {
	switch strings.ToLower(urgency) {
	case "critical":
		return 1
	case "high":
		return 2
	case "medium":
		return 3
	case "low":
		return 4
	default:
		return 5
	}
}
