package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"reliefplan/internal/model"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// MigrateDir applies *.sql files from dir in lexical order. Statements are
// idempotent (CREATE ... IF NOT EXISTS), so re-running is safe.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(string(sqlBytes)); err != nil {
			return fmt.Errorf("migration %s: %w", f, err)
		}
	}
	return nil
}

func (p *Postgres) UpsertWarehouses(ctx context.Context, items []model.Warehouse) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	for _, w := range items {
		_, err = tx.ExecContext(ctx, `INSERT INTO warehouses (id, parish_id, lat, lng) VALUES ($1,$2,$3,$4)
            ON CONFLICT (id) DO UPDATE SET parish_id=EXCLUDED.parish_id, lat=EXCLUDED.lat, lng=EXCLUDED.lng`,
			w.ID, w.ParishID, w.Lat, w.Lng)
		if err != nil {
			return 0, err
		}
		// replace the inventory wholesale: the ingest payload is the source of truth
		if _, err = tx.ExecContext(ctx, `DELETE FROM warehouse_inventory WHERE warehouse_id=$1`, w.ID); err != nil {
			return 0, err
		}
		for _, line := range w.Inventory {
			_, err = tx.ExecContext(ctx, `INSERT INTO warehouse_inventory (warehouse_id, item_code, quantity) VALUES ($1,$2,$3)`,
				w.ID, line.ItemCode, line.Quantity)
			if err != nil {
				return 0, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(items), nil
}

func (p *Postgres) ListWarehouses(ctx context.Context) ([]model.Warehouse, error) {
	return p.queryWarehouses(ctx, nil)
}

func (p *Postgres) queryWarehouses(ctx context.Context, parishIDs []string) ([]model.Warehouse, error) {
	q := `SELECT id, parish_id, lat, lng FROM warehouses`
	var args []any
	if len(parishIDs) > 0 {
		q += ` WHERE parish_id = ANY($1)`
		args = append(args, parishIDs)
	}
	q += ` ORDER BY created_at, id`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Warehouse
	idx := map[string]int{}
	for rows.Next() {
		var w model.Warehouse
		if err := rows.Scan(&w.ID, &w.ParishID, &w.Lat, &w.Lng); err != nil {
			return nil, err
		}
		idx[w.ID] = len(out)
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	ids := make([]string, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	inv, err := p.db.QueryContext(ctx, `SELECT warehouse_id, item_code, quantity FROM warehouse_inventory WHERE warehouse_id = ANY($1) ORDER BY warehouse_id, item_code`, ids)
	if err != nil {
		return nil, err
	}
	defer inv.Close()
	for inv.Next() {
		var wid string
		var line model.InventoryLine
		if err := inv.Scan(&wid, &line.ItemCode, &line.Quantity); err != nil {
			return nil, err
		}
		if i, ok := idx[wid]; ok {
			out[i].Inventory = append(out[i].Inventory, line)
		}
	}
	return out, inv.Err()
}

func (p *Postgres) UpsertCommunities(ctx context.Context, items []model.Community) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	for _, c := range items {
		_, err = tx.ExecContext(ctx, `INSERT INTO communities (id, parish_id, lat, lng) VALUES ($1,$2,$3,$4)
            ON CONFLICT (id) DO UPDATE SET parish_id=EXCLUDED.parish_id, lat=EXCLUDED.lat, lng=EXCLUDED.lng`,
			c.ID, c.ParishID, c.Lat, c.Lng)
		if err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(items), nil
}

func (p *Postgres) ListCommunities(ctx context.Context) ([]model.Community, error) {
	return p.queryCommunities(ctx, nil, nil)
}

func (p *Postgres) queryCommunities(ctx context.Context, parishIDs, communityIDs []string) ([]model.Community, error) {
	q := `SELECT id, parish_id, lat, lng FROM communities`
	var conds []string
	var args []any
	if len(parishIDs) > 0 {
		args = append(args, parishIDs)
		conds = append(conds, fmt.Sprintf("parish_id = ANY($%d)", len(args)))
	}
	if len(communityIDs) > 0 {
		args = append(args, communityIDs)
		conds = append(conds, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY created_at, id`
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Community
	for rows.Next() {
		var c model.Community
		if err := rows.Scan(&c.ID, &c.ParishID, &c.Lat, &c.Lng); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) UpsertNeeds(ctx context.Context, items []model.NeedRecord) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	for _, n := range items {
		status := n.Status
		if status == "" {
			status = "open"
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO community_needs (community_id, item_code, quantity, urgency, status) VALUES ($1,$2,$3,$4,$5)
            ON CONFLICT (community_id, item_code) DO UPDATE SET quantity=EXCLUDED.quantity, urgency=EXCLUDED.urgency, status=EXCLUDED.status`,
			n.CommunityID, n.ItemCode, n.Quantity, n.Urgency, status)
		if err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(items), nil
}

func (p *Postgres) ListNeeds(ctx context.Context) ([]model.NeedRecord, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT community_id, item_code, quantity, urgency, status FROM community_needs ORDER BY community_id, item_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.NeedRecord
	for rows.Next() {
		var n model.NeedRecord
		if err := rows.Scan(&n.CommunityID, &n.ItemCode, &n.Quantity, &n.Urgency, &n.Status); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *Postgres) LoadProblem(ctx context.Context, filter ProblemFilter) (model.GlobalPlanningProblem, error) {
	var problem model.GlobalPlanningProblem
	warehouses, err := p.queryWarehouses(ctx, filter.ParishIDs)
	if err != nil {
		return problem, err
	}
	communities, err := p.queryCommunities(ctx, filter.ParishIDs, filter.CommunityIDs)
	if err != nil {
		return problem, err
	}
	problem.Warehouses = warehouses
	problem.Communities = communities
	if len(communities) == 0 {
		return problem, nil
	}
	ids := make([]string, len(communities))
	for i := range communities {
		ids[i] = communities[i].ID
	}
	rows, err := p.db.QueryContext(ctx, `SELECT community_id, item_code, quantity, urgency FROM community_needs
        WHERE community_id = ANY($1) AND status = 'open' AND quantity > 0 ORDER BY community_id, item_code`, ids)
	if err != nil {
		return problem, err
	}
	defer rows.Close()
	for rows.Next() {
		var n model.NeedRecord
		if err := rows.Scan(&n.CommunityID, &n.ItemCode, &n.Quantity, &n.Urgency); err != nil {
			return problem, err
		}
		problem.CommunityNeeds = append(problem.CommunityNeeds, model.CommunityNeed{
			CommunityID: n.CommunityID,
			ItemCode:    n.ItemCode,
			Quantity:    n.Quantity,
			Priority:    UrgencyPriority(n.Urgency),
		})
	}
	return problem, rows.Err()
}

func (p *Postgres) SavePlan(ctx context.Context, problem model.GlobalPlanningProblem, result model.GlobalPlanningResult) (model.PlanRecord, error) {
	rec := model.PlanRecord{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Problem:   problem,
		Result:    result,
	}
	probJSON, err := json.Marshal(problem)
	if err != nil {
		return model.PlanRecord{}, err
	}
	resJSON, err := json.Marshal(result)
	if err != nil {
		return model.PlanRecord{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO plans (id, created_at, problem, result, total_shipments, total_items, fulfillment_rate) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID, rec.CreatedAt, probJSON, resJSON, result.Summary.TotalShipments, result.Summary.TotalItemsAllocated, result.Summary.FulfillmentRate)
	if err != nil {
		return model.PlanRecord{}, err
	}
	return rec, nil
}

func (p *Postgres) GetPlan(ctx context.Context, id string) (model.PlanRecord, error) {
	var rec model.PlanRecord
	var probJSON, resJSON []byte
	err := p.db.QueryRowContext(ctx, `SELECT id::text, created_at, problem, result FROM plans WHERE id=$1`, id).
		Scan(&rec.ID, &rec.CreatedAt, &probJSON, &resJSON)
	if err == sql.ErrNoRows {
		return model.PlanRecord{}, ErrNotFound
	}
	if err != nil {
		return model.PlanRecord{}, err
	}
	if err := json.Unmarshal(probJSON, &rec.Problem); err != nil {
		return model.PlanRecord{}, err
	}
	if err := json.Unmarshal(resJSON, &rec.Result); err != nil {
		return model.PlanRecord{}, err
	}
	return rec, nil
}

func (p *Postgres) ListPlans(ctx context.Context, cursor string, limit int) ([]model.PlanListItem, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, created_at, total_shipments, total_items, fulfillment_rate FROM plans
            WHERE created_at > (SELECT created_at FROM plans WHERE id=$1) ORDER BY created_at, id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, created_at, total_shipments, total_items, fulfillment_rate FROM plans ORDER BY created_at, id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.PlanListItem{}
	for rows.Next() {
		var it model.PlanListItem
		if err := rows.Scan(&it.ID, &it.CreatedAt, &it.TotalShipments, &it.TotalItemsAllocated, &it.FulfillmentRate); err != nil {
			return nil, "", err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	s := model.Subscription{ID: uuid.New().String(), URL: req.URL, Events: req.Events, Secret: req.Secret}
	events, err := json.Marshal(req.Events)
	if err != nil {
		return model.Subscription{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, url, events, secret) VALUES ($1,$2,$3,$4)`,
		s.ID, s.URL, events, s.Secret)
	if err != nil {
		return model.Subscription{}, err
	}
	return s, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, events, secret FROM subscriptions WHERE events ? $1`, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (p *Postgres) ListSubscriptions(ctx context.Context, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, events, secret FROM subscriptions WHERE id::text > $1 ORDER BY id LIMIT $2`, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, events, secret FROM subscriptions ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	items, err := scanSubscriptions(rows)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if len(items) == limit {
		next = items[len(items)-1].ID
	}
	return items, next, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	var out []model.Subscription
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &events, &s.Secret); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(events, &s.Events); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, subscription_id, event_type, url, secret, payload) VALUES ($1,$2,$3,$4,$5,$6)`,
		id, subscriptionID, eventType, url, secret, payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, subscription_id::text, event_type, url, secret, payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if success {
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, response_code=$2, latency_ms=$3 WHERE id=$1`,
			id, responseCode, latencyMs)
		return err
	}
	next := time.Now().Add(1 * time.Minute)
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='retry', attempts=attempts+1, next_attempt_at=$2, last_error=$3, response_code=$4, latency_ms=$5 WHERE id=$1`,
		id, next, lastError, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, response_code=$3, latency_ms=$4 WHERE id=$1`,
		id, lastError, responseCode, latencyMs)
	return err
}
