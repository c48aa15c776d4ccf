package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"reliefplan/internal/buildinfo"
	"reliefplan/internal/metrics"
	"reliefplan/internal/model"
	"reliefplan/internal/plan"
	"reliefplan/internal/store"
)

// PlanResponse is the body returned by the planning endpoints: the computed
// result plus the identifier the plan was persisted under.
type PlanResponse struct {
	PlanID string `json:"planId"`
	model.GlobalPlanningResult
}

// PlanHandler handles POST /v1/plan with a full inline problem.
func (s *Server) PlanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var problem model.GlobalPlanningProblem
	if err := json.NewDecoder(r.Body).Decode(&problem); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	s.runPlan(w, r, problem)
}

// PlanFromStoreHandler handles POST /v1/plan/from-db: the problem is assembled
// from stored warehouses, communities and open needs, optionally scoped to
// parishes or communities.
func (s *Server) PlanFromStoreHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.PlanFromStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	problem, err := s.Store.LoadProblem(r.Context(), store.ProblemFilter{ParishIDs: req.ParishIDs, CommunityIDs: req.CommunityIDs})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load problem failed", err.Error(), r.URL.Path)
		return
	}
	problem.Constraints = req.Constraints
	problem.RiskLayers = req.RiskLayers
	s.runPlan(w, r, problem)
}

func (s *Server) runPlan(w http.ResponseWriter, r *http.Request, problem model.GlobalPlanningProblem) {
	planner := plan.NewGreedyMinCostPlanner()
	result, rm, err := planner.Plan(problem)
	if err != nil {
		var inv *plan.InvalidProblemError
		if errors.As(err, &inv) {
			metrics.PlansComputed.WithLabelValues("invalid").Inc()
			writeValidationProblem(w, "Invalid planning problem", inv.Violations, r.URL.Path)
			return
		}
		metrics.PlansComputed.WithLabelValues("error").Inc()
		writeProblem(w, http.StatusInternalServerError, "Plan failed", err.Error(), r.URL.Path)
		return
	}
	rec, err := s.Store.SavePlan(r.Context(), problem, result)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save plan failed", err.Error(), r.URL.Path)
		return
	}
	plan.RecordMetrics(rec.ID, rm)
	metrics.PlansComputed.WithLabelValues("ok").Inc()
	metrics.PlanFulfillmentRate.Observe(result.Summary.FulfillmentRate)
	metrics.PlanShipments.Add(float64(result.Summary.TotalShipments))
	metrics.PlanUnmetNeeds.Add(float64(len(result.Summary.UnmetNeeds)))
	metrics.PlanDuration.Observe(float64(rm.DurationMs) / 1000)

	data := map[string]any{
		"planId":              rec.ID,
		"totalShipments":      result.Summary.TotalShipments,
		"totalItemsAllocated": result.Summary.TotalItemsAllocated,
		"fulfillmentRate":     result.Summary.FulfillmentRate,
		"unmetNeeds":          len(result.Summary.UnmetNeeds),
		"ts":                  time.Now().UTC().Format(time.RFC3339),
	}
	evt := SSEEvent{Type: "plan.computed", Data: data}
	s.Broker.Publish(rec.ID, evt)
	s.Broker.Publish("all", evt)
	s.Pub.Emit(r.Context(), "plan.computed", data)

	writeJSON(w, http.StatusOK, PlanResponse{PlanID: rec.ID, GlobalPlanningResult: result})
}

// PlansIndexHandler handles GET /v1/plans
func (s *Server) PlansIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/plans" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListPlans(r.Context(), cursor, limit)
	if err != nil {
		writeProblem(w, 500, "List plans failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// PlanByIDHandler handles GET /v1/plans/{id} and GET /v1/plans/{id}/events/stream
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/plans/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) > 1 && parts[1] == "events" && len(parts) > 2 && parts[2] == "stream" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		ch := s.Broker.Subscribe(id)
		defer s.Broker.Unsubscribe(id, ch)
		// initial heartbeat
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"planId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
		flusher.Flush()
		notify := r.Context().Done()
		for {
			select {
			case <-notify:
				return
			case evt := <-ch:
				b, _ := json.Marshal(evt.Data)
				fmt.Fprintf(w, "event: %s\n", evt.Type)
				fmt.Fprintf(w, "data: %s\n\n", string(b))
				flusher.Flush()
			case <-time.After(15 * time.Second):
				fmt.Fprintf(w, "event: heartbeat\n")
				fmt.Fprintf(w, "data: {\"planId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
				flusher.Flush()
			}
		}
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rec, err := s.Store.GetPlan(r.Context(), id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Plan not found", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// WarehousesHandler handles PUT/GET /v1/warehouses
func (s *Server) WarehousesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Items []model.Warehouse `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		n, err := s.Store.UpsertWarehouses(r.Context(), req.Items)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Upsert warehouses failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"upserted": n})
	case http.MethodGet:
		items, err := s.Store.ListWarehouses(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List warehouses failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// CommunitiesHandler handles PUT/GET /v1/communities
func (s *Server) CommunitiesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Items []model.Community `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		n, err := s.Store.UpsertCommunities(r.Context(), req.Items)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Upsert communities failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"upserted": n})
	case http.MethodGet:
		items, err := s.Store.ListCommunities(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List communities failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// NeedsHandler handles PUT/GET /v1/needs
func (s *Server) NeedsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Items []model.NeedRecord `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		n, err := s.Store.UpsertNeeds(r.Context(), req.Items)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Upsert needs failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"upserted": n})
	case http.MethodGet:
		items, err := s.Store.ListNeeds(r.Context())
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List needs failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListSubscriptions(r.Context(), cursor, limit)
		if err != nil {
			writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(405)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), id); err != nil {
		status := 500
		title := "Delete subscription failed"
		if errors.Is(err, store.ErrNotFound) {
			status, title = 404, "Subscription not found"
		}
		writeProblem(w, status, title, err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(204)
}

// PlanMetricsHandler handles GET /v1/admin/plan-metrics?planId=
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/plan-metrics" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	planID := r.URL.Query().Get("planId")
	if planID == "" {
		writeProblem(w, 400, "Missing planId", "", r.URL.Path)
		return
	}
	m, ok := plan.GetMetrics(planID)
	if !ok {
		writeProblem(w, 404, "Metrics not found", "no run metrics for plan", r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"planId": planID, "metrics": m})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok", "version": buildinfo.Version})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
