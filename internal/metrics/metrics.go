package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PlansComputed counts planner runs by outcome
	PlansComputed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "plans_computed_total", Help: "Planner runs by outcome."},
		[]string{"outcome"},
	)
	// PlanFulfillmentRate tracks the fulfillment rate of each computed plan
	PlanFulfillmentRate = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "plan_fulfillment_rate", Help: "Fulfillment rate per computed plan.", Buckets: []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 0.95, 0.99, 1}},
	)
	// PlanShipments counts shipments emitted across all plans
	PlanShipments = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "plan_shipments_total", Help: "Shipments emitted across all computed plans."},
	)
	// PlanUnmetNeeds counts needs left unmet across all plans
	PlanUnmetNeeds = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "plan_unmet_needs_total", Help: "Needs left fully or partially unmet across all computed plans."},
	)
	// PlanDuration records planner run durations in seconds
	PlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "plan_duration_seconds", Help: "Planner run duration in seconds.", Buckets: prometheus.DefBuckets},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(PlansComputed)
		Registry.MustRegister(PlanFulfillmentRate)
		Registry.MustRegister(PlanShipments)
		Registry.MustRegister(PlanUnmetNeeds)
		Registry.MustRegister(PlanDuration)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
