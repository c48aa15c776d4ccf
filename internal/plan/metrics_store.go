package plan

import "sync"

// In-memory per-plan solver metrics, served by the admin metrics endpoint.

var (
	mu    sync.Mutex
	store = map[string]RunMetrics{}
)

func RecordMetrics(planID string, m RunMetrics) {
	mu.Lock()
	store[planID] = m
	mu.Unlock()
}

func GetMetrics(planID string) (RunMetrics, bool) {
	mu.Lock()
	defer mu.Unlock()
	m, ok := store[planID]
	return m, ok
}
