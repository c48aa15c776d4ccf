package api

import (
	"encoding/json"
	"net/http"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// ValidationProblem extends Problem with the full list of violations so
// callers can fix every input defect in one round trip.
type ValidationProblem struct {
	Problem
	Violations []string `json:"violations"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

func writeValidationProblem(w http.ResponseWriter, title string, violations []string, instance string) {
	writeJSON(w, http.StatusBadRequest, ValidationProblem{
		Problem: Problem{
			Type:     "about:blank",
			Title:    title,
			Status:   http.StatusBadRequest,
			Instance: instance,
		},
		Violations: violations,
	})
}
