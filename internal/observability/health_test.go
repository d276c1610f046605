package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if status.Status != "healthy" || status.Service != ServiceName {
		t.Errorf("Unexpected health body: %+v", status)
	}
}

func TestReadinessHandler(t *testing.T) {
	ok := Check{Name: "pool", Func: func(ctx context.Context) (bool, error) { return true, nil }}
	down := Check{Name: "captions", Func: func(ctx context.Context) (bool, error) {
		return false, errors.New("circuit breaker open")
	}}
	details := func() map[string]int { return map[string]int{"queue_depth": 3, "queue_capacity": 10} }

	tests := []struct {
		name       string
		checks     []Check
		wantCode   int
		wantStatus string
	}{
		{"all healthy", []Check{ok}, http.StatusOK, "ready"},
		{"one unhealthy", []Check{ok, down}, http.StatusServiceUnavailable, "not_ready"},
		{"no checks", nil, http.StatusOK, "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ReadinessHandler(details, tt.checks...)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Expected %d, got %d", tt.wantCode, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected application/json, got %q", ct)
			}

			var status HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("Expected status %q, got %q", tt.wantStatus, status.Status)
			}
			if status.Details["queue_capacity"] != 10 {
				t.Errorf("Expected queue_capacity 10, got %v", status.Details)
			}
			if len(status.Dependencies) != len(tt.checks) {
				t.Errorf("Expected %d dependencies, got %d", len(tt.checks), len(status.Dependencies))
			}
		})
	}
}
