package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const (
	ServiceName = "tldr"
	Version     = "1.0.0"

	readinessTimeout = 5 * time.Second
)

// HealthStatus is the JSON body of /health and /ready.
type HealthStatus struct {
	Status       string                      `json:"status"`
	Service      string                      `json:"service"`
	Version      string                      `json:"version"`
	Timestamp    string                      `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
	Details      map[string]int              `json:"details,omitempty"`
}

type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

// HealthCheckFunc reports whether one dependency is usable.
type HealthCheckFunc func(ctx context.Context) (bool, error)

// Check is a named readiness check.
type Check struct {
	Name string
	Func HealthCheckFunc
}

// DetailsFunc supplies numeric gauges, such as queue depth, for the readiness body.
type DetailsFunc func() map[string]int

func newStatus(state string) HealthStatus {
	return HealthStatus{
		Status:    state,
		Service:   ServiceName,
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// HealthCheckHandler answers liveness probes. It never consults dependencies.
func HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, newStatus("healthy"))
	}
}

// ReadinessHandler runs every check and answers 503 when any of them fails.
func ReadinessHandler(details DetailsFunc, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := newStatus("ready")
		status.Dependencies = make(map[string]DependencyStatus, len(checks))
		code := http.StatusOK
		for _, check := range checks {
			if check.Func == nil {
				continue
			}
			dep := probe(ctx, check.Func)
			if dep.Status != "healthy" {
				status.Status = "not_ready"
				code = http.StatusServiceUnavailable
			}
			status.Dependencies[check.Name] = dep
		}
		if details != nil {
			status.Details = details()
		}
		writeStatus(w, code, status)
	}
}

func probe(ctx context.Context, check HealthCheckFunc) DependencyStatus {
	start := time.Now()
	healthy, err := check(ctx)
	dep := DependencyStatus{Status: "healthy", LatencyMs: time.Since(start).Milliseconds()}
	if err != nil || !healthy {
		dep.Status = "unhealthy"
	}
	if err != nil {
		dep.Message = err.Error()
	}
	return dep
}

func writeStatus(w http.ResponseWriter, code int, status HealthStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
