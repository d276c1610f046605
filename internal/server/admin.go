package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/tldr/internal/observability"
)

// AdminServer builds the net/http listener for /health, /ready and, when
// metrics are enabled, /metrics. Readiness covers the pool and every check
// passed in Deps.
func (s *Server) AdminServer() *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	checks := append([]observability.Check{{Name: "pool", Func: s.Ready}}, s.checks...)
	mux.HandleFunc("/ready", observability.ReadinessHandler(s.Details, checks...))

	if s.cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		s.logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	return &http.Server{
		Addr:         s.cfg.AdminAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
