package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Acceptor metrics
	connectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tldr_connections_accepted_total",
		Help: "Total number of accepted TCP connections",
	})

	connectionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tldr_connections_rejected_total",
		Help: "Connections answered by the acceptor without reaching a worker",
	}, []string{"reason"}) // reason: "queue_full" or "pool_closed"

	inlineResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tldr_inline_responses_total",
		Help: "Requests served directly on the acceptor goroutine",
	})

	// Queue and pool metrics
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tldr_queue_depth",
		Help: "Connections waiting in the work queue",
	})

	workersBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tldr_workers_busy",
		Help: "Workers currently handling a connection",
	})

	queueWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tldr_queue_wait_seconds",
		Help:    "Time between accept and a worker picking the connection up",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// Request metrics
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tldr_requests_total",
		Help: "Total number of responses written",
	}, []string{"route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tldr_request_duration_seconds",
		Help:    "Time from dequeue to response flush",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"route"})

	framingErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tldr_framing_errors_total",
		Help: "Requests rejected by the frame reader",
	}, []string{"kind"})

	// Upstream metrics
	upstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tldr_upstream_requests_total",
		Help: "Total number of upstream calls",
	}, []string{"service", "status"})

	upstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tldr_upstream_latency_seconds",
		Help:    "Upstream call latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0, 120.0},
	}, []string{"service"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tldr_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tldr_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tldr_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// RequestMetrics tracks metrics for a single work item. It is owned by the
// worker handling the item and is not safe for concurrent use.
type RequestMetrics struct {
	requestID string
	accepted  time.Time
	started   time.Time
}

// NewRequestMetrics starts tracking an item that was accepted at the given time
func NewRequestMetrics(requestID string, accepted time.Time) *RequestMetrics {
	now := time.Now()
	if !accepted.IsZero() {
		queueWait.Observe(now.Sub(accepted).Seconds())
	}
	return &RequestMetrics{
		requestID: requestID,
		accepted:  accepted,
		started:   now,
	}
}

// RecordResponse records the response written for the item
func (m *RequestMetrics) RecordResponse(route string, status int) {
	requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(route).Observe(time.Since(m.started).Seconds())
}

// Elapsed returns the time since the worker picked the item up
func (m *RequestMetrics) Elapsed() time.Duration {
	return time.Since(m.started)
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordFramingError records a request rejected by the frame reader
func RecordFramingError(kind string) {
	framingErrors.WithLabelValues(kind).Inc()
}

// RecordAccepted records an accepted connection
func RecordAccepted() {
	connectionsAccepted.Inc()
}

// RecordRejected records a connection the acceptor answered itself
func RecordRejected(reason string) {
	connectionsRejected.WithLabelValues(reason).Inc()
}

// RecordInline records a request the acceptor served inline
func RecordInline() {
	inlineResponses.Inc()
}

// SetQueueDepth publishes the current queue length
func SetQueueDepth(depth int) {
	queueDepth.Set(float64(depth))
}

// WorkerStarted marks a worker as busy
func WorkerStarted() {
	workersBusy.Inc()
}

// WorkerFinished marks a worker as idle
func WorkerFinished() {
	workersBusy.Dec()
}

// RecordUpstream records one upstream call that began at start
func RecordUpstream(service string, start time.Time, err error) {
	upstreamLatency.WithLabelValues(service).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	upstreamRequests.WithLabelValues(service, status).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
