package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/lexiqai/tldr/internal/observability"
)

// ErrOpen is returned while the circuit refuses calls.
var ErrOpen = errors.New("circuit breaker is open")

// defaultTrials is how many probe calls a half-open circuit admits, and how
// many of them must succeed before it closes again.
const defaultTrials = 3

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed   CircuitState = iota // calls flow
	StateOpen                         // calls are refused
	StateHalfOpen                     // a few probe calls are admitted
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of a breaker's counters since creation or the last Reset.
type Stats struct {
	State    CircuitState
	Requests int64
	Failures int64
}

// FailureRate is the share of failed calls as a percentage.
func (s Stats) FailureRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Requests) * 100
}

// CircuitBreaker guards one upstream. It opens after a run of consecutive
// failures and never retries; a refused call fails with ErrOpen.
type CircuitBreaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	trials    int
	now       func() time.Time

	mu       sync.RWMutex
	state    CircuitState
	streak   int // consecutive failures while closed
	admitted int // probes let through while half-open
	passed   int // probes that succeeded while half-open
	openedAt time.Time
	requests int64
	failures int64
}

// NewCircuitBreaker returns a closed breaker that opens after maxFailures
// consecutive failures and probes again once resetTimeout has passed.
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	observability.UpdateCircuitBreakerState(name, int(StateClosed))
	return &CircuitBreaker{
		name:      name,
		threshold: maxFailures,
		cooldown:  resetTimeout,
		trials:    defaultTrials,
		now:       time.Now,
	}
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Call runs fn if the circuit admits it. Every error from fn counts as a failure.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn()
	cb.RecordResult(err == nil)
	return err
}

// Allow reports whether a call may proceed. A nil return obliges the caller
// to report the outcome with RecordResult.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.cooledDown() {
		cb.transition(StateHalfOpen)
	}

	switch cb.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if cb.admitted >= cb.trials {
			return ErrOpen
		}
		cb.admitted++
		return nil
	default:
		return ErrOpen
	}
}

// RecordResult feeds the outcome of an admitted call back into the breaker.
func (cb *CircuitBreaker) RecordResult(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requests++
	if !success {
		cb.failures++
		cb.openedAt = cb.now()
		observability.IncrementCircuitBreakerFailures(cb.name)
	}

	switch cb.state {
	case StateClosed:
		if success {
			cb.streak = 0
			return
		}
		cb.streak++
		if cb.streak >= cb.threshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		if !success {
			cb.transition(StateOpen)
			return
		}
		cb.passed++
		if cb.passed >= cb.trials {
			cb.transition(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) cooledDown() bool {
	return cb.now().Sub(cb.openedAt) >= cb.cooldown
}

// transition moves to next and clears the per-state counters. mu must be held.
func (cb *CircuitBreaker) transition(next CircuitState) {
	cb.streak, cb.admitted, cb.passed = 0, 0, 0
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	observability.UpdateCircuitBreakerState(cb.name, int(next))

	logger := observability.GetLogger()
	logger.Warn().
		Str("service", cb.name).
		Str("from", prev.String()).
		Str("to", next.String()).
		Msg("Circuit breaker state changed")
}

// GetState returns the current state without advancing an expired open circuit.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Healthy reports whether the next call would be considered. An open
// circuit past its reset timeout counts as healthy.
func (cb *CircuitBreaker) Healthy() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state != StateOpen || cb.cooledDown()
}

func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return Stats{State: cb.state, Requests: cb.requests, Failures: cb.failures}
}

// Reset closes the circuit and zeroes its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.requests, cb.failures = 0, 0
}
