package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pulseward/pulseward/core"
)

// ErrCircuitOpen is returned when the breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker open")

// State of a CircuitBreaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
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

// CircuitBreakerConfig tunes the breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// RecoveryTimeout is how long the circuit stays open before probing.
	RecoveryTimeout time.Duration
	// HalfOpenSuccesses closes the circuit from half-open.
	HalfOpenSuccesses int
}

// DefaultCircuitBreakerConfig suits outbound RPC to the registry and scorer.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:  5,
		RecoveryTimeout:   10 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

// CircuitBreaker trips after consecutive failures and probes recovery
// through a half-open state.
type CircuitBreaker struct {
	cfg    CircuitBreakerConfig
	logger core.Logger

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig, logger core.Logger) *CircuitBreaker {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 1
	}
	if cfg.HalfOpenSuccesses < 1 {
		cfg.HalfOpenSuccesses = 1
	}
	return &CircuitBreaker{cfg: cfg, logger: logger, state: StateClosed}
}

// State returns the current state, accounting for recovery timeout.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cfg.RecoveryTimeout {
		cb.state = StateHalfOpen
		cb.successes = 0
	}
	return cb.state
}

// Execute runs fn if the circuit allows it, recording the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	cb.mu.Lock()
	if cb.currentState() == StateOpen {
		cb.mu.Unlock()
		return ErrCircuitOpen
	}
	cb.mu.Unlock()

	err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failures++
	switch cb.state {
	case StateHalfOpen:
		cb.trip()
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.trip()
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.successes = 0
	cb.logger.Warn("circuit breaker opened", map[string]interface{}{
		"failures": cb.failures,
	})
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.cfg.HalfOpenSuccesses {
			cb.state = StateClosed
			cb.successes = 0
			cb.logger.Info("circuit breaker closed", nil)
		}
	}
}
