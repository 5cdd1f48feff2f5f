// Package resilience guards the LLM calls of the notes stage.
//
// [CircuitBreaker] stops calling a backend that keeps failing and lets a
// single trial call through once it has cooled down. [FallbackGroup] pairs a
// primary backend with ordered fallbacks, each behind its own breaker, and
// [LLMFallback] exposes such a group as an llm.Provider.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down has passed.
	StateOpen
	// StateHalfOpen admits one trial call. Its outcome closes or re-opens
	// the breaker.
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
	}
	return "unknown"
}

// CircuitBreakerConfig tunes a [CircuitBreaker].
type CircuitBreakerConfig struct {
	// Name labels log lines.
	Name string
	// MaxFailures consecutive failures open the breaker. Default: 3.
	MaxFailures int
	// ResetTimeout is the cool-down before a trial call. Default: 60s.
	ResetTimeout time.Duration
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// CircuitBreaker counts consecutive backend failures per notes backend.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	failures  int
	openUntil time.Time // zero while closed
	trial     bool      // a half-open trial call is in flight
}

// NewCircuitBreaker creates a closed [CircuitBreaker]. Zero-value config
// fields get defaults suited to slow LLM backends.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute runs fn unless the breaker rejects the call. An error while ctx is
// done is returned as is and leaves the failure count untouched.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	trial, err := cb.acquire()
	if err != nil {
		return err
	}

	err = fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if trial {
		cb.trial = false
	}
	switch {
	case err == nil:
		if !cb.openUntil.IsZero() {
			slog.Info("circuit breaker closed", "name", cb.cfg.Name)
		}
		cb.failures, cb.openUntil = 0, time.Time{}
	case ctx.Err() != nil:
	default:
		cb.failures++
		if trial || cb.failures >= cb.cfg.MaxFailures {
			cb.openUntil = cb.cfg.Now().Add(cb.cfg.ResetTimeout)
			slog.Warn("circuit breaker opened", "name", cb.cfg.Name, "consecutive_failures", cb.failures)
		}
	}
	return err
}

// acquire reports whether the call may run and whether it is the trial call
// of a cooled-down breaker.
func (cb *CircuitBreaker) acquire() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.stateLocked() {
	case StateOpen:
		return false, ErrCircuitOpen
	case StateHalfOpen:
		if cb.trial {
			return false, ErrCircuitOpen
		}
		cb.trial = true
		slog.Info("circuit breaker half-open", "name", cb.cfg.Name)
		return true, nil
	}
	return false, nil
}

// State returns the current [State].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() State {
	switch {
	case cb.openUntil.IsZero():
		return StateClosed
	case cb.cfg.Now().Before(cb.openUntil):
		return StateOpen
	}
	return StateHalfOpen
}
