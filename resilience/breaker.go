package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Allow while the breaker is shedding load.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState enumerates the three circuit breaker states.
type BreakerState int

const (
	// StateClosed is normal operation; failures are counted.
	StateClosed BreakerState = iota
	// StateOpen rejects all calls until the recovery timeout elapses.
	StateOpen
	// StateHalfOpen permits exactly one trial call.
	StateHalfOpen
)

// String returns the string representation of the breaker state.
func (s BreakerState) String() string {
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

// CircuitBreaker trips open after FailureThreshold consecutive failures and
// sheds load until RecoveryTimeout elapses, then admits a single trial call.
// The breaker is shared state across all callers of the same backend
// endpoint; every transition happens under one mutex so concurrent callers
// cannot race into inconsistent states.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	recoveryTimeout  time.Duration

	state         BreakerState
	failures      int
	openedAt      time.Time
	trialInFlight bool

	// now is replaceable in tests.
	now func() time.Time
}

// NewCircuitBreaker constructs a closed breaker. A failureThreshold < 1 is
// coerced to 1.
func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTimeout:  recoveryTimeout,
		now:              time.Now,
	}
}

// Allow reports whether a call may proceed. While open it returns
// ErrCircuitOpen until the recovery timeout elapses, at which point the
// breaker transitions to half-open and admits exactly one trial; further
// calls are gated until that trial is recorded.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.recoveryTimeout {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.trialInFlight = true
		return nil
	default: // StateHalfOpen
		if cb.trialInFlight {
			return ErrCircuitOpen
		}
		cb.trialInFlight = true
		return nil
	}
}

// Record reports the outcome of a call previously admitted by Allow. Success
// closes the breaker and resets the failure counter; failure either counts
// toward the threshold (closed) or reopens the breaker and restarts the
// recovery timeout (half-open).
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.state = StateClosed
		cb.failures = 0
		cb.trialInFlight = false
		return
	}

	switch cb.state {
	case StateHalfOpen:
		cb.state = StateOpen
		cb.openedAt = cb.now()
		cb.trialInFlight = false
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = StateOpen
			cb.openedAt = cb.now()
		}
	}
}

// Abandon releases the half-open trial slot when a call admitted by Allow
// ends without a recordable outcome, such as a context cancellation. The
// breaker stays half-open so the next caller becomes the trial.
func (cb *CircuitBreaker) Abandon() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trialInFlight = false
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
