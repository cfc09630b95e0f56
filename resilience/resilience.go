// Package resilience wraps fallible remote calls with bounded retry
// (exponential backoff plus jitter) and a circuit breaker that sheds load
// after sustained failure. The Executor is a decorator around an operation,
// not a base type: wrap any call site, or use WrapModel for the backend
// client boundary.
package resilience

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/model"
)

// RetryConfig controls the bounded retry policy applied to transient failures.
type RetryConfig struct {
	MaxRetries   int           // retry attempts after the initial call (0 = no retry)
	InitialDelay time.Duration // backoff for the first retry
	MaxDelay     time.Duration // backoff cap before jitter
	Base         float64       // exponential growth factor
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Base:         2.0,
	}
}

// RetryExhaustedError reports that every permitted attempt failed. It wraps
// the last failure so the loop can distinguish exhaustion from an open
// breaker.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap exposes the last failure for errors.Is / errors.As.
func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// Options configures an Executor.
type Options struct {
	Retry     RetryConfig
	Breaker   *CircuitBreaker                                   // nil = no breaker
	Retryable func(error) bool                                  // defaults to model.IsTransient
	OnRetry   func(attempt int, err error, delay time.Duration) // observer hook
	Logger    logging.Logger
}

// Executor applies the retry policy and breaker gating to one logical remote
// call per Call invocation. It is safe for concurrent use; the breaker is the
// only shared mutable state and serializes its own transitions.
type Executor struct {
	retry     RetryConfig
	breaker   *CircuitBreaker
	retryable func(error) bool
	onRetry   func(attempt int, err error, delay time.Duration)
	logger    logging.Logger

	// sleep is replaceable in tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor constructs an Executor with optional overrides.
func NewExecutor(optFns ...func(o *Options)) *Executor {
	opts := Options{
		Retry:     DefaultRetryConfig(),
		Retryable: model.IsTransient,
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{
		retry:     opts.Retry,
		breaker:   opts.Breaker,
		retryable: opts.Retryable,
		onRetry:   opts.OnRetry,
		logger:    opts.Logger,
		sleep:     sleepContext,
	}
}

// Call runs op, retrying retryable failures up to MaxRetries times. An open
// breaker rejects immediately with ErrCircuitOpen; breaker rejection is never
// retried. A non-retryable failure returns as-is; exhausting retries returns
// *RetryExhaustedError wrapping the last failure.
func (e *Executor) Call(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= e.retry.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.breaker != nil {
			if err := e.breaker.Allow(); err != nil {
				return err
			}
		}

		err := op(ctx)
		if e.breaker != nil {
			// A cancelled call says nothing about backend health; release the
			// trial slot instead of recording an outcome.
			if ctx.Err() != nil {
				e.breaker.Abandon()
			} else {
				e.breaker.Record(err)
			}
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if !e.retryable(err) {
			return err
		}
		if attempt == e.retry.MaxRetries {
			break
		}

		delay := e.backoff(attempt)
		e.logger.Warn("resilience.retry", "attempt", attempt+1, "delay_ms", delay.Milliseconds(), "error", err.Error())
		if e.onRetry != nil {
			e.onRetry(attempt+1, err, delay)
		}
		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return &RetryExhaustedError{Attempts: e.retry.MaxRetries + 1, Err: lastErr}
}

// backoff computes min(MaxDelay, InitialDelay * Base^attempt) plus random
// jitter in [0, delay).
func (e *Executor) backoff(attempt int) time.Duration {
	base := e.retry.Base
	if base <= 1 {
		base = 2.0
	}

	delay := float64(e.retry.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= base
	}
	d := time.Duration(delay)
	if e.retry.MaxDelay > 0 && d > e.retry.MaxDelay {
		d = e.retry.MaxDelay
	}
	if d > 0 {
		d += time.Duration(rand.Int64N(int64(d)))
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WrapModel decorates a backend model so every Generate call goes through the
// executor's retry and breaker policy.
func (e *Executor) WrapModel(next model.Model) model.Model {
	return &resilientModel{next: next, exec: e}
}

type resilientModel struct {
	next model.Model
	exec *Executor
}

func (m *resilientModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	var resp *model.Response
	err := m.exec.Call(ctx, func(ctx context.Context) error {
		r, err := m.next.Generate(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (m *resilientModel) Info() model.Info { return m.next.Info() }
