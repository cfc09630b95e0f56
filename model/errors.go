package model

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransientError marks a backend failure worth retrying: timeouts,
// 5xx-equivalent responses, connection resets. The resilience layer unwraps
// the cause for diagnostics.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient backend error: %v", e.Err) }

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a backend failure that retrying cannot fix: malformed
// requests, authentication, exceeded quotas with hard denial.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal backend error: %v", e.Err) }

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *FatalError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Fatal wraps err as non-retryable. Returns nil for a nil err.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsTransient reports whether err should be retried. Unclassified network
// timeouts count as transient; context cancellation never does.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ClassifyStatus maps an HTTP status code onto the transient/fatal taxonomy.
// Used by provider adapters that surface status codes.
func ClassifyStatus(status int, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case status == 408 || status == 429 || status >= 500:
		return Transient(err)
	case status >= 400:
		return Fatal(err)
	default:
		return err
	}
}
