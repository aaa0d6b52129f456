package helpers

import (
	"context"
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type SyncError struct {
	Message string
	Cause   error
}

func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Helper to define distinct error types for type assertions if needed
type ConfigurationError struct{ SyncError }
type NetworkError struct{ SyncError }
type FeedError struct{ SyncError }
type BackendError struct{ SyncError }
type ValidationError struct{ SyncError }

// -----------------------------------------------------------------------------
// Timeouts
// -----------------------------------------------------------------------------

// ErrTimedOut marks an external call that hit its deadline. It surfaces
// through the same error-flag path as any other fetch failure.
var ErrTimedOut = errors.New("request timed out")

// ErrNotRunning marks an operation against a component that is closed or was
// never started.
var ErrNotRunning = errors.New("component is not running")

// -----------------------------------------------------------------------------

// WrapTimeout converts a context deadline expiry into ErrTimedOut so callers
// can branch on the kind without inspecting context internals.
func WrapTimeout(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{SyncError{Message: op, Cause: ErrTimedOut}}
	}
	return err
}

// -----------------------------------------------------------------------------

// IsTimeout reports whether err is (or wraps) ErrTimedOut.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimedOut) || errors.Is(err, context.DeadlineExceeded)
}
