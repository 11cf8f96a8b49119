package models

import (
	"fmt"
	"time"
)

// ValidationError rejects bad input at creation time. Never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InvalidStateError rejects a transition on a terminal schedule.
type InvalidStateError struct {
	Current string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("operation not allowed in state %q", e.Current)
}

// TokenExpiredError is raised by an adapter before attempting the network
// call when the account token has already expired.
type TokenExpiredError struct {
	Platform  string
	ExpiredAt time.Time
}

func (e *TokenExpiredError) Error() string {
	return fmt.Sprintf("%s token expired at %s", e.Platform, e.ExpiredAt.Format(time.RFC3339))
}

// PublishError wraps any failure returned by a platform API. Retried per the
// retry policy.
type PublishError struct {
	Platform string
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publishing to %s failed: %v", e.Platform, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
