package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced conversation, message,
	// repository or user does not exist
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when an authenticated user is not authorized
	// for the requested action
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized is returned when the request carries a missing or
	// invalid credential
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation is returned for malformed payloads before they reach the
	// queue or the store
	ErrValidation = errors.New("validation failed")

	// ErrQueueUnavailable is returned when the queue backend cannot be reached
	ErrQueueUnavailable = errors.New("queue backend unavailable")

	// ErrUnknownQueue is returned for queue control operations naming a queue
	// that does not exist
	ErrUnknownQueue = errors.New("unknown queue")
)

// ExternalServiceError wraps failures from the email provider or the GitHub
// API. Job processors propagate it so the queue retries per policy.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Service, e.Err.Error())
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// NewExternalServiceError wraps err as a failure of the named external service
func NewExternalServiceError(service string, err error) error {
	return &ExternalServiceError{Service: service, Err: err}
}

// IsNotFound reports whether err signals a missing record
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRetryable reports whether a job processing error should be retried by the
// queue. Validation and authorization failures are terminal; everything else
// (external services, store errors) is considered transient.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnauthorized) {
		return false
	}
	return true
}
