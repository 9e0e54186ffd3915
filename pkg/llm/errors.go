package llm

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// CapacityError signals that the remote endpoint rejected the call for
// capacity reasons. Retryable with the long backoff path, since capacity
// clears on the provider's schedule, not ours.
type CapacityError struct {
	StatusCode int
	Message    string

	// RetryAfter is the provider's hint, when one was sent.
	RetryAfter time.Duration
}

func (e *CapacityError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("capacity exceeded (HTTP %d): %s (retry after %v)",
			e.StatusCode, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("capacity exceeded (HTTP %d): %s", e.StatusCode, e.Message)
}

// TransientError signals a failure expected to clear quickly. Retryable
// with short backoff and bounded attempts.
type TransientError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure (HTTP %d): %s", e.StatusCode, e.Message)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// RetriesExhaustedError is raised when every retryable attempt failed.
// It is a distinct kind, not the last underlying error; that error is
// available via Unwrap.
type RetriesExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.LastErr
}

// IsCapacity reports whether err is a capacity-exceeded failure.
func IsCapacity(err error) bool {
	var ce *CapacityError
	return errors.As(err, &ce)
}

// IsTransient reports whether err is a generic transient failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsRetriesExhausted reports whether err is the synthetic exhaustion kind.
func IsRetriesExhausted(err error) bool {
	var re *RetriesExhaustedError
	return errors.As(err, &re)
}

// classifyStatus maps an HTTP status code to the failure taxonomy.
// 429 and 529 are capacity signals; request timeouts and server errors
// are transient; anything else is fatal and not retried.
func classifyStatus(statusCode int, message string, retryAfter time.Duration) error {
	switch statusCode {
	case http.StatusTooManyRequests, 529:
		return &CapacityError{StatusCode: statusCode, Message: message, RetryAfter: retryAfter}
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return &TransientError{StatusCode: statusCode, Message: message}
	default:
		return fmt.Errorf("model request failed (HTTP %d): %s", statusCode, message)
	}
}
