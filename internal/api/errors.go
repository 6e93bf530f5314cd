// Package api provides the storefront API client and its error taxonomy.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"
)

// ErrCancelled is returned when a transfer or mutation was aborted on purpose.
// It is not a failure: callers must not show an error for it.
var ErrCancelled = errors.New("cancelled")

// ErrUnauthenticated indicates no usable bearer token is available.
// Reported before any network attempt is made.
var ErrUnauthenticated = errors.New("not authenticated")

// ValidationError reports a pre-flight constraint violation.
// No network request was made and no concurrency slot was consumed.
type ValidationError struct {
	Field   string // "files", "size", "mimeType", "filename", ...
	File    string // Offending filename, empty for batch-level errors
	Message string
}

func (e *ValidationError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.File, e.Message)
	}
	return "validation failed: " + e.Message
}

// NetworkError wraps a transport-level failure (DNS, connection reset, ...).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response.
type ServerError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		n := 200
		for n > 0 && !utf8.RuneStart(body[n]) {
			n--
		}
		body = body[:n] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s failed: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.StatusCode, body)
}

// TimeoutError means the configured deadline elapsed before the operation finished.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsCancellation reports whether err represents a user-initiated abort.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// IsFailure reports whether err should be surfaced to the user as a failure.
// Cancellation is excluded so that aborting does not look like an error.
func IsFailure(err error) bool {
	return err != nil && !IsCancellation(err)
}

// IsValidationError reports whether err is a pre-flight validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTimeout reports whether err is a deadline failure.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// IsServerError reports whether err is a non-2xx response and returns its status.
func IsServerError(err error) (int, bool) {
	var se *ServerError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}
	return 0, false
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	status, ok := IsServerError(err)
	return ok && status == 404
}

// Classify maps a raw error from a transport into the taxonomy.
// Errors that already belong to the taxonomy are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		ve *ValidationError
		ne *NetworkError
		se *ServerError
		te *TimeoutError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ne), errors.As(err, &se), errors.As(err, &te):
		return err
	case errors.Is(err, ErrCancelled), errors.Is(err, ErrUnauthenticated):
		return err
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, ErrCancelled)
	case errors.Is(err, context.DeadlineExceeded):
		return &TimeoutError{Op: op, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Op: op, Err: err}
	}
	return &NetworkError{Op: op, Err: err}
}
