// internal/app/system/chipapi/errors.go
package chipapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrBadResponse is wrapped when a 2xx body cannot be decoded or fails its schema.
var ErrBadResponse = errors.New("chip backend: malformed response")

// NetworkError means the request never reached the backend or no response came back.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("chip backend: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the request was abandoned because its deadline passed.
func (e *NetworkError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// HTTPError is a non-2xx response. Message is the backend-supplied message
// and is empty when the error body carried none.
type HTTPError struct {
	Status     int
	StatusText string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("chip backend: %d %s: %s", e.Status, e.StatusText, e.Message)
	}
	return fmt.Sprintf("chip backend: %d %s", e.Status, e.StatusText)
}

func newHTTPError(status int, message string) *HTTPError {
	return &HTTPError{Status: status, StatusText: http.StatusText(status), Message: message}
}

// ValidationError is a client-side rejection raised before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// AuthError is the normalised failure of a login or OTP call. Message is safe
// to show to the user.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() error { return e.Err }

// UserMessage picks the best human-readable text for err, falling back to
// fallback when err carries nothing a user should see.
func UserMessage(err error, fallback string) string {
	var ae *AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Message != "" {
		return ve.Message
	}
	var he *HTTPError
	if errors.As(err, &he) && he.Message != "" {
		return he.Message
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return "The CHIP service could not be reached. Please try again."
	}
	return fallback
}

// StatusOf returns the HTTP status carried by err, or 0 when there is none.
func StatusOf(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}
