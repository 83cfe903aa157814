package http

import (
	"fmt"
	"time"
)

// =============================================================================
// ERRORS
// =============================================================================

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, truncate(e.Message, 256))
}

// IsRateLimited returns true for 429.
func (e *HTTPError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized returns true for 401.
func (e *HTTPError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsServerError returns true for 5xx.
func (e *HTTPError) IsServerError() bool {
	return e.StatusCode >= 500
}

// ConnectionError means the backend cannot be reached, either because the
// adapter is not connected or the circuit is open.
type ConnectionError struct {
	Client  string
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	msg := fmt.Sprintf("connection error (%s): %s", e.Client, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// AuthenticationError is a 401 from the backend.
type AuthenticationError struct {
	Client  string
	Message string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed (%s): %s", e.Client, truncate(e.Message, 256))
}

// RateLimitError means the request window or the backend refused the call.
type RateLimitError struct {
	Client     string
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded (%s): %s (retry after %s)", e.Client, e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (%s): %s", e.Client, e.Message)
}

// RequestError is the final failure after all retry attempts.
type RequestError struct {
	Method   string
	URL      string
	Attempts int
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s failed after %d attempt(s): %v", e.Method, e.URL, e.Attempts, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
