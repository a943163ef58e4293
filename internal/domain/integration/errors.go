package integration

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// ---------------------------------------------------------------------------
// Error Taxonomy
// ---------------------------------------------------------------------------

// ErrorCode is a stable machine-readable code for a marketplace API failure.
type ErrorCode string

const (
	// ErrCodeAuthFailed marks a 401/403; the caller must re-authenticate.
	ErrCodeAuthFailed ErrorCode = "AUTH_FAILED"
	// ErrCodeRateLimited marks a 429; carries a mandatory wait duration.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
	// ErrCodeServerError marks a 5xx or a network-level failure.
	ErrCodeServerError ErrorCode = "SERVER_ERROR"
	// ErrCodeClientError marks any other 4xx; the request was malformed.
	ErrCodeClientError ErrorCode = "CLIENT_ERROR"
	// ErrCodeTokenRefreshFailed marks a failed OAuth token refresh, kept
	// distinct so the console can route the user to re-authentication.
	ErrCodeTokenRefreshFailed ErrorCode = "TOKEN_REFRESH_FAILED"
	// ErrCodeCircuitOpen marks a call rejected by an open circuit breaker
	// without reaching the network.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
)

// defaultRetryAfter is used when a 429 response carries no Retry-After hint.
const defaultRetryAfter = 5 * time.Second

// APIError describes a classified marketplace API failure.
type APIError struct {
	Code    ErrorCode
	Status  int
	Message string
	// Retryable reports whether the operation may be attempted again.
	Retryable bool
	// RetryAfter is the wait the platform signalled before resuming.
	// Only set for RATE_LIMITED errors.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("integration: %s (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("integration: %s: %s", e.Code, e.Message)
}

// NewAuthError creates a non-retryable authentication error.
func NewAuthError(status int, message string) *APIError {
	return &APIError{Code: ErrCodeAuthFailed, Status: status, Message: message}
}

// NewRateLimitedError creates a retryable rate-limit error carrying the wait
// the platform requested.
func NewRateLimitedError(retryAfter time.Duration) *APIError {
	if retryAfter <= 0 {
		retryAfter = defaultRetryAfter
	}
	return &APIError{
		Code:       ErrCodeRateLimited,
		Status:     http.StatusTooManyRequests,
		Message:    "rate limited by platform",
		Retryable:  true,
		RetryAfter: retryAfter,
	}
}

// NewServerError creates a retryable server/network error. A status of 0
// marks a network-level failure that never produced a response.
func NewServerError(status int, message string) *APIError {
	return &APIError{Code: ErrCodeServerError, Status: status, Message: message, Retryable: true}
}

// NewClientError creates a non-retryable client error.
func NewClientError(status int, message string) *APIError {
	return &APIError{Code: ErrCodeClientError, Status: status, Message: message}
}

// NewTokenRefreshError creates a non-retryable token refresh failure.
func NewTokenRefreshError(message string) *APIError {
	return &APIError{Code: ErrCodeTokenRefreshFailed, Message: message}
}

// NewCircuitOpenError creates the error returned when the breaker rejects a
// call without attempting it.
func NewCircuitOpenError() *APIError {
	return &APIError{Code: ErrCodeCircuitOpen, Message: "circuit breaker is open"}
}

// ClassifyResponse converts an HTTP response into the error taxonomy.
// It returns nil for 2xx/3xx statuses.
func ClassifyResponse(status int, retryAfterHeader string, body string) *APIError {
	switch {
	case status < 400:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return NewAuthError(status, truncate(body))
	case status == http.StatusTooManyRequests:
		return NewRateLimitedError(parseRetryAfter(retryAfterHeader))
	case status >= 500:
		return NewServerError(status, truncate(body))
	default:
		return NewClientError(status, truncate(body))
	}
}

// parseRetryAfter parses a Retry-After header value in seconds. HTTP-date
// forms and garbage fall back to the default wait.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string) string {
	const maxLen = 256
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}

// AsAPIError unwraps err into an *APIError if possible.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsRetryable reports whether err may be retried.
func IsRetryable(err error) bool {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Retryable
	}
	return false
}

// AsRateLimited unwraps err into a rate-limit error, exposing the wait.
func AsRateLimited(err error) (*APIError, bool) {
	if apiErr, ok := AsAPIError(err); ok && apiErr.Code == ErrCodeRateLimited {
		return apiErr, true
	}
	return nil, false
}

// IsAuthFailure reports whether err requires re-authentication, covering
// both rejected credentials and failed token refreshes.
func IsAuthFailure(err error) bool {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Code == ErrCodeAuthFailed || apiErr.Code == ErrCodeTokenRefreshFailed
	}
	return false
}
