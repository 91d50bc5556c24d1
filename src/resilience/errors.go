// Package resilience wraps calls to the generation backend with error
// classification, retry with backoff, and a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Category is the standardized classification of a backend failure.
type Category string

const (
	CategoryAuthentication Category = "authentication"
	CategoryRateLimit      Category = "rate_limit"
	CategoryNetwork        Category = "network"
	CategoryTimeout        Category = "timeout"
	CategoryProvider       Category = "provider"
	CategoryUnknown        Category = "unknown"
)

// HTTPStatusError is returned by providers for non-2xx responses so the
// classifier can branch on the status code instead of message text.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// Error is the terminal error surfaced after classification (and, in the
// retry path, after all attempts are exhausted). It carries the category and
// the last underlying cause.
type Error struct {
	Category  Category
	Retryable bool
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", e.Message, e.Category, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Category)
}

func (e *Error) Unwrap() error { return e.Cause }

// Keyword sets for the substring fallback, checked in order.
var (
	authKeywords      = []string{"auth", "authenticat", "api key", "unauthorized", "forbidden", "credential"}
	rateLimitKeywords = []string{"rate", "limit", "quota", "429", "too many requests"}
	timeoutKeywords   = []string{"timeout", "timed out", "deadline"}
	providerKeywords  = []string{"api", "server", "internal", "unavailable", "overloaded"}
)

// Classify maps an arbitrary backend error to a resilience Error. Typed
// errors are classified directly; everything else falls back to
// case-insensitive substring matching.
func Classify(err error) *Error {
	var already *Error
	if errors.As(err, &already) {
		return already
	}

	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode >= 500 {
			return &Error{
				Category:  CategoryProvider,
				Retryable: true,
				Message:   fmt.Sprintf("server error %d", httpErr.StatusCode),
				Cause:     err,
			}
		}
		return &Error{
			Category:  CategoryProvider,
			Retryable: false,
			Message:   fmt.Sprintf("http error %d", httpErr.StatusCode),
			Cause:     err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{Category: CategoryTimeout, Retryable: true, Message: "request timed out", Cause: err}
		}
		return &Error{Category: CategoryNetwork, Retryable: true, Message: "network error", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Category: CategoryTimeout, Retryable: true, Message: "request timed out", Cause: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, authKeywords):
		return &Error{Category: CategoryAuthentication, Retryable: false, Message: "authentication failed", Cause: err}
	case containsAny(msg, rateLimitKeywords):
		return &Error{Category: CategoryRateLimit, Retryable: true, Message: "rate limited", Cause: err}
	case containsAny(msg, timeoutKeywords):
		return &Error{Category: CategoryTimeout, Retryable: true, Message: "request timed out", Cause: err}
	case containsAny(msg, providerKeywords):
		return &Error{Category: CategoryProvider, Retryable: true, Message: "provider error", Cause: err}
	default:
		return &Error{Category: CategoryUnknown, Retryable: false, Message: "unclassified error", Cause: err}
	}
}

func containsAny(msg string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
