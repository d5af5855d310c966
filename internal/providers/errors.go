package providers

import (
	"errors"
	"fmt"
	"time"
)

// AuthenticationError means credentials were rejected. Never retried; at
// startup it aborts the whole run.
type AuthenticationError struct {
	Provider   string
	Message    string
	StatusCode int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: authentication failed (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// RateLimitError means the provider returned 429. RetryAfter carries the
// provider's backoff hint when one was given.
type RateLimitError struct {
	Provider   string
	Message    string
	StatusCode int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// TransportError wraps network failures and provider 5xx responses.
type TransportError struct {
	Provider string
	Message  string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderResponseError means the provider answered but the answer was
// unusable: empty results, undecodable body, or an unexpected status.
type ProviderResponseError struct {
	Provider   string
	Message    string
	StatusCode int
}

func (e *ProviderResponseError) Error() string {
	return fmt.Sprintf("%s: bad response (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether an invocation error is worth retrying.
// Authentication failures are permanent; everything else in the taxonomy is
// transient.
func Retryable(err error) bool {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return false
	}

	var rateErr *RateLimitError
	var transportErr *TransportError
	var respErr *ProviderResponseError
	return errors.As(err, &rateErr) || errors.As(err, &transportErr) || errors.As(err, &respErr)
}
