package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy for model calls. Rate limits and transient network failures
// are retryable; authentication failures are not and abort the whole run,
// since every subsequent call would fail identically.
var (
	ErrRateLimited    = errors.New("llm: rate limited")
	ErrAuthentication = errors.New("llm: authentication failed")
	ErrTransient      = errors.New("llm: transient network error")
)

// IsRetryable reports whether a model-call error is worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}

// classifyStatus maps an HTTP status from a provider API into the error
// taxonomy. Non-2xx statuses outside the known classes are terminal
// per-query failures without retry.
func classifyStatus(provider string, status int, body string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s returned status %d: %s", ErrAuthentication, provider, status, body)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s returned status %d: %s", ErrRateLimited, provider, status, body)
	case status == http.StatusRequestTimeout || status >= 500:
		return fmt.Errorf("%w: %s returned status %d: %s", ErrTransient, provider, status, body)
	default:
		return fmt.Errorf("%s returned status %d: %s", provider, status, body)
	}
}

// classifyTransport wraps transport-level failures (connection reset, DNS,
// per-call timeout) as transient. Cancellation is passed through untouched so
// callers can distinguish a cancelled run from a flaky network.
func classifyTransport(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s request failed: %v", ErrTransient, provider, err)
}
