package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", 401, ErrAuthentication},
		{"forbidden", 403, ErrAuthentication},
		{"rate limited", 429, ErrRateLimited},
		{"server error", 500, ErrTransient},
		{"bad gateway", 502, ErrTransient},
		{"overloaded", 529, ErrTransient},
		{"request timeout", 408, ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus("test", tt.status, "body")
			if !errors.Is(err, tt.want) {
				t.Errorf("status %d classified as %v, want %v", tt.status, err, tt.want)
			}
		})
	}

	// 400-level errors outside the taxonomy are terminal, not retryable.
	err := classifyStatus("test", 400, "bad request")
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrAuthentication) || errors.Is(err, ErrTransient) {
		t.Errorf("400 should be outside the retryable taxonomy: %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("wrapped: %w", ErrRateLimited)) {
		t.Error("rate limits must be retryable")
	}
	if !IsRetryable(fmt.Errorf("wrapped: %w", ErrTransient)) {
		t.Error("transient failures must be retryable")
	}
	if IsRetryable(fmt.Errorf("wrapped: %w", ErrAuthentication)) {
		t.Error("authentication failures must not be retryable")
	}
	if IsRetryable(errors.New("some other error")) {
		t.Error("unclassified errors must not be retryable")
	}
}
