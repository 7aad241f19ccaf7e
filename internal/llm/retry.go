package llm

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is an explicit, unit-testable retry policy value passed into
// the collector. It replaces ad hoc exception catching around provider calls:
// the attempt count, backoff schedule, and retryable-error predicate are all
// data, not control flow buried in a loop.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the wait after the first failed attempt.
	InitialBackoff time.Duration

	// BackoffFactor multiplies the wait after each further failure.
	BackoffFactor float64

	// Retryable decides whether an error is worth another attempt.
	// Nil means IsRetryable.
	Retryable func(error) bool

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// DefaultRetryPolicy returns the policy used for live collection: three
// attempts with exponential backoff starting at two seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Do runs fn until it succeeds, the error is not retryable, the attempt
// budget is exhausted, or ctx is cancelled. The last error is returned
// wrapped with the attempt count.
func (p RetryPolicy) Do(ctx context.Context, fn func() (string, error)) (string, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	backoff := p.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := fn()
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !retryable(err) {
			return "", err
		}
		if attempt == attempts {
			break
		}

		sleep(backoff)
		if p.BackoffFactor > 1 {
			backoff = time.Duration(float64(backoff) * p.BackoffFactor)
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
