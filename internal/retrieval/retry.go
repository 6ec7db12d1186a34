package retrieval

import (
	"context"
	"time"
)

// RetryPolicy bounds retry attempts for transient collaborator failures.
// It is passed into the call sites that issue network calls rather than
// hidden inside the collaborators, so the worst-case latency of a search is
// visible from the service configuration alone.
type RetryPolicy struct {
	MaxAttempts int           // Total attempts, including the first
	BaseDelay   time.Duration // Initial delay between attempts
	MaxDelay    time.Duration // Ceiling for the backoff delay
	Multiplier  float64       // Exponential backoff multiplier
}

// DefaultRetryPolicy returns the default bounded-attempt policy: one retry
// with a short exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 2,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Multiplier:  2.0,
	}
}

// withRetry executes fn under the policy. Attempts stop early when the
// context is cancelled or when retryable reports the error as permanent.
func withRetry[T any](ctx context.Context, policy RetryPolicy, retryable func(error) bool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := policy.BaseDelay
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !retryable(err) {
			return zero, err
		}

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * policy.Multiplier)
				if policy.MaxDelay > 0 && backoff > policy.MaxDelay {
					backoff = policy.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}
