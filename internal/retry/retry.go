package retry

import (
	"context"
	"math/rand"
	"time"
)

// Execute runs fn under policy. onRetry, when set, is called before each
// re-attempt with the 1-based number of the failed attempt.
func Execute(ctx context.Context, policy Policy, fn func(context.Context) error, onRetry func(attempt int, err error)) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		if err := fn(ctx); err != nil {
			lastErr = err
			if i == attempts || !IsRetryable(err) {
				return lastErr
			}
			if onRetry != nil {
				onRetry(i, err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffFor(policy, i)):
			}
			continue
		}
		return nil
	}
	return lastErr
}

func backoffFor(policy Policy, attempt int) time.Duration {
	base := policy.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	switch policy.Backoff {
	case BackoffExponential:
		return base * time.Duration(1<<uint(attempt-1))
	case BackoffExponentialJitter:
		exp := base * time.Duration(1<<uint(attempt-1))
		jitter := time.Duration(rand.Int63n(int64(base)))
		return exp + jitter
	default:
		return base * time.Duration(attempt)
	}
}
