package db

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds how often a commit is re-run.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Retry runs op until it succeeds, returns an error retryable reports false
// for, or the attempt budget is exhausted. The last error is returned.
func Retry[T any](ctx context.Context, policy RetryPolicy, retryable func(error) bool, op func(attempt int) (T, error)) (T, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	if policy.BaseDelay > 0 {
		bo.InitialInterval = policy.BaseDelay
	}
	bo.MaxInterval = 20 * bo.InitialInterval

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		result, err := op(attempt)
		if err == nil {
			return result, nil
		}
		if retryable == nil || !retryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(attempts)),
	)
}
