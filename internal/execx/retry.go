// pattern: Functional Core

package execx

import (
	"context"
	"time"
)

// RetryConfig controls bounded exponential backoff for transient failures.
type RetryConfig struct {
	Attempts  int           // total attempts, minimum 1
	BaseDelay time.Duration // delay before the second attempt, doubled each retry
}

// DefaultRetry is the policy used for idempotent git/tmux queries.
var DefaultRetry = RetryConfig{Attempts: 3, BaseDelay: 250 * time.Millisecond}

// Retry runs fn up to cfg.Attempts times, doubling the delay between
// attempts. It must only be applied to operations that are safe to repeat:
// queries and idempotency-checked creates, never bare destructive commands.
// Returns the last error if every attempt fails; ctx cancellation stops the
// loop immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := cfg.BaseDelay

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return err
}
