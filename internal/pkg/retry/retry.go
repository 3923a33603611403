// internal/pkg/retry/retry.go
package retry

import (
	"context"
	"time"
)

// Options controls the retry loop
type Options struct {
	Attempts int
	Delay    time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Nil means every error is retryable.
	Retryable func(error) bool
}

// Do runs fn until it succeeds, attempts run out, or the context ends.
// The delay doubles after every failed attempt.
func Do(ctx context.Context, opts Options, fn func() error) error {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	var err error
	delay := opts.Delay
	for attempt := 0; attempt < opts.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		if err = fn(); err == nil {
			return nil
		}
		if opts.Retryable != nil && !opts.Retryable(err) {
			return err
		}
	}
	return err
}
