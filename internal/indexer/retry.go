package indexer

import (
	"context"
	"errors"
	"time"

	"loanKit/internal/apperr"
)

// withRetry calls fn until it succeeds, retrying up to maxRetries times with
// doubling delays. Input validation failures are returned immediately since
// repeating the same call cannot fix them.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil || errors.Is(err, apperr.ErrInputValidation) || attempt >= maxRetries {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
