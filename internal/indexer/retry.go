package indexer

import (
	"context"
	"errors"
	"time"

	"ambientKeeper/internal/model"
)

// withRetry calls fn until it succeeds, returns a permanent error, or
// maxRetries is exhausted. A negative maxRetries retries until ctx ends.
// The delay between attempts is fixed.
func withRetry(ctx context.Context, maxRetries int, delay time.Duration, retryable func(error) bool, fn func(context.Context) error) error {
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if maxRetries >= 0 && attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// IsTransient reports whether err is worth retrying: network failures and
// 5xx/429 responses are, malformed payloads and other statuses are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, model.ErrMalformedPayload) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}
