package indexer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ambientKeeper/internal/model"
)

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 5, time.Millisecond, IsTransient, func(context.Context) error {
		calls++
		return fmt.Errorf("decode: %w", model.ErrMalformedPayload)
	})
	if !errors.Is(err, model.ErrMalformedPayload) {
		t.Fatalf("expected malformed payload, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestWithRetryBoundsAttempts(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), 2, time.Millisecond, IsTransient, func(context.Context) error {
		calls++
		return errors.New("connection reset")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryUnboundedHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, -1, time.Millisecond, IsTransient, func(context.Context) error {
		calls++
		if calls == 4 {
			cancel()
		}
		return errors.New("connection refused")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestIsTransientStatus(t *testing.T) {
	if !IsTransient(&StatusError{StatusCode: 502}) {
		t.Fatalf("502 should be transient")
	}
	if !IsTransient(&StatusError{StatusCode: 429}) {
		t.Fatalf("429 should be transient")
	}
	if IsTransient(&StatusError{StatusCode: 400}) {
		t.Fatalf("400 should be permanent")
	}
}
