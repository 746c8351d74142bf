package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var fast = Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, func() error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestDo_ReturnsLastError(t *testing.T) {
	want := errors.New("down")
	calls := 0
	err := Do(context.Background(), fast, func() error {
		calls++
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("got %v, want %v", err, want)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestDo_NonRetryable(t *testing.T) {
	cfg := fast
	cfg.ShouldRetry = func(error) bool { return false }
	calls := 0
	_ = Do(context.Background(), cfg, func() error {
		calls++
		return errors.New("bad request")
	})
	if calls != 1 {
		t.Errorf("calls: got %d, want 1", calls)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, fast, func() error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls: got %d, want 0", calls)
	}
}
