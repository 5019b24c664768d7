package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsOnFirstAttempt(t *testing.T) {
	cfg := New(5, 10*time.Millisecond, 100*time.Millisecond)
	calls := 0
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetryEventualSuccess(t *testing.T) {
	cfg := New(5, 5*time.Millisecond, 50*time.Millisecond)
	calls := 0
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustion(t *testing.T) {
	cfg := New(3, 1*time.Millisecond, 50*time.Millisecond)
	calls := 0
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error after exhaustion")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRetryCancellation(t *testing.T) {
	cfg := New(10, 50*time.Millisecond, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	err := Retry(ctx, cfg, func(context.Context) error {
		calls++
		return errors.New("fail")
	})
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("err = %v, want ErrCanceled", err)
	}
}

func TestRetryBackoffMonotonicBounded(t *testing.T) {
	cfg := New(6, 100*time.Millisecond, 10*time.Millisecond)
	var sleeps []time.Duration
	var last time.Time = time.Now()
	calls := 0
	_ = Retry(context.Background(), cfg, func(context.Context) error {
		now := time.Now()
		if calls > 0 {
			sleeps = append(sleeps, now.Sub(last))
		}
		last = now
		calls++
		return errors.New("fail")
	})
	for _, s := range sleeps {
		if s > cfg.MaxBackoff+cfg.MaxBackoff/4+50*time.Millisecond {
			t.Fatalf("observed sleep %v exceeds cap+jitter bound", s)
		}
	}
	for i := 1; i < len(sleeps); i++ {
		if sleeps[i] < sleeps[i-1] {
			t.Fatalf("observed sleeps %v are not non-decreasing", sleeps)
		}
	}
}
