// Package backoff implements the cancellable exponential-backoff retry
// loop shared by the stdio proxy's category connections (spec §4.6.1) and
// the category server's critical-method forwarding (spec §4.2 step 5).
package backoff

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Config parameterizes Retry. Zero values are invalid; use New to fill
// in the spec-mandated defaults.
type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	PerAttemptTimeout time.Duration
}

// New returns a Config with the spec's default ceiling (10s) and jitter
// bound (25% of the current backoff).
func New(maxAttempts int, initialBackoff, perAttemptTimeout time.Duration) Config {
	return Config{
		MaxAttempts:       maxAttempts,
		InitialBackoff:    initialBackoff,
		MaxBackoff:        10 * time.Second,
		PerAttemptTimeout: perAttemptTimeout,
	}
}

// ErrCanceled is returned when ctx is canceled mid-retry.
var ErrCanceled = errors.New("backoff: canceled")

// Attempt is the operation retried by Retry. It receives a context scoped
// to PerAttemptTimeout (and to the parent ctx's cancellation).
type Attempt func(ctx context.Context) error

// Retry runs fn up to cfg.MaxAttempts times, sleeping backoff+jitter
// between attempts (backoff doubles each time, capped at cfg.MaxBackoff,
// jitter uniform in [0, backoff/4]). Any attempt succeeding (fn returns
// nil) stops the loop immediately. ctx cancellation aborts immediately
// with ErrCanceled, whether blocked in an attempt or a sleep.
func Retry(ctx context.Context, cfg Config, fn Attempt) error {
	backoffDur := cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ErrCanceled
		}

		attemptCtx, cancel := context.WithTimeout(ctx, cfg.PerAttemptTimeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ErrCanceled
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		jitterMax := backoffDur / 4
		var jitter time.Duration
		if jitterMax > 0 {
			jitter = time.Duration(rand.Int63n(int64(jitterMax)))
		}
		sleep := backoffDur + jitter

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ErrCanceled
		case <-timer.C:
		}

		backoffDur *= 2
		if backoffDur > cfg.MaxBackoff {
			backoffDur = cfg.MaxBackoff
		}
	}

	return fmt.Errorf("backoff: exhausted %d attempts (per-attempt timeout %s): %w", cfg.MaxAttempts, cfg.PerAttemptTimeout, lastErr)
}
