// Package resilience provides retry and circuit-breaker primitives used
// around outbound RPC, broker publishes, and cache I/O.
package resilience

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pulseward/pulseward/core"
)

// RetryConfig controls the backoff schedule.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultRetryConfig matches the producer contract: 100 ms initial delay
// doubling to a 30 s cap over 8 attempts.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  8,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// LinearRetryConfig is the RPC client policy: fixed attempt count with a
// delay growing linearly (delay, 2*delay, ...).
func LinearRetryConfig(attempts int, delay time.Duration) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: delay,
		MaxDelay:     time.Duration(attempts) * delay,
		Multiplier:   1.0, // delay scales with attempt number instead
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, the
// attempt budget is exhausted, or ctx is cancelled.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !core.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.delayFor(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%w: %d attempts: %v", core.ErrMaxRetriesExceeded, cfg.MaxAttempts, lastErr)
}

func (cfg RetryConfig) delayFor(attempt int) time.Duration {
	var delay time.Duration
	if cfg.Multiplier <= 1.0 {
		delay = time.Duration(attempt) * cfg.InitialDelay
	} else {
		delay = cfg.InitialDelay
		for i := 1; i < attempt; i++ {
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if cfg.MaxDelay > 0 && delay >= cfg.MaxDelay {
				delay = cfg.MaxDelay
				break
			}
		}
	}
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter && delay > 0 {
		// up to 25% random reduction to decorrelate retry storms
		delay -= time.Duration(rand.Int63n(int64(delay) / 4))
	}
	return delay
}
