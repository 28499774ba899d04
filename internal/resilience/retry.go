// Package resilience retries calls to remote metadata sources.
package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// maxBackoff caps the delay between attempts.
const maxBackoff = 10 * time.Second

// RetryConfig bounds DoVal.
type RetryConfig struct {
	// MaxAttempts counts the first try. Values below 1 mean one attempt.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. It doubles per
	// retry up to maxBackoff.
	InitialBackoff time.Duration

	// JitterFraction spreads each delay by up to this share either way.
	JitterFraction float64

	// ShouldRetry decides which errors get another attempt. Nil means IsTransient.
	ShouldRetry func(err error) bool

	// OnRetry runs before each retry's sleep.
	OnRetry func(attempt int, err error)
}

// DoVal calls fn until it succeeds, fails with an error ShouldRetry
// rejects, runs out of attempts, or ctx ends. It returns the last error
// unchanged.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	retry := cfg.ShouldRetry
	if retry == nil {
		retry = IsTransient
	}
	attempts := max(cfg.MaxAttempts, 1)

	var (
		zero T
		err  error
	)
	for attempt := 1; ; attempt++ {
		var val T
		if val, err = fn(ctx); err == nil {
			return val, nil
		}
		if attempt == attempts || ctx.Err() != nil || !retry(err) {
			return zero, err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		timer := time.NewTimer(backoff(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

// backoff is the delay after the given failed attempt (1-based).
func backoff(attempt int, cfg RetryConfig) time.Duration {
	d := cfg.InitialBackoff
	if d <= 0 {
		d = 250 * time.Millisecond
	}
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	d = min(d, maxBackoff)

	if j := cfg.JitterFraction; j > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * j * float64(d))
	}
	return max(d, 0)
}

// RetryLogger logs each retry of a source call.
func RetryLogger(source, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying source lookup",
			zap.String("source", source),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
