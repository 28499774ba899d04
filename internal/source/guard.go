package source

import (
	"context"
	"fmt"
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
	"github.com/lukeslp/reference-renamer/internal/resilience"
	"go.uber.org/zap"
)

// Policy bounds a single source's lookups.
type Policy struct {
	// Timeout applies to each attempt.
	Timeout time.Duration

	// Retries is the number of extra attempts after the first.
	Retries int

	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
}

// DefaultPolicy returns the per-source limits used when none are configured.
func DefaultPolicy() Policy {
	return Policy{
		Timeout: 15 * time.Second,
		Retries: 2,
		Backoff: 500 * time.Millisecond,
	}
}

// Guarded wraps a Client with per-attempt timeouts, bounded retries and
// panic recovery.
type Guarded struct {
	client Client
	policy Policy
}

// Guard returns an Adapter backed by c.
func Guard(c Client, p Policy) *Guarded {
	if p.Timeout <= 0 {
		p.Timeout = DefaultPolicy().Timeout
	}
	if p.Retries < 0 {
		p.Retries = 0
	}
	return &Guarded{client: c, policy: p}
}

func (g *Guarded) ID() string              { return g.client.ID() }
func (g *Guarded) Kind() record.SourceKind { return g.client.Kind() }

// Lookup queries the wrapped client. Not-found answers are not retried.
func (g *Guarded) Lookup(ctx context.Context, q Query) (rec record.SourceRecord, fail *Failure) {
	id := g.client.ID()
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("source panicked", zap.String("source", id), zap.Any("panic", r))
			rec = record.SourceRecord{}
			fail = &Failure{Source: id, Kind: record.FailureTransport, Message: fmt.Sprintf("panic: %v", r)}
		}
	}()

	cfg := resilience.RetryConfig{
		MaxAttempts:    g.policy.Retries + 1,
		InitialBackoff: g.policy.Backoff,
		JitterFraction: 0.25,
		ShouldRetry: func(err error) bool {
			switch Classify(err) {
			case record.FailureNotFound:
				return false
			case record.FailureRateLimited, record.FailureTimeout:
				return true
			}
			return resilience.IsTransient(err)
		},
		OnRetry: resilience.RetryLogger(id, "lookup"),
	}

	rec, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (record.SourceRecord, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, g.policy.Timeout)
		defer cancel()
		return g.client.Fetch(attemptCtx, q)
	})
	if err != nil {
		kind := Classify(err)
		if kind == record.FailureTransport && ctx.Err() != nil {
			kind = record.FailureTimeout
		}
		return record.SourceRecord{}, &Failure{Source: id, Kind: kind, Message: err.Error()}
	}

	if rec.IsEmpty() {
		return record.SourceRecord{}, &Failure{Source: id, Kind: record.FailureNotFound, Message: "empty record"}
	}
	if rec.SourceID == "" {
		rec.SourceID = id
	}
	if rec.Kind == "" {
		rec.Kind = g.client.Kind()
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}
	rec.Confidence = clamp01(rec.Confidence)
	return rec, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
