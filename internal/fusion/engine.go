// Package fusion queries every metadata source for a document at once and
// reconciles their answers into one record with a confidence score.
package fusion

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
	"github.com/lukeslp/reference-renamer/internal/source"
	"go.uber.org/zap"
)

// DefaultCeiling is the overall wall-clock bound on one document's lookups.
const DefaultCeiling = 45 * time.Second

// Observer is told about every adapter outcome. outcome is "ok" or a
// failure kind; adapters abandoned at the ceiling report "timeout".
type Observer func(sourceID, outcome string, elapsed time.Duration)

// Engine fans a query out to its adapters and reconciles the answers.
type Engine struct {
	adapters []source.Adapter
	ceiling  time.Duration
	weights  Weights
	observe  Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithCeiling sets the overall wall-clock ceiling.
func WithCeiling(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.ceiling = d
		}
	}
}

// WithWeights overrides the field weights of the overall confidence.
func WithWeights(w Weights) Option {
	return func(e *Engine) {
		e.weights = w
	}
}

// WithObserver installs a per-adapter outcome callback.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observe = o
	}
}

// New creates an engine over adapters.
func New(adapters []source.Adapter, opts ...Option) *Engine {
	e := &Engine{
		adapters: adapters,
		ceiling:  DefaultCeiling,
		weights:  DefaultWeights(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Adapters returns the ids of the configured adapters.
func (e *Engine) Adapters() []string {
	ids := make([]string, len(e.adapters))
	for i, a := range e.adapters {
		ids[i] = a.ID()
	}
	return ids
}

// Fuse fingerprints text and reconciles every adapter's answer for it.
func (e *Engine) Fuse(ctx context.Context, text string, hints source.Hints) record.FusedRecord {
	return e.FuseQuery(ctx, record.Fingerprint(text), source.Query{TextExcerpt: text, Hints: hints})
}

type answer struct {
	id      string
	rec     record.SourceRecord
	fail    *source.Failure
	elapsed time.Duration
}

// FuseQuery runs q against all adapters concurrently and reconciles the
// records that arrive before the ceiling. Late adapters are recorded as
// timeouts and left to finish on their own; their results are dropped.
// FuseQuery never fails: with no answers the result is empty with zero
// confidence.
func (e *Engine) FuseQuery(ctx context.Context, fingerprint string, q source.Query) record.FusedRecord {
	answers := make(chan answer, len(e.adapters))
	start := time.Now()
	for _, a := range e.adapters {
		go func(a source.Adapter) {
			t0 := time.Now()
			rec, fail := a.Lookup(ctx, q)
			answers <- answer{id: a.ID(), rec: rec, fail: fail, elapsed: time.Since(t0)}
		}(a)
	}

	timer := time.NewTimer(e.ceiling)
	defer timer.Stop()

	var (
		records  []record.SourceRecord
		failures []record.Failure
	)
	pending := make(map[string]bool, len(e.adapters))
	for _, a := range e.adapters {
		pending[a.ID()] = true
	}

collect:
	for len(pending) > 0 {
		select {
		case ans := <-answers:
			delete(pending, ans.id)
			if ans.fail != nil {
				failures = append(failures, *ans.fail)
				e.report(ans.id, string(ans.fail.Kind), ans.elapsed)
				continue
			}
			records = append(records, ans.rec)
			e.report(ans.id, "ok", ans.elapsed)
		case <-timer.C:
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	for id := range pending {
		failures = append(failures, record.Failure{
			Source:  id,
			Kind:    record.FailureTimeout,
			Message: "no answer within fusion ceiling",
		})
		e.report(id, string(record.FailureTimeout), time.Since(start))
	}

	fused := Reconcile(records, fingerprint, e.weights)
	slices.SortFunc(failures, func(a, b record.Failure) int { return strings.Compare(a.Source, b.Source) })
	fused.Failures = failures

	zap.L().Debug("fused document",
		zap.String("fingerprint", shortFingerprint(fingerprint)),
		zap.Int("records", len(records)),
		zap.Int("failures", len(failures)),
		zap.Float64("overall_confidence", fused.OverallConfidence),
	)
	return fused
}

func (e *Engine) report(id, outcome string, elapsed time.Duration) {
	if e.observe != nil {
		e.observe(id, outcome, elapsed)
	}
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
