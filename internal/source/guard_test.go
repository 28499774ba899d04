package source

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
)

type fakeClient struct {
	calls int
	fetch func(ctx context.Context, call int) (record.SourceRecord, error)
}

func (f *fakeClient) ID() string              { return "fake" }
func (f *fakeClient) Kind() record.SourceKind { return record.KindHeuristic }
func (f *fakeClient) Fetch(ctx context.Context, q Query) (record.SourceRecord, error) {
	f.calls++
	return f.fetch(ctx, f.calls)
}

func testPolicy() Policy {
	return Policy{Timeout: 50 * time.Millisecond, Retries: 2, Backoff: time.Millisecond}
}

func TestGuard_FillsDefaults(t *testing.T) {
	c := &fakeClient{fetch: func(context.Context, int) (record.SourceRecord, error) {
		return record.SourceRecord{Title: "A Title", Confidence: 1.7}, nil
	}}
	rec, fail := Guard(c, testPolicy()).Lookup(context.Background(), Query{})
	if fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	if rec.SourceID != "fake" || rec.Kind != record.KindHeuristic {
		t.Errorf("identity not filled: %+v", rec)
	}
	if rec.FetchedAt.IsZero() {
		t.Error("FetchedAt should be set")
	}
	if rec.Confidence != 1 {
		t.Errorf("Confidence = %v, want clamped to 1", rec.Confidence)
	}
}

func TestGuard_NotFoundNotRetried(t *testing.T) {
	c := &fakeClient{fetch: func(context.Context, int) (record.SourceRecord, error) {
		return record.SourceRecord{}, fmt.Errorf("lookup: %w", ErrNotFound)
	}}
	_, fail := Guard(c, testPolicy()).Lookup(context.Background(), Query{})
	if fail == nil || fail.Kind != record.FailureNotFound {
		t.Fatalf("failure = %v, want not_found", fail)
	}
	if c.calls != 1 {
		t.Errorf("calls = %d, want 1", c.calls)
	}
}

func TestGuard_RateLimitedRetriedThenReported(t *testing.T) {
	c := &fakeClient{fetch: func(context.Context, int) (record.SourceRecord, error) {
		return record.SourceRecord{}, fmt.Errorf("status 429: %w", ErrRateLimited)
	}}
	_, fail := Guard(c, testPolicy()).Lookup(context.Background(), Query{})
	if fail == nil || fail.Kind != record.FailureRateLimited {
		t.Fatalf("failure = %v, want rate_limited", fail)
	}
	if c.calls != 3 {
		t.Errorf("calls = %d, want 3", c.calls)
	}
}

func TestGuard_RecoversAfterTransientError(t *testing.T) {
	c := &fakeClient{fetch: func(_ context.Context, call int) (record.SourceRecord, error) {
		if call == 1 {
			return record.SourceRecord{}, fmt.Errorf("read: %w", syscall.ECONNRESET)
		}
		return record.SourceRecord{Year: 2020}, nil
	}}
	rec, fail := Guard(c, testPolicy()).Lookup(context.Background(), Query{})
	if fail != nil {
		t.Fatalf("unexpected failure: %v", fail)
	}
	if rec.Year != 2020 {
		t.Errorf("Year = %d, want 2020", rec.Year)
	}
}

func TestGuard_PerAttemptTimeout(t *testing.T) {
	c := &fakeClient{fetch: func(ctx context.Context, _ int) (record.SourceRecord, error) {
		<-ctx.Done()
		return record.SourceRecord{}, ctx.Err()
	}}
	p := testPolicy()
	p.Retries = 0
	_, fail := Guard(c, p).Lookup(context.Background(), Query{})
	if fail == nil || fail.Kind != record.FailureTimeout {
		t.Fatalf("failure = %v, want timeout", fail)
	}
}

func TestGuard_PlainErrorIsTransport(t *testing.T) {
	c := &fakeClient{fetch: func(context.Context, int) (record.SourceRecord, error) {
		return record.SourceRecord{}, errors.New("decoding response: bad json")
	}}
	_, fail := Guard(c, testPolicy()).Lookup(context.Background(), Query{})
	if fail == nil || fail.Kind != record.FailureTransport {
		t.Fatalf("failure = %v, want transport_error", fail)
	}
	if c.calls != 1 {
		t.Errorf("calls = %d, want 1", c.calls)
	}
}

func TestGuard_EmptyRecordIsNotFound(t *testing.T) {
	c := &fakeClient{fetch: func(context.Context, int) (record.SourceRecord, error) {
		return record.SourceRecord{Confidence: 0.5}, nil
	}}
	_, fail := Guard(c, testPolicy()).Lookup(context.Background(), Query{})
	if fail == nil || fail.Kind != record.FailureNotFound {
		t.Fatalf("failure = %v, want not_found", fail)
	}
}

func TestGuard_RecoversPanic(t *testing.T) {
	c := &fakeClient{fetch: func(context.Context, int) (record.SourceRecord, error) {
		panic("boom")
	}}
	_, fail := Guard(c, testPolicy()).Lookup(context.Background(), Query{})
	if fail == nil || fail.Kind != record.FailureTransport {
		t.Fatalf("failure = %v, want transport_error", fail)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want record.FailureKind
	}{
		{fmt.Errorf("x: %w", ErrNotFound), record.FailureNotFound},
		{ErrNoQuery, record.FailureNotFound},
		{fmt.Errorf("x: %w", ErrRateLimited), record.FailureRateLimited},
		{context.DeadlineExceeded, record.FailureTimeout},
		{errors.New("other"), record.FailureTransport},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
