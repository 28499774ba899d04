// Package source defines the contract every metadata source satisfies and
// the guard that turns raw client errors into typed failures.
package source

import (
	"context"
	"errors"
	"net"

	"github.com/lukeslp/reference-renamer/internal/record"
)

// Failure is the typed outcome of a lookup that produced no record.
type Failure = record.Failure

// Hints are cheap identifiers pulled from the document text before any
// source is queried.
type Hints struct {
	DOI     string `json:"doi,omitempty"`
	ArXivID string `json:"arxiv_id,omitempty"`
	Title   string `json:"title,omitempty"`
	Year    int    `json:"year,omitempty"`
}

// Query is the input to a lookup.
type Query struct {
	TextExcerpt string
	Hints       Hints
}

// Client is implemented by each concrete source. Errors are classified
// with Classify, so implementations wrap the sentinels below.
type Client interface {
	ID() string
	Kind() record.SourceKind
	Fetch(ctx context.Context, q Query) (record.SourceRecord, error)
}

// Adapter is the uniform lookup surface the fusion engine consumes. It
// never returns an error, only a record or a Failure.
type Adapter interface {
	ID() string
	Kind() record.SourceKind
	Lookup(ctx context.Context, q Query) (record.SourceRecord, *Failure)
}

// Sentinel errors for clients to wrap.
var (
	// ErrNotFound means the source answered but has no matching document.
	ErrNotFound = errors.New("no matching document")

	// ErrRateLimited means the source asked us to slow down.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoQuery means the query carried nothing this source can search by.
	ErrNoQuery = errors.New("nothing to search by")
)

// Classify maps an error to a failure kind.
func Classify(err error) record.FailureKind {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoQuery):
		return record.FailureNotFound
	case errors.Is(err, ErrRateLimited):
		return record.FailureRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		return record.FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return record.FailureTimeout
	}
	return record.FailureTransport
}
