// Package pipeline runs documents through extraction, fusion, naming, the
// ledger and the rename, one terminal decision per document.
package pipeline

import (
	"context"

	"github.com/lukeslp/reference-renamer/internal/fileops"
	"github.com/lukeslp/reference-renamer/internal/ledger"
	"github.com/lukeslp/reference-renamer/internal/record"
	"github.com/lukeslp/reference-renamer/internal/source"
)

// Extractor supplies raw document text.
type Extractor interface {
	Extract(path string) (string, error)
}

// Mutator performs and undoes renames on disk.
type Mutator interface {
	Apply(ctx context.Context, req fileops.Request) error
	Revert(ctx context.Context, req fileops.Request) error
}

// Fuser reconciles source answers for one document. *fusion.Engine
// implements it.
type Fuser interface {
	FuseQuery(ctx context.Context, fingerprint string, q source.Query) record.FusedRecord
}

// Ledger is the decision log. *ledger.Ledger implements it.
type Ledger interface {
	HasSeen(fingerprint string) bool
	Latest(fingerprint string) (ledger.Entry, bool)
	Record(e ledger.Entry) (ledger.Entry, error)
	Preview(e ledger.Entry) (ledger.Entry, error)
	Intent(e ledger.Entry) (ledger.Entry, error)
	Confirm(intent ledger.Entry, decision ledger.Decision, errMsg string) (ledger.Entry, error)
	Pending() []ledger.Entry
}
