package heuristic

import (
	"context"
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
	"github.com/lukeslp/reference-renamer/internal/source"
)

// SourceID identifies this adapter in records and the ledger.
const SourceID = "heuristic"

// DefaultConfidence is the static prior for regex-derived fields.
const DefaultConfidence = 0.30

// Adapter reports what Extract finds in the excerpt.
type Adapter struct {
	confidence float64
	now        func() time.Time
}

// NewAdapter creates the free-text source.
func NewAdapter(confidence float64) *Adapter {
	return &Adapter{confidence: confidence, now: time.Now}
}

func (a *Adapter) ID() string              { return SourceID }
func (a *Adapter) Kind() record.SourceKind { return record.KindHeuristic }

// Fetch never touches the network.
func (a *Adapter) Fetch(ctx context.Context, q source.Query) (record.SourceRecord, error) {
	if err := ctx.Err(); err != nil {
		return record.SourceRecord{}, err
	}
	h := Extract(q.TextExcerpt)
	rec := record.SourceRecord{
		SourceID:   SourceID,
		Kind:       record.KindHeuristic,
		Year:       h.Year,
		Title:      h.Title,
		DOI:        h.DOI,
		Confidence: a.confidence,
		FetchedAt:  a.now().UTC(),
		Provides:   []record.FieldName{record.FieldYear, record.FieldTitle, record.FieldDOI},
	}
	if rec.IsEmpty() {
		return record.SourceRecord{}, source.ErrNotFound
	}
	return rec, nil
}
