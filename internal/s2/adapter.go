package s2

import (
	"context"
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
	"github.com/lukeslp/reference-renamer/internal/source"
)

// SourceID identifies this adapter in records and the ledger.
const SourceID = "s2"

// DefaultConfidence is the static prior for S2 matches.
const DefaultConfidence = 0.85

// Adapter exposes a Client as a metadata source.
type Adapter struct {
	client     *Client
	confidence float64
	now        func() time.Time
}

// NewAdapter wraps client with the given confidence prior.
func NewAdapter(client *Client, confidence float64) *Adapter {
	return &Adapter{client: client, confidence: confidence, now: time.Now}
}

func (a *Adapter) ID() string              { return SourceID }
func (a *Adapter) Kind() record.SourceKind { return record.KindRepository }

// Fetch looks the document up by DOI when one is hinted and falls back to
// a title match.
func (a *Adapter) Fetch(ctx context.Context, q source.Query) (record.SourceRecord, error) {
	var (
		paper *Paper
		err   error
	)
	if doi := record.NormalizeDOI(q.Hints.DOI); doi != "" {
		paper, err = a.client.GetPaperByDOI(ctx, doi)
		if err != nil && !IsNotFound(err) {
			return record.SourceRecord{}, err
		}
	}
	if paper == nil {
		if q.Hints.Title == "" {
			if err != nil {
				return record.SourceRecord{}, err
			}
			return record.SourceRecord{}, source.ErrNoQuery
		}
		paper, err = a.client.MatchTitle(ctx, q.Hints.Title)
		if err != nil {
			return record.SourceRecord{}, err
		}
	}
	return MapPaper(*paper, SourceID, a.confidence, a.now().UTC()), nil
}
