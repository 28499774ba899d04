package arxiv

import (
	"context"
	"strings"
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
	"github.com/lukeslp/reference-renamer/internal/source"
)

// SourceID identifies this adapter in records and the ledger.
const SourceID = "arxiv"

// DefaultConfidence is the static prior for arXiv matches.
const DefaultConfidence = 0.80

// minTitleOverlap is the share of hinted title words a search hit must
// contain before it is accepted.
const minTitleOverlap = 0.6

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

// Fetch looks a preprint up by hinted arXiv id, else by title search.
func (a *Adapter) Fetch(ctx context.Context, q source.Query) (record.SourceRecord, error) {
	var (
		e   *Entry
		err error
	)
	switch {
	case q.Hints.ArXivID != "":
		e, err = a.client.GetByID(ctx, q.Hints.ArXivID)
	case q.Hints.Title != "":
		e, err = a.client.SearchTitle(ctx, q.Hints.Title)
		if err == nil && titleOverlap(q.Hints.Title, e.Title) < minTitleOverlap {
			err = ErrNotFound
		}
	default:
		err = source.ErrNoQuery
	}
	if err != nil {
		return record.SourceRecord{}, err
	}

	return record.SourceRecord{
		SourceID:   SourceID,
		Kind:       record.KindRepository,
		Authors:    e.Authors,
		Year:       e.Year,
		Title:      e.Title,
		DOI:        e.DOI,
		Confidence: a.confidence,
		FetchedAt:  a.now().UTC(),
		Provides:   []record.FieldName{record.FieldAuthors, record.FieldYear, record.FieldTitle},
	}, nil
}

// titleOverlap is the fraction of words in want that also appear in got.
func titleOverlap(want, got string) float64 {
	wantWords := strings.Fields(record.NormalizeTitle(want))
	if len(wantWords) == 0 {
		return 0
	}
	have := make(map[string]bool)
	for _, w := range strings.Fields(record.NormalizeTitle(got)) {
		have[w] = true
	}
	hits := 0
	for _, w := range wantWords {
		if have[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(wantWords))
}
