package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
	"github.com/lukeslp/reference-renamer/internal/source"
)

// Source ids and confidence priors for the two model backends.
const (
	OllamaSourceID    = "ollama"
	AnthropicSourceID = "anthropic"

	DefaultOllamaConfidence    = 0.50
	DefaultAnthropicConfidence = 0.60
)

// Adapter turns a Completer into a metadata source.
type Adapter struct {
	id         string
	completer  Completer
	confidence float64
	now        func() time.Time
}

// NewAdapter creates a model-backed source.
func NewAdapter(id string, c Completer, confidence float64) *Adapter {
	return &Adapter{id: id, completer: c, confidence: confidence, now: time.Now}
}

func (a *Adapter) ID() string              { return a.id }
func (a *Adapter) Kind() record.SourceKind { return record.KindModel }

// Fetch asks the model for the document's metadata.
func (a *Adapter) Fetch(ctx context.Context, q source.Query) (record.SourceRecord, error) {
	if strings.TrimSpace(q.TextExcerpt) == "" {
		return record.SourceRecord{}, source.ErrNoQuery
	}

	reply, err := a.completer.Complete(ctx, SystemPrompt, BuildUserPrompt(q.TextExcerpt))
	if err != nil {
		return record.SourceRecord{}, err
	}

	m, err := ParseMetadata(reply)
	if err != nil {
		return record.SourceRecord{}, fmt.Errorf("%s (%s): %w", a.id, a.completer.ModelName(), err)
	}

	rec := record.SourceRecord{
		SourceID:   a.id,
		Kind:       record.KindModel,
		Authors:    m.Authors,
		Year:       int(m.Year),
		Title:      m.Title,
		DOI:        validDOI(m.DOI),
		Confidence: a.confidence,
		FetchedAt:  a.now().UTC(),
		Provides:   []record.FieldName{record.FieldAuthors, record.FieldYear, record.FieldTitle, record.FieldDOI},
	}
	if rec.IsEmpty() {
		return record.SourceRecord{}, fmt.Errorf("%s: %w", a.id, source.ErrNotFound)
	}
	return rec, nil
}

// validDOI drops model answers that are not shaped like a DOI.
func validDOI(doi string) string {
	doi = record.NormalizeDOI(doi)
	if !strings.HasPrefix(doi, "10.") || !strings.Contains(doi, "/") {
		return ""
	}
	return doi
}
