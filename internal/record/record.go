// Package record defines the bibliographic metadata types shared by the
// source adapters, the fusion engine, the name synthesizer and the ledger.
package record

import (
	"slices"
	"time"
)

// SourceKind classifies an adapter by reliability class.
type SourceKind string

const (
	KindRepository SourceKind = "repository" // DOI-backed catalogues and preprint servers
	KindModel      SourceKind = "model"      // language-model extraction
	KindHeuristic  SourceKind = "heuristic"  // regexes over free text
)

// Priority orders kinds for tie-breaking. Higher wins.
func (k SourceKind) Priority() int {
	switch k {
	case KindRepository:
		return 3
	case KindModel:
		return 2
	case KindHeuristic:
		return 1
	default:
		return 0
	}
}

// FieldName names one of the four fused bibliographic fields.
type FieldName string

const (
	FieldAuthors FieldName = "authors"
	FieldYear    FieldName = "year"
	FieldTitle   FieldName = "title"
	FieldDOI     FieldName = "doi"
)

// AllFields lists the fused fields in a fixed order.
var AllFields = []FieldName{FieldDOI, FieldAuthors, FieldYear, FieldTitle}

// SourceRecord is one source's opinion about a document.
type SourceRecord struct {
	SourceID   string     `json:"source_id"`
	Kind       SourceKind `json:"kind"`
	Authors    []string   `json:"authors,omitempty"`
	Year       int        `json:"year,omitempty"`
	Title      string     `json:"title,omitempty"`
	DOI        string     `json:"doi,omitempty"`
	Confidence float64    `json:"confidence"`
	FetchedAt  time.Time  `json:"fetched_at"`

	// Provides lists the fields the source attempted to answer. A nil slice
	// means "whatever fields carry a value".
	Provides []FieldName `json:"provides,omitempty"`
}

// IsEmpty reports whether the record carries no field values at all.
func (r SourceRecord) IsEmpty() bool {
	return len(r.Authors) == 0 && r.Year == 0 && r.Title == "" && r.DOI == ""
}

// Has reports whether the record carries a value for f.
func (r SourceRecord) Has(f FieldName) bool {
	switch f {
	case FieldAuthors:
		return len(r.Authors) > 0
	case FieldYear:
		return r.Year != 0
	case FieldTitle:
		return r.Title != ""
	case FieldDOI:
		return r.DOI != ""
	}
	return false
}

// Attempted reports whether the source tried to answer f.
func (r SourceRecord) Attempted(f FieldName) bool {
	if r.Provides == nil {
		return r.Has(f)
	}
	return slices.Contains(r.Provides, f) || r.Has(f)
}

// Field is one fused value with the share of evidence behind it.
type Field[T any] struct {
	Value      T        `json:"value"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
}

// FusedRecord is the reconciled metadata for one document.
type FusedRecord struct {
	Authors           Field[[]string] `json:"authors"`
	Year              Field[int]      `json:"year"`
	Title             Field[string]   `json:"title"`
	DOI               Field[string]   `json:"doi"`
	OverallConfidence float64         `json:"overall_confidence"`
	Fingerprint       string          `json:"fingerprint"`

	// Failures records adapters that produced nothing. Provenance only.
	Failures []Failure `json:"failures,omitempty"`
}

// FirstAuthor returns the first fused author, or "".
func (f FusedRecord) FirstAuthor() string {
	if len(f.Authors.Value) == 0 {
		return ""
	}
	return f.Authors.Value[0]
}

// HasEvidence reports whether any field was filled.
func (f FusedRecord) HasEvidence() bool {
	return len(f.Authors.Value) > 0 || f.Year.Value != 0 || f.Title.Value != "" || f.DOI.Value != ""
}

// FailureKind is the typed outcome of an adapter that produced no record.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureRateLimited FailureKind = "rate_limited"
	FailureNotFound    FailureKind = "not_found"
	FailureTransport   FailureKind = "transport_error"
)

// Failure describes why a source produced no record.
type Failure struct {
	Source  string      `json:"source"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message,omitempty"`
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return f.Source + ": " + string(f.Kind)
	}
	return f.Source + ": " + string(f.Kind) + ": " + f.Message
}
