package s2

import (
	"strconv"
	"strings"
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
)

// MapPaper converts a Graph API paper into a source record.
func MapPaper(paper Paper, sourceID string, confidence float64, fetchedAt time.Time) record.SourceRecord {
	authors := make([]string, 0, len(paper.Authors))
	for _, a := range paper.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	return record.SourceRecord{
		SourceID:   sourceID,
		Kind:       record.KindRepository,
		Authors:    authors,
		Year:       paperYear(paper),
		Title:      strings.Join(strings.Fields(paper.Title), " "),
		DOI:        record.NormalizeDOI(paper.ExternalIDs.DOI),
		Confidence: confidence,
		FetchedAt:  fetchedAt,
		Provides:   []record.FieldName{record.FieldAuthors, record.FieldYear, record.FieldTitle, record.FieldDOI},
	}
}

// paperYear prefers the year field and falls back to the YYYY prefix of
// publicationDate.
func paperYear(p Paper) int {
	if p.Year >= 1000 && p.Year <= 9999 {
		return p.Year
	}
	if len(p.PubDate) >= 4 {
		if y, err := strconv.Atoi(p.PubDate[:4]); err == nil && y >= 1000 {
			return y
		}
	}
	return 0
}
