// Package export renders applied ledger entries as citations.
package export

import (
	"fmt"
	"sort"

	"github.com/lukeslp/reference-renamer/internal/ledger"
	"github.com/lukeslp/reference-renamer/internal/naming"
)

// Citation is one renamed document's bibliographic record.
type Citation struct {
	Key         string   `json:"citation_key"`
	Authors     []string `json:"authors,omitempty"`
	Year        int      `json:"year,omitempty"`
	Title       string   `json:"title,omitempty"`
	DOI         string   `json:"doi,omitempty"`
	Filename    string   `json:"filename"`
	Fingerprint string   `json:"fingerprint"`
}

// FromEntries builds citations from the latest applied entry of each
// fingerprint, ordered by key. A later error or low-confidence entry from a
// reprocessing run withdraws the document; duplicate skips do not.
func FromEntries(entries []ledger.Entry) []Citation {
	latest := make(map[string]ledger.Entry)
	for _, e := range entries {
		if !e.Binding() {
			continue
		}
		switch e.Decision {
		case ledger.DecisionApplied:
			if e.Record != nil {
				latest[e.Fingerprint] = e
			}
		case ledger.DecisionSkippedDuplicate:
			// a rerun over an already renamed document leaves it in place
		default:
			delete(latest, e.Fingerprint)
		}
	}

	fps := make([]string, 0, len(latest))
	for fp := range latest {
		fps = append(fps, fp)
	}
	sort.Slice(fps, func(i, j int) bool {
		a, b := latest[fps[i]], latest[fps[j]]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return fps[i] < fps[j]
	})

	keys := make(map[string]bool, len(fps))
	out := make([]Citation, 0, len(fps))
	for _, fp := range fps {
		e := latest[fp]
		r := e.Record
		c := Citation{
			Authors:     r.Authors.Value,
			Year:        r.Year.Value,
			Title:       r.Title.Value,
			DOI:         r.DOI.Value,
			Filename:    e.FinalFilename,
			Fingerprint: fp,
		}
		c.Key = uniqueKey(baseKey(c), keys)
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// baseKey is Author_Year from the first author's surname.
func baseKey(c Citation) string {
	author := naming.UnknownAuthor
	if len(c.Authors) > 0 {
		author = naming.AuthorToken(c.Authors[0])
	}
	return author + "_" + naming.YearToken(c.Year)
}

// uniqueKey appends _a, _b, ... and then numbers once letters run out.
func uniqueKey(key string, taken map[string]bool) string {
	if !taken[key] {
		taken[key] = true
		return key
	}
	for s := 'a'; s <= 'z'; s++ {
		k := fmt.Sprintf("%s_%c", key, s)
		if !taken[k] {
			taken[k] = true
			return k
		}
	}
	for n := 27; ; n++ {
		k := fmt.Sprintf("%s_%d", key, n)
		if !taken[k] {
			taken[k] = true
			return k
		}
	}
}
