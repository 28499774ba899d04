package fusion

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
)

// Weights sets each field's share of the overall confidence.
type Weights struct {
	DOI     float64 `json:"doi" yaml:"doi" mapstructure:"doi"`
	Authors float64 `json:"authors" yaml:"authors" mapstructure:"authors"`
	Year    float64 `json:"year" yaml:"year" mapstructure:"year"`
	Title   float64 `json:"title" yaml:"title" mapstructure:"title"`
}

// DefaultWeights ranks the independently verifiable DOI highest.
func DefaultWeights() Weights {
	return Weights{DOI: 0.35, Authors: 0.25, Year: 0.25, Title: 0.15}
}

func (w Weights) of(f record.FieldName) float64 {
	switch f {
	case record.FieldDOI:
		return w.DOI
	case record.FieldAuthors:
		return w.Authors
	case record.FieldYear:
		return w.Year
	case record.FieldTitle:
		return w.Title
	}
	return 0
}

// Reconcile merges source records into one FusedRecord by per-field
// evidence-weighted voting. It is pure: the result depends only on the
// records' contents, never on their order.
func Reconcile(records []record.SourceRecord, fingerprint string, w Weights) record.FusedRecord {
	recs := slices.Clone(records)
	slices.SortStableFunc(recs, func(a, b record.SourceRecord) int {
		if c := strings.Compare(a.SourceID, b.SourceID); c != 0 {
			return c
		}
		return a.FetchedAt.Compare(b.FetchedAt)
	})

	fused := record.FusedRecord{Fingerprint: fingerprint}
	if len(recs) == 0 {
		return fused
	}

	if v := vote(recs, func(r record.SourceRecord) string { return record.AuthorKey(r.Authors) }); v.ok {
		fused.Authors = record.Field[[]string]{Value: slices.Clone(v.rep.Authors), Confidence: v.confidence, Sources: v.sources}
	}
	if v := vote(recs, func(r record.SourceRecord) string { return yearKey(r.Year) }); v.ok {
		fused.Year = record.Field[int]{Value: v.rep.Year, Confidence: v.confidence, Sources: v.sources}
	}
	if v := vote(recs, func(r record.SourceRecord) string { return record.NormalizeTitle(r.Title) }); v.ok {
		fused.Title = record.Field[string]{Value: v.rep.Title, Confidence: v.confidence, Sources: v.sources}
	}
	if v := vote(recs, func(r record.SourceRecord) string { return record.NormalizeDOI(r.DOI) }); v.ok {
		fused.DOI = record.Field[string]{Value: record.NormalizeDOI(v.rep.DOI), Confidence: v.confidence, Sources: v.sources}
	}

	fused.OverallConfidence = overall(recs, fused, w)
	return fused
}

func yearKey(y int) string {
	if y == 0 {
		return ""
	}
	return strconv.Itoa(y)
}

// overall is the weighted mean of field confidences over the fields that
// at least one source attempted.
func overall(recs []record.SourceRecord, f record.FusedRecord, w Weights) float64 {
	conf := map[record.FieldName]float64{
		record.FieldAuthors: f.Authors.Confidence,
		record.FieldYear:    f.Year.Confidence,
		record.FieldTitle:   f.Title.Confidence,
		record.FieldDOI:     f.DOI.Confidence,
	}

	var num, den float64
	for _, field := range record.AllFields {
		attempted := slices.ContainsFunc(recs, func(r record.SourceRecord) bool { return r.Attempted(field) })
		if !attempted {
			continue
		}
		num += w.of(field) * conf[field]
		den += w.of(field)
	}
	if den == 0 {
		return 0
	}
	return clamp01(num / den)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// weightEpsilon absorbs float summation noise when comparing group weights.
const weightEpsilon = 1e-9

type group struct {
	key      string
	weight   float64
	members  []record.SourceRecord
	priority int
}

type outcome struct {
	ok         bool
	rep        record.SourceRecord
	confidence float64
	sources    []string
}

// vote groups records by key (empty keys carry no evidence) and picks the
// winning group.
func vote(recs []record.SourceRecord, key func(record.SourceRecord) string) outcome {
	byKey := make(map[string]*group)
	var total float64
	count := 0
	for _, r := range recs {
		k := key(r)
		if k == "" {
			continue
		}
		g := byKey[k]
		if g == nil {
			g = &group{key: k}
			byKey[k] = g
		}
		g.weight += r.Confidence
		g.members = append(g.members, r)
		g.priority = max(g.priority, r.Kind.Priority())
		total += r.Confidence
		count++
	}
	if count == 0 {
		return outcome{}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var win *group
	for _, k := range keys {
		if g := byKey[k]; win == nil || beats(g, win) {
			win = g
		}
	}

	var conf float64
	if total > 0 {
		conf = win.weight / total
	} else {
		conf = float64(len(win.members)) / float64(count)
	}

	sources := make([]string, 0, len(win.members))
	for _, m := range win.members {
		sources = append(sources, m.SourceID)
	}
	slices.Sort(sources)
	sources = slices.Compact(sources)

	return outcome{ok: true, rep: representative(win.members), confidence: clamp01(conf), sources: sources}
}

// beats orders groups: weight, then source-kind priority, then earliest
// fetch, then key.
func beats(a, b *group) bool {
	if math.Abs(a.weight-b.weight) > weightEpsilon {
		return a.weight > b.weight
	}
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	ea, eb := earliest(a.members), earliest(b.members)
	if !ea.Equal(eb) {
		return ea.Before(eb)
	}
	return a.key < b.key
}

func earliest(members []record.SourceRecord) time.Time {
	t := members[0].FetchedAt
	for _, m := range members[1:] {
		if m.FetchedAt.Before(t) {
			t = m.FetchedAt
		}
	}
	return t
}

// representative picks the member whose rendering of the value is used.
func representative(members []record.SourceRecord) record.SourceRecord {
	best := members[0]
	for _, m := range members[1:] {
		switch {
		case m.Confidence != best.Confidence:
			if m.Confidence > best.Confidence {
				best = m
			}
		case m.Kind.Priority() != best.Kind.Priority():
			if m.Kind.Priority() > best.Kind.Priority() {
				best = m
			}
		case !m.FetchedAt.Equal(best.FetchedAt):
			if m.FetchedAt.Before(best.FetchedAt) {
				best = m
			}
		case m.SourceID < best.SourceID:
			best = m
		}
	}
	return best
}
