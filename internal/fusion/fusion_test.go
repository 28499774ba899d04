package fusion

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
	"github.com/lukeslp/reference-renamer/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	zap.ReplaceGlobals(zap.NewNop())
	m.Run()
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func rec(id string, kind record.SourceKind, conf float64, offset time.Duration) record.SourceRecord {
	return record.SourceRecord{SourceID: id, Kind: kind, Confidence: conf, FetchedAt: t0.Add(offset)}
}

func scenarioARecords() []record.SourceRecord {
	var out []record.SourceRecord
	for _, r := range []record.SourceRecord{
		rec("s2", record.KindRepository, 0.9, 0),
		rec("ollama", record.KindModel, 0.6, time.Second),
		rec("heuristic", record.KindHeuristic, 0.3, 2*time.Second),
	} {
		r.Authors = []string{"Smith, J."}
		r.Year = 2023
		r.Title = "Deep Learning for Climate Modeling"
		out = append(out, r)
	}
	return out
}

func TestReconcile_ScenarioA_AgreeingSources(t *testing.T) {
	fused := Reconcile(scenarioARecords(), "fp", DefaultWeights())

	assert.GreaterOrEqual(t, fused.OverallConfidence, 0.9)
	assert.LessOrEqual(t, fused.OverallConfidence, 1.0)
	assert.Equal(t, []string{"Smith, J."}, fused.Authors.Value)
	assert.Equal(t, 2023, fused.Year.Value)
	assert.Equal(t, "Deep Learning for Climate Modeling", fused.Title.Value)
	assert.Equal(t, []string{"heuristic", "ollama", "s2"}, fused.Year.Sources)
	assert.InDelta(t, 1.0, fused.Title.Confidence, 1e-9)
}

func TestReconcile_ScenarioB_NoYear(t *testing.T) {
	recs := scenarioARecords()
	for i := range recs {
		recs[i].Year = 0
		recs[i].Provides = []record.FieldName{record.FieldAuthors, record.FieldYear, record.FieldTitle}
	}
	fused := Reconcile(recs, "fp", DefaultWeights())

	assert.Zero(t, fused.Year.Value)
	assert.Zero(t, fused.Year.Confidence)
	assert.Greater(t, fused.OverallConfidence, 0.0)
	assert.Less(t, fused.OverallConfidence, 1.0)
	// (0.25 + 0.15) / (0.25 + 0.25 + 0.15)
	assert.InDelta(t, 0.4/0.65, fused.OverallConfidence, 1e-9)
}

func TestReconcile_NoRecords(t *testing.T) {
	fused := Reconcile(nil, "fp", DefaultWeights())
	assert.Zero(t, fused.OverallConfidence)
	assert.False(t, fused.HasEvidence())
	assert.Equal(t, "fp", fused.Fingerprint)
}

func TestReconcile_WeightedVote(t *testing.T) {
	a := rec("arxiv", record.KindRepository, 0.8, 0)
	a.Year = 2021
	b := rec("ollama", record.KindModel, 0.5, 0)
	b.Year = 2022
	c := rec("heuristic", record.KindHeuristic, 0.2, 0)
	c.Year = 2022

	fused := Reconcile([]record.SourceRecord{a, b, c}, "fp", DefaultWeights())
	assert.Equal(t, 2021, fused.Year.Value)
	assert.InDelta(t, 0.8/1.5, fused.Year.Confidence, 1e-9)
	assert.Equal(t, []string{"arxiv"}, fused.Year.Sources)
}

func TestReconcile_TieBrokenBySourcePriority(t *testing.T) {
	a := rec("ollama", record.KindModel, 0.5, 0)
	a.Title = "A Model Title"
	b := rec("arxiv", record.KindRepository, 0.5, time.Hour)
	b.Title = "A Repository Title"

	fused := Reconcile([]record.SourceRecord{a, b}, "fp", DefaultWeights())
	assert.Equal(t, "A Repository Title", fused.Title.Value)
	assert.InDelta(t, 0.5, fused.Title.Confidence, 1e-9)
}

func TestReconcile_TieBrokenByEarliestFetch(t *testing.T) {
	a := rec("ollama", record.KindModel, 0.5, time.Second)
	a.Title = "Later Answer"
	b := rec("anthropic", record.KindModel, 0.5, 0)
	b.Title = "Earlier Answer"

	fused := Reconcile([]record.SourceRecord{a, b}, "fp", DefaultWeights())
	assert.Equal(t, "Earlier Answer", fused.Title.Value)
}

func TestReconcile_GroupsNormalizedValues(t *testing.T) {
	a := rec("s2", record.KindRepository, 0.85, 0)
	a.Title = "Deep Learning for Climate Modeling"
	a.Authors = []string{"John Smith"}
	a.DOI = "10.1/ABC"
	b := rec("ollama", record.KindModel, 0.5, 0)
	b.Title = "deep  learning for climate modeling."
	b.Authors = []string{"Smith, J."}
	b.DOI = "https://doi.org/10.1/abc"

	fused := Reconcile([]record.SourceRecord{a, b}, "fp", DefaultWeights())
	assert.InDelta(t, 1.0, fused.Title.Confidence, 1e-9)
	assert.InDelta(t, 1.0, fused.Authors.Confidence, 1e-9)
	assert.Equal(t, "10.1/abc", fused.DOI.Value)
	assert.Equal(t, "Deep Learning for Climate Modeling", fused.Title.Value)
	assert.Equal(t, []string{"John Smith"}, fused.Authors.Value)
}

func TestReconcile_AttemptedEmptyStaysInDenominator(t *testing.T) {
	withDOI := rec("s2", record.KindRepository, 0.85, 0)
	withDOI.Title = "Some Title Here"
	withDOI.Provides = []record.FieldName{record.FieldTitle, record.FieldDOI}

	withoutDOI := withDOI
	withoutDOI.Provides = []record.FieldName{record.FieldTitle}

	attempted := Reconcile([]record.SourceRecord{withDOI}, "fp", DefaultWeights())
	notAttempted := Reconcile([]record.SourceRecord{withoutDOI}, "fp", DefaultWeights())

	assert.InDelta(t, 0.15/0.5, attempted.OverallConfidence, 1e-9)
	assert.InDelta(t, 1.0, notAttempted.OverallConfidence, 1e-9)
}

func TestReconcile_ZeroConfidenceEvidenceStillCounts(t *testing.T) {
	r := rec("heuristic", record.KindHeuristic, 0, 0)
	r.Year = 2020
	fused := Reconcile([]record.SourceRecord{r}, "fp", DefaultWeights())
	assert.Greater(t, fused.OverallConfidence, 0.0)
}

func TestReconcile_DeterministicAndOrderIndependent(t *testing.T) {
	recs := scenarioARecords()
	recs[1].Title = "Another Title Entirely"
	recs[2].DOI = "10.5555/xyz"
	want := Reconcile(recs, "fp", DefaultWeights())

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := append([]record.SourceRecord(nil), recs...)
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		require.Equal(t, want, Reconcile(shuffled, "fp", DefaultWeights()))
	}
}

type stubAdapter struct {
	id    string
	kind  record.SourceKind
	delay time.Duration
	rec   record.SourceRecord
	fail  *source.Failure
}

func (s *stubAdapter) ID() string              { return s.id }
func (s *stubAdapter) Kind() record.SourceKind { return s.kind }
func (s *stubAdapter) Lookup(ctx context.Context, q source.Query) (record.SourceRecord, *source.Failure) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.rec, s.fail
}

func TestFuse_CollectsAllAnswers(t *testing.T) {
	recs := scenarioARecords()
	adapters := []source.Adapter{
		&stubAdapter{id: "s2", kind: record.KindRepository, rec: recs[0]},
		&stubAdapter{id: "ollama", kind: record.KindModel, rec: recs[1]},
		&stubAdapter{id: "heuristic", kind: record.KindHeuristic, rec: recs[2]},
		&stubAdapter{id: "arxiv", kind: record.KindRepository, fail: &source.Failure{Source: "arxiv", Kind: record.FailureNotFound}},
	}

	var mu sync.Mutex
	outcomes := map[string]string{}
	e := New(adapters, WithObserver(func(id, outcome string, _ time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		outcomes[id] = outcome
	}))

	fused := e.Fuse(context.Background(), "document text", source.Hints{})
	assert.Equal(t, record.Fingerprint("document text"), fused.Fingerprint)
	assert.GreaterOrEqual(t, fused.OverallConfidence, 0.9)
	require.Len(t, fused.Failures, 1)
	assert.Equal(t, record.FailureNotFound, fused.Failures[0].Kind)
	assert.Equal(t, "not_found", outcomes["arxiv"])
	assert.Equal(t, "ok", outcomes["s2"])
}

func TestFuse_ScenarioD_AllTimeout(t *testing.T) {
	adapters := []source.Adapter{
		&stubAdapter{id: "s2", kind: record.KindRepository, fail: &source.Failure{Source: "s2", Kind: record.FailureTimeout}},
		&stubAdapter{id: "arxiv", kind: record.KindRepository, fail: &source.Failure{Source: "arxiv", Kind: record.FailureTimeout}},
		&stubAdapter{id: "ollama", kind: record.KindModel, delay: time.Second, rec: scenarioARecords()[1]},
	}
	e := New(adapters, WithCeiling(50*time.Millisecond))

	start := time.Now()
	fused := e.Fuse(context.Background(), "text", source.Hints{})
	assert.Less(t, time.Since(start), 500*time.Millisecond, "engine must stop waiting at the ceiling")

	assert.Zero(t, fused.OverallConfidence)
	assert.False(t, fused.HasEvidence())
	require.Len(t, fused.Failures, 3)
	for _, f := range fused.Failures {
		assert.Equal(t, record.FailureTimeout, f.Kind)
	}
	assert.Equal(t, "arxiv", fused.Failures[0].Source)
}

func TestFuse_NoAdapters(t *testing.T) {
	fused := New(nil).Fuse(context.Background(), "", source.Hints{})
	assert.Zero(t, fused.OverallConfidence)
	assert.Empty(t, fused.Failures)
}
