package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lukeslp/reference-renamer/internal/fileops"
	"github.com/lukeslp/reference-renamer/internal/heuristic"
	"github.com/lukeslp/reference-renamer/internal/ledger"
	"github.com/lukeslp/reference-renamer/internal/metrics"
	"github.com/lukeslp/reference-renamer/internal/naming"
	"github.com/lukeslp/reference-renamer/internal/record"
	"github.com/lukeslp/reference-renamer/internal/scan"
	"github.com/lukeslp/reference-renamer/internal/source"
)

// Defaults for a Runner.
const (
	DefaultJobs            = 4
	DefaultDocumentTimeout = 60 * time.Second
)

// errCancelled marks documents the run never scheduled.
const errCancelled = "run cancelled before processing"

// Runner processes documents. One Runner serves one run.
type Runner struct {
	extractor Extractor
	fuser     Fuser
	namer     *naming.Synthesizer
	ledger    Ledger
	mutator   Mutator
	metrics   *metrics.Metrics

	dryRun      bool
	reprocess   bool
	threshold   float64
	jobs        int
	docTimeout  time.Duration
	runID       string
	readFile    func(string) ([]byte, error)
	listDir     func(string) ([]string, error)
	fingerprint *keyedMutex

	dirsMu sync.Mutex
	dirs   map[string]*naming.Assigned
}

// Option configures a Runner.
type Option func(*Runner)

// WithDryRun records previews instead of renaming.
func WithDryRun(v bool) Option { return func(r *Runner) { r.dryRun = v } }

// WithReprocess ignores earlier ledger decisions.
func WithReprocess(v bool) Option { return func(r *Runner) { r.reprocess = v } }

// WithThreshold sets the minimum overall confidence for a rename.
func WithThreshold(t float64) Option { return func(r *Runner) { r.threshold = t } }

// WithJobs bounds how many documents are processed at once.
func WithJobs(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.jobs = n
		}
	}
}

// WithDocumentTimeout bounds the time spent on one document.
func WithDocumentTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.docTimeout = d
		}
	}
}

// WithMetrics records decisions on m.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Runner) { r.metrics = m } }

// WithRunID overrides the generated run id.
func WithRunID(id string) Option { return func(r *Runner) { r.runID = id } }

// New builds a Runner.
func New(ex Extractor, fuser Fuser, namer *naming.Synthesizer, led Ledger, mut Mutator, opts ...Option) *Runner {
	r := &Runner{
		extractor:   ex,
		fuser:       fuser,
		namer:       namer,
		ledger:      led,
		mutator:     mut,
		threshold:   ledger.DefaultThreshold,
		jobs:        DefaultJobs,
		docTimeout:  DefaultDocumentTimeout,
		runID:       uuid.NewString(),
		readFile:    os.ReadFile,
		listDir:     scan.Names,
		fingerprint: newKeyedMutex(),
		dirs:        make(map[string]*naming.Assigned),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes paths concurrently and returns one outcome per path in
// input order. Cancelling ctx stops scheduling; documents already started
// finish and are recorded. The error is non-nil only when ctx was cancelled.
func (r *Runner) Run(ctx context.Context, paths []string) (Summary, error) {
	start := time.Now()
	outcomes := make([]Outcome, len(paths))

	zap.L().Info("starting run",
		zap.String("run_id", r.runID),
		zap.Int("documents", len(paths)),
		zap.Int("jobs", r.jobs),
		zap.Bool("dry_run", r.dryRun),
	)

	var g errgroup.Group
	g.SetLimit(r.jobs)

	scheduled := 0
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		scheduled++
		i, path := i, path
		g.Go(func() error {
			outcomes[i] = r.process(ctx, path)
			return nil
		})
	}
	_ = g.Wait()

	for i := scheduled; i < len(paths); i++ {
		outcomes[i] = Outcome{Path: paths[i], Decision: ledger.DecisionError, Error: errCancelled}
		r.observe(outcomes[i])
	}

	summary := newSummary(r.runID, r.dryRun, outcomes)
	summary.Duration = time.Since(start)

	zap.L().Info("run complete",
		zap.String("run_id", r.runID),
		zap.Int("applied", summary.Counts[ledger.DecisionApplied]),
		zap.Int("previewed", summary.Counts[ledger.DecisionDryRunPreview]),
		zap.Int("low_confidence", summary.Counts[ledger.DecisionSkippedLowConfidence]),
		zap.Int("duplicates", summary.Counts[ledger.DecisionSkippedDuplicate]),
		zap.Int("errors", summary.Counts[ledger.DecisionError]),
		zap.Duration("elapsed", summary.Duration),
	)

	if scheduled < len(paths) {
		return summary, eris.Wrapf(ctx.Err(), "pipeline: run cancelled after %d of %d documents", scheduled, len(paths))
	}
	return summary, nil
}

// process handles one document. It detaches from run cancellation so a
// started document always reaches a recorded decision.
func (r *Runner) process(runCtx context.Context, path string) Outcome {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(runCtx), r.docTimeout)
	defer cancel()

	log := zap.L().With(zap.String("path", path))
	out := Outcome{Path: path}

	text, err := r.extractor.Extract(path)
	if err != nil {
		log.Warn("text extraction failed, fusing without text", zap.Error(err))
		text = ""
	}

	fp, err := r.fingerprintOf(path, text)
	if err != nil {
		log.Error("cannot fingerprint document", zap.Error(err))
		out.Decision = ledger.DecisionError
		out.Error = err.Error()
		r.observe(out)
		return out
	}
	out.Fingerprint = fp

	unlock := r.fingerprint.Lock(fp)
	defer unlock()

	if !r.reprocess && r.ledger.HasSeen(fp) {
		out = r.duplicate(out)
		r.observe(out)
		return out
	}

	q := source.Query{TextExcerpt: text, Hints: heuristic.Extract(text)}
	fused := r.fuser.FuseQuery(ctx, fp, q)
	out.Record = &fused
	out.OverallConfidence = fused.OverallConfidence

	decision := ledger.Decide(fused.OverallConfidence, r.threshold, r.dryRun)
	switch decision {
	case ledger.DecisionSkippedLowConfidence:
		out = r.lowConfidence(out, filepath.Ext(path))
	default:
		out = r.rename(ctx, out, decision)
	}

	log.Info("document processed",
		zap.String("decision", string(out.Decision)),
		zap.String("final_filename", out.FinalFilename),
		zap.Float64("confidence", out.OverallConfidence),
	)
	r.observe(out)
	return out
}

// fingerprintOf hashes the text, or the file bytes when no text was extracted.
func (r *Runner) fingerprintOf(path, text string) (string, error) {
	if strings.TrimSpace(text) != "" {
		return record.Fingerprint(text), nil
	}
	data, err := r.readFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "pipeline: read %s", path)
	}
	return record.FingerprintBytes(data), nil
}

func (r *Runner) entry(out Outcome) ledger.Entry {
	return ledger.Entry{
		RunID:        r.runID,
		Fingerprint:  out.Fingerprint,
		OriginalPath: out.Path,
		Record:       out.Record,
		DryRun:       r.dryRun,
	}
}

func (r *Runner) duplicate(out Outcome) Outcome {
	out.Decision = ledger.DecisionSkippedDuplicate
	if prev, ok := r.ledger.Latest(out.Fingerprint); ok {
		out.FinalFilename = prev.FinalFilename
		out.Record = prev.Record
		if prev.Record != nil {
			out.OverallConfidence = prev.Record.OverallConfidence
		}
	}

	e := r.entry(out)
	e.Decision = ledger.DecisionSkippedDuplicate
	e.FinalFilename = out.FinalFilename
	return r.commit(out, e)
}

func (r *Runner) lowConfidence(out Outcome, ext string) Outcome {
	out.Decision = ledger.DecisionSkippedLowConfidence
	out.CandidateFilename = r.namer.Candidate(*out.Record, ext)

	e := r.entry(out)
	e.Decision = ledger.DecisionSkippedLowConfidence
	return r.commit(out, e)
}

// commit appends a final entry and folds write failures into the outcome.
func (r *Runner) commit(out Outcome, e ledger.Entry) Outcome {
	saved, err := r.ledger.Record(e)
	if err != nil {
		zap.L().Error("ledger append failed", zap.String("path", out.Path), zap.Error(err))
		out.Decision = ledger.DecisionError
		out.Error = err.Error()
		return out
	}
	out.EntryID = saved.ID
	return out
}

// rename names the document and, outside dry runs, applies the rename
// between an intent and its confirmation.
func (r *Runner) rename(ctx context.Context, out Outcome, decision ledger.Decision) Outcome {
	dir, current := filepath.Split(out.Path)
	assigned, err := r.assigned(filepath.Clean(dir))
	if err != nil {
		return r.fail(out, eris.Wrapf(err, "pipeline: list %s", dir))
	}

	named, err := r.namer.SynthesizeFor(*out.Record, filepath.Ext(out.Path), assigned, current)
	out.CandidateFilename = named.CandidateFilename
	if err != nil {
		return r.fail(out, err)
	}
	out.FinalFilename = named.FinalFilename
	out.CollisionCount = named.CollisionCount

	e := r.entry(out)
	e.FinalFilename = named.FinalFilename
	e.CollisionCount = named.CollisionCount

	if decision == ledger.DecisionDryRunPreview {
		saved, err := r.ledger.Preview(e)
		if err != nil {
			return r.fail(out, err)
		}
		out.Decision = ledger.DecisionDryRunPreview
		out.EntryID = saved.ID
		return out
	}

	if named.FinalFilename == current {
		e.Decision = ledger.DecisionApplied
		out.Decision = ledger.DecisionApplied
		return r.commit(out, e)
	}

	intent, err := r.ledger.Intent(e)
	if err != nil {
		assigned.Release(named.FinalFilename)
		out.FinalFilename = ""
		out.Decision = ledger.DecisionError
		out.Error = err.Error()
		zap.L().Error("ledger intent failed, rename not attempted", zap.String("path", out.Path), zap.Error(err))
		return out
	}

	req := fileops.Request{OriginalPath: out.Path, FinalFilename: named.FinalFilename}
	if err := r.mutator.Apply(ctx, req); err != nil {
		if !errors.Is(err, fileops.ErrTargetExists) {
			assigned.Release(named.FinalFilename)
		}
		out.FinalFilename = ""
		out.Decision = ledger.DecisionError
		out.Error = err.Error()
		if saved, cerr := r.ledger.Confirm(intent, ledger.DecisionError, err.Error()); cerr == nil {
			out.EntryID = saved.ID
		} else {
			zap.L().Error("ledger confirm failed", zap.String("path", out.Path), zap.Error(cerr))
		}
		return out
	}

	saved, err := r.ledger.Confirm(intent, ledger.DecisionApplied, "")
	if err != nil {
		zap.L().Error("ledger confirm failed, reverting rename", zap.String("path", out.Path), zap.Error(err))
		if rerr := r.mutator.Revert(ctx, req); rerr != nil {
			zap.L().Error("revert failed", zap.String("path", out.Path), zap.Error(rerr))
		}
		assigned.Release(named.FinalFilename)
		out.FinalFilename = ""
		out.Decision = ledger.DecisionError
		out.Error = err.Error()
		return out
	}

	out.Decision = ledger.DecisionApplied
	out.EntryID = saved.ID
	return out
}

func (r *Runner) fail(out Outcome, err error) Outcome {
	out.Decision = ledger.DecisionError
	out.Error = err.Error()
	e := r.entry(out)
	e.Decision = ledger.DecisionError
	e.Error = err.Error()
	if saved, rerr := r.ledger.Record(e); rerr == nil {
		out.EntryID = saved.ID
	} else {
		zap.L().Error("ledger append failed", zap.String("path", out.Path), zap.Error(rerr))
	}
	return out
}

// assigned returns the name set for dir, seeded with its current entries.
func (r *Runner) assigned(dir string) (*naming.Assigned, error) {
	r.dirsMu.Lock()
	defer r.dirsMu.Unlock()

	if a, ok := r.dirs[dir]; ok {
		return a, nil
	}
	names, err := r.listDir(dir)
	if err != nil {
		return nil, err
	}
	a := naming.NewAssigned(names...)
	r.dirs[dir] = a
	return a, nil
}

func (r *Runner) observe(out Outcome) {
	if r.metrics == nil {
		return
	}
	r.metrics.ObserveDocument(string(out.Decision), out.OverallConfidence, out.Record != nil)
}
