package pipeline

import (
	"time"

	"github.com/lukeslp/reference-renamer/internal/ledger"
	"github.com/lukeslp/reference-renamer/internal/record"
)

// Outcome is the terminal result for one document.
type Outcome struct {
	Path              string              `json:"path"`
	Fingerprint       string              `json:"fingerprint,omitempty"`
	Decision          ledger.Decision     `json:"decision"`
	CandidateFilename string              `json:"candidate_filename,omitempty"`
	FinalFilename     string              `json:"final_filename,omitempty"`
	CollisionCount    int                 `json:"collision_count,omitempty"`
	OverallConfidence float64             `json:"overall_confidence"`
	Record            *record.FusedRecord `json:"fused_record,omitempty"`
	EntryID           string              `json:"entry_id,omitempty"`
	Error             string              `json:"error,omitempty"`
}

// Summary collects the outcomes of one run in input order.
type Summary struct {
	RunID    string                  `json:"run_id"`
	DryRun   bool                    `json:"dry_run"`
	Outcomes []Outcome               `json:"outcomes"`
	Counts   map[ledger.Decision]int `json:"counts"`
	Duration time.Duration           `json:"duration_ns"`
}

func newSummary(runID string, dryRun bool, outcomes []Outcome) Summary {
	counts := make(map[ledger.Decision]int)
	for _, o := range outcomes {
		counts[o.Decision]++
	}
	return Summary{RunID: runID, DryRun: dryRun, Outcomes: outcomes, Counts: counts}
}
