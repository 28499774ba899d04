// Package ledger is the append-only audit log of naming decisions. It is
// the only component that answers whether a document has been seen.
package ledger

import (
	"time"

	"github.com/lukeslp/reference-renamer/internal/record"
)

// Decision is the terminal outcome for one document.
type Decision string

const (
	DecisionApplied              Decision = "applied"
	DecisionDryRunPreview        Decision = "dry_run_preview"
	DecisionSkippedLowConfidence Decision = "skipped_low_confidence"
	DecisionSkippedDuplicate     Decision = "skipped_duplicate"
	DecisionError                Decision = "error"
)

// Decisions lists every decision kind.
var Decisions = []Decision{
	DecisionApplied,
	DecisionDryRunPreview,
	DecisionSkippedLowConfidence,
	DecisionSkippedDuplicate,
	DecisionError,
}

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	for _, known := range Decisions {
		if d == known {
			return true
		}
	}
	return false
}

// Phase separates provisional intents from final entries.
type Phase string

const (
	// PhaseIntent is written before an external rename is attempted.
	PhaseIntent Phase = "intent"

	// PhaseFinal records a settled outcome.
	PhaseFinal Phase = "final"
)

// DefaultThreshold is the overall confidence below which no rename is proposed.
const DefaultThreshold = 0.4

// Entry is one immutable ledger line.
type Entry struct {
	ID             string              `json:"id"`
	RunID          string              `json:"run_id,omitempty"`
	Phase          Phase               `json:"phase"`
	IntentID       string              `json:"intent_id,omitempty"`
	Fingerprint    string              `json:"fingerprint"`
	OriginalPath   string              `json:"original_path"`
	FinalFilename  string              `json:"final_filename,omitempty"`
	CollisionCount int                 `json:"collision_count,omitempty"`
	Decision       Decision            `json:"decision"`
	DryRun         bool                `json:"dry_run,omitempty"`
	Record         *record.FusedRecord `json:"fused_record,omitempty"`
	Error          string              `json:"error,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
}

// Binding reports whether the entry settles the fingerprint's state.
// Intents and dry-run entries never do.
func (e Entry) Binding() bool {
	return e.Phase == PhaseFinal && !e.DryRun
}

// Decide applies the confidence threshold.
func Decide(overall, threshold float64, dryRun bool) Decision {
	if overall < threshold {
		return DecisionSkippedLowConfidence
	}
	if dryRun {
		return DecisionDryRunPreview
	}
	return DecisionApplied
}
