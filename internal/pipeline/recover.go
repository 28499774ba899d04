package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lukeslp/reference-renamer/internal/fileops"
	"github.com/lukeslp/reference-renamer/internal/ledger"
)

// errInterrupted is recorded for intents whose rename never completed.
const errInterrupted = "interrupted before rename completed"

// Recover settles intents left by a crashed run. A rename that reached the
// disk is confirmed as applied; anything else becomes an error entry.
func Recover(ctx context.Context, led Ledger) ([]Outcome, error) {
	pending := led.Pending()
	out := make([]Outcome, 0, len(pending))

	for _, intent := range pending {
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "pipeline: recover cancelled")
		}

		req := fileops.Request{OriginalPath: intent.OriginalPath, FinalFilename: intent.FinalFilename}
		decision, msg := ledger.DecisionError, errInterrupted
		if fileops.Settled(req) {
			decision, msg = ledger.DecisionApplied, ""
		}

		saved, err := led.Confirm(intent, decision, msg)
		if err != nil {
			return out, eris.Wrapf(err, "pipeline: settle intent %s", intent.ID)
		}
		zap.L().Info("settled pending intent",
			zap.String("path", intent.OriginalPath),
			zap.String("decision", string(decision)),
		)

		o := Outcome{
			Path:        intent.OriginalPath,
			Fingerprint: intent.Fingerprint,
			Decision:    decision,
			Record:      intent.Record,
			EntryID:     saved.ID,
			Error:       msg,
		}
		if decision == ledger.DecisionApplied {
			o.FinalFilename = intent.FinalFilename
		}
		if intent.Record != nil {
			o.OverallConfidence = intent.Record.OverallConfidence
		}
		out = append(out, o)
	}
	return out, nil
}
