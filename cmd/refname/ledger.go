package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lukeslp/reference-renamer/internal/ledger"
	"github.com/lukeslp/reference-renamer/internal/pipeline"
)

var (
	ledgerListDecision string
	ledgerListPath     string
	ledgerListLimit    int
	ledgerListAll      bool
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerListCmd, ledgerShowCmd, ledgerRebuildCmd, ledgerRecoverCmd)

	ledgerListCmd.Flags().StringVar(&ledgerListDecision, "decision", "", "Only entries with this decision")
	ledgerListCmd.Flags().StringVar(&ledgerListPath, "path", "", "Only entries whose original path contains this text")
	ledgerListCmd.Flags().IntVarP(&ledgerListLimit, "limit", "n", DefaultListLimit, "Maximum entries to show (0 for all)")
	ledgerListCmd.Flags().BoolVar(&ledgerListAll, "all", false, "Include provisional intent entries")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and maintain the decision ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list [dir]",
	Short: "List recent ledger entries, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLedgerList,
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show <fingerprint> [dir]",
	Short: "Show every entry for a document fingerprint",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runLedgerShow,
}

var ledgerRebuildCmd = &cobra.Command{
	Use:   "rebuild [dir]",
	Short: "Rebuild the SQLite query cache from the ledger",
	Long: `Rebuild the SQLite query cache from ledger.jsonl.

The JSONL ledger is the source of truth; the cache only speeds up listing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLedgerRebuild,
}

var ledgerRecoverCmd = &cobra.Command{
	Use:   "recover [dir]",
	Short: "Settle renames left pending by an interrupted run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLedgerRecover,
}

// openFreshIndex opens the query cache, rebuilding it when the ledger is newer.
func openFreshIndex(dir string) *ledger.Index {
	logPath := filepath.Join(dir, ledger.LogFile)
	logInfo, err := os.Stat(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			exitWithError(ExitDataError, "no ledger found in %s", dir)
		}
		exitWithError(ExitDataError, "reading ledger: %v", err)
	}

	idxPath := filepath.Join(dir, ledger.IndexFile)
	stale := true
	if idxInfo, err := os.Stat(idxPath); err == nil {
		stale = idxInfo.ModTime().Before(logInfo.ModTime())
	}

	idx, err := ledger.OpenIndex(idxPath)
	if err != nil {
		exitWithError(ExitError, "opening ledger cache: %v", err)
	}
	if stale {
		if _, err := idx.RebuildFromJSONL(logPath); err != nil {
			idx.Close()
			exitWithError(ExitDataError, "rebuilding ledger cache: %v", err)
		}
	}
	return idx
}

func runLedgerList(cmd *cobra.Command, args []string) error {
	dir := resolveLedgerDir(rootArg(args))

	decision := ledger.Decision(ledgerListDecision)
	if decision != "" && !decision.Valid() {
		exitWithError(ExitError, "unknown decision %q (valid: %s)", ledgerListDecision, decisionNames())
	}

	idx := openFreshIndex(dir)
	defer idx.Close()

	entries, err := idx.Query(ledger.Filter{
		Decision:     decision,
		PathContains: ledgerListPath,
		FinalOnly:    !ledgerListAll,
		Limit:        ledgerListLimit,
	})
	if err != nil {
		exitWithError(ExitError, "querying ledger: %v", err)
	}

	if humanOutput {
		printEntriesHuman(entries)
		return nil
	}
	if entries == nil {
		entries = []ledger.Entry{}
	}
	return outputJSON(entries)
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	fp := args[0]
	dir := resolveLedgerDir(rootArg(args[1:]))

	idx := openFreshIndex(dir)
	defer idx.Close()

	entries, err := idx.Query(ledger.Filter{Fingerprint: fp})
	if err != nil {
		exitWithError(ExitError, "querying ledger: %v", err)
	}
	if len(entries) == 0 {
		exitWithError(ExitDataError, "no ledger entries for fingerprint %s", fp)
	}

	if humanOutput {
		printEntriesHuman(entries)
		return nil
	}
	return outputJSON(entries)
}

func runLedgerRebuild(cmd *cobra.Command, args []string) error {
	dir := resolveLedgerDir(rootArg(args))

	idx, err := ledger.OpenIndex(filepath.Join(dir, ledger.IndexFile))
	if err != nil {
		exitWithError(ExitError, "opening ledger cache: %v", err)
	}
	defer idx.Close()

	n, err := idx.RebuildFromJSONL(filepath.Join(dir, ledger.LogFile))
	if err != nil {
		exitWithError(ExitDataError, "rebuilding ledger cache: %v", err)
	}

	if humanOutput {
		outputHuman("Rebuilt ledger cache with %d entries\n", n)
		return nil
	}
	return outputJSON(StatusResponse{Status: "rebuilt", Path: dir, Count: n})
}

func runLedgerRecover(cmd *cobra.Command, args []string) error {
	dir := resolveLedgerDir(rootArg(args))

	led, err := ledger.Open(dir)
	if err != nil {
		if errors.Is(err, ledger.ErrLocked) {
			exitWithError(ExitLedgerLocked, "ledger %s is in use by another refname process", dir)
		}
		exitWithError(ExitDataError, "opening ledger: %v", err)
	}
	defer led.Close()

	outcomes, err := pipeline.Recover(cmd.Context(), led)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	if humanOutput {
		if len(outcomes) == 0 {
			outputHuman("No pending renames\n")
			return nil
		}
		for _, o := range outcomes {
			outputHuman("%-8s %s\n", o.Decision, o.Path)
		}
		return nil
	}
	if outcomes == nil {
		outcomes = []pipeline.Outcome{}
	}
	return outputJSON(outcomes)
}

func printEntriesHuman(entries []ledger.Entry) {
	if len(entries) == 0 {
		outputHuman("No entries\n")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		decision := string(e.Decision)
		if e.Phase == ledger.PhaseIntent {
			decision = "intent"
		}
		if e.DryRun && e.Decision != ledger.DecisionDryRunPreview {
			decision += " (dry)"
		}
		conf := ""
		if e.Record != nil {
			conf = formatConfidence(e.Record.OverallConfidence)
		}
		rows = append(rows, []string{
			e.Timestamp.Local().Format("2006-01-02 15:04"),
			decision,
			truncateLeft(e.OriginalPath, PathMaxLen),
			truncateString(e.FinalFilename, NameMaxLen),
			conf,
		})
	}
	outputHuman("%s\n", renderTable(os.Stdout, []string{"When", "Decision", "Original", "Name", "Conf"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
}

func decisionNames() string {
	names := make([]string, len(ledger.Decisions))
	for i, d := range ledger.Decisions {
		names[i] = string(d)
	}
	return strings.Join(names, ", ")
}
