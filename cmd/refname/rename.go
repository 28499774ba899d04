package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lukeslp/reference-renamer/internal/config"
	"github.com/lukeslp/reference-renamer/internal/extract"
	"github.com/lukeslp/reference-renamer/internal/fileops"
	"github.com/lukeslp/reference-renamer/internal/fusion"
	"github.com/lukeslp/reference-renamer/internal/ledger"
	"github.com/lukeslp/reference-renamer/internal/metrics"
	"github.com/lukeslp/reference-renamer/internal/naming"
	"github.com/lukeslp/reference-renamer/internal/pipeline"
	"github.com/lukeslp/reference-renamer/internal/scan"
)

var (
	renameDryRun      bool
	renameReprocess   bool
	renameRecursive   bool
	renameJobs        int
	renameBackup      bool
	renameThreshold   float64
	renameMetricsFile string
	renameRunID       string
)

func init() {
	rootCmd.AddCommand(renameCmd)
	renameCmd.Flags().BoolVar(&renameDryRun, "dry-run", false, "Preview names without renaming")
	renameCmd.Flags().BoolVar(&renameReprocess, "reprocess", false, "Process documents the ledger has already seen")
	renameCmd.Flags().BoolVarP(&renameRecursive, "recursive", "r", false, "Descend into subdirectories")
	renameCmd.Flags().IntVarP(&renameJobs, "jobs", "j", 0, "Documents processed concurrently (default from config)")
	renameCmd.Flags().BoolVar(&renameBackup, "backup", true, "Keep a verified .bak copy of each renamed file")
	renameCmd.Flags().Float64Var(&renameThreshold, "threshold", 0, "Minimum overall confidence to rename (default from config)")
	renameCmd.Flags().StringVar(&renameMetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	renameCmd.Flags().StringVar(&renameRunID, "run-id", "", "Run id stamped on ledger entries (default: random UUID)")
}

var renameCmd = &cobra.Command{
	Use:   "rename <dir>",
	Short: "Rename documents in a directory to Author_Year_Title form",
	Long: `Rename documents in a directory.

Each document is fingerprinted, looked up in all enabled sources in parallel
and named from the reconciled metadata. Documents below the confidence
threshold are left alone. Every decision is recorded in the ledger, and
documents the ledger has already seen are skipped unless --reprocess is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runRename,
}

// RenameResult is the response for the rename command.
type RenameResult struct {
	pipeline.Summary
	Recovered []pipeline.Outcome `json:"recovered,omitempty"`
	Ledger    string             `json:"ledger"`
}

func runRename(cmd *cobra.Command, args []string) error {
	root := rootArg(args)
	flags := cmd.Flags()

	dryRun := cfg.Run.DryRun
	if flags.Changed("dry-run") {
		dryRun = renameDryRun
	}
	recursive := cfg.Run.Recursive
	if flags.Changed("recursive") {
		recursive = renameRecursive
	}
	backup := cfg.Run.Backup
	if flags.Changed("backup") {
		backup = renameBackup
	}
	jobs := cfg.Run.Jobs
	if flags.Changed("jobs") {
		jobs = renameJobs
	}
	threshold := cfg.Ledger.Threshold
	if flags.Changed("threshold") {
		threshold = renameThreshold
	}
	cfg.Run.Jobs, cfg.Ledger.Threshold = jobs, threshold
	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	paths, err := scan.Files(root, scan.Options{
		Extensions: cfg.Run.Extensions,
		Recursive:  recursive,
		SkipDirs:   []string{config.LedgerDirName},
	})
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	dir := resolveLedgerDir(root)
	led, err := ledger.Open(dir)
	if err != nil {
		if errors.Is(err, ledger.ErrLocked) {
			exitWithError(ExitLedgerLocked, "ledger %s is in use by another refname process", dir)
		}
		exitWithError(ExitDataError, "opening ledger: %v", err)
	}
	defer led.Close()

	recovered, err := pipeline.Recover(cmd.Context(), led)
	if err != nil {
		exitWithError(ExitDataError, "recovering pending renames: %v", err)
	}

	m := metrics.New()
	adapters := buildAdapters(cfg)
	if len(adapters) == 0 {
		exitWithError(ExitConfigError, "no usable metadata sources")
	}
	engine := fusion.New(adapters,
		fusion.WithCeiling(cfg.Fusion.Ceiling),
		fusion.WithWeights(fusionWeights(cfg.Fusion.Weights)),
		fusion.WithObserver(m.ObserveLookup),
	)
	namer := naming.New(naming.Options{
		MaxTitleWords: cfg.Naming.MaxTitleWords,
		MaxBytes:      cfg.Naming.MaxBytes,
	})
	opts := []pipeline.Option{
		pipeline.WithDryRun(dryRun),
		pipeline.WithReprocess(renameReprocess),
		pipeline.WithThreshold(threshold),
		pipeline.WithJobs(jobs),
		pipeline.WithDocumentTimeout(cfg.Fusion.DocumentTimeout),
		pipeline.WithMetrics(m),
	}
	if renameRunID != "" {
		opts = append(opts, pipeline.WithRunID(renameRunID))
	}
	runner := pipeline.New(extract.New(), engine, namer, led, &fileops.Renamer{Backup: backup}, opts...)

	zap.L().Info("starting rename run",
		zap.String("dir", root),
		zap.Int("documents", len(paths)),
		zap.Strings("sources", engine.Adapters()),
		zap.Bool("dry_run", dryRun),
	)
	summary, runErr := runner.Run(cmd.Context(), paths)

	if renameMetricsFile != "" {
		if err := m.WriteTextfile(renameMetricsFile); err != nil {
			zap.L().Warn("writing metrics textfile failed", zap.String("path", renameMetricsFile), zap.Error(err))
		}
	}

	if humanOutput {
		printRenameHuman(root, summary, recovered)
	} else {
		outputJSON(RenameResult{Summary: summary, Recovered: recovered, Ledger: dir})
	}

	// The result is already on stdout, so only the exit code reports failure.
	switch {
	case runErr != nil:
		exitAfterResult(led, ExitInterrupted, runErr.Error())
	case summary.Counts[ledger.DecisionError] > 0:
		exitAfterResult(led, ExitDocErrors, fmt.Sprintf("%d document(s) ended in error", summary.Counts[ledger.DecisionError]))
	}
	return nil
}

func exitAfterResult(led *ledger.Ledger, code int, msg string) {
	led.Close()
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	}
	os.Exit(code)
}

func fusionWeights(w config.FieldWeights) fusion.Weights {
	return fusion.Weights{DOI: w.DOI, Authors: w.Authors, Year: w.Year, Title: w.Title}
}

func printRenameHuman(root string, s pipeline.Summary, recovered []pipeline.Outcome) {
	if len(recovered) > 0 {
		outputHuman("Settled %d pending rename(s) from an interrupted run.\n\n", len(recovered))
	}
	if len(s.Outcomes) == 0 {
		outputHuman("No documents found in %s\n", root)
		return
	}

	rows := make([][]string, 0, len(s.Outcomes))
	for _, o := range s.Outcomes {
		rel, err := filepath.Rel(root, o.Path)
		if err != nil {
			rel = o.Path
		}
		name := o.FinalFilename
		if name == "" {
			name = o.CandidateFilename
		}
		if o.Error != "" {
			name = "! " + o.Error
		}
		rows = append(rows, []string{
			truncateLeft(rel, PathMaxLen),
			string(o.Decision),
			truncateString(name, NameMaxLen),
			formatConfidence(o.OverallConfidence),
		})
	}
	outputHuman("%s\n", renderTable(os.Stdout, []string{"Document", "Decision", "Name", "Conf"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))

	mode := ""
	if s.DryRun {
		mode = " (dry run)"
	}
	outputHuman("\n%d applied, %d previewed, %d low confidence, %d duplicate, %d error%s in %s\n",
		s.Counts[ledger.DecisionApplied],
		s.Counts[ledger.DecisionDryRunPreview],
		s.Counts[ledger.DecisionSkippedLowConfidence],
		s.Counts[ledger.DecisionSkippedDuplicate],
		s.Counts[ledger.DecisionError],
		mode,
		s.Duration.Round(time.Millisecond),
	)
}
