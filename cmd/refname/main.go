// Package main provides the refname CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lukeslp/reference-renamer/internal/config"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	configPath  string
	ledgerDir   string

	cfg *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	_ = zap.L().Sync()
	if err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "refname",
	Short: "Standardize academic document filenames from fused metadata",
	Long: `refname renames academic documents to Author_Year_Title form.

Metadata is gathered from several sources in parallel (Semantic Scholar,
arXiv, local and hosted language models, text heuristics) and reconciled by
confidence-weighted voting. Every decision is appended to a JSONL ledger so
repeated runs never rename the same document twice.

All commands output JSON by default; use --human for tables.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/refname/config.yml)")
	rootCmd.PersistentFlags().StringVar(&ledgerDir, "ledger-dir", "", "Ledger directory (default <dir>/.refname)")
	rootCmd.Version = Version
}

func loadConfig(cmd *cobra.Command, args []string) error {
	// config init may target a file that does not exist yet.
	loaded := config.Default()
	if cmd != configInitCmd {
		var err error
		loaded, err = config.Load(configPath)
		if err != nil {
			exitWithError(ExitConfigError, "loading config: %v", err)
		}
	}
	if err := config.InitLogger(loaded.Log); err != nil {
		exitWithError(ExitConfigError, "initializing logger: %v", err)
	}
	cfg = loaded
	return nil
}

// resolveLedgerDir picks the ledger for a document root: flag, then
// config, then <root>/.refname.
func resolveLedgerDir(root string) string {
	override := ledgerDir
	if override == "" {
		override = cfg.Ledger.Dir
	}
	return config.LedgerDir(root, override)
}

// rootArg returns the absolute directory named by args, or the working
// directory when none is given.
func rootArg(args []string) string {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(config.ExpandPath(dir))
	if err != nil {
		exitWithError(ExitError, "resolving %s: %v", dir, err)
	}
	return abs
}
