package main

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lukeslp/reference-renamer/internal/export"
	"github.com/lukeslp/reference-renamer/internal/ledger"
)

var (
	exportFormat string
	exportOutput string
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "bibtex", "Output format: bibtex or csv")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
}

var exportCmd = &cobra.Command{
	Use:   "export [dir]",
	Short: "Export citations for renamed documents",
	Long: `Export citations for every document the ledger records as applied.

Citation keys are Author_Year, with _a, _b, ... appended on clashes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

// ExportResult is the response when citations are written to a file.
type ExportResult struct {
	Status    string `json:"status"`
	Format    string `json:"format"`
	Path      string `json:"path"`
	Citations int    `json:"citations"`
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportFormat != "bibtex" && exportFormat != "csv" {
		exitWithError(ExitError, "unknown format %q (valid: bibtex, csv)", exportFormat)
	}
	dir := resolveLedgerDir(rootArg(args))

	entries, err := ledger.ReadAll(filepath.Join(dir, ledger.LogFile))
	if err != nil {
		exitWithError(ExitDataError, "reading ledger: %v", err)
	}
	citations := export.FromEntries(entries)

	var buf bytes.Buffer
	switch exportFormat {
	case "bibtex":
		buf.WriteString(export.ToBibTeXList(citations))
	case "csv":
		if err := export.WriteCSV(&buf, citations); err != nil {
			exitWithError(ExitError, "encoding CSV: %v", err)
		}
	}

	if exportOutput == "" {
		_, err := os.Stdout.Write(buf.Bytes())
		return err
	}

	if err := os.WriteFile(exportOutput, buf.Bytes(), 0644); err != nil {
		exitWithError(ExitError, "writing %s: %v", exportOutput, err)
	}
	if humanOutput {
		outputHuman("Wrote %d citations to %s\n", len(citations), exportOutput)
		return nil
	}
	return outputJSON(ExportResult{Status: "written", Format: exportFormat, Path: exportOutput, Citations: len(citations)})
}
