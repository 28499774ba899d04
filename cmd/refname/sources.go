package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lukeslp/reference-renamer/internal/config"
)

// probeTimeout bounds each availability check.
const probeTimeout = 3 * time.Second

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List metadata sources and check the ones that can be probed",
	Args:  cobra.NoArgs,
	RunE:  runSources,
}

// SourceStatus describes one configured source.
type SourceStatus struct {
	ID         string  `json:"id"`
	Enabled    bool    `json:"enabled"`
	Confidence float64 `json:"confidence"`
	Timeout    string  `json:"timeout"`
	Status     string  `json:"status"`
	Detail     string  `json:"detail,omitempty"`
}

func runSources(cmd *cobra.Command, args []string) error {
	statuses := make([]SourceStatus, 0, len(config.KnownSources))
	for _, id := range config.KnownSources {
		sc := cfg.Source(id)
		st := SourceStatus{
			ID:         id,
			Enabled:    sc.Enabled,
			Confidence: sc.Confidence,
			Timeout:    sc.Timeout.String(),
			Status:     "disabled",
		}
		if sc.Enabled {
			st.Status, st.Detail = probeSource(cmd.Context(), id, sc)
		}
		statuses = append(statuses, st)
	}

	if humanOutput {
		rows := make([][]string, 0, len(statuses))
		for _, s := range statuses {
			rows = append(rows, []string{s.ID, s.Status, formatConfidence(s.Confidence), s.Timeout, s.Detail})
		}
		outputHuman("%s\n", renderTable(os.Stdout, []string{"Source", "Status", "Conf", "Timeout", "Detail"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft}))
		return nil
	}
	return outputJSON(statuses)
}

// probeSource checks what can be checked without spending API quota.
func probeSource(ctx context.Context, id string, sc config.SourceConfig) (status, detail string) {
	switch id {
	case config.SourceOllama:
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		client := newOllamaClient(sc)
		if err := client.IsAvailable(ctx); err != nil {
			return "unavailable", "start Ollama with 'ollama serve'"
		}
		ok, err := client.HasModel(ctx)
		if err != nil {
			return "unavailable", err.Error()
		}
		if !ok {
			return "model_missing", "run 'ollama pull " + client.ModelName() + "'"
		}
		return "ready", client.ModelName()
	case config.SourceAnthropic:
		if sc.APIKey == "" {
			return "missing_key", "set ANTHROPIC_API_KEY"
		}
		return "ready", sc.Model
	case config.SourceS2:
		if sc.APIKey == "" {
			return "ready", "unauthenticated, shared rate limit"
		}
		return "ready", "authenticated"
	}
	return "ready", ""
}
