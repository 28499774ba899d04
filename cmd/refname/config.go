package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lukeslp/reference-renamer/internal/config"
)

var configInitForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage refname configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with default settings",
	Long: `Write a config file with default settings to --config, or to
$XDG_CONFIG_HOME/refname/config.yml. API keys are read from S2_API_KEY and
ANTHROPIC_API_KEY (or a .env file) and are never written.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GlobalConfigPath()
	}
	if path == "" {
		exitWithError(ExitConfigError, "cannot determine config location; pass --config")
	}
	path = config.ExpandPath(path)

	if _, err := os.Stat(path); err == nil && !configInitForce {
		exitWithError(ExitConfigError, "%s already exists (use --force to overwrite)", path)
	}
	if err := config.Default().Save(path); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		outputHuman("Wrote %s\n", path)
		return nil
	}
	return outputJSON(StatusResponse{Status: "written", Path: path})
}

// ConfigView is the effective configuration with secrets masked.
type ConfigView struct {
	Sources map[string]SourceView `json:"sources"`
	Fusion  config.FusionConfig   `json:"fusion"`
	Naming  config.NamingConfig   `json:"naming"`
	Ledger  config.LedgerConfig   `json:"ledger"`
	Run     config.RunConfig      `json:"run"`
	Log     config.LogConfig      `json:"log"`
	Valid   bool                  `json:"valid"`
	Problem string                `json:"problem,omitempty"`
}

// SourceView is one source's settings with the API key reduced to a flag.
type SourceView struct {
	Enabled    bool    `json:"enabled"`
	Timeout    string  `json:"timeout"`
	Retries    int     `json:"retries"`
	Confidence float64 `json:"confidence"`
	BaseURL    string  `json:"base_url,omitempty"`
	Model      string  `json:"model,omitempty"`
	HasAPIKey  bool    `json:"has_api_key"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	view := newConfigView(cfg)
	if humanOutput {
		for _, id := range config.KnownSources {
			s := view.Sources[id]
			outputHuman("%-10s enabled=%-5t confidence=%.2f timeout=%s retries=%d\n", id, s.Enabled, s.Confidence, s.Timeout, s.Retries)
		}
		outputHuman("\nceiling=%s document_timeout=%s threshold=%.2f title_words=%d jobs=%d\n",
			cfg.Fusion.Ceiling, cfg.Fusion.DocumentTimeout, cfg.Ledger.Threshold, cfg.Naming.MaxTitleWords, cfg.Run.Jobs)
		if !view.Valid {
			outputHuman("\ninvalid: %s\n", view.Problem)
		}
		return nil
	}
	return outputJSON(view)
}

func newConfigView(c *config.Config) ConfigView {
	view := ConfigView{
		Sources: make(map[string]SourceView, len(config.KnownSources)),
		Fusion:  c.Fusion,
		Naming:  c.Naming,
		Ledger:  c.Ledger,
		Run:     c.Run,
		Log:     c.Log,
		Valid:   true,
	}
	for _, id := range config.KnownSources {
		sc := c.Source(id)
		view.Sources[id] = SourceView{
			Enabled:    sc.Enabled,
			Timeout:    sc.Timeout.String(),
			Retries:    sc.Retries,
			Confidence: sc.Confidence,
			BaseURL:    sc.BaseURL,
			Model:      sc.Model,
			HasAPIKey:  sc.APIKey != "",
		}
	}
	if err := c.Validate(); err != nil {
		view.Valid = false
		view.Problem = err.Error()
	}
	return view
}
