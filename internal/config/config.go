// Package config loads refname configuration from YAML, .env files and
// REFNAME_ environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "refname"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
	// EnvPrefix prefixes environment overrides, e.g. REFNAME_RUN_JOBS.
	EnvPrefix = "REFNAME"
)

// Source ids known to the adapter registry.
const (
	SourceS2        = "s2"
	SourceArXiv     = "arxiv"
	SourceOllama    = "ollama"
	SourceAnthropic = "anthropic"
	SourceHeuristic = "heuristic"
)

// KnownSources lists every configurable source id.
var KnownSources = []string{SourceS2, SourceArXiv, SourceOllama, SourceAnthropic, SourceHeuristic}

// Config is the full runtime configuration.
type Config struct {
	Sources map[string]SourceConfig `mapstructure:"sources"`
	Fusion  FusionConfig            `mapstructure:"fusion"`
	Naming  NamingConfig            `mapstructure:"naming"`
	Ledger  LedgerConfig            `mapstructure:"ledger"`
	Run     RunConfig               `mapstructure:"run"`
	Log     LogConfig               `mapstructure:"log"`
}

// SourceConfig configures one metadata source.
type SourceConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Retries    int           `mapstructure:"retries"`
	Confidence float64       `mapstructure:"confidence"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
}

// FusionConfig bounds how long fusion waits and weighs each field in the
// overall confidence.
type FusionConfig struct {
	Ceiling         time.Duration `mapstructure:"ceiling"`
	DocumentTimeout time.Duration `mapstructure:"document_timeout"`
	Weights         FieldWeights  `mapstructure:"weights"`
}

// FieldWeights are the per-field shares of the overall confidence.
type FieldWeights struct {
	DOI     float64 `mapstructure:"doi" json:"doi"`
	Authors float64 `mapstructure:"authors" json:"authors"`
	Year    float64 `mapstructure:"year" json:"year"`
	Title   float64 `mapstructure:"title" json:"title"`
}

// NamingConfig shapes generated filenames.
type NamingConfig struct {
	MaxTitleWords int `mapstructure:"max_title_words"`
	MaxBytes      int `mapstructure:"max_bytes"`
}

// LedgerConfig locates the ledger and sets the acceptance threshold.
type LedgerConfig struct {
	Threshold float64 `mapstructure:"threshold"`
	Dir       string  `mapstructure:"dir"`
}

// RunConfig holds per-run defaults that CLI flags override.
type RunConfig struct {
	DryRun     bool     `mapstructure:"dry_run"`
	Jobs       int      `mapstructure:"jobs"`
	Recursive  bool     `mapstructure:"recursive"`
	Backup     bool     `mapstructure:"backup"`
	Extensions []string `mapstructure:"extensions"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type sourceDefaults struct {
	enabled    bool
	timeout    time.Duration
	retries    int
	confidence float64
	baseURL    string
	model      string
}

var defaultSources = map[string]sourceDefaults{
	SourceS2:        {true, 15 * time.Second, 2, 0.85, "https://api.semanticscholar.org/graph/v1", ""},
	SourceArXiv:     {true, 15 * time.Second, 2, 0.80, "https://export.arxiv.org/api/query", ""},
	SourceOllama:    {true, 40 * time.Second, 1, 0.50, "http://localhost:11434", "llama3.2"},
	SourceAnthropic: {false, 30 * time.Second, 1, 0.60, "", "claude-haiku-4-5-20251001"},
	SourceHeuristic: {true, 2 * time.Second, 0, 0.30, "", ""},
}

func setDefaults(v *viper.Viper) {
	for id, d := range defaultSources {
		prefix := "sources." + id + "."
		v.SetDefault(prefix+"enabled", d.enabled)
		v.SetDefault(prefix+"timeout", d.timeout)
		v.SetDefault(prefix+"retries", d.retries)
		v.SetDefault(prefix+"confidence", d.confidence)
		v.SetDefault(prefix+"base_url", d.baseURL)
		v.SetDefault(prefix+"model", d.model)
		v.SetDefault(prefix+"api_key", "")
	}
	v.SetDefault("fusion.ceiling", 45*time.Second)
	v.SetDefault("fusion.document_timeout", 60*time.Second)
	v.SetDefault("fusion.weights.doi", 0.35)
	v.SetDefault("fusion.weights.authors", 0.25)
	v.SetDefault("fusion.weights.year", 0.25)
	v.SetDefault("fusion.weights.title", 0.15)
	v.SetDefault("naming.max_title_words", 4)
	v.SetDefault("naming.max_bytes", 255)
	v.SetDefault("ledger.threshold", 0.4)
	v.SetDefault("ledger.dir", "")
	v.SetDefault("run.dry_run", false)
	v.SetDefault("run.jobs", 4)
	v.SetDefault("run.recursive", false)
	v.SetDefault("run.backup", true)
	v.SetDefault("run.extensions", []string{".pdf", ".txt", ".md"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads configuration. An explicit path must exist; otherwise the
// global config file is used when present. .env in the working directory
// is loaded first and never overrides variables already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	switch {
	case path != "":
		v.SetConfigFile(ExpandPath(path))
		if err := v.ReadInConfig(); err != nil {
			return nil, eris.Wrapf(err, "config: read %s", path)
		}
	default:
		if global := GlobalConfigPath(); global != "" {
			if _, err := os.Stat(global); err == nil {
				v.SetConfigFile(global)
				if err := v.ReadInConfig(); err != nil {
					return nil, eris.Wrapf(err, "config: read %s", global)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.applyAPIKeyEnv()
	return &cfg, nil
}

// applyAPIKeyEnv fills API keys from the conventional variables when the
// config leaves them empty.
func (c *Config) applyAPIKeyEnv() {
	for id, env := range map[string]string{SourceS2: "S2_API_KEY", SourceAnthropic: "ANTHROPIC_API_KEY"} {
		sc, ok := c.Sources[id]
		if !ok || sc.APIKey != "" {
			continue
		}
		sc.APIKey = os.Getenv(env)
		c.Sources[id] = sc
	}
}

// Source returns the configuration for id, falling back to built-in defaults.
func (c *Config) Source(id string) SourceConfig {
	if sc, ok := c.Sources[id]; ok {
		return sc
	}
	d := defaultSources[id]
	return SourceConfig{Enabled: d.enabled, Timeout: d.timeout, Retries: d.retries, Confidence: d.confidence, BaseURL: d.baseURL, Model: d.model}
}

// EnabledSources returns enabled source ids in KnownSources order.
func (c *Config) EnabledSources() []string {
	var out []string
	for _, id := range KnownSources {
		if c.Source(id).Enabled {
			out = append(out, id)
		}
	}
	return out
}

// Validate rejects values that would make a run meaningless.
func (c *Config) Validate() error {
	var problems []string
	if c.Ledger.Threshold < 0 || c.Ledger.Threshold > 1 {
		problems = append(problems, fmt.Sprintf("ledger.threshold %.2f outside [0,1]", c.Ledger.Threshold))
	}
	if c.Run.Jobs <= 0 {
		problems = append(problems, "run.jobs must be positive")
	}
	if c.Naming.MaxTitleWords <= 0 {
		problems = append(problems, "naming.max_title_words must be positive")
	}
	if c.Naming.MaxBytes < 32 {
		problems = append(problems, "naming.max_bytes must be at least 32")
	}
	if c.Fusion.Ceiling <= 0 {
		problems = append(problems, "fusion.ceiling must be positive")
	}
	if c.Fusion.DocumentTimeout <= 0 {
		problems = append(problems, "fusion.document_timeout must be positive")
	}
	w := c.Fusion.Weights
	if w.DOI < 0 || w.Authors < 0 || w.Year < 0 || w.Title < 0 {
		problems = append(problems, "fusion.weights must not be negative")
	} else if w.DOI+w.Authors+w.Year+w.Title == 0 {
		problems = append(problems, "fusion.weights must not all be zero")
	}

	ids := make([]string, 0, len(c.Sources))
	for id := range c.Sources {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		sc := c.Sources[id]
		if !slices.Contains(KnownSources, id) {
			problems = append(problems, fmt.Sprintf("unknown source %q", id))
			continue
		}
		if sc.Confidence < 0 || sc.Confidence > 1 {
			problems = append(problems, fmt.Sprintf("sources.%s.confidence %.2f outside [0,1]", id, sc.Confidence))
		}
		if sc.Retries < 0 {
			problems = append(problems, fmt.Sprintf("sources.%s.retries must not be negative", id))
		}
	}
	if len(c.EnabledSources()) == 0 {
		problems = append(problems, "no sources enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Save writes the configuration as YAML. API keys are never written.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c.yamlTree())
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// yamlTree renders durations as strings so the file round-trips through Load.
func (c *Config) yamlTree() map[string]any {
	sources := make(map[string]any, len(c.Sources))
	for id, sc := range c.Sources {
		entry := map[string]any{
			"enabled":    sc.Enabled,
			"timeout":    sc.Timeout.String(),
			"retries":    sc.Retries,
			"confidence": sc.Confidence,
		}
		if sc.BaseURL != "" {
			entry["base_url"] = sc.BaseURL
		}
		if sc.Model != "" {
			entry["model"] = sc.Model
		}
		sources[id] = entry
	}
	ledger := map[string]any{"threshold": c.Ledger.Threshold}
	if c.Ledger.Dir != "" {
		ledger["dir"] = c.Ledger.Dir
	}
	return map[string]any{
		"sources": sources,
		"fusion": map[string]any{
			"ceiling":          c.Fusion.Ceiling.String(),
			"document_timeout": c.Fusion.DocumentTimeout.String(),
			"weights": map[string]any{
				"doi":     c.Fusion.Weights.DOI,
				"authors": c.Fusion.Weights.Authors,
				"year":    c.Fusion.Weights.Year,
				"title":   c.Fusion.Weights.Title,
			},
		},
		"naming": map[string]any{
			"max_title_words": c.Naming.MaxTitleWords,
			"max_bytes":       c.Naming.MaxBytes,
		},
		"ledger": ledger,
		"run": map[string]any{
			"dry_run":    c.Run.DryRun,
			"jobs":       c.Run.Jobs,
			"recursive":  c.Run.Recursive,
			"backup":     c.Run.Backup,
			"extensions": c.Run.Extensions,
		},
		"log": map[string]any{
			"level":  c.Log.Level,
			"format": c.Log.Format,
		},
	}
}
