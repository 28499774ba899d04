package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("S2_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Naming.MaxTitleWords)
	assert.Equal(t, 255, cfg.Naming.MaxBytes)
	assert.InDelta(t, 0.4, cfg.Ledger.Threshold, 0.001)
	assert.Equal(t, 45*time.Second, cfg.Fusion.Ceiling)
	assert.Equal(t, 60*time.Second, cfg.Fusion.DocumentTimeout)
	assert.Equal(t, FieldWeights{DOI: 0.35, Authors: 0.25, Year: 0.25, Title: 0.15}, cfg.Fusion.Weights)
	assert.Equal(t, 4, cfg.Run.Jobs)
	assert.True(t, cfg.Run.Backup)
	assert.Equal(t, []string{".pdf", ".txt", ".md"}, cfg.Run.Extensions)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	s2 := cfg.Source(SourceS2)
	assert.True(t, s2.Enabled)
	assert.InDelta(t, 0.85, s2.Confidence, 0.001)
	assert.Equal(t, 15*time.Second, s2.Timeout)
	assert.False(t, cfg.Source(SourceAnthropic).Enabled)
	assert.Equal(t, []string{SourceS2, SourceArXiv, SourceOllama, SourceHeuristic}, cfg.EnabledSources())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yml")
	yaml := `
sources:
  s2:
    timeout: 5s
    confidence: 0.9
  ollama:
    enabled: false
fusion:
  weights:
    doi: 0.5
naming:
  max_title_words: 6
ledger:
  threshold: 0.5
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Source(SourceS2).Timeout)
	assert.InDelta(t, 0.9, cfg.Source(SourceS2).Confidence, 0.001)
	assert.True(t, cfg.Source(SourceS2).Enabled, "unset keys keep their defaults")
	assert.False(t, cfg.Source(SourceOllama).Enabled)
	assert.Equal(t, 6, cfg.Naming.MaxTitleWords)
	assert.InDelta(t, 0.5, cfg.Fusion.Weights.DOI, 0.001)
	assert.InDelta(t, 0.15, cfg.Fusion.Weights.Title, 0.001, "unset weights keep their defaults")
	assert.InDelta(t, 0.5, cfg.Ledger.Threshold, 0.001)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadGlobalConfig(t *testing.T) {
	dir := isolate(t)
	global := filepath.Join(dir, GlobalConfigDir, GlobalConfigFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(global), 0755))
	require.NoError(t, os.WriteFile(global, []byte("run:\n  jobs: 9\n"), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Run.Jobs)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	_, err := Load(filepath.Join(dir, "nope.yml"))
	assert.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("REFNAME_RUN_JOBS", "12")
	t.Setenv("REFNAME_LEDGER_THRESHOLD", "0.7")
	t.Setenv("S2_API_KEY", "s2-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Run.Jobs)
	assert.InDelta(t, 0.7, cfg.Ledger.Threshold, 0.001)
	assert.Equal(t, "s2-key", cfg.Source(SourceS2).APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold", func(c *Config) { c.Ledger.Threshold = 1.5 }},
		{"jobs", func(c *Config) { c.Run.Jobs = 0 }},
		{"title words", func(c *Config) { c.Naming.MaxTitleWords = 0 }},
		{"max bytes", func(c *Config) { c.Naming.MaxBytes = 10 }},
		{"ceiling", func(c *Config) { c.Fusion.Ceiling = 0 }},
		{"negative weight", func(c *Config) { c.Fusion.Weights.Year = -0.1 }},
		{"zero weights", func(c *Config) { c.Fusion.Weights = FieldWeights{} }},
		{"confidence", func(c *Config) {
			sc := c.Sources[SourceS2]
			sc.Confidence = -0.1
			c.Sources[SourceS2] = sc
		}},
		{"unknown source", func(c *Config) { c.Sources["crossref"] = SourceConfig{Enabled: true} }},
		{"none enabled", func(c *Config) {
			for id, sc := range c.Sources {
				sc.Enabled = false
				c.Sources[id] = sc
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "out", "config.yml")

	cfg := Default()
	cfg.Naming.MaxTitleWords = 7
	sc := cfg.Sources[SourceArXiv]
	sc.Timeout = 3 * time.Second
	sc.APIKey = "secret"
	cfg.Sources[SourceArXiv] = sc
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Naming.MaxTitleWords)
	assert.Equal(t, 3*time.Second, loaded.Source(SourceArXiv).Timeout)
	assert.Equal(t, cfg.Fusion, loaded.Fusion)
}

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/refname/config.yml", GlobalConfigPath())
}

func TestLedgerDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/docs", ".refname"), LedgerDir("/docs", ""))
	assert.Equal(t, "/var/ledger", LedgerDir("/docs", "/var/ledger"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "papers"), ExpandPath("~/papers"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
	assert.Equal(t, "", ExpandPath(""))
}

func TestInitLogger(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{}))
	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
}
