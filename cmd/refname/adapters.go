package main

import (
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lukeslp/reference-renamer/internal/arxiv"
	"github.com/lukeslp/reference-renamer/internal/config"
	"github.com/lukeslp/reference-renamer/internal/heuristic"
	"github.com/lukeslp/reference-renamer/internal/llm"
	"github.com/lukeslp/reference-renamer/internal/s2"
	"github.com/lukeslp/reference-renamer/internal/source"
)

// authenticatedS2Rate is the per-key limit granted with an API key.
const authenticatedS2Rate = 10

// buildAdapters constructs a guarded adapter for every enabled source.
// Sources that cannot run without credentials are skipped with a warning.
func buildAdapters(c *config.Config) []source.Adapter {
	var out []source.Adapter
	for _, id := range c.EnabledSources() {
		client := buildClient(id, c.Source(id))
		if client == nil {
			continue
		}
		sc := c.Source(id)
		policy := source.Policy{
			Timeout: sc.Timeout,
			Retries: sc.Retries,
			Backoff: source.DefaultPolicy().Backoff,
		}
		out = append(out, source.Guard(client, policy))
	}
	return out
}

func buildClient(id string, sc config.SourceConfig) source.Client {
	switch id {
	case config.SourceS2:
		var opts []s2.ClientOption
		if sc.BaseURL != "" {
			opts = append(opts, s2.WithBaseURL(sc.BaseURL))
		}
		if sc.APIKey != "" {
			opts = append(opts, s2.WithAPIKey(sc.APIKey), s2.WithRateLimit(rate.Limit(authenticatedS2Rate)))
		}
		return s2.NewAdapter(s2.NewClient(opts...), sc.Confidence)

	case config.SourceArXiv:
		var opts []arxiv.ClientOption
		if sc.BaseURL != "" {
			opts = append(opts, arxiv.WithBaseURL(sc.BaseURL))
		}
		return arxiv.NewAdapter(arxiv.NewClient(opts...), sc.Confidence)

	case config.SourceOllama:
		return llm.NewAdapter(llm.OllamaSourceID, newOllamaClient(sc), sc.Confidence)

	case config.SourceAnthropic:
		if sc.APIKey == "" {
			zap.L().Warn("anthropic source enabled without an API key, skipping")
			return nil
		}
		var opts []option.RequestOption
		if sc.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(sc.BaseURL))
		}
		model := sc.Model
		if model == "" {
			model = llm.DefaultAnthropicModel
		}
		return llm.NewAdapter(llm.AnthropicSourceID, llm.NewAnthropicClient(sc.APIKey, model, opts...), sc.Confidence)

	case config.SourceHeuristic:
		return heuristic.NewAdapter(sc.Confidence)
	}

	zap.L().Warn("unknown source, skipping", zap.String("source", id))
	return nil
}

func newOllamaClient(sc config.SourceConfig) *llm.OllamaClient {
	var opts []llm.OllamaOption
	if sc.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(sc.BaseURL))
	}
	if sc.Model != "" {
		opts = append(opts, llm.WithModel(sc.Model))
	}
	if sc.Timeout > 0 {
		opts = append(opts, llm.WithTimeout(sc.Timeout))
	}
	return llm.NewOllamaClient(opts...)
}
