// Package llm extracts bibliographic metadata from document text with a
// local (Ollama) or hosted (Anthropic) language model.
package llm

import "context"

// Completer sends one system+user exchange to a model and returns the
// text of its reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)

	// ModelName returns the model the completer talks to.
	ModelName() string
}
