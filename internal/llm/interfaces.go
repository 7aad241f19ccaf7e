// Package llm provides the model-calling collaborators for the experiment
// pipeline. Each provider implements the Generator interface; the collector
// only ever sees that interface, so tests substitute deterministic fakes.
package llm

import "context"

// Generator is the external model-calling collaborator. Conversation context
// is already rendered into the prompt by the composer, so providers perform a
// single-turn completion.
type Generator interface {
	// Generate sends one prompt and returns the model's response text.
	// Failures are classified into the package error taxonomy (ErrRateLimited,
	// ErrAuthentication, ErrTransient) so callers can apply retry policy.
	Generate(ctx context.Context, prompt string) (string, error)

	// Name returns the architecture identifier used in records (e.g. "claude").
	Name() string

	// Model returns the concrete model identifier under test.
	Model() string
}
