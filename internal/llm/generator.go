// Package llm provides the chat-completion client used to generate answers.
package llm

import "context"

// Generator produces a completion for a system instruction and a user prompt.
// Failures wrap models.ErrGeneration.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	ModelName() string
	Close() error
}
