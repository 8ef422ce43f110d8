package driven

import (
	"context"
)

// CompletionRequest is a single prompt sent to a language model
type CompletionRequest struct {
	// System is an optional system instruction
	System string

	// Prompt is the user message
	Prompt string

	// JSON asks the provider to constrain output to a JSON object
	JSON bool

	// MaxTokens bounds the response length (0 = provider default)
	MaxTokens int
}

// LLMService provides text completion for content analysis and reply drafting
type LLMService interface {
	// Complete sends the prompt and returns the model's text output
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
