// Package llm provides interfaces and implementations for Large Language Model clients.
package llm

import (
	"context"
)

// GenerateOptions configures the LLM generation request.
type GenerateOptions struct {
	// Model specifies the LLM model to use (e.g., "llama3.2", "mistral").
	Model string

	// SystemPrompt sets the system-level instructions for the model.
	SystemPrompt string

	// Temperature controls randomness in generation (higher is more random).
	// Zero leaves the option out of the request, so the server's default applies.
	Temperature float32

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int
}

// LLM defines the interface for Large Language Model clients. A single
// synchronous call is all the session engine needs (no streaming: the
// engine asks for query expansion, cluster labels, and follow-up questions,
// never a token-by-token UI).
type LLM interface {
	// Generate sends a prompt to the LLM and returns the complete response.
	// It blocks until the full response is received or an error occurs.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}
