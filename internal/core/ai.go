package core

import "context"

// EmbeddingProvider turns text into a fixed-length vector. Implementations
// must return an error wrapping ErrEmbeddingUnavailable when the backing
// credential is missing or the call fails.
type EmbeddingProvider interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// LLMProvider generates a response from a system prompt and a user prompt.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
	ModelName() string
}
