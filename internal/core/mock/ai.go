package mock

import (
	"context"
	"hash/fnv"
	"sync"
)

// Embedder is a test double for core.EmbeddingProvider. Without an override
// it returns a deterministic vector derived from the text hash.
type Embedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	mu        sync.Mutex
	callCount int
}

func (m *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return deterministicVector(text, 8), nil
}

// CallCount returns how many times EmbedText was called.
func (m *Embedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LLM is a test double for core.LLMProvider.
type LLM struct {
	// GenerateFunc is called by Generate if set; otherwise a canned reply
	// is returned.
	GenerateFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model        string

	mu            sync.Mutex
	callCount     int
	lastSystem    string
	lastUserInput string
}

func (m *LLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.lastSystem = systemPrompt
	m.lastUserInput = userPrompt
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, systemPrompt, userPrompt)
	}
	return "mock answer", nil
}

func (m *LLM) ModelName() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// CallCount returns how many times Generate was called.
func (m *LLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastSystemPrompt returns the system prompt of the most recent Generate call.
func (m *LLM) LastSystemPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSystem
}

func deterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, dim)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000) / 1000
	}
	return vec
}
