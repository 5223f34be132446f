package llm

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/eventinsight/eventinsight/internal/core"
)

// maxEmbedChars caps input length before submission to the embedding model.
const maxEmbedChars = 8000

type GeminiEmbedder struct {
	client    *genai.Client
	modelName string
}

// NewGeminiEmbedder builds the embedder. An empty apiKey is not an error: the
// embedder is constructed in an unavailable state and every EmbedText call
// reports core.ErrEmbeddingUnavailable, which ingestion absorbs per chunk.
func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string) (*GeminiEmbedder, error) {
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	if apiKey == "" {
		return &GeminiEmbedder{modelName: modelName}, nil
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: cl, modelName: modelName}, nil
}

func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if g.client == nil {
		return nil, fmt.Errorf("%w: no API key configured", core.ErrEmbeddingUnavailable)
	}
	text = truncateForEmbedding(text)

	em := g.client.EmbeddingModel(g.modelName)
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingUnavailable, err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", core.ErrEmbeddingUnavailable)
	}
	return resp.Embedding.Values, nil
}

// truncateForEmbedding caps the input at maxEmbedChars bytes without cutting
// through a multi-byte rune; the API rejects invalid UTF-8.
func truncateForEmbedding(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	cut := maxEmbedChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)
