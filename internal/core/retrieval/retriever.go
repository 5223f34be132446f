package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eventinsight/eventinsight/internal/core"
	"github.com/eventinsight/eventinsight/internal/models"
)

const defaultContextChunks = 5

const systemPromptTemplate = `You are an AI assistant specialized in answering questions about events, hackathons, and competitions.

You have access to the following information about this specific event:

%s

Based on this information, answer the user's question accurately and helpfully. If you can't find specific information in the provided context, say so clearly. Always cite your sources when possible and provide specific details from the event information.

Be conversational but informative. Focus on providing practical and actionable information that would be useful to someone interested in participating in or learning about this event.`

// Pipeline answers one question about one event: embed the question, pull
// the most relevant chunks, assemble a grounded prompt, call the model, and
// persist the assistant turn. Invocations share no mutable state and are
// safe to run concurrently.
type Pipeline struct {
	db            core.DbClient
	embedder      core.EmbeddingProvider
	llm           core.LLMProvider
	contextChunks int
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithContextChunks bounds how many chunks ground an answer.
func WithContextChunks(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.contextChunks = n
		}
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPipeline(db core.DbClient, embedder core.EmbeddingProvider, llm core.LLMProvider, opts ...Option) *Pipeline {
	p := &Pipeline{
		db:            db,
		embedder:      embedder,
		llm:           llm,
		contextChunks: defaultContextChunks,
		logger:        slog.Default().With("component", "retrieval"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Answer generates and persists the assistant reply for a question in the
// given session. With zero retrievable chunks it fails with core.ErrNoContent
// before any model call. Generation failures surface to the caller unretried.
func (p *Pipeline) Answer(ctx context.Context, sessionID, eventID, question string) (*models.ChatMessage, error) {
	chunks, degraded, err := p.relevantChunks(ctx, eventID, question)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("event %s: %w", eventID, core.ErrNoContent)
	}

	answer, err := p.llm.Generate(ctx, buildSystemPrompt(chunks), question)
	if err != nil {
		if errors.Is(err, core.ErrGeneration) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", core.ErrGeneration, err)
	}

	metadata := map[string]any{
		"context_chunks": len(chunks),
		"model":          p.llm.ModelName(),
	}
	if degraded {
		metadata["retrieval_mode"] = "recency"
	}

	message := &models.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      models.RoleAssistant,
		Content:   answer,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := p.db.AddChatMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}
	return message, nil
}

// relevantChunks runs the ranked vector search, or the most-recent-N fallback
// when the question cannot be embedded. The fallback is an explicit degraded
// mode, not a silent default.
func (p *Pipeline) relevantChunks(ctx context.Context, eventID, question string) ([]models.ContentChunk, bool, error) {
	queryVec, err := p.embedder.EmbedText(ctx, question)
	if err != nil {
		p.logger.Warn("retrieval degraded: question embedding unavailable, using recency order",
			"event_id", eventID, "err", err)
		chunks, err := p.db.RecentChunks(ctx, eventID, p.contextChunks)
		if err != nil {
			return nil, false, fmt.Errorf("load recent chunks: %w", err)
		}
		return chunks, true, nil
	}

	chunks, err := p.db.SearchChunks(ctx, eventID, queryVec, p.contextChunks)
	if err != nil {
		return nil, false, fmt.Errorf("search chunks: %w", err)
	}
	if len(chunks) == 0 {
		// Every stored chunk may lack a vector (embedder was down during
		// ingestion); those are still reachable by recency.
		chunks, err = p.db.RecentChunks(ctx, eventID, p.contextChunks)
		if err != nil {
			return nil, false, fmt.Errorf("load recent chunks: %w", err)
		}
		if len(chunks) > 0 {
			p.logger.Warn("retrieval degraded: no embedded chunks, using recency order", "event_id", eventID)
			return chunks, true, nil
		}
	}
	return chunks, false, nil
}

func buildSystemPrompt(chunks []models.ContentChunk) string {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	return fmt.Sprintf(systemPromptTemplate, strings.Join(texts, "\n\n"))
}
