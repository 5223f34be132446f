package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eventinsight/eventinsight/internal/config"
	"github.com/eventinsight/eventinsight/internal/core"
	"github.com/eventinsight/eventinsight/internal/core/chat"
	"github.com/eventinsight/eventinsight/internal/core/crawler"
	db "github.com/eventinsight/eventinsight/internal/core/database"
	"github.com/eventinsight/eventinsight/internal/core/ingest"
	"github.com/eventinsight/eventinsight/internal/core/llm"
	"github.com/eventinsight/eventinsight/internal/core/objectstore"
	"github.com/eventinsight/eventinsight/internal/core/retrieval"
)

type App struct {
	DBClient core.DbClient
	Embedder *llm.GeminiEmbedder
	LLM      *llm.GeminiLLM
	Server   *Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database init: %w", err)
	}
	logger.Info("database initialized and ready")

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("embedder init: %w", err)
	}
	llmProvider, err := llm.NewGeminiLLM(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("llm init: %w", err)
	}
	if cfg.AIAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set; embeddings and generation run in degraded mode")
	}

	fetcher := crawler.NewHTTPFetcher(time.Duration(cfg.CrawlTimeout) * time.Second)
	extractor := crawler.NewExtractor()

	ingestOpts := []ingest.Option{ingest.WithLogger(logger)}
	if cfg.ArchiveEnabled() {
		archive, err := objectstore.NewS3Client(appCtx, cfg)
		if err != nil {
			return nil, fmt.Errorf("object store init: %w", err)
		}
		ingestOpts = append(ingestOpts, ingest.WithArchive(archive))
		logger.Info("raw page archiving enabled", "bucket", cfg.BucketName)
	}

	pipeline := ingest.NewPipeline(dbClient, embedder, fetcher, extractor, ingestOpts...)
	retriever := retrieval.NewPipeline(dbClient, embedder, llmProvider, retrieval.WithLogger(logger))
	orchestrator := chat.NewOrchestrator(dbClient, retriever, logger)

	server := NewServer(cfg, dbClient, pipeline, orchestrator, logger)

	return &App{DBClient: dbClient, Embedder: embedder, LLM: llmProvider, Server: server}, nil
}

func (a *App) Close() {
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.LLM != nil {
		_ = a.LLM.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
