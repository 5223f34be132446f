package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eventinsight/eventinsight/internal/core"
	"github.com/eventinsight/eventinsight/internal/core/crawler"
	"github.com/eventinsight/eventinsight/internal/models"
)

const defaultMaxParallelEmbeds = 4

// Fetcher retrieves the raw page for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*crawler.Page, error)
}

// Extractor converts a raw page into a plain-text document.
type Extractor interface {
	Extract(pageURL, contentType string, body []byte) (*crawler.Document, error)
}

// Result summarizes a completed ingestion run.
type Result struct {
	ChunksCreated  int `json:"chunks_created"`
	WordsProcessed int `json:"words_processed"`
}

// Pipeline drives the fetch -> extract -> chunk -> embed -> store sequence
// for one event and owns the event's status transitions. Once an event is
// claimed, the run always resolves to completed or failed.
type Pipeline struct {
	db          core.DbClient
	embedder    core.EmbeddingProvider
	fetcher     Fetcher
	extractor   Extractor
	chunker     *crawler.Chunker
	archive     core.ObjectClient
	maxParallel int
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithArchive enables raw-page archiving to object storage. Archive failures
// are logged and never fail a run.
func WithArchive(archive core.ObjectClient) Option {
	return func(p *Pipeline) { p.archive = archive }
}

// WithChunker replaces the default chunker.
func WithChunker(c *crawler.Chunker) Option {
	return func(p *Pipeline) { p.chunker = c }
}

// WithMaxParallelEmbeds bounds the per-run chunk fan-out.
func WithMaxParallelEmbeds(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxParallel = n
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

func NewPipeline(db core.DbClient, embedder core.EmbeddingProvider, fetcher Fetcher, extractor Extractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		db:          db,
		embedder:    embedder,
		fetcher:     fetcher,
		extractor:   extractor,
		chunker:     crawler.NewChunker(),
		maxParallel: defaultMaxParallelEmbeds,
		logger:      slog.Default().With("component", "ingest"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest runs the pipeline for one event. The event must be in a claimable
// status (pending, or failed for a retry); a concurrent run holding the claim
// surfaces as core.ErrCrawlInProgress.
func (p *Pipeline) Ingest(ctx context.Context, eventID, url string) (*Result, error) {
	claimed, err := p.db.ClaimEventForCrawl(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	if !claimed {
		return nil, core.ErrCrawlInProgress
	}

	p.logger.Info("crawl started", "event_id", eventID, "url", url)

	result, err := p.run(ctx, eventID, url)
	if err != nil {
		p.finalize(ctx, eventID, models.EventStatusFailed, map[string]any{
			"error":     err.Error(),
			"failed_at": time.Now().UTC().Format(time.RFC3339),
		})
		p.logger.Error("crawl failed", "event_id", eventID, "err", err)
		return nil, err
	}

	p.finalize(ctx, eventID, models.EventStatusCompleted, map[string]any{
		"total_chunks":   result.ChunksCreated,
		"total_words":    result.WordsProcessed,
		"crawled_at":     time.Now().UTC().Format(time.RFC3339),
		"urls_processed": 1,
	})
	p.logger.Info("crawl completed", "event_id", eventID,
		"chunks", result.ChunksCreated, "words", result.WordsProcessed)
	return result, nil
}

// PurgeArchive removes the archived raw pages of an event's source documents.
// Failures mirror the archive-write policy: logged, never surfaced, since the
// authoritative rows live in the database.
func (p *Pipeline) PurgeArchive(ctx context.Context, eventID string) {
	if p.archive == nil {
		return
	}
	docs, err := p.db.ListSourceDocuments(ctx, eventID)
	if err != nil {
		p.logger.Warn("archive purge skipped, listing documents failed", "event_id", eventID, "err", err)
		return
	}
	for _, doc := range docs {
		if doc.Metadata["archive_url"] == nil {
			continue
		}
		key := fmt.Sprintf("events/%s/%s/raw", eventID, doc.ID)
		if err := p.archive.DeleteFile(ctx, key); err != nil {
			p.logger.Warn("archived page delete failed", "event_id", eventID, "key", key, "err", err)
		}
	}
}

func (p *Pipeline) run(ctx context.Context, eventID, url string) (*Result, error) {
	page, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := p.extractor.Extract(url, page.ContentType, page.Body)
	if err != nil {
		return nil, err
	}
	wordCount := crawler.WordCount(doc.Text)

	docID := uuid.NewString()
	metadata := map[string]any{
		"url":          url,
		"crawled_at":   time.Now().UTC().Format(time.RFC3339),
		"word_count":   wordCount,
		"content_type": page.ContentType,
	}

	if p.archive != nil {
		key := fmt.Sprintf("events/%s/%s/raw", eventID, docID)
		archiveURL, archiveErr := p.archive.UploadFile(ctx, key, page.Body, page.ContentType)
		if archiveErr != nil {
			p.logger.Warn("raw page archive failed", "event_id", eventID, "err", archiveErr)
		} else {
			metadata["archive_url"] = archiveURL
		}
	}

	srcDoc := &models.SourceDocument{
		ID:          docID,
		EventID:     eventID,
		URL:         url,
		Title:       doc.Title,
		Content:     doc.Text,
		Metadata:    metadata,
		CrawlStatus: "completed",
	}
	if err := p.db.CreateSourceDocument(ctx, srcDoc); err != nil {
		return nil, fmt.Errorf("persist source document: %w", err)
	}

	chunks := p.chunker.Chunk(doc.Text)
	if len(chunks) == 0 && doc.Text != "" {
		// A page whose every chunk fell under the noise filter would be
		// unanswerable; keep the whole text as a single chunk instead.
		chunks = []string{doc.Text}
	}

	if err := p.embedAndPersist(ctx, eventID, docID, chunks); err != nil {
		return nil, err
	}

	return &Result{ChunksCreated: len(chunks), WordsProcessed: wordCount}, nil
}

// embedAndPersist fans chunk embedding and insertion out across a bounded
// worker set and joins before returning: no terminal status is written while
// chunk writes are still in flight. Embedding failures are absorbed per
// chunk (the chunk is stored without a vector); insert failures abort the run.
func (p *Pipeline) embedAndPersist(ctx context.Context, eventID, docID string, chunks []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxParallel)

	for i, text := range chunks {
		g.Go(func() error {
			embedding, err := p.embedder.EmbedText(gctx, text)
			if err != nil {
				p.logger.Warn("chunk embedding unavailable, storing without vector",
					"event_id", eventID, "chunk_index", i, "err", err)
				embedding = nil
			}

			chunk := &models.ContentChunk{
				ID:          uuid.NewString(),
				EventID:     eventID,
				DocumentID:  docID,
				Content:     text,
				Embedding:   embedding,
				ChunkIndex:  i,
				ChunkLength: len(text),
			}
			if err := p.db.InsertContentChunk(gctx, chunk); err != nil {
				return fmt.Errorf("persist chunk %d: %w", i, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// finalize records the terminal status. It is the run's last guaranteed
// action, so it survives cancellation of the triggering request.
func (p *Pipeline) finalize(ctx context.Context, eventID string, status models.EventStatus, crawlData map[string]any) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := p.db.UpdateEventStatus(writeCtx, eventID, status, crawlData); err != nil {
		p.logger.Error("terminal status write failed", "event_id", eventID, "status", status, "err", err)
	}
}
