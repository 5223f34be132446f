package core

import (
	"context"

	"github.com/eventinsight/eventinsight/internal/models"
)

// DbClient defines all persistence operations the pipelines need.
// It abstracts Postgres/pgvector so higher layers never depend on a specific DB.
type DbClient interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	ListEventsByUser(ctx context.Context, userID string) ([]models.Event, error)
	UpdateEventStatus(ctx context.Context, id string, status models.EventStatus, crawlData map[string]any) error
	DeleteEvent(ctx context.Context, id string) error

	// ClaimEventForCrawl atomically moves the event from a claimable status
	// (pending or failed) to crawling. It returns false when the event exists
	// but is not claimable, which guards against concurrent re-ingestion.
	ClaimEventForCrawl(ctx context.Context, id string) (bool, error)

	CreateSourceDocument(ctx context.Context, doc *models.SourceDocument) error
	ListSourceDocuments(ctx context.Context, eventID string) ([]models.SourceDocument, error)
	InsertContentChunk(ctx context.Context, chunk *models.ContentChunk) error

	// SearchChunks returns up to limit chunks for the event ranked by vector
	// distance to queryVec. Chunks without an embedding are excluded.
	SearchChunks(ctx context.Context, eventID string, queryVec []float32, limit int) ([]models.ContentChunk, error)

	// RecentChunks returns up to limit chunks for the event by recency,
	// regardless of embedding presence. Used as the degraded retrieval mode.
	RecentChunks(ctx context.Context, eventID string, limit int) ([]models.ContentChunk, error)

	CreateChatSession(ctx context.Context, session *models.ChatSession) error
	GetChatSessionByID(ctx context.Context, id string) (*models.ChatSession, error)
	LatestChatSession(ctx context.Context, userID, eventID string) (*models.ChatSession, error)
	AddChatMessage(ctx context.Context, message *models.ChatMessage) error
	ListMessagesBySession(ctx context.Context, sessionID string) ([]models.ChatMessage, error)

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage. Used to
// archive raw fetched pages alongside their extracted text, and to remove
// those archives when their event is deleted.
type ObjectClient interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, key string) error
}
