package models

import (
	"time"
)

// EventStatus is the processing state of a registered event page.
// Transitions move strictly forward: pending -> crawling -> completed|failed.
// A failed event may be claimed again for a retry crawl.
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusCrawling  EventStatus = "crawling"
	EventStatusCompleted EventStatus = "completed"
	EventStatusFailed    EventStatus = "failed"
)

// Event is one user-registered crawl target (a hackathon or event page).
//
// CrawlData is an open string-keyed summary persisted as JSONB; its contents
// depend on the outcome. On success: total_chunks, total_words, crawled_at,
// urls_processed. On failure: error, failed_at.
type Event struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"user_id"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description,omitempty"`
	URL         string         `db:"url" json:"url"`
	Status      EventStatus    `db:"status" json:"status"`
	CrawlData   map[string]any `db:"crawl_data" json:"crawl_data,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// SourceDocument is the fetched-and-extracted representation of one URL for
// one event. Metadata keys: url, crawled_at, word_count, content_type, and
// archive_url when the raw page was archived to object storage.
type SourceDocument struct {
	ID          string         `db:"id" json:"id"`
	EventID     string         `db:"event_id" json:"event_id"`
	URL         string         `db:"url" json:"url"`
	Title       string         `db:"title" json:"title"`
	Content     string         `db:"content" json:"content"`
	Metadata    map[string]any `db:"metadata" json:"metadata,omitempty"`
	CrawlStatus string         `db:"crawl_status" json:"crawl_status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// ContentChunk is one retrievable unit of extracted text. Embedding is nil
// when embedding failed for the chunk; such chunks are excluded from vector
// search but remain available to recency fallback lookups.
type ContentChunk struct {
	ID          string    `db:"id" json:"id"`
	EventID     string    `db:"event_id" json:"event_id"`
	DocumentID  string    `db:"document_id" json:"document_id"`
	Content     string    `db:"content" json:"content"`
	Embedding   []float32 `db:"embedding" json:"-"`
	ChunkIndex  int       `db:"chunk_index" json:"chunk_index"`
	ChunkLength int       `db:"chunk_length" json:"chunk_length"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ChatSession scopes messages to one (user, event) pair. The most recent
// session for a pair is reused; a new one is created only when none exists.
type ChatSession struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	EventID   string    `db:"event_id" json:"event_id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn in a session, append-only and ordered by creation
// time. Assistant messages carry metadata: context_chunks, model, and
// retrieval_mode when the degraded recency fallback was used.
type ChatMessage struct {
	ID        string         `db:"id" json:"id"`
	SessionID string         `db:"session_id" json:"session_id"`
	Role      string         `db:"role" json:"role"`
	Content   string         `db:"content" json:"content"`
	Metadata  map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}
