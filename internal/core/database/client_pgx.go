package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/eventinsight/eventinsight/internal/config"
	"github.com/eventinsight/eventinsight/internal/core"
	"github.com/eventinsight/eventinsight/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// jsonb round-trip helpers. nil maps insert as SQL NULL.

func toJSONB(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return b, nil
}

func fromJSONB(raw []byte, dst *map[string]any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// Events

func (c *DatabaseClient) CreateEvent(ctx context.Context, event *models.Event) error {
	if event == nil {
		return errors.New("nil event")
	}
	crawlData, err := toJSONB(event.CrawlData)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO events (id, user_id, name, description, url, status, crawl_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), COALESCE($9, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		event.ID, event.UserID, event.Name, event.Description, event.URL,
		event.Status, crawlData, nullTime(event.CreatedAt), nullTime(event.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	const q = `
		SELECT id, user_id, name, description, url, status, crawl_data, created_at, updated_at
		FROM events WHERE id = $1
	`
	var (
		e   models.Event
		raw []byte
	)
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&e.ID, &e.UserID, &e.Name, &e.Description, &e.URL, &e.Status, &raw, &e.CreatedAt, &e.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := fromJSONB(raw, &e.CrawlData); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *DatabaseClient) ListEventsByUser(ctx context.Context, userID string) ([]models.Event, error) {
	const q = `
		SELECT id, user_id, name, description, url, status, crawl_data, created_at, updated_at
		FROM events
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var (
			e   models.Event
			raw []byte
		)
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Name, &e.Description, &e.URL, &e.Status, &raw, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := fromJSONB(raw, &e.CrawlData); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateEventStatus(ctx context.Context, id string, status models.EventStatus, crawlData map[string]any) error {
	data, err := toJSONB(crawlData)
	if err != nil {
		return err
	}
	const q = `
		UPDATE events
		SET status = $2, crawl_data = COALESCE($3, crawl_data), updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status, data)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("event not found: %s", id)
	}
	return nil
}

// ClaimEventForCrawl is the concurrency guard for ingestion: only one run can
// move an event out of a claimable status.
func (c *DatabaseClient) ClaimEventForCrawl(ctx context.Context, id string) (bool, error) {
	const q = `
		UPDATE events
		SET status = 'crawling', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'failed')
	`
	res, err := c.db.ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *DatabaseClient) DeleteEvent(ctx context.Context, id string) error {
	// Documents, chunks, sessions and messages go with it via ON DELETE CASCADE.
	res, err := c.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("event not found: %s", id)
	}
	return nil
}

// Source documents

func (c *DatabaseClient) CreateSourceDocument(ctx context.Context, doc *models.SourceDocument) error {
	if doc == nil {
		return errors.New("nil source document")
	}
	meta, err := toJSONB(doc.Metadata)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO source_documents (id, event_id, url, title, content, metadata, crawl_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		doc.ID, doc.EventID, doc.URL, doc.Title, doc.Content, meta, doc.CrawlStatus, nullTime(doc.CreatedAt))
	return err
}

func (c *DatabaseClient) ListSourceDocuments(ctx context.Context, eventID string) ([]models.SourceDocument, error) {
	const q = `
		SELECT id, event_id, url, title, content, metadata, crawl_status, created_at
		FROM source_documents
		WHERE event_id = $1
		ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SourceDocument
	for rows.Next() {
		var (
			doc models.SourceDocument
			raw []byte
		)
		if err := rows.Scan(
			&doc.ID, &doc.EventID, &doc.URL, &doc.Title, &doc.Content, &raw, &doc.CrawlStatus, &doc.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := fromJSONB(raw, &doc.Metadata); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Content chunks

func (c *DatabaseClient) InsertContentChunk(ctx context.Context, chunk *models.ContentChunk) error {
	if chunk == nil {
		return errors.New("nil chunk")
	}
	var embedding any
	if chunk.Embedding != nil {
		embedding = pgvector.NewVector(chunk.Embedding)
	}
	const q = `
		INSERT INTO content_chunks (id, event_id, document_id, content, embedding, chunk_index, chunk_length, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		chunk.ID, chunk.EventID, chunk.DocumentID, chunk.Content, embedding,
		chunk.ChunkIndex, chunk.ChunkLength, nullTime(chunk.CreatedAt))
	return err
}

// SearchChunks ranks by L2 distance to the query vector; chunks stored
// without an embedding never match.
func (c *DatabaseClient) SearchChunks(ctx context.Context, eventID string, queryVec []float32, limit int) ([]models.ContentChunk, error) {
	const q = `
		SELECT id, event_id, document_id, content, chunk_index, chunk_length, created_at
		FROM content_chunks
		WHERE event_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <-> $2
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, eventID, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func (c *DatabaseClient) RecentChunks(ctx context.Context, eventID string, limit int) ([]models.ContentChunk, error) {
	const q = `
		SELECT id, event_id, document_id, content, chunk_index, chunk_length, created_at
		FROM content_chunks
		WHERE event_id = $1
		ORDER BY created_at DESC, chunk_index ASC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

func scanChunks(rows *sql.Rows) ([]models.ContentChunk, error) {
	var out []models.ContentChunk
	for rows.Next() {
		var ch models.ContentChunk
		if err := rows.Scan(
			&ch.ID, &ch.EventID, &ch.DocumentID, &ch.Content, &ch.ChunkIndex, &ch.ChunkLength, &ch.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Chat sessions and messages

func (c *DatabaseClient) CreateChatSession(ctx context.Context, session *models.ChatSession) error {
	if session == nil {
		return errors.New("nil session")
	}
	const q = `
		INSERT INTO chat_sessions (id, user_id, event_id, title, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		session.ID, session.UserID, session.EventID, session.Title, nullTime(session.CreatedAt))
	return err
}

func (c *DatabaseClient) GetChatSessionByID(ctx context.Context, id string) (*models.ChatSession, error) {
	const q = `
		SELECT id, user_id, event_id, title, created_at
		FROM chat_sessions WHERE id = $1
	`
	var s models.ChatSession
	err := c.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.UserID, &s.EventID, &s.Title, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *DatabaseClient) LatestChatSession(ctx context.Context, userID, eventID string) (*models.ChatSession, error) {
	const q = `
		SELECT id, user_id, event_id, title, created_at
		FROM chat_sessions
		WHERE user_id = $1 AND event_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var s models.ChatSession
	err := c.db.QueryRowContext(ctx, q, userID, eventID).Scan(&s.ID, &s.UserID, &s.EventID, &s.Title, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *DatabaseClient) AddChatMessage(ctx context.Context, message *models.ChatMessage) error {
	if message == nil {
		return errors.New("nil message")
	}
	meta, err := toJSONB(message.Metadata)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO chat_messages (id, session_id, role, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		message.ID, message.SessionID, message.Role, message.Content, meta, nullTime(message.CreatedAt))
	return err
}

func (c *DatabaseClient) ListMessagesBySession(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	const q = `
		SELECT id, session_id, role, content, metadata, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var (
			m   models.ChatMessage
			raw []byte
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &raw, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := fromJSONB(raw, &m.Metadata); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
