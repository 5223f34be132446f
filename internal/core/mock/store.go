// Package mock provides in-memory test doubles for the core interfaces.
// Behavior can be overridden per call through function fields.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/eventinsight/eventinsight/internal/models"
)

// Store is an in-memory core.DbClient. The zero value is not usable; create
// it with NewStore.
type Store struct {
	mu       sync.Mutex
	events   map[string]*models.Event
	docs     map[string]*models.SourceDocument
	chunks   []*models.ContentChunk
	sessions map[string]*models.ChatSession
	messages []*models.ChatMessage

	// Optional error injection hooks.
	InsertContentChunkFunc func(ctx context.Context, chunk *models.ContentChunk) error
	AddChatMessageFunc     func(ctx context.Context, message *models.ChatMessage) error
	SearchChunksFunc       func(ctx context.Context, eventID string, queryVec []float32, limit int) ([]models.ContentChunk, error)
}

func NewStore() *Store {
	return &Store{
		events:   make(map[string]*models.Event),
		docs:     make(map[string]*models.SourceDocument),
		sessions: make(map[string]*models.ChatSession),
	}
}

func (s *Store) CreateEvent(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *event
	s.events[event.ID] = &cp
	return nil
}

func (s *Store) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (s *Store) ListEventsByUser(ctx context.Context, userID string) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Event
	for _, e := range s.events {
		if e.UserID == userID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateEventStatus(ctx context.Context, id string, status models.EventStatus, crawlData map[string]any) error {
	// Status writes honor cancellation the way the real store does.
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return fmt.Errorf("event not found: %s", id)
	}
	e.Status = status
	if crawlData != nil {
		e.CrawlData = crawlData
	}
	return nil
}

func (s *Store) ClaimEventForCrawl(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return false, nil
	}
	if e.Status != models.EventStatusPending && e.Status != models.EventStatusFailed {
		return false, nil
	}
	e.Status = models.EventStatusCrawling
	return true, nil
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("event not found: %s", id)
	}
	delete(s.events, id)

	for docID, doc := range s.docs {
		if doc.EventID == id {
			delete(s.docs, docID)
		}
	}
	kept := s.chunks[:0]
	for _, ch := range s.chunks {
		if ch.EventID != id {
			kept = append(kept, ch)
		}
	}
	s.chunks = kept

	for sessionID, session := range s.sessions {
		if session.EventID == id {
			delete(s.sessions, sessionID)
			keptMsgs := s.messages[:0]
			for _, m := range s.messages {
				if m.SessionID != sessionID {
					keptMsgs = append(keptMsgs, m)
				}
			}
			s.messages = keptMsgs
		}
	}
	return nil
}

func (s *Store) CreateSourceDocument(ctx context.Context, doc *models.SourceDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *doc
	s.docs[doc.ID] = &cp
	return nil
}

func (s *Store) ListSourceDocuments(ctx context.Context, eventID string) ([]models.SourceDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SourceDocument
	for _, doc := range s.docs {
		if doc.EventID == eventID {
			out = append(out, *doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) InsertContentChunk(ctx context.Context, chunk *models.ContentChunk) error {
	if s.InsertContentChunkFunc != nil {
		if err := s.InsertContentChunkFunc(ctx, chunk); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *chunk
	s.chunks = append(s.chunks, &cp)
	return nil
}

func (s *Store) SearchChunks(ctx context.Context, eventID string, queryVec []float32, limit int) ([]models.ContentChunk, error) {
	if s.SearchChunksFunc != nil {
		return s.SearchChunksFunc(ctx, eventID, queryVec, limit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ContentChunk
	for _, ch := range s.chunks {
		if ch.EventID == eventID && ch.Embedding != nil {
			out = append(out, *ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkIndex < out[j].ChunkIndex })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) RecentChunks(ctx context.Context, eventID string, limit int) ([]models.ContentChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ContentChunk
	for i := len(s.chunks) - 1; i >= 0 && len(out) < limit; i-- {
		if s.chunks[i].EventID == eventID {
			out = append(out, *s.chunks[i])
		}
	}
	return out, nil
}

func (s *Store) CreateChatSession(ctx context.Context, session *models.ChatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *Store) GetChatSessionByID(ctx context.Context, id string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *session
	return &cp, nil
}

func (s *Store) LatestChatSession(ctx context.Context, userID, eventID string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.ChatSession
	for _, session := range s.sessions {
		if session.UserID != userID || session.EventID != eventID {
			continue
		}
		if latest == nil || session.CreatedAt.After(latest.CreatedAt) {
			latest = session
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) AddChatMessage(ctx context.Context, message *models.ChatMessage) error {
	if s.AddChatMessageFunc != nil {
		if err := s.AddChatMessageFunc(ctx, message); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *message
	s.messages = append(s.messages, &cp)
	return nil
}

func (s *Store) ListMessagesBySession(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, *m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) Close() error { return nil }

// Chunks returns a snapshot of every stored chunk, for assertions.
func (s *Store) Chunks() []models.ContentChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ContentChunk, len(s.chunks))
	for i, ch := range s.chunks {
		out[i] = *ch
	}
	return out
}

// Documents returns a snapshot of every stored source document.
func (s *Store) Documents() []models.SourceDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SourceDocument
	for _, doc := range s.docs {
		out = append(out, *doc)
	}
	return out
}

// Sessions returns a snapshot of every stored chat session.
func (s *Store) Sessions() []models.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatSession
	for _, session := range s.sessions {
		out = append(out, *session)
	}
	return out
}

// Messages returns a snapshot of every stored message across sessions.
func (s *Store) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.messages))
	for i, m := range s.messages {
		out[i] = *m
	}
	return out
}
