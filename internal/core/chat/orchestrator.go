package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eventinsight/eventinsight/internal/core"
	"github.com/eventinsight/eventinsight/internal/models"
)

// Retriever produces and persists the assistant reply for one user turn.
type Retriever interface {
	Answer(ctx context.Context, sessionID, eventID, question string) (*models.ChatMessage, error)
}

// Orchestrator manages chat-session lifecycle and records the conversation
// turn by turn. The user message is persisted before the answer is attempted
// and is never rolled back on failure; the caller indicates failure and may
// retry.
type Orchestrator struct {
	db        core.DbClient
	retriever Retriever
	logger    *slog.Logger
}

func NewOrchestrator(db core.DbClient, retriever Retriever, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{db: db, retriever: retriever, logger: logger.With("component", "chat")}
}

// SendMessage records a user turn and returns the persisted assistant reply.
// sessionID may be empty, in which case the most recent session for
// (userID, eventID) is reused, or a new one created when none exists.
func (o *Orchestrator) SendMessage(ctx context.Context, userID, eventID, sessionID, text string) (*models.ChatMessage, error) {
	event, err := o.db.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if event == nil || event.UserID != userID {
		return nil, fmt.Errorf("event %s: %w", eventID, core.ErrNotFound)
	}
	if event.Status == models.EventStatusCrawling {
		// The chunk set is being rewritten; don't answer from a partial view.
		return nil, fmt.Errorf("event %s: crawl running: %w", eventID, core.ErrNoContent)
	}

	session, err := o.resolveSession(ctx, userID, eventID, sessionID, event.Name)
	if err != nil {
		return nil, err
	}

	userMessage := &models.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: session.ID,
		Role:      models.RoleUser,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}
	if err := o.db.AddChatMessage(ctx, userMessage); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	reply, err := o.retriever.Answer(ctx, session.ID, eventID, text)
	if err != nil {
		// The user turn stays recorded so the conversation can resume.
		o.logger.Warn("answer failed, user message retained",
			"session_id", session.ID, "event_id", eventID, "err", err)
		return nil, err
	}
	return reply, nil
}

// History returns the session's messages in creation order.
func (o *Orchestrator) History(ctx context.Context, userID, sessionID string) ([]models.ChatMessage, error) {
	session, err := o.db.GetChatSessionByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.UserID != userID {
		return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}
	return o.db.ListMessagesBySession(ctx, sessionID)
}

func (o *Orchestrator) resolveSession(ctx context.Context, userID, eventID, sessionID, eventName string) (*models.ChatSession, error) {
	if sessionID != "" {
		session, err := o.db.GetChatSessionByID(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if session == nil || session.UserID != userID || session.EventID != eventID {
			return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
		}
		return session, nil
	}

	session, err := o.db.LatestChatSession(ctx, userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if session != nil {
		return session, nil
	}

	session = &models.ChatSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		EventID:   eventID,
		Title:     fmt.Sprintf("Chat about %s", eventName),
		CreatedAt: time.Now().UTC(),
	}
	if err := o.db.CreateChatSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	o.logger.Info("chat session created", "session_id", session.ID, "event_id", eventID)
	return session, nil
}
