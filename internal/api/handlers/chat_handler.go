package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/eventinsight/eventinsight/internal/core"
	"github.com/eventinsight/eventinsight/internal/models"
)

// Conversation is the chat-orchestrator surface the handler needs.
type Conversation interface {
	SendMessage(ctx context.Context, userID, eventID, sessionID, text string) (*models.ChatMessage, error)
	History(ctx context.Context, userID, sessionID string) ([]models.ChatMessage, error)
}

type ChatHandler struct {
	chat Conversation
}

func NewChatHandler(chat Conversation) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	EventID   string `json:"event_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EventID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "Missing required parameters")
		return
	}

	reply, err := h.chat.SendMessage(r.Context(), userID, req.EventID, req.SessionID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNoContent):
			writeError(w, http.StatusNotFound, "No event content found. The event may still be processing.")
		case errors.Is(err, core.ErrNotFound):
			writeError(w, http.StatusNotFound, "event not found")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"content":    reply.Content,
		"message_id": reply.ID,
		"created_at": reply.CreatedAt,
	})
}

func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	messages, err := h.chat.History(r.Context(), userID, sessionID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, messages)
}
