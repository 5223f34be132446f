package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/eventinsight/eventinsight/internal/core"
	"github.com/eventinsight/eventinsight/internal/core/ingest"
	"github.com/eventinsight/eventinsight/internal/models"
)

// Ingestor triggers ingestion runs and owns the archived raw pages those
// runs produce.
type Ingestor interface {
	Ingest(ctx context.Context, eventID, url string) (*ingest.Result, error)
	PurgeArchive(ctx context.Context, eventID string)
}

type EventHandler struct {
	dbclient core.DbClient
	ingestor Ingestor
}

func NewEventHandler(dbclient core.DbClient, ingestor Ingestor) *EventHandler {
	return &EventHandler{dbclient: dbclient, ingestor: ingestor}
}

type createEventRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "name and url are required")
		return
	}
	if u, err := url.Parse(req.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}

	event := &models.Event{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		URL:         req.URL,
		Status:      models.EventStatusPending,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := h.dbclient.CreateEvent(r.Context(), event); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store event: %v", err))
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	events, err := h.dbclient.ListEventsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	event, ok := h.ownedEvent(w, r, userID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	event, ok := h.ownedEvent(w, r, userID)
	if !ok {
		return
	}
	// Archived pages go first; the cascade delete below removes the document
	// rows that name their keys.
	h.ingestor.PurgeArchive(r.Context(), event.ID)
	if err := h.dbclient.DeleteEvent(r.Context(), event.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CrawlEvent runs the ingestion pipeline for the event synchronously and
// reports the crawl summary.
func (h *EventHandler) CrawlEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(w, r)
	if !ok {
		return
	}

	event, ok := h.ownedEvent(w, r, userID)
	if !ok {
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), event.ID, event.URL)
	if err != nil {
		if errors.Is(err, core.ErrCrawlInProgress) {
			if event.Status == models.EventStatusCompleted {
				writeError(w, http.StatusConflict, "event already crawled")
			} else {
				writeError(w, http.StatusConflict, "crawl already in progress")
			}
			return
		}
		writeError(w, http.StatusInternalServerError, "Crawling failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"chunks_created":  result.ChunksCreated,
		"words_processed": result.WordsProcessed,
	})
}

// ownedEvent loads the routed event and hides other users' events behind 404.
func (h *EventHandler) ownedEvent(w http.ResponseWriter, r *http.Request, userID string) (*models.Event, bool) {
	eventID := chi.URLParam(r, "eventID")
	event, err := h.dbclient.GetEventByID(r.Context(), eventID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if event == nil || event.UserID != userID {
		writeError(w, http.StatusNotFound, "event not found")
		return nil, false
	}
	return event, true
}
