package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventinsight/eventinsight/internal/core"
	"github.com/eventinsight/eventinsight/internal/core/ingest"
	"github.com/eventinsight/eventinsight/internal/core/mock"
	"github.com/eventinsight/eventinsight/internal/models"
)

type stubIngestor struct {
	fn     func(ctx context.Context, eventID, url string) (*ingest.Result, error)
	purged []string
}

func (s *stubIngestor) Ingest(ctx context.Context, eventID, url string) (*ingest.Result, error) {
	if s.fn != nil {
		return s.fn(ctx, eventID, url)
	}
	return &ingest.Result{ChunksCreated: 3, WordsProcessed: 120}, nil
}

func (s *stubIngestor) PurgeArchive(ctx context.Context, eventID string) {
	s.purged = append(s.purged, eventID)
}

func eventRouter(h *EventHandler) chi.Router {
	r := chi.NewRouter()
	r.Post("/api/events", h.CreateEvent)
	r.Get("/api/events", h.ListEvents)
	r.Get("/api/events/{eventID}", h.GetEvent)
	r.Delete("/api/events/{eventID}", h.DeleteEvent)
	r.Post("/api/events/{eventID}/crawl", h.CrawlEvent)
	return r
}

func doRequest(t *testing.T, router chi.Router, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func storedEvent(t *testing.T, store *mock.Store, userID string) *models.Event {
	t.Helper()
	event := &models.Event{
		ID:     uuid.NewString(),
		UserID: userID,
		Name:   "Big Hack",
		URL:    "https://example.com/hack",
		Status: models.EventStatusPending,
	}
	require.NoError(t, store.CreateEvent(context.Background(), event))
	return event
}

func TestCreateEvent(t *testing.T) {
	store := mock.NewStore()
	router := eventRouter(NewEventHandler(store, &stubIngestor{}))

	rec := doRequest(t, router, http.MethodPost, "/api/events", "user-1",
		`{"name":"Big Hack","url":"https://example.com/hack","description":"annual hackathon"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, models.EventStatusPending, created.Status)
}

func TestCreateEventValidation(t *testing.T) {
	store := mock.NewStore()
	router := eventRouter(NewEventHandler(store, &stubIngestor{}))

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"url":"https://example.com"}`},
		{"missing url", `{"name":"Big Hack"}`},
		{"relative url", `{"name":"Big Hack","url":"/hack"}`},
		{"bad scheme", `{"name":"Big Hack","url":"ftp://example.com"}`},
		{"malformed body", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/api/events", "user-1", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestEventEndpointsRequireIdentity(t *testing.T) {
	store := mock.NewStore()
	router := eventRouter(NewEventHandler(store, &stubIngestor{}))

	rec := doRequest(t, router, http.MethodGet, "/api/events", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing user identity")
}

func TestListEventsEmptyIsArray(t *testing.T) {
	store := mock.NewStore()
	router := eventRouter(NewEventHandler(store, &stubIngestor{}))

	rec := doRequest(t, router, http.MethodGet, "/api/events", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestGetEventHidesForeignEvents(t *testing.T) {
	store := mock.NewStore()
	event := storedEvent(t, store, "user-1")
	router := eventRouter(NewEventHandler(store, &stubIngestor{}))

	rec := doRequest(t, router, http.MethodGet, "/api/events/"+event.ID, "user-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/events/"+event.ID, "user-2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/events/"+uuid.NewString(), "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteEvent(t *testing.T) {
	store := mock.NewStore()
	event := storedEvent(t, store, "user-1")
	ingestor := &stubIngestor{}
	router := eventRouter(NewEventHandler(store, ingestor))

	rec := doRequest(t, router, http.MethodDelete, "/api/events/"+event.ID, "user-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	got, err := store.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []string{event.ID}, ingestor.purged)
}

func TestCrawlEvent(t *testing.T) {
	store := mock.NewStore()
	event := storedEvent(t, store, "user-1")
	router := eventRouter(NewEventHandler(store, &stubIngestor{}))

	rec := doRequest(t, router, http.MethodPost, "/api/events/"+event.ID+"/crawl", "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 3, body["chunks_created"])
	assert.EqualValues(t, 120, body["words_processed"])
}

func TestCrawlEventConflictAndFailure(t *testing.T) {
	store := mock.NewStore()
	event := storedEvent(t, store, "user-1")
	require.NoError(t, store.UpdateEventStatus(context.Background(), event.ID, models.EventStatusCrawling, nil))

	ingestor := &stubIngestor{fn: func(ctx context.Context, eventID, url string) (*ingest.Result, error) {
		return nil, core.ErrCrawlInProgress
	}}
	router := eventRouter(NewEventHandler(store, ingestor))

	rec := doRequest(t, router, http.MethodPost, "/api/events/"+event.ID+"/crawl", "user-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "crawl already in progress")

	require.NoError(t, store.UpdateEventStatus(context.Background(), event.ID, models.EventStatusCompleted, nil))
	rec = doRequest(t, router, http.MethodPost, "/api/events/"+event.ID+"/crawl", "user-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "event already crawled")

	ingestor.fn = func(ctx context.Context, eventID, url string) (*ingest.Result, error) {
		return nil, errors.New("fetch https://example.com/hack: HTTP 503")
	}
	rec = doRequest(t, router, http.MethodPost, "/api/events/"+event.ID+"/crawl", "user-1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Crawling failed")
}
