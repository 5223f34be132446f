package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventinsight/eventinsight/internal/core"
	"github.com/eventinsight/eventinsight/internal/core/crawler"
	"github.com/eventinsight/eventinsight/internal/core/mock"
	"github.com/eventinsight/eventinsight/internal/models"
)

type stubFetcher struct {
	fn func(ctx context.Context, url string) (*crawler.Page, error)
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (*crawler.Page, error) {
	return s.fn(ctx, url)
}

func htmlFetcher(html string) *stubFetcher {
	return &stubFetcher{fn: func(ctx context.Context, url string) (*crawler.Page, error) {
		return &crawler.Page{Body: []byte(html), ContentType: "text/html", StatusCode: 200}, nil
	}}
}

func newPendingEvent(t *testing.T, store *mock.Store, url string) *models.Event {
	t.Helper()
	event := &models.Event{
		ID:     uuid.NewString(),
		UserID: "user-1",
		Name:   "Test Hack",
		URL:    url,
		Status: models.EventStatusPending,
	}
	require.NoError(t, store.CreateEvent(context.Background(), event))
	return event
}

func TestIngestFailedFetchMarksEventFailed(t *testing.T) {
	store := mock.NewStore()
	event := newPendingEvent(t, store, "https://example.com/down")

	fetcher := &stubFetcher{fn: func(ctx context.Context, url string) (*crawler.Page, error) {
		return nil, &core.FetchError{URL: url, StatusCode: 503}
	}}
	p := NewPipeline(store, &mock.Embedder{}, fetcher, crawler.NewExtractor())

	_, err := p.Ingest(context.Background(), event.ID, event.URL)
	require.Error(t, err)

	got, err := store.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusFailed, got.Status)
	assert.Contains(t, got.CrawlData["error"], "503")
	assert.NotEmpty(t, got.CrawlData["failed_at"])
}

func TestIngestEmbedderDownStillCompletes(t *testing.T) {
	store := mock.NewStore()
	event := newPendingEvent(t, store, "https://example.com/hack")

	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "<p>Sentence number %d describing the event schedule in useful detail.</p>", i)
	}
	fetcher := htmlFetcher("<title>Big Hack</title><body>" + sb.String() + "</body>")

	embedder := &mock.Embedder{EmbedTextFunc: func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("%w: key revoked", core.ErrEmbeddingUnavailable)
	}}
	p := NewPipeline(store, embedder, fetcher, crawler.NewExtractor())

	result, err := p.Ingest(context.Background(), event.ID, event.URL)
	require.NoError(t, err)
	require.NotZero(t, result.ChunksCreated)

	got, err := store.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusCompleted, got.Status)

	chunks := store.Chunks()
	require.Len(t, chunks, result.ChunksCreated)
	for _, chunk := range chunks {
		assert.Nil(t, chunk.Embedding)
		assert.Equal(t, event.ID, chunk.EventID)
	}
}

func TestIngestScenario(t *testing.T) {
	store := mock.NewStore()
	event := newPendingEvent(t, store, "https://example.com/hack")

	fetcher := htmlFetcher("<title>Test Hack 2024</title><body>Prizes: $10,000. Deadline: Dec 1.</body>")
	p := NewPipeline(store, &mock.Embedder{}, fetcher, crawler.NewExtractor())

	result, err := p.Ingest(context.Background(), event.ID, event.URL)
	require.NoError(t, err)
	assert.NotZero(t, result.ChunksCreated)
	assert.NotZero(t, result.WordsProcessed)

	docs := store.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "Test Hack 2024", docs[0].Title)
	assert.Equal(t, result.WordsProcessed, docs[0].Metadata["word_count"])

	var found bool
	for _, chunk := range store.Chunks() {
		if strings.Contains(chunk.Content, "Prizes: $10,000") {
			found = true
		}
	}
	assert.True(t, found, "expected a chunk containing the prize line")

	got, err := store.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusCompleted, got.Status)
	assert.Equal(t, result.ChunksCreated, got.CrawlData["total_chunks"])
	assert.Equal(t, result.WordsProcessed, got.CrawlData["total_words"])
	assert.Equal(t, 1, got.CrawlData["urls_processed"])
}

func TestIngestRejectsConcurrentRun(t *testing.T) {
	store := mock.NewStore()
	event := newPendingEvent(t, store, "https://example.com/hack")
	require.NoError(t, store.UpdateEventStatus(context.Background(), event.ID, models.EventStatusCrawling, nil))

	p := NewPipeline(store, &mock.Embedder{}, htmlFetcher("<body>irrelevant</body>"), crawler.NewExtractor())

	_, err := p.Ingest(context.Background(), event.ID, event.URL)
	assert.ErrorIs(t, err, core.ErrCrawlInProgress)
}

func TestIngestRetryAfterFailure(t *testing.T) {
	store := mock.NewStore()
	event := newPendingEvent(t, store, "https://example.com/hack")
	require.NoError(t, store.UpdateEventStatus(context.Background(), event.ID, models.EventStatusFailed, nil))

	fetcher := htmlFetcher("<title>Retry Hack</title><body>" +
		strings.Repeat("A sentence long enough to survive the noise filter. ", 5) + "</body>")
	p := NewPipeline(store, &mock.Embedder{}, fetcher, crawler.NewExtractor())

	_, err := p.Ingest(context.Background(), event.ID, event.URL)
	require.NoError(t, err)

	got, err := store.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusCompleted, got.Status)
}

func TestIngestTerminalStatusSurvivesCancellation(t *testing.T) {
	store := mock.NewStore()
	event := newPendingEvent(t, store, "https://example.com/hack")

	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &stubFetcher{fn: func(fctx context.Context, url string) (*crawler.Page, error) {
		cancel()
		return nil, &core.FetchError{URL: url, Err: fctx.Err()}
	}}
	p := NewPipeline(store, &mock.Embedder{}, fetcher, crawler.NewExtractor())

	_, err := p.Ingest(ctx, event.ID, event.URL)
	require.Error(t, err)

	got, err := store.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusFailed, got.Status)
	assert.NotEmpty(t, got.CrawlData["error"])
}

func TestIngestArchivesRawPageAndPurgeRemovesIt(t *testing.T) {
	store := mock.NewStore()
	archive := mock.NewArchive()
	event := newPendingEvent(t, store, "https://example.com/hack")

	fetcher := htmlFetcher("<title>Archive Hack</title><body>" +
		strings.Repeat("A sentence long enough to survive the noise filter. ", 5) + "</body>")
	p := NewPipeline(store, &mock.Embedder{}, fetcher, crawler.NewExtractor(), WithArchive(archive))

	_, err := p.Ingest(context.Background(), event.ID, event.URL)
	require.NoError(t, err)

	docs := store.Documents()
	require.Len(t, docs, 1)
	wantKey := fmt.Sprintf("events/%s/%s/raw", event.ID, docs[0].ID)
	assert.Equal(t, []string{wantKey}, archive.Keys())
	assert.Contains(t, docs[0].Metadata["archive_url"], wantKey)

	p.PurgeArchive(context.Background(), event.ID)
	assert.Empty(t, archive.Keys())
	assert.Equal(t, []string{wantKey}, archive.Deleted())
}

func TestPurgeArchiveSkipsUnarchivedDocuments(t *testing.T) {
	store := mock.NewStore()
	archive := mock.NewArchive()
	event := newPendingEvent(t, store, "https://example.com/hack")
	require.NoError(t, store.CreateSourceDocument(context.Background(), &models.SourceDocument{
		ID:      uuid.NewString(),
		EventID: event.ID,
		URL:     event.URL,
	}))

	p := NewPipeline(store, &mock.Embedder{}, htmlFetcher(""), crawler.NewExtractor(), WithArchive(archive))
	p.PurgeArchive(context.Background(), event.ID)
	assert.Empty(t, archive.Deleted())
}

func TestIngestChunkPersistFailureMarksEventFailed(t *testing.T) {
	store := mock.NewStore()
	store.InsertContentChunkFunc = func(ctx context.Context, chunk *models.ContentChunk) error {
		return errors.New("disk full")
	}
	event := newPendingEvent(t, store, "https://example.com/hack")

	fetcher := htmlFetcher("<body>" +
		strings.Repeat("A sentence long enough to survive the noise filter. ", 5) + "</body>")
	p := NewPipeline(store, &mock.Embedder{}, fetcher, crawler.NewExtractor())

	_, err := p.Ingest(context.Background(), event.ID, event.URL)
	require.Error(t, err)

	got, err := store.GetEventByID(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusFailed, got.Status)
	assert.Contains(t, got.CrawlData["error"], "disk full")
}
