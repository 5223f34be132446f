package crawler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/eventinsight/eventinsight/internal/core"
)

// userAgent identifies the crawler to origin servers.
const userAgent = "Mozilla/5.0 (compatible; EventInsightBot/1.0)"

const defaultFetchTimeout = 30 * time.Second

// Page is the raw result of fetching one URL.
type Page struct {
	Body        []byte
	ContentType string
	StatusCode  int
}

// HTTPFetcher retrieves pages over HTTP with a bounded timeout. It performs
// no retries; retry policy belongs to the caller.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &core.FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &core.FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &core.FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.FetchError{URL: url, Err: err}
	}

	return &Page{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}
