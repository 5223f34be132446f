package core

import (
	"errors"
	"fmt"
)

var (
	// ErrExtract indicates text extraction from a fetched page failed.
	ErrExtract = errors.New("content extraction failed")

	// ErrEmbeddingUnavailable indicates the embedding backend is not
	// configured or the embedding call failed. Callers decide whether this
	// is fatal; during ingestion it is absorbed per chunk.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrNoContent indicates an event has zero retrievable chunks, either
	// because it is still processing or nothing extractable was found.
	ErrNoContent = errors.New("no event content available")

	// ErrGeneration indicates the language-model call failed.
	ErrGeneration = errors.New("response generation failed")

	// ErrCrawlInProgress indicates the event could not be claimed for
	// crawling because another run already moved it out of a claimable state.
	ErrCrawlInProgress = errors.New("crawl already in progress")

	// ErrNotFound indicates a requested record does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("not found")
)

// FetchError reports a failed page fetch. StatusCode is the non-2xx HTTP
// status, or 0 for transport-level failures (DNS, connect, timeout).
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
