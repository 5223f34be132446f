package crawler

import (
	"regexp"
	"strings"
)

const (
	defaultMaxChunkSize = 1000
	defaultMinChunkLen  = 50
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// Chunker splits extracted text into bounded-size, sentence-aligned segments.
// Sentences accumulate greedily until adding the next one would push the
// buffer past MaxChunkSize; the buffer is then closed as one chunk. Chunks
// shorter than MinChunkLen are discarded as noise. A single sentence longer
// than MaxChunkSize is emitted whole, never split mid-sentence.
//
// Chunking is pure: no state survives between calls.
type Chunker struct {
	MaxChunkSize int
	MinChunkLen  int
}

func NewChunker() *Chunker {
	return &Chunker{MaxChunkSize: defaultMaxChunkSize, MinChunkLen: defaultMinChunkLen}
}

func (c *Chunker) Chunk(text string) []string {
	maxSize := c.MaxChunkSize
	if maxSize <= 0 {
		maxSize = defaultMaxChunkSize
	}

	sentences := sentenceEnd.Split(text, -1)

	var (
		chunks  []string
		current string
	)
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		switch {
		case current == "":
			current = sentence
		// The budget covers the ". " joiner and the closing period, so an
		// emitted multi-sentence chunk never exceeds MaxChunkSize.
		case len(current)+len(sentence)+3 > maxSize:
			chunks = append(chunks, current+".")
			current = sentence
		default:
			current += ". " + sentence
		}
	}
	if current != "" {
		chunks = append(chunks, current+".")
	}

	kept := chunks[:0]
	for _, chunk := range chunks {
		if len(chunk) >= c.MinChunkLen {
			kept = append(kept, chunk)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}
