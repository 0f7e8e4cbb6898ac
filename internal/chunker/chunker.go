// Package chunker splits extracted document text into fixed-size overlapping
// spans. Chunk boundaries are a pure function of the text and the configured
// geometry: the same input always produces the same spans, which keeps chunk
// hashes stable across reprocessing runs.
package chunker

import (
	"fmt"

	"github.com/kansofy/docintel-mcp/pkg/types"
)

const (
	// DefaultChunkSize is the default span length in characters.
	DefaultChunkSize = 512
	// DefaultOverlap is the default number of characters shared between
	// consecutive spans.
	DefaultOverlap = 50
)

// Span is one chunk of text with its position in the chunk sequence.
type Span struct {
	Index int
	Text  string
}

// Chunker produces deterministic overlapping spans.
type Chunker struct {
	size    int
	overlap int
}

// New validates the geometry and returns a Chunker. Overlap must be strictly
// smaller than size or the stride would be zero or negative and chunking
// could never terminate.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", types.ErrConfiguration, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must be non-negative, got %d", types.ErrConfiguration, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", types.ErrConfiguration, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Default returns a Chunker with the default geometry.
func Default() *Chunker {
	c, err := New(DefaultChunkSize, DefaultOverlap)
	if err != nil {
		panic(err) // defaults are valid by construction
	}
	return c
}

// Size returns the configured span length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks text into spans of up to size characters, each starting
// stride = size - overlap characters after the previous one. The final span
// may be shorter than size. Empty text yields no spans; text no longer than
// size yields exactly one. Offsets count characters, not bytes, so
// multi-byte runes are never split.
func (c *Chunker) Split(text string) []Span {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	stride := c.size - c.overlap

	var spans []Span
	for start := 0; start < len(runes); start += stride {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		spans = append(spans, Span{Index: len(spans), Text: string(runes[start:end])})
		if end == len(runes) {
			break
		}
	}
	return spans
}
