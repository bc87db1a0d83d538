package chunker

import (
	"strings"

	"doc-qa-be/pkg/rag"
)

// Chunk is one retrieval window over a document's text. Offsets are rune
// offsets into the source text so index order reconstructs the document
// modulo the overlap regions.
type Chunk struct {
	Index int    // 0-based, contiguous
	Start int    // rune offset, inclusive
	End   int    // rune offset, exclusive
	Text  string
}

// Chunker splits raw text into fixed-size sliding windows with overlap.
// This is a character-based splitter. Ideally, use a tokenizer-aware
// splitter.
type Chunker struct {
	windowSize int
	overlap    int
}

const (
	// DefaultWindowSize is approx 375 tokens, safe for context limits.
	DefaultWindowSize = 1500
	DefaultOverlap    = 200
)

func New(windowSize, overlap int) *Chunker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if overlap < 0 || overlap >= windowSize {
		overlap = DefaultOverlap
		if overlap >= windowSize {
			overlap = windowSize / 4
		}
	}
	return &Chunker{windowSize: windowSize, overlap: overlap}
}

// Split produces the ordered chunk sequence for text. Documents shorter
// than one window yield exactly one chunk. Empty or whitespace-only text
// yields rag.ErrEmptyDocument and must not be indexed.
func (c *Chunker) Split(text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, rag.ErrEmptyDocument
	}

	runes := []rune(text)
	totalLen := len(runes)

	if totalLen <= c.windowSize {
		return []Chunk{{Index: 0, Start: 0, End: totalLen, Text: text}}, nil
	}

	step := c.windowSize - c.overlap

	var chunks []Chunk
	idx := 0
	for i := 0; i < totalLen; i += step {
		end := i + c.windowSize
		if end > totalLen {
			end = totalLen
		}

		chunks = append(chunks, Chunk{
			Index: idx,
			Start: i,
			End:   end,
			Text:  string(runes[i:end]),
		})
		idx++

		if end == totalLen {
			break
		}
	}

	return chunks, nil
}

// WindowSize returns the configured target window size in runes.
func (c *Chunker) WindowSize() int { return c.windowSize }

// Overlap returns the configured overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }
