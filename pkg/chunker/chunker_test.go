package chunker

import (
	"strings"
	"testing"

	"doc-qa-be/pkg/rag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortDocument(t *testing.T) {
	c := New(50, 10)
	chunks, err := c.Split("short text")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "short text", chunks[0].Text)
}

func TestSplitEmptyDocument(t *testing.T) {
	c := New(50, 10)

	_, err := c.Split("")
	assert.ErrorIs(t, err, rag.ErrEmptyDocument)

	_, err = c.Split("   \n\t  ")
	assert.ErrorIs(t, err, rag.ErrEmptyDocument)
}

func TestSplitReconstruction(t *testing.T) {
	// Concatenating chunks in index order reconstructs the source modulo
	// the duplicated overlap regions.
	text := strings.Repeat("abcdefghij", 20) // 200 runes
	c := New(50, 10)

	chunks, err := c.Split(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	runes := []rune(text)
	var rebuilt strings.Builder
	prevEnd := 0
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, string(runes[ch.Start:ch.End]), ch.Text)
		if i > 0 {
			// windows are non-decreasing in start offset and overlap only
			// within the configured bound
			assert.LessOrEqual(t, chunks[i-1].Start, ch.Start)
			assert.LessOrEqual(t, prevEnd-ch.Start, c.Overlap())
		}
		start := ch.Start
		if start < prevEnd {
			start = prevEnd
		}
		rebuilt.WriteString(string(runes[start:ch.End]))
		prevEnd = ch.End
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestSplitFinalChunkShorter(t *testing.T) {
	text := strings.Repeat("x", 120)
	c := New(50, 10)

	chunks, err := c.Split(text)
	require.NoError(t, err)

	last := chunks[len(chunks)-1]
	assert.Equal(t, 120, last.End)
	assert.LessOrEqual(t, last.End-last.Start, 50)
}

func TestSplitScenarioLeavePolicy(t *testing.T) {
	text := "Employees receive 20 days annual leave per calendar year. Unused days may carry over as described in Section 7.1 of the handbook."
	c := New(50, 10)

	chunks, err := c.Split(text)
	require.NoError(t, err)

	found := false
	for _, ch := range chunks {
		if strings.Contains(ch.Text, "20 days annual leave") {
			found = true
		}
	}
	assert.True(t, found, "expected a chunk containing the leave entitlement")
}
