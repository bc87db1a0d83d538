package citation

import (
	"strings"
	"testing"

	"doc-qa-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passageFixture(n int) []store.Passage {
	passages := make([]store.Passage, n)
	for i := range passages {
		passages[i] = store.Passage{
			ChunkId:    uuid.New(),
			DocumentId: uuid.New(),
			Filename:   "doc.txt",
			ChunkIndex: i,
			Text:       "passage text",
			Score:      float64(n-i) / float64(n),
		}
	}
	return passages
}

func TestExtractMarkerOrder(t *testing.T) {
	passages := passageFixture(3)
	citations := Extract("See [2] and also [1].", passages)

	require.Len(t, citations, 2)
	assert.Equal(t, passages[1].DocumentId, citations[0].DocumentId)
	assert.Equal(t, passages[0].DocumentId, citations[1].DocumentId)
}

func TestExtractDeduplicates(t *testing.T) {
	passages := passageFixture(2)
	citations := Extract("[1] then [1] again, and [2] [1]", passages)

	require.Len(t, citations, 2)
	assert.Equal(t, passages[0].DocumentId, citations[0].DocumentId)
	assert.Equal(t, passages[1].DocumentId, citations[1].DocumentId)
}

func TestExtractIgnoresOutOfRange(t *testing.T) {
	passages := passageFixture(2)
	citations := Extract("Valid [1], bogus [7] and [0].", passages)

	require.Len(t, citations, 1)
	assert.Equal(t, passages[0].DocumentId, citations[0].DocumentId)
}

func TestExtractFallbackWithoutMarkers(t *testing.T) {
	passages := passageFixture(3)
	// Shuffle scores so fallback ordering is observable
	passages[0].Score = 0.2
	passages[1].Score = 0.9
	passages[2].Score = 0.5

	citations := Extract("No sources were referenced here.", passages)

	require.Len(t, citations, 3)
	assert.Equal(t, 0.9, citations[0].Score)
	assert.Equal(t, 0.5, citations[1].Score)
	assert.Equal(t, 0.2, citations[2].Score)
}

func TestExtractNoPassages(t *testing.T) {
	assert.Nil(t, Extract("answer [1]", nil))
}

func TestSnippetTruncation(t *testing.T) {
	passages := passageFixture(1)
	passages[0].Text = strings.Repeat("ä", 500)

	citations := Extract("[1]", passages)
	require.Len(t, citations, 1)
	assert.Equal(t, snippetLimit+3, len([]rune(citations[0].Snippet)))
	assert.True(t, strings.HasSuffix(citations[0].Snippet, "..."))
}
