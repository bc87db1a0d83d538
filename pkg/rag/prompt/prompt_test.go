package prompt

import (
	"strings"
	"testing"

	"doc-qa-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passages(texts ...string) []store.Passage {
	out := make([]store.Passage, len(texts))
	for i, text := range texts {
		out[i] = store.Passage{
			Filename:   "handbook.txt",
			ChunkIndex: i,
			Text:       text,
			Score:      1.0 - float64(i)*0.1,
		}
	}
	return out
}

func TestBuildKeepsEverythingUnderBudget(t *testing.T) {
	a := NewAssembler(100000)
	history := []store.Turn{{Question: "q1", Answer: "a1"}}

	messages, kept := a.Build("what is the leave policy?", passages("p1", "p2"), history)

	require.Len(t, kept, 2)
	// system + one history pair + the question
	require.Len(t, messages, 4)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "user", messages[1].Role)
	assert.Equal(t, "assistant", messages[2].Role)
	assert.Equal(t, "what is the leave policy?", messages[3].Content)
}

func TestBuildMarkersMatchKeptPassages(t *testing.T) {
	a := NewAssembler(100000)

	messages, kept := a.Build("q", passages("first passage", "second passage"), nil)

	system := messages[0].Content
	for i, p := range kept {
		assert.Contains(t, system, p.Text)
		assert.Contains(t, system, "["+string(rune('1'+i))+"]")
	}
}

func TestBuildDropsOldestHistoryFirst(t *testing.T) {
	long := strings.Repeat("x", 400)
	history := []store.Turn{
		{Question: "old " + long, Answer: long},
		{Question: "recent", Answer: "short"},
	}
	ps := passages("keep me")

	// Budget fits the system prompt, the passage, the recent turn and the
	// question, but not the old turn.
	a := NewAssembler(len(renderSystem(ps)) + len("recent") + len("short") + len("q") + 10)

	messages, kept := a.Build("q", ps, history)

	require.Len(t, kept, 1, "passage should survive before history is exhausted")
	require.Len(t, messages, 4)
	assert.Equal(t, "recent", messages[1].Content)
}

func TestBuildDropsLowestScoredPassagesAfterHistory(t *testing.T) {
	big := strings.Repeat("y", 2000)
	ps := passages("tiny", big)

	a := NewAssembler(len(renderSystem(ps[:1])) + len("q") + 10)

	messages, kept := a.Build("q", ps, nil)

	require.Len(t, kept, 1)
	assert.Equal(t, "tiny", kept[0].Text)
	assert.NotContains(t, messages[0].Content, big)
}

func TestBuildNoContext(t *testing.T) {
	a := NewAssembler(0)
	assert.Equal(t, DefaultBudget, a.Budget())

	messages, kept := a.Build("q", nil, nil)

	assert.Empty(t, kept)
	require.Len(t, messages, 2)
	assert.Equal(t, noContextHeader, messages[0].Content)
}

func TestBuildQuestionNeverDropped(t *testing.T) {
	a := NewAssembler(1)

	messages, kept := a.Build("the question", passages("p"), []store.Turn{{Question: "q", Answer: "a"}})

	assert.Empty(t, kept)
	assert.Equal(t, "the question", messages[len(messages)-1].Content)
}

func TestBuildPageNumberRendered(t *testing.T) {
	page := 12
	ps := passages("content")
	ps[0].PageNumber = &page

	a := NewAssembler(100000)
	messages, _ := a.Build("q", ps, nil)

	assert.Contains(t, messages[0].Content, "page 12")
}
