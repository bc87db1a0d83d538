package memory

import (
	"fmt"
	"testing"

	"doc-qa-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryEmptySession(t *testing.T) {
	r := NewConversationRepository()
	assert.Nil(t, r.History("unknown"))
}

func TestAppendAndHistoryOrder(t *testing.T) {
	r := NewConversationRepository()

	r.Append("s1", store.Turn{Question: "q1", Answer: "a1"})
	r.Append("s1", store.Turn{Question: "q2", Answer: "a2"})

	history := r.History("s1")
	require.Len(t, history, 2)
	assert.Equal(t, "q1", history[0].Question)
	assert.Equal(t, "q2", history[1].Question)
}

func TestAppendEvictsOldestBeyondCap(t *testing.T) {
	r := NewConversationRepository()

	for i := 0; i < MaxTurns+5; i++ {
		r.Append("s1", store.Turn{Question: fmt.Sprintf("q%d", i)})
	}

	history := r.History("s1")
	require.Len(t, history, MaxTurns)
	assert.Equal(t, "q5", history[0].Question, "oldest turns fall off the front")
	assert.Equal(t, fmt.Sprintf("q%d", MaxTurns+4), history[MaxTurns-1].Question)
}

func TestHistoryReturnsCopy(t *testing.T) {
	r := NewConversationRepository()
	r.Append("s1", store.Turn{Question: "original"})

	history := r.History("s1")
	history[0].Question = "mutated"

	assert.Equal(t, "original", r.History("s1")[0].Question)
}

func TestSessionsIsolated(t *testing.T) {
	r := NewConversationRepository()
	r.Append("s1", store.Turn{Question: "q"})

	assert.Len(t, r.History("s1"), 1)
	assert.Nil(t, r.History("s2"))
}

func TestClear(t *testing.T) {
	r := NewConversationRepository()
	r.Append("s1", store.Turn{Question: "q"})
	r.Clear("s1")
	assert.Nil(t, r.History("s1"))
}
