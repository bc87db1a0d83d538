package stream

import (
	"errors"
	"testing"

	"doc-qa-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch <-chan Event) []Event {
	var out []Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestEmitterSequence(t *testing.T) {
	e := NewEmitter(8)

	go func() {
		e.Status("retrieving")
		e.Citations([]store.Citation{{Filename: "doc.txt"}})
		e.Token("hello")
		e.Token(" world")
		e.Done("hello world", nil, "ollama", "llama3")
	}()

	events := collect(e.Events())
	require.Len(t, events, 5)
	assert.Equal(t, EventStatus, events[0].Type)
	assert.Equal(t, EventCitations, events[1].Type)
	assert.Equal(t, "hello", events[2].Token)
	assert.Equal(t, " world", events[3].Token)
	assert.Equal(t, EventDone, events[4].Type)
	assert.Equal(t, "hello world", events[4].Answer)
	assert.Equal(t, "ollama", events[4].Provider)
	assert.Equal(t, "llama3", events[4].Model)
}

func TestEmitterErrorTerminates(t *testing.T) {
	e := NewEmitter(4)

	go func() {
		e.Token("partial")
		e.Error(errors.New("provider gone"))
		// Emissions after the terminal event must be dropped, not panic
		e.Token("late")
		e.Done("late", nil, "", "")
	}()

	events := collect(e.Events())
	require.Len(t, events, 2)
	assert.Equal(t, EventToken, events[0].Type)
	assert.Equal(t, EventError, events[1].Type)
	assert.Equal(t, "provider gone", events[1].Error)
}

func TestEmitterCloseIdempotent(t *testing.T) {
	e := NewEmitter(1)
	e.Close()
	assert.NotPanics(t, func() { e.Close() })
	_, open := <-e.Events()
	assert.False(t, open)
}

func TestEmitterNilError(t *testing.T) {
	e := NewEmitter(1)
	go e.Error(nil)
	events := collect(e.Events())
	require.Len(t, events, 1)
	assert.Equal(t, "internal error", events[0].Error)
}
