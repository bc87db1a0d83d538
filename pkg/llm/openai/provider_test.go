package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"doc-qa-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseChunk(content string) string {
	return fmt.Sprintf(`data: {"id":"1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":%q}}]}`+"\n\n", content)
}

func TestChatStreamDeliversDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseChunk("Hello"))
		fmt.Fprint(w, sseChunk(" there"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "gpt-4o-mini", srv.URL)
	chunks, err := p.ChatStream(context.Background(), []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	var deltas []string
	var done bool
	for c := range chunks {
		require.NoError(t, c.Err)
		if c.Done {
			done = true
			continue
		}
		deltas = append(deltas, c.Delta)
	}
	assert.Equal(t, []string{"Hello", " there"}, deltas)
	assert.True(t, done)
}

func streamReaderRunning(marker string) bool {
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	return strings.Contains(string(buf[:n]), marker)
}

// A consumer that cancels and walks away must not strand the reader
// goroutine blocked on a channel send.
func TestChatStreamCancelStopsReader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for i := 0; ; i++ {
			if _, err := fmt.Fprint(w, sseChunk(fmt.Sprintf("t%d ", i))); err != nil {
				return
			}
			flusher.Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "gpt-4o-mini", srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chunks, err := p.ChatStream(ctx, []llm.Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)

	first := <-chunks
	require.NoError(t, first.Err)

	cancel()
	// No further reads from chunks on purpose.
	assert.Eventually(t, func() bool {
		return !streamReaderRunning("openai.(*OpenAIProvider).ChatStream")
	}, 2*time.Second, 20*time.Millisecond, "reader goroutine must exit once the context is cancelled")
}
