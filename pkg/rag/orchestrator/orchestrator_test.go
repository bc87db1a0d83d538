package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/contract"
	"doc-qa-be/internal/repository/memory"
	"doc-qa-be/internal/repository/specification"
	"doc-qa-be/pkg/embedding"
	"doc-qa-be/pkg/llm"
	"doc-qa-be/pkg/rag/prompt"
	"doc-qa-be/pkg/rag/retriever"
	"doc-qa-be/pkg/rag/stream"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	chunks  []llm.StreamChunk
	openErr error
	name    string
	// hang leaves the stream open after the scripted chunks, simulating a
	// provider that stops producing without terminating.
	hang bool
}

func (p *fakeProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (p *fakeProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return "", errors.New("not used")
}

func (p *fakeProvider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (<-chan llm.StreamChunk, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	out := make(chan llm.StreamChunk, len(p.chunks))
	for _, c := range p.chunks {
		out <- c
	}
	if !p.hang {
		close(out)
	}
	return out, nil
}

func (p *fakeProvider) Name() string { return p.name }

type fakeResolver struct {
	providers map[string]llm.Provider
}

func (r *fakeResolver) Get(tag string) (llm.Provider, error) {
	p, ok := r.providers[tag]
	if !ok {
		return nil, fmt.Errorf("unsupported LLM provider: %s", tag)
	}
	return p, nil
}

type fakeRecorder struct {
	mu    sync.Mutex
	turns []*Turn
}

func (r *fakeRecorder) RecordTurn(ctx context.Context, turn *Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, turn)
	return nil
}

func (r *fakeRecorder) recorded() []*Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Turn, len(r.turns))
	copy(out, r.turns)
	return out
}

type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string, taskType string) (*embedding.Result, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return &embedding.Result{Vectors: vectors, Model: "fake", Dimensions: 3}, nil
}

func (f *fakeEmbedder) Model() string   { return "fake" }
func (f *fakeEmbedder) Dimensions() int { return 3 }

type fakeChunkRepo struct {
	contract.ChunkEmbeddingRepository
	dense []*contract.ScoredChunk
}

func (f *fakeChunkRepo) SearchSimilarWithScore(ctx context.Context, vec []float32, limit int, userId uuid.UUID, documentIds []uuid.UUID, threshold float64) ([]*contract.ScoredChunk, error) {
	return f.dense, nil
}

func (f *fakeChunkRepo) SearchKeyword(ctx context.Context, query string, limit int, userId uuid.UUID, documentIds []uuid.UUID) ([]*contract.ScoredChunk, error) {
	return nil, nil
}

type fakeDocRepo struct {
	contract.DocumentRepository
	docs []*entity.Document
}

func (f *fakeDocRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Document, error) {
	return f.docs, nil
}

type fixture struct {
	orchestrator  *Orchestrator
	conversations *memory.ConversationRepository
	recorder      *fakeRecorder
	docId         uuid.UUID
}

func newFixture(t *testing.T, provider llm.Provider) *fixture {
	t.Helper()

	docId := uuid.New()
	chunks := &fakeChunkRepo{dense: []*contract.ScoredChunk{{
		Chunk: &entity.ChunkEmbedding{
			Id:         uuid.New(),
			DocumentId: docId,
			ChunkIndex: 0,
			Text:       "Employees receive 20 days annual leave.",
		},
		Score: 0.92,
	}}}
	docs := &fakeDocRepo{docs: []*entity.Document{{Id: docId, Filename: "handbook.txt"}}}

	ret := retriever.New(chunks, docs, &fakeEmbedder{}, nil, logger.NewNopLogger())
	conversations := memory.NewConversationRepository()
	recorder := &fakeRecorder{}

	orch := New(
		&fakeResolver{providers: map[string]llm.Provider{"ollama": provider}},
		ret,
		prompt.NewAssembler(prompt.DefaultBudget),
		conversations,
		nil,
		recorder,
		logger.NewNopLogger(),
	)

	return &fixture{
		orchestrator:  orch,
		conversations: conversations,
		recorder:      recorder,
		docId:         docId,
	}
}

func tokenChunks(deltas ...string) []llm.StreamChunk {
	out := make([]llm.StreamChunk, 0, len(deltas)+1)
	for _, d := range deltas {
		out = append(out, llm.StreamChunk{Delta: d})
	}
	return append(out, llm.StreamChunk{Done: true})
}

func collect(ch <-chan stream.Event) []stream.Event {
	var out []stream.Event
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func TestStreamHappyPath(t *testing.T) {
	provider := &fakeProvider{name: "ollama", chunks: tokenChunks("Employees get ", "20 days ", "[1].")}
	f := newFixture(t, provider)
	sessionId := uuid.New()

	events := collect(f.orchestrator.Stream(context.Background(), Request{
		SessionId: sessionId,
		UserId:    uuid.New(),
		Question:  "How many leave days?",
		Provider:  "ollama",
	}))

	var tokens, statuses int
	var citationsBeforeToken bool
	var sawToken bool
	var done *stream.Event
	for i := range events {
		switch events[i].Type {
		case stream.EventStatus:
			statuses++
		case stream.EventCitations:
			citationsBeforeToken = !sawToken
		case stream.EventToken:
			sawToken = true
			tokens++
		case stream.EventDone:
			done = &events[i]
		}
	}

	assert.Equal(t, 3, statuses)
	assert.Equal(t, 3, tokens)
	assert.True(t, citationsBeforeToken, "citations event must precede the first token")
	require.NotNil(t, done)
	assert.Equal(t, "Employees get 20 days [1].", done.Answer)
	assert.Equal(t, "ollama", done.Provider)
	require.Len(t, done.Citations, 1)
	assert.Equal(t, f.docId, done.Citations[0].DocumentId)

	history := f.conversations.History(sessionId.String())
	require.Len(t, history, 1)
	assert.Equal(t, "Employees get 20 days [1].", history[0].Answer)

	turns := f.recorder.recorded()
	require.Len(t, turns, 1)
	assert.Equal(t, sessionId, turns[0].SessionId)
	assert.Equal(t, "ollama", turns[0].Provider)
}

func TestStreamProviderErrorMidway(t *testing.T) {
	provider := &fakeProvider{name: "ollama", chunks: []llm.StreamChunk{
		{Delta: "a"}, {Delta: "b"}, {Delta: "c"},
		{Err: errors.New("connection reset")},
	}}
	f := newFixture(t, provider)
	sessionId := uuid.New()

	events := collect(f.orchestrator.Stream(context.Background(), Request{
		SessionId: sessionId,
		Question:  "q",
		Provider:  "ollama",
	}))

	var tokens int
	last := events[len(events)-1]
	for _, ev := range events {
		if ev.Type == stream.EventToken {
			tokens++
		}
	}

	assert.Equal(t, 3, tokens, "tokens before the failure still reach the sink")
	assert.Equal(t, stream.EventError, last.Type)
	assert.Contains(t, last.Error, "connection reset")

	assert.Empty(t, f.conversations.History(sessionId.String()), "interrupted turns are never committed")
	assert.Empty(t, f.recorder.recorded())
}

func TestStreamCancelledContext(t *testing.T) {
	provider := &fakeProvider{name: "ollama", chunks: tokenChunks("never")}
	f := newFixture(t, provider)
	sessionId := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	events := collect(f.orchestrator.Stream(ctx, Request{
		SessionId: sessionId,
		Question:  "q",
		Provider:  "ollama",
	}))

	require.NotEmpty(t, events)
	assert.Equal(t, stream.EventError, events[len(events)-1].Type)
	for _, ev := range events {
		assert.NotEqual(t, stream.EventDone, ev.Type)
	}
	assert.Empty(t, f.conversations.History(sessionId.String()))
	assert.Empty(t, f.recorder.recorded())
}

func TestStreamGenerationTimeout(t *testing.T) {
	provider := &fakeProvider{name: "ollama", hang: true, chunks: []llm.StreamChunk{{Delta: "partial"}}}
	f := newFixture(t, provider)
	f.orchestrator.WithGenerationTimeout(30 * time.Millisecond)
	sessionId := uuid.New()

	events := collect(f.orchestrator.Stream(context.Background(), Request{
		SessionId: sessionId,
		Question:  "q",
		Provider:  "ollama",
	}))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, stream.EventError, last.Type)
	assert.Contains(t, last.Error, "provider timeout")

	assert.Empty(t, f.conversations.History(sessionId.String()), "a timed-out turn is never committed")
	assert.Empty(t, f.recorder.recorded())
}

func TestStreamFallbackBeforeFirstToken(t *testing.T) {
	failing := &fakeProvider{name: "openai", openErr: errors.New("quota exceeded")}
	working := &fakeProvider{name: "ollama", chunks: tokenChunks("fallback answer")}

	f := newFixture(t, working)
	f.orchestrator.registry = &fakeResolver{providers: map[string]llm.Provider{
		"openai": failing,
		"ollama": working,
	}}

	events := collect(f.orchestrator.Stream(context.Background(), Request{
		SessionId: uuid.New(),
		Question:  "q",
		Provider:  "openai",
	}))

	last := events[len(events)-1]
	require.Equal(t, stream.EventDone, last.Type)
	assert.Equal(t, "fallback answer", last.Answer)

	turns := f.recorder.recorded()
	require.Len(t, turns, 1)
	assert.Equal(t, "ollama", turns[0].Provider, "recorded provider is the one that actually answered")
}

func TestAnswerMatchesStream(t *testing.T) {
	provider := &fakeProvider{name: "ollama", chunks: tokenChunks("first ", "second ", "third [1]")}
	f := newFixture(t, provider)

	result, err := f.orchestrator.Answer(context.Background(), Request{
		SessionId: uuid.New(),
		Question:  "q",
		Provider:  "ollama",
	})
	require.NoError(t, err)
	assert.Equal(t, "first second third [1]", result.Answer)
	assert.Equal(t, "ollama", result.Provider)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, f.docId, result.Citations[0].DocumentId)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestAnswerSurfacesStreamError(t *testing.T) {
	provider := &fakeProvider{name: "ollama", chunks: []llm.StreamChunk{{Err: errors.New("boom")}}}
	f := newFixture(t, provider)
	f.orchestrator.registry = &fakeResolver{providers: map[string]llm.Provider{"ollama": provider}}

	_, err := f.orchestrator.Answer(context.Background(), Request{
		SessionId: uuid.New(),
		Question:  "q",
		Provider:  "ollama",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
