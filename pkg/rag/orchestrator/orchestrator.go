package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/memory"
	"doc-qa-be/pkg/llm"
	llmfactory "doc-qa-be/pkg/llm/factory"
	"doc-qa-be/pkg/rag"
	"doc-qa-be/pkg/rag/citation"
	"doc-qa-be/pkg/rag/planner"
	"doc-qa-be/pkg/rag/prompt"
	"doc-qa-be/pkg/rag/retriever"
	"doc-qa-be/pkg/rag/stream"
	"doc-qa-be/pkg/store"

	"github.com/google/uuid"
)

// State tracks one answer attempt through its lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateDispatched State = "dispatched"
	StateStreaming  State = "streaming"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// DefaultGenerationTimeout bounds one generation from stream open to the
// terminal chunk. Retrieval and embedding carry their own deadlines.
const DefaultGenerationTimeout = 2 * time.Minute

// Request is one question against a session.
type Request struct {
	SessionId   uuid.UUID
	UserId      uuid.UUID
	Question    string
	Provider    string
	Model       string
	DocumentIds []uuid.UUID
	TopK        int
	Options     rag.Options
}

// Turn is the completed exchange handed to recorders.
type Turn struct {
	SessionId uuid.UUID
	UserId    uuid.UUID
	Question  string
	Answer    string
	Provider  string
	Model     string
	Citations []store.Citation
	Passages  []store.Passage
	Duration  time.Duration
}

// TurnRecorder receives completed turns for durable persistence. Recording
// happens after the answer is already delivered; a recorder error is
// logged, never surfaced to the client.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, turn *Turn) error
}

// Result is the outcome of a synchronous (non-streamed) answer.
type Result struct {
	Answer    string
	Citations []store.Citation
	Provider  string
	Model     string
	Duration  time.Duration
}

// ProviderResolver resolves a provider tag to a configured client.
// Implemented by the llm factory registry.
type ProviderResolver interface {
	Get(tag string) (llm.Provider, error)
}

// Orchestrator drives a question through planning, retrieval, prompt
// assembly and generation. Requests against the same session run one at
// a time in arrival order; different sessions run concurrently.
type Orchestrator struct {
	registry  ProviderResolver
	retriever *retriever.Retriever
	assembler *prompt.Assembler
	memory    *memory.ConversationRepository
	passages  *store.PassageCache
	recorder  TurnRecorder
	logger    logger.ILogger

	generationTimeout time.Duration

	mu    sync.Mutex
	gates map[uuid.UUID]chan struct{}
}

func New(
	registry ProviderResolver,
	ret *retriever.Retriever,
	assembler *prompt.Assembler,
	conversations *memory.ConversationRepository,
	passageCache *store.PassageCache,
	recorder TurnRecorder,
	log logger.ILogger,
) *Orchestrator {
	return &Orchestrator{
		registry:          registry,
		retriever:         ret,
		assembler:         assembler,
		memory:            conversations,
		passages:          passageCache,
		recorder:          recorder,
		logger:            log,
		generationTimeout: DefaultGenerationTimeout,
		gates:             make(map[uuid.UUID]chan struct{}),
	}
}

// WithGenerationTimeout overrides the whole-generation deadline.
// Non-positive values keep the default.
func (o *Orchestrator) WithGenerationTimeout(d time.Duration) *Orchestrator {
	if d > 0 {
		o.generationTimeout = d
	}
	return o
}

// Stream answers the request, delivering progress over the returned
// channel. The channel sees status events, one citations event before the
// first token, the tokens, and exactly one terminal done or error event.
func (o *Orchestrator) Stream(ctx context.Context, req Request) <-chan stream.Event {
	emitter := stream.NewEmitter(32)
	go o.run(ctx, req, emitter)
	return emitter.Events()
}

// Answer runs the same pipeline synchronously by consuming its own
// stream, so streamed and non-streamed answers are always identical.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	var (
		sb        strings.Builder
		citations []store.Citation
		provider  string
		model     string
		answerErr error
	)

	for ev := range o.Stream(ctx, req) {
		switch ev.Type {
		case stream.EventToken:
			sb.WriteString(ev.Token)
		case stream.EventDone:
			citations = ev.Citations
			provider = ev.Provider
			model = ev.Model
		case stream.EventError:
			answerErr = &streamError{message: ev.Error}
		}
	}

	if answerErr != nil {
		return nil, answerErr
	}
	return &Result{
		Answer:    sb.String(),
		Citations: citations,
		Provider:  provider,
		Model:     model,
		Duration:  time.Since(started),
	}, nil
}

type streamError struct {
	message string
}

func (e *streamError) Error() string {
	return e.message
}

func (o *Orchestrator) run(ctx context.Context, req Request, emitter *stream.Emitter) {
	state := StateIdle

	release, err := o.acquireGate(ctx, req.SessionId)
	if err != nil {
		emitter.Error(err)
		return
	}
	defer release()

	state = StateDispatched
	started := time.Now()

	provider, providerTag, err := o.resolveProvider(req.Provider)
	if err != nil {
		emitter.Error(err)
		return
	}

	history := o.memory.History(req.SessionId.String())

	emitter.Status("planning")
	plan := o.buildPlan(ctx, provider, req, history)

	if ctx.Err() != nil {
		o.finishCancelled(emitter, req, state)
		return
	}

	emitter.Status("retrieving")
	passages, err := o.retriever.Retrieve(ctx, retriever.Input{
		Variants:    plan.Variants,
		UserId:      req.UserId,
		DocumentIds: req.DocumentIds,
		TopK:        req.TopK,
		Options:     req.Options,
	})
	if err != nil {
		emitter.Error(err)
		return
	}

	if ctx.Err() != nil {
		o.finishCancelled(emitter, req, state)
		return
	}

	messages, kept := o.assembler.Build(req.Question, passages, history)

	emitter.Status("generating")
	emitter.Citations(passagesToCitations(kept))

	genCtx := ctx
	if o.generationTimeout > 0 {
		var cancelGen context.CancelFunc
		genCtx, cancelGen = context.WithTimeout(ctx, o.generationTimeout)
		defer cancelGen()
	}

	opts := o.generationOptions(req)
	first, chunks, _, usedTag, err := o.startStream(genCtx, messages, opts, provider, providerTag, req.Provider)
	if err != nil {
		emitter.Error(err)
		return
	}

	var answer strings.Builder
	handle := func(chunk llm.StreamChunk) (terminal bool) {
		switch {
		case chunk.Err != nil:
			// Partial tokens already reached the sink; nothing is persisted
			state = StateFailed
			o.logger.Error("Orchestrator", "Stream interrupted", map[string]interface{}{
				"session_id": req.SessionId.String(),
				"provider":   usedTag,
				"error":      chunk.Err.Error(),
			})
			emitter.Error(chunk.Err)
			return true
		case chunk.Done:
			state = StateCompleted
			o.complete(req, usedTag, answer.String(), kept, started, emitter)
			return true
		default:
			state = StateStreaming
			answer.WriteString(chunk.Delta)
			emitter.Token(chunk.Delta)
			return false
		}
	}

	if handle(first) {
		return
	}
	for {
		select {
		case <-genCtx.Done():
			if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
				state = StateFailed
				o.logger.Error("Orchestrator", "Generation deadline exceeded", map[string]interface{}{
					"session_id": req.SessionId.String(),
					"provider":   usedTag,
				})
				emitter.Error(fmt.Errorf("%w: generation: %v", rag.ErrProviderTimeout, genCtx.Err()))
				return
			}
			o.finishCancelled(emitter, req, state)
			return
		case chunk, ok := <-chunks:
			if !ok {
				// Provider closed without terminal chunk; treat as done
				state = StateCompleted
				o.complete(req, usedTag, answer.String(), kept, started, emitter)
				return
			}
			if handle(chunk) {
				return
			}
		}
	}
}

// acquireGate serializes turns per session, arrival order.
func (o *Orchestrator) acquireGate(ctx context.Context, sessionId uuid.UUID) (func(), error) {
	o.mu.Lock()
	gate, ok := o.gates[sessionId]
	if !ok {
		gate = make(chan struct{}, 1)
		o.gates[sessionId] = gate
	}
	o.mu.Unlock()

	select {
	case gate <- struct{}{}:
		return func() { <-gate }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolveProvider picks the requested provider, falling back to any other
// configured one when the requested tag cannot be built.
func (o *Orchestrator) resolveProvider(tag string) (llm.Provider, string, error) {
	provider, err := o.registry.Get(tag)
	if err == nil {
		return provider, tag, nil
	}
	fallbackTag := llmfactory.ProviderOllama
	if tag == llmfactory.ProviderOllama {
		fallbackTag = llmfactory.ProviderOpenAI
	}
	fallback, ferr := o.registry.Get(fallbackTag)
	if ferr != nil {
		return nil, "", err
	}
	o.logger.Warn("Orchestrator", "Requested provider unavailable, using fallback", map[string]interface{}{
		"requested": tag,
		"fallback":  fallbackTag,
	})
	return fallback, fallbackTag, nil
}

func (o *Orchestrator) buildPlan(ctx context.Context, provider llm.Provider, req Request, history []store.Turn) planner.Plan {
	messages := make([]llm.Message, 0, len(history)*2)
	for _, turn := range history {
		messages = append(messages,
			llm.Message{Role: "user", Content: turn.Question},
			llm.Message{Role: "assistant", Content: turn.Answer},
		)
	}
	p := planner.New(provider, o.logger)
	return p.Build(ctx, req.Question, messages, req.Options.AutoRewrite, req.Options.QueryExpansion)
}

func (o *Orchestrator) generationOptions(req Request) []llm.Option {
	var opts []llm.Option
	if req.Model != "" {
		opts = append(opts, llm.WithModel(req.Model))
	}
	return opts
}

// startStream opens the token stream and reads the first chunk. A failure
// before the first token falls back to the alternate provider once; after
// the first token errors surface to the sink as-is.
func (o *Orchestrator) startStream(
	ctx context.Context,
	messages []llm.Message,
	opts []llm.Option,
	provider llm.Provider,
	tag string,
	requestedTag string,
) (llm.StreamChunk, <-chan llm.StreamChunk, llm.Provider, string, error) {
	first, chunks, err := openAndPeek(ctx, provider, messages, opts)
	if err == nil && first.Err == nil {
		return first, chunks, provider, tag, nil
	}

	startErr := err
	if startErr == nil {
		startErr = first.Err
	}

	fallbackTag := llmfactory.ProviderOllama
	if tag == llmfactory.ProviderOllama {
		fallbackTag = llmfactory.ProviderOpenAI
	}
	fallback, ferr := o.registry.Get(fallbackTag)
	if ferr != nil {
		return llm.StreamChunk{}, nil, nil, "", startErr
	}

	o.logger.Warn("Orchestrator", "Provider failed before first token, falling back", map[string]interface{}{
		"requested": requestedTag,
		"failed":    tag,
		"fallback":  fallbackTag,
		"error":     startErr.Error(),
	})

	first, chunks, err = openAndPeek(ctx, fallback, messages, opts)
	if err != nil {
		return llm.StreamChunk{}, nil, nil, "", err
	}
	return first, chunks, fallback, fallbackTag, nil
}

func openAndPeek(ctx context.Context, provider llm.Provider, messages []llm.Message, opts []llm.Option) (llm.StreamChunk, <-chan llm.StreamChunk, error) {
	chunks, err := provider.ChatStream(ctx, messages, opts...)
	if err != nil {
		return llm.StreamChunk{}, nil, err
	}
	select {
	case chunk, ok := <-chunks:
		if !ok {
			return llm.StreamChunk{Done: true}, chunks, nil
		}
		return chunk, chunks, nil
	case <-ctx.Done():
		return llm.StreamChunk{}, nil, ctx.Err()
	}
}

// complete commits the turn: conversation memory first, then the durable
// recorder and passage cache, then the terminal event.
func (o *Orchestrator) complete(req Request, usedTag string, answer string, kept []store.Passage, started time.Time, emitter *stream.Emitter) {
	citations := citation.Extract(answer, kept)

	o.memory.Append(req.SessionId.String(), store.Turn{
		Question:  req.Question,
		Answer:    answer,
		Citations: citations,
	})

	background := context.Background()
	if o.passages != nil {
		if err := o.passages.Put(background, req.SessionId.String(), kept); err != nil {
			o.logger.Warn("Orchestrator", "Passage cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}

	if o.recorder != nil {
		turn := &Turn{
			SessionId: req.SessionId,
			UserId:    req.UserId,
			Question:  req.Question,
			Answer:    answer,
			Provider:  usedTag,
			Model:     req.Model,
			Citations: citations,
			Passages:  kept,
			Duration:  time.Since(started),
		}
		if err := o.recorder.RecordTurn(background, turn); err != nil {
			o.logger.Error("Orchestrator", "Turn persistence failed", map[string]interface{}{
				"session_id": req.SessionId.String(),
				"error":      err.Error(),
			})
		}
	}

	emitter.Done(answer, citations, usedTag, req.Model)
}

// finishCancelled ends the stream without committing anything.
func (o *Orchestrator) finishCancelled(emitter *stream.Emitter, req Request, state State) {
	o.logger.Info("Orchestrator", "Turn cancelled", map[string]interface{}{
		"session_id": req.SessionId.String(),
		"state":      string(state),
	})
	emitter.Error(context.Canceled)
}

func passagesToCitations(passages []store.Passage) []store.Citation {
	citations := make([]store.Citation, len(passages))
	for i, p := range passages {
		citations[i] = store.Citation{
			DocumentId: p.DocumentId,
			Filename:   p.Filename,
			ChunkIndex: p.ChunkIndex,
			PageNumber: p.PageNumber,
			Score:      p.Score,
			Snippet:    p.Text,
		}
	}
	return citations
}
