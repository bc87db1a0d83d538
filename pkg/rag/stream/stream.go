package stream

import "doc-qa-be/pkg/store"

type EventType string

const (
	// EventStatus reports pipeline progress (retrieving, reranking, generating).
	EventStatus EventType = "status"
	// EventCitations delivers the source list, always before the first token.
	EventCitations EventType = "citations"
	// EventToken carries one answer fragment.
	EventToken EventType = "token"
	// EventDone marks successful completion with the full answer.
	EventDone EventType = "done"
	// EventError terminates the stream. No further events follow.
	EventError EventType = "error"
)

// Event is one frame of a streamed answer.
type Event struct {
	Type      EventType        `json:"type"`
	Status    string           `json:"status,omitempty"`
	Token     string           `json:"token,omitempty"`
	Answer    string           `json:"answer,omitempty"`
	Citations []store.Citation `json:"citations,omitempty"`
	Provider  string           `json:"provider,omitempty"`
	Model     string           `json:"model,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Emitter pushes events to a single consumer. Emit and Close must be
// called from one goroutine; the channel is closed exactly once after
// a done or error event.
type Emitter struct {
	ch     chan Event
	closed bool
}

func NewEmitter(buffer int) *Emitter {
	if buffer < 0 {
		buffer = 0
	}
	return &Emitter{ch: make(chan Event, buffer)}
}

// Events returns the consumer side of the stream.
func (e *Emitter) Events() <-chan Event {
	return e.ch
}

func (e *Emitter) Emit(ev Event) {
	if e.closed {
		return
	}
	e.ch <- ev
}

func (e *Emitter) Status(status string) {
	e.Emit(Event{Type: EventStatus, Status: status})
}

func (e *Emitter) Citations(citations []store.Citation) {
	e.Emit(Event{Type: EventCitations, Citations: citations})
}

func (e *Emitter) Token(token string) {
	e.Emit(Event{Type: EventToken, Token: token})
}

// Done emits the terminal success event, naming the provider and model
// that actually produced the answer.
func (e *Emitter) Done(answer string, citations []store.Citation, provider, model string) {
	e.Emit(Event{Type: EventDone, Answer: answer, Citations: citations, Provider: provider, Model: model})
	e.Close()
}

func (e *Emitter) Error(err error) {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	e.Emit(Event{Type: EventError, Error: msg})
	e.Close()
}

func (e *Emitter) Close() {
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}
