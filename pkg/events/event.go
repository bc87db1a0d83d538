package events

import (
	"time"

	"github.com/google/uuid"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g. "TURN_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// DocumentIndexed signals that a document finished chunking and embedding.
func DocumentIndexed(documentId, userId uuid.UUID, chunkCount int, model string) Event {
	return BaseEvent{
		Type: "DOCUMENT_INDEXED",
		Data: map[string]interface{}{
			"document_id": documentId.String(),
			"user_id":     userId.String(),
			"chunk_count": chunkCount,
			"model":       model,
		},
		OccurredAt: time.Now(),
	}
}

// DocumentDeleted signals that a document and its chunks were removed.
func DocumentDeleted(documentId, userId uuid.UUID) Event {
	return BaseEvent{
		Type: "DOCUMENT_DELETED",
		Data: map[string]interface{}{
			"document_id": documentId.String(),
			"user_id":     userId.String(),
		},
		OccurredAt: time.Now(),
	}
}

// TurnCompleted signals that a question was fully answered.
func TurnCompleted(sessionId, userId uuid.UUID, provider, model string, citations int, durationMs int64) Event {
	return BaseEvent{
		Type: "TURN_COMPLETED",
		Data: map[string]interface{}{
			"session_id":  sessionId.String(),
			"user_id":     userId.String(),
			"provider":    provider,
			"model":       model,
			"citations":   citations,
			"duration_ms": durationMs,
		},
		OccurredAt: time.Now(),
	}
}
