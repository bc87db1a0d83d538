package handler

import (
	"context"
	"fmt"

	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/pkg/events"
	pktNats "doc-qa-be/pkg/nats"
)

// EventHandler tails the event bus and writes every pipeline event to the
// structured log, so indexing and answer activity is observable without
// touching the database.
type EventHandler struct {
	subscriber *pktNats.Subscriber
	logger     logger.ILogger
}

func NewEventHandler(sub *pktNats.Subscriber, log logger.ILogger) *EventHandler {
	return &EventHandler{
		subscriber: sub,
		logger:     log,
	}
}

// Start begins listening to the event bus.
func (h *EventHandler) Start() {
	if h.subscriber == nil {
		h.logger.Warn("EventHandler", "No NATS subscriber configured, event log disabled", nil)
		return
	}
	if err := h.subscriber.Subscribe("events.>", "activity-log-worker", h.handleEvent); err != nil {
		h.logger.Error("EventHandler", "Failed to start event subscriber", map[string]interface{}{"error": err})
		return
	}
	h.logger.Info("EventHandler", "Event log started, listening to events.>", nil)
}

func (h *EventHandler) handleEvent(_ context.Context, event events.Event) error {
	switch event.EventType() {
	case "DOCUMENT_INDEXED":
		h.logger.Info("EventHandler", "Document indexed", event.Payload())
	case "DOCUMENT_DELETED":
		h.logger.Info("EventHandler", "Document deleted", event.Payload())
	case "TURN_COMPLETED":
		h.logger.Info("EventHandler", "Turn completed", event.Payload())
	default:
		h.logger.Info("EventHandler", fmt.Sprintf("Event: %s", event.EventType()), event.Payload())
	}
	return nil
}
