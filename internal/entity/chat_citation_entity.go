package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatCitation links an assistant message back to the source chunk that
// grounds it. Identifiers always resolve to passages retrieved for the same
// turn, never fabricated.
type ChatCitation struct {
	Id            uuid.UUID
	ChatMessageId uuid.UUID
	DocumentId    uuid.UUID
	ChunkIndex    int
	PageNumber    *int
	Score         float64
	CreatedAt     time.Time

	Document *Document
}
