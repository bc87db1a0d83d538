package entity

import (
	"time"

	"github.com/google/uuid"
)

// QARecord is the audit trail of one completed question/answer turn.
type QARecord struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	UserId        uuid.UUID
	Question      string
	Answer        string
	Provider      string
	Model         string
	Citations     []QARecordCitation
	DurationMs    int64
	CreatedAt     time.Time
}

// QARecordCitation is the denormalized citation snapshot stored with the
// audit record (the live chunk may be reindexed later).
type QARecordCitation struct {
	DocumentId uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkIndex int       `json:"chunk_index"`
	PageNumber *int      `json:"page_number,omitempty"`
	Score      float64   `json:"score"`
}
