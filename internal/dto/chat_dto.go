package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type CreateSessionResponse struct {
	Id uuid.UUID `json:"id"`
}

type GetAllSessionsResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type RenameSessionRequest struct {
	Title string `json:"title" validate:"required"`
}

type CitationDTO struct {
	DocumentId uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkIndex int       `json:"chunk_index"`
	PageNumber *int      `json:"page_number,omitempty"`
	Score      float64   `json:"score"`
	Snippet    string    `json:"snippet,omitempty"`
}

type GetChatHistoryResponse struct {
	Id        uuid.UUID     `json:"id"`
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	Provider  string        `json:"provider,omitempty"`
	Model     string        `json:"model,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Citations []CitationDTO `json:"citations,omitempty"`
}

// AskRequest is one question against a session. RagOptions decodes into a
// map first so unknown flags can be rejected instead of ignored.
type AskRequest struct {
	ChatSessionId uuid.UUID       `json:"chat_session_id" validate:"required"`
	Question      string          `json:"question" validate:"required"`
	Provider      string          `json:"provider" validate:"omitempty,oneof=openai ollama"`
	Model         string          `json:"model,omitempty"`
	DocumentIds   []uuid.UUID     `json:"document_ids,omitempty" validate:"max=20"`
	// ImageIds is accepted for forward compatibility; answers are grounded
	// on text chunks only.
	ImageIds   []uuid.UUID     `json:"image_ids,omitempty" validate:"max=10"`
	TopK       int             `json:"top_k,omitempty" validate:"omitempty,min=1,max=20"`
	RagOptions map[string]bool `json:"rag_options,omitempty"`
}

type AskResponseChat struct {
	Id        uuid.UUID     `json:"id"`
	Role      string        `json:"role"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"created_at"`
	Citations []CitationDTO `json:"citations,omitempty"`
}

// AskResponse always carries the answer and citations from the pipeline
// itself; Sent/Reply enrich it with the persisted message pair and may be
// absent when persistence failed.
type AskResponse struct {
	ChatSessionId    uuid.UUID        `json:"chat_session_id"`
	ChatSessionTitle string           `json:"title,omitempty"`
	Answer           string           `json:"answer"`
	Citations        []CitationDTO    `json:"citations,omitempty"`
	Sent             *AskResponseChat `json:"sent,omitempty"`
	Reply            *AskResponseChat `json:"reply,omitempty"`
	Provider         string           `json:"provider"`
	Model            string           `json:"model,omitempty"`
	DurationMs       int64            `json:"duration_ms"`
}
