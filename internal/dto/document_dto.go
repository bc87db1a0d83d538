package dto

import (
	"time"

	"github.com/google/uuid"
)

type UploadDocumentRequest struct {
	Filename    string   `json:"filename" validate:"required"`
	ContentType string   `json:"content_type"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty" validate:"max=10"`
	Text        string   `json:"text" validate:"required"`
}

type UploadDocumentResponse struct {
	Id uuid.UUID `json:"id"`
}

type ShowDocumentResponse struct {
	Id          uuid.UUID  `json:"id"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags,omitempty"`
	ChunkCount  int64      `json:"chunk_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

type ListDocumentsResponse struct {
	Id        uuid.UUID `json:"id"`
	Filename  string    `json:"filename"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
