package dto

import "github.com/google/uuid"

// PublishIndexDocumentMessage is the async indexing job payload.
type PublishIndexDocumentMessage struct {
	DocumentId uuid.UUID `json:"document_id"`
}
