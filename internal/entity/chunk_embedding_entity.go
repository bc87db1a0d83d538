package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChunkEmbedding is one retrieval window of a document together with its
// vector. Chunk identity is (DocumentId, ChunkIndex); re-upserting the same
// identity overwrites.
type ChunkEmbedding struct {
	Id             uuid.UUID
	DocumentId     uuid.UUID
	ChunkIndex     int // 0-based, contiguous per document
	Text           string
	StartOffset    int
	EndOffset      int
	PageNumber     *int
	EmbeddingValue []float32
	EmbeddingModel string // model version that produced the vector
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
