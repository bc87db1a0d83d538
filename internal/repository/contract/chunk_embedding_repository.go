package contract

import (
	"context"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredChunk wraps a ChunkEmbedding with its retrieval score.
// The score meaning depends on the search: cosine similarity for
// dense search, ts_rank for keyword search.
type ScoredChunk struct {
	Chunk *entity.ChunkEmbedding
	Score float64
}

type ChunkEmbeddingRepository interface {
	Create(ctx context.Context, embedding *entity.ChunkEmbedding) error
	CreateBulk(ctx context.Context, embeddings []*entity.ChunkEmbedding) error
	// Upsert inserts chunks, replacing any existing row with the same
	// (document_id, chunk_index) identity.
	Upsert(ctx context.Context, embeddings []*entity.ChunkEmbedding) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	DeleteByDocumentIdUnscoped(ctx context.Context, documentId uuid.UUID) error // Hard delete
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChunkEmbedding, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChunkEmbedding, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilarWithScore runs cosine similarity search over chunk
	// embeddings owned by userId, optionally restricted to documentIds,
	// keeping only rows at or above threshold.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, userId uuid.UUID, documentIds []uuid.UUID, threshold float64) ([]*ScoredChunk, error)
	// SearchKeyword runs full-text search over chunk text ranked by ts_rank.
	SearchKeyword(ctx context.Context, query string, limit int, userId uuid.UUID, documentIds []uuid.UUID) ([]*ScoredChunk, error)
}
