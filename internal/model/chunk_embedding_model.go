package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type ChunkEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentId     uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_chunk_identity"`
	ChunkIndex     int             `gorm:"not null;uniqueIndex:idx_chunk_identity"`
	Text           string          `gorm:"type:text"`
	StartOffset    int             `gorm:"default:0"`
	EndOffset      int             `gorm:"default:0"`
	PageNumber     *int
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"` // nomic-embed-text / text-embedding-004 use 768 dimensions
	EmbeddingModel string          `gorm:"index"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt  `gorm:"index"`
}

func (ChunkEmbedding) TableName() string {
	return "chunk_embeddings"
}
