package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document is the raw source text plus immutable identity metadata. The
// core only reads it; text extraction from binary formats happens upstream.
type Document struct {
	Id          uuid.UUID
	Filename    string
	ContentType string
	Category    string
	Tags        []string
	Text        string
	UserId      uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	DeletedAt   *time.Time
	IsDeleted   bool
}
