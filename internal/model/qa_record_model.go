package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type QARecord struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId uuid.UUID      `gorm:"type:uuid;index"`
	UserId        uuid.UUID      `gorm:"type:uuid;index"`
	Question      string         `gorm:"type:text"`
	Answer        string         `gorm:"type:text"`
	Provider      string
	Model         string
	Citations     datatypes.JSON `gorm:"type:jsonb"`
	DurationMs    int64
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
}

func (QARecord) TableName() string {
	return "qa_records"
}
