package mapper

import (
	"encoding/json"
	"time"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/model"

	"gorm.io/gorm"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}

	var deletedAt *time.Time
	if d.DeletedAt.Valid {
		t := d.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		updatedAt = &t
	}

	var tags []string
	if len(d.Tags) > 0 {
		// Malformed JSON just yields empty tags, nothing fatal
		_ = json.Unmarshal(d.Tags, &tags)
	}

	return &entity.Document{
		Id:          d.Id,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Category:    d.Category,
		Tags:        tags,
		Text:        d.Text,
		UserId:      d.UserId,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
		IsDeleted:   d.DeletedAt.Valid,
	}
}

func (m *DocumentMapper) ToModel(d *entity.Document) *model.Document {
	if d == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if d.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *d.DeletedAt, Valid: true}
	} else if d.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if d.UpdatedAt != nil {
		updatedAt = *d.UpdatedAt
	}

	tagsJSON, _ := json.Marshal(d.Tags)

	return &model.Document{
		Id:          d.Id,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Category:    d.Category,
		Tags:        tagsJSON,
		Text:        d.Text,
		UserId:      d.UserId,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
	}
}

func (m *DocumentMapper) ToEntities(documents []*model.Document) []*entity.Document {
	entities := make([]*entity.Document, len(documents))
	for i, d := range documents {
		entities[i] = m.ToEntity(d)
	}
	return entities
}
