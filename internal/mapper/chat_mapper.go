package mapper

import (
	"encoding/json"
	"time"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/model"

	"gorm.io/gorm"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

func (m *ChatMapper) SessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}
	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}
	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}
	return &entity.ChatSession{
		Id:        s.Id,
		UserId:    s.UserId,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
		IsDeleted: s.DeletedAt.Valid,
	}
}

func (m *ChatMapper) SessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}
	var deletedAt gorm.DeletedAt
	if s.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	}
	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}
	return &model.ChatSession{
		Id:        s.Id,
		UserId:    s.UserId,
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
	}
}

func (m *ChatMapper) MessageToEntity(msg *model.ChatMessage) *entity.ChatMessage {
	if msg == nil {
		return nil
	}
	var updatedAt *time.Time
	if !msg.UpdatedAt.IsZero() {
		t := msg.UpdatedAt
		updatedAt = &t
	}
	var deletedAt *time.Time
	if msg.DeletedAt.Valid {
		t := msg.DeletedAt.Time
		deletedAt = &t
	}
	return &entity.ChatMessage{
		Id:            msg.Id,
		ChatSessionId: msg.ChatSessionId,
		Role:          msg.Role,
		Content:       msg.Content,
		Provider:      msg.Provider,
		Model:         msg.Model,
		CreatedAt:     msg.CreatedAt,
		UpdatedAt:     updatedAt,
		DeletedAt:     deletedAt,
		IsDeleted:     msg.DeletedAt.Valid,
	}
}

func (m *ChatMapper) MessageToModel(msg *entity.ChatMessage) *model.ChatMessage {
	if msg == nil {
		return nil
	}
	var deletedAt gorm.DeletedAt
	if msg.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *msg.DeletedAt, Valid: true}
	}
	var updatedAt time.Time
	if msg.UpdatedAt != nil {
		updatedAt = *msg.UpdatedAt
	}
	return &model.ChatMessage{
		Id:            msg.Id,
		ChatSessionId: msg.ChatSessionId,
		Role:          msg.Role,
		Content:       msg.Content,
		Provider:      msg.Provider,
		Model:         msg.Model,
		CreatedAt:     msg.CreatedAt,
		UpdatedAt:     updatedAt,
		DeletedAt:     deletedAt,
	}
}

func (m *ChatMapper) CitationToEntity(c *model.ChatCitation) *entity.ChatCitation {
	if c == nil {
		return nil
	}
	docMapper := NewDocumentMapper()
	return &entity.ChatCitation{
		Id:            c.Id,
		ChatMessageId: c.ChatMessageId,
		DocumentId:    c.DocumentId,
		ChunkIndex:    c.ChunkIndex,
		PageNumber:    c.PageNumber,
		Score:         c.Score,
		CreatedAt:     c.CreatedAt,
		Document:      docMapper.ToEntity(c.Document),
	}
}

func (m *ChatMapper) CitationToModel(c *entity.ChatCitation) *model.ChatCitation {
	if c == nil {
		return nil
	}
	return &model.ChatCitation{
		Id:            c.Id,
		ChatMessageId: c.ChatMessageId,
		DocumentId:    c.DocumentId,
		ChunkIndex:    c.ChunkIndex,
		PageNumber:    c.PageNumber,
		Score:         c.Score,
		CreatedAt:     c.CreatedAt,
	}
}

func (m *ChatMapper) RecordToModel(r *entity.QARecord) *model.QARecord {
	if r == nil {
		return nil
	}
	citationsJSON, _ := json.Marshal(r.Citations)
	return &model.QARecord{
		Id:            r.Id,
		ChatSessionId: r.ChatSessionId,
		UserId:        r.UserId,
		Question:      r.Question,
		Answer:        r.Answer,
		Provider:      r.Provider,
		Model:         r.Model,
		Citations:     citationsJSON,
		DurationMs:    r.DurationMs,
		CreatedAt:     r.CreatedAt,
	}
}

func (m *ChatMapper) RecordToEntity(r *model.QARecord) *entity.QARecord {
	if r == nil {
		return nil
	}
	var citations []entity.QARecordCitation
	if len(r.Citations) > 0 {
		_ = json.Unmarshal(r.Citations, &citations)
	}
	return &entity.QARecord{
		Id:            r.Id,
		ChatSessionId: r.ChatSessionId,
		UserId:        r.UserId,
		Question:      r.Question,
		Answer:        r.Answer,
		Provider:      r.Provider,
		Model:         r.Model,
		Citations:     citations,
		DurationMs:    r.DurationMs,
		CreatedAt:     r.CreatedAt,
	}
}
