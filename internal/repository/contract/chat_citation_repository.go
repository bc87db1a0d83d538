package contract

import (
	"context"

	"doc-qa-be/internal/entity"

	"github.com/google/uuid"
)

type ChatCitationRepository interface {
	Create(ctx context.Context, citation *entity.ChatCitation) error
	CreateBulk(ctx context.Context, citations []*entity.ChatCitation) error
	FindAllByMessageIds(ctx context.Context, messageIds []uuid.UUID) ([]*entity.ChatCitation, error)
	DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error
}
