package contract

import (
	"context"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/repository/specification"
)

type QARecordRepository interface {
	Create(ctx context.Context, record *entity.QARecord) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.QARecord, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
