package implementation

import (
	"context"

	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/mapper"
	"doc-qa-be/internal/model"
	"doc-qa-be/internal/repository/contract"
	"doc-qa-be/internal/repository/specification"

	"gorm.io/gorm"
)

type QARecordRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewQARecordRepository(db *gorm.DB) contract.QARecordRepository {
	return &QARecordRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *QARecordRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *QARecordRepositoryImpl) Create(ctx context.Context, record *entity.QARecord) error {
	m := r.mapper.RecordToModel(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.RecordToEntity(m)
	return nil
}

func (r *QARecordRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.QARecord, error) {
	var models []*model.QARecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]*entity.QARecord, len(models))
	for i, m := range models {
		records[i] = r.mapper.RecordToEntity(m)
	}
	return records, nil
}

func (r *QARecordRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.QARecord{}).Count(&count).Error
	return count, err
}
