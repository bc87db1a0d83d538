package service

import (
	"context"
	"encoding/json"
	"time"

	"doc-qa-be/internal/dto"
	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/specification"
	"doc-qa-be/internal/repository/unitofwork"
	"doc-qa-be/pkg/events"
	pktNats "doc-qa-be/pkg/nats"
	"doc-qa-be/pkg/rag"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IDocumentService interface {
	Upload(ctx context.Context, userId uuid.UUID, req *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error)
	Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ShowDocumentResponse, error)
	List(ctx context.Context, userId uuid.UUID) ([]*dto.ListDocumentsResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
	Reindex(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
}

type documentService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	logger           logger.ILogger
}

func NewDocumentService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) IDocumentService {
	return &documentService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		logger:           log,
	}
}

// Upload stores the document and queues it for async indexing. The
// document is searchable once the indexing job commits.
func (s *documentService) Upload(ctx context.Context, userId uuid.UUID, req *dto.UploadDocumentRequest) (*dto.UploadDocumentResponse, error) {
	if isBlank(req.Text) {
		return nil, rag.ErrEmptyDocument
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	document := entity.Document{
		Id:          uuid.New(),
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Category:    req.Category,
		Tags:        req.Tags,
		Text:        req.Text,
		UserId:      userId,
		CreatedAt:   time.Now(),
	}

	if err := uow.DocumentRepository().Create(ctx, &document); err != nil {
		return nil, err
	}

	if err := s.queueIndexing(ctx, document.Id); err != nil {
		return nil, err
	}

	return &dto.UploadDocumentResponse{Id: document.Id}, nil
}

func (s *documentService) Show(ctx context.Context, userId uuid.UUID, id uuid.UUID) (*dto.ShowDocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Document not found")
	}

	chunkCount, err := uow.ChunkEmbeddingRepository().Count(ctx, specification.ByDocumentID{DocumentID: id})
	if err != nil {
		return nil, err
	}

	return &dto.ShowDocumentResponse{
		Id:          document.Id,
		Filename:    document.Filename,
		ContentType: document.ContentType,
		Category:    document.Category,
		Tags:        document.Tags,
		ChunkCount:  chunkCount,
		CreatedAt:   document.CreatedAt,
		UpdatedAt:   document.UpdatedAt,
	}, nil
}

func (s *documentService) List(ctx context.Context, userId uuid.UUID) ([]*dto.ListDocumentsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	documents, err := uow.DocumentRepository().FindAll(ctx,
		specification.ByUserID{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.ListDocumentsResponse, len(documents))
	for i, d := range documents {
		out[i] = &dto.ListDocumentsResponse{
			Id:        d.Id,
			Filename:  d.Filename,
			Category:  d.Category,
			Tags:      d.Tags,
			CreatedAt: d.CreatedAt,
		}
	}
	return out, nil
}

// Delete removes the document and all of its chunks in one transaction,
// so a concurrent search never sees chunks of a half-deleted document.
func (s *documentService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return err
	}
	if document == nil {
		return fiber.NewError(fiber.StatusNotFound, "Document not found")
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChunkEmbeddingRepository().DeleteByDocumentId(ctx, id); err != nil {
		return err
	}
	if err := uow.DocumentRepository().Delete(ctx, id); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	if s.eventPublisher != nil {
		if err := s.eventPublisher.Publish(ctx, events.DocumentDeleted(id, userId)); err != nil {
			s.logger.Warn("DocumentService", "Failed to publish DOCUMENT_DELETED", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

// Reindex queues the document for a fresh chunk+embed pass, e.g. after
// switching embedding models.
func (s *documentService) Reindex(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return err
	}
	if document == nil {
		return fiber.NewError(fiber.StatusNotFound, "Document not found")
	}

	return s.queueIndexing(ctx, id)
}

func (s *documentService) queueIndexing(ctx context.Context, documentId uuid.UUID) error {
	payload := dto.PublishIndexDocumentMessage{DocumentId: documentId}
	msgJson, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.publisherService.Publish(ctx, msgJson)
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
