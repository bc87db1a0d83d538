package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"doc-qa-be/internal/dto"
	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/specification"
	"doc-qa-be/internal/repository/unitofwork"
	"doc-qa-be/pkg/chunker"
	"doc-qa-be/pkg/embedding"
	"doc-qa-be/pkg/events"
	pktNats "doc-qa-be/pkg/nats"
	"doc-qa-be/pkg/rag"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService processes async document indexing jobs: chunk the text,
// embed every chunk, and replace the document's rows in the vector index.
type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.Provider
	splitter          *chunker.Chunker
	eventPublisher    *pktNats.Publisher
	logger            logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.Provider,
	splitter *chunker.Chunker,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		splitter:          splitter,
		eventPublisher:    eventPublisher,
		logger:            log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishIndexDocumentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("Indexer", "Failed to unmarshal indexing job", map[string]interface{}{"error": err.Error()})
		msg.Ack() // Invalid payload will never succeed, do not retry
		return
	}

	cs.logger.Info("Indexer", "Processing document", map[string]interface{}{"document_id": payload.DocumentId.String()})

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: payload.DocumentId})
	if err != nil {
		cs.logger.Error("Indexer", "Failed to load document", map[string]interface{}{"document_id": payload.DocumentId.String(), "error": err.Error()})
		msg.Nack()
		return
	}
	if document == nil {
		// Deleted between upload and processing
		cs.logger.Warn("Indexer", "Document not found, dropping job", map[string]interface{}{"document_id": payload.DocumentId.String()})
		msg.Ack()
		return
	}

	chunks, err := cs.splitter.Split(document.Text)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyDocument) {
			cs.logger.Warn("Indexer", "Document has no indexable text", map[string]interface{}{"document_id": document.Id.String()})
			msg.Ack()
			return
		}
		cs.logger.Error("Indexer", "Chunking failed", map[string]interface{}{"document_id": document.Id.String(), "error": err.Error()})
		msg.Nack()
		return
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	result, err := cs.embeddingProvider.Embed(ctx, texts, embedding.TaskRetrievalDocument)
	if err != nil {
		cs.logger.Error("Indexer", "Embedding failed", map[string]interface{}{"document_id": document.Id.String(), "error": err.Error()})
		msg.Nack()
		return
	}

	var newEmbeddings []*entity.ChunkEmbedding
	for i, ch := range chunks {
		if result.Vectors[i] == nil {
			// Blank chunk, nothing to index
			continue
		}
		newEmbeddings = append(newEmbeddings, &entity.ChunkEmbedding{
			Id:             uuid.New(),
			DocumentId:     document.Id,
			ChunkIndex:     ch.Index,
			Text:           ch.Text,
			StartOffset:    ch.Start,
			EndOffset:      ch.End,
			EmbeddingValue: result.Vectors[i],
			EmbeddingModel: result.Model,
			CreatedAt:      time.Now(),
		})
	}

	if err := uow.Begin(ctx); err != nil {
		cs.logger.Error("Indexer", "Failed to begin transaction", map[string]interface{}{"error": err.Error()})
		msg.Nack()
		return
	}
	defer uow.Rollback()

	// Re-index is a full replace: stale chunks from a longer previous
	// version must not survive.
	if err := uow.ChunkEmbeddingRepository().DeleteByDocumentIdUnscoped(ctx, document.Id); err != nil {
		cs.logger.Error("Indexer", "Failed to delete old chunks", map[string]interface{}{"document_id": document.Id.String(), "error": err.Error()})
		msg.Nack()
		return
	}

	if len(newEmbeddings) > 0 {
		if err := uow.ChunkEmbeddingRepository().Upsert(ctx, newEmbeddings); err != nil {
			cs.logger.Error("Indexer", "Failed to store chunks", map[string]interface{}{"document_id": document.Id.String(), "error": err.Error()})
			msg.Nack()
			return
		}
	}

	if err := uow.Commit(); err != nil {
		cs.logger.Error("Indexer", "Failed to commit transaction", map[string]interface{}{"error": err.Error()})
		msg.Nack()
		return
	}

	if cs.eventPublisher != nil {
		evt := events.DocumentIndexed(document.Id, document.UserId, len(newEmbeddings), result.Model)
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			cs.logger.Warn("Indexer", "Failed to publish DOCUMENT_INDEXED", map[string]interface{}{"error": err.Error()})
		}
	}

	cs.logger.Info("Indexer", "Document indexed", map[string]interface{}{
		"document_id": document.Id.String(),
		"chunks":      len(newEmbeddings),
		"model":       result.Model,
	})
	msg.Ack()
}
