package service

import (
	"context"
	"sync"
	"time"

	"doc-qa-be/internal/constant"
	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/specification"
	"doc-qa-be/internal/repository/unitofwork"
	"doc-qa-be/pkg/events"
	pktNats "doc-qa-be/pkg/nats"
	"doc-qa-be/pkg/rag/orchestrator"

	"github.com/google/uuid"
)

// RecordedTurn is the persisted form of the latest completed turn per
// session, kept around so the synchronous answer path can return the
// stored message ids.
type RecordedTurn struct {
	Sent         *entity.ChatMessage
	Reply        *entity.ChatMessage
	Citations    []*entity.ChatCitation
	SessionTitle string
}

type ITurnRecorderService interface {
	orchestrator.TurnRecorder
	TakeRecorded(sessionId uuid.UUID) *RecordedTurn
}

// turnRecorderService persists completed turns: both chat messages, the
// citation rows, the audit record, and the TURN_COMPLETED event. Turns per
// session are serialized upstream, so the recorded map holds at most one
// entry per session.
type turnRecorderService struct {
	uowFactory     unitofwork.RepositoryFactory
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger

	mu       sync.Mutex
	recorded map[uuid.UUID]*RecordedTurn
}

func NewTurnRecorderService(
	uowFactory unitofwork.RepositoryFactory,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) ITurnRecorderService {
	return &turnRecorderService{
		uowFactory:     uowFactory,
		eventPublisher: eventPublisher,
		logger:         log,
		recorded:       make(map[uuid.UUID]*RecordedTurn),
	}
}

func (s *turnRecorderService) RecordTurn(ctx context.Context, turn *orchestrator.Turn) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: turn.SessionId})
	if err != nil {
		return err
	}
	if session == nil {
		// Session deleted while the answer streamed; drop the record
		s.logger.Warn("TurnRecorder", "Session vanished before persistence", map[string]interface{}{"session_id": turn.SessionId.String()})
		return nil
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if session.Title == "" || session.Title == constant.DefaultSessionTitle {
		session.Title = deriveTitle(turn.Question)
		if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
			return err
		}
	}

	now := time.Now()
	sent := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: turn.SessionId,
		Role:          constant.ChatMessageRoleUser,
		Content:       turn.Question,
		CreatedAt:     now,
	}
	if err := uow.ChatMessageRepository().Create(ctx, sent); err != nil {
		return err
	}

	reply := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: turn.SessionId,
		Role:          constant.ChatMessageRoleAssistant,
		Content:       turn.Answer,
		Provider:      turn.Provider,
		Model:         turn.Model,
		CreatedAt:     now,
	}
	if err := uow.ChatMessageRepository().Create(ctx, reply); err != nil {
		return err
	}

	citations := make([]*entity.ChatCitation, len(turn.Citations))
	for i, c := range turn.Citations {
		citations[i] = &entity.ChatCitation{
			Id:            uuid.New(),
			ChatMessageId: reply.Id,
			DocumentId:    c.DocumentId,
			ChunkIndex:    c.ChunkIndex,
			PageNumber:    c.PageNumber,
			Score:         c.Score,
			CreatedAt:     now,
		}
	}
	if err := uow.ChatCitationRepository().CreateBulk(ctx, citations); err != nil {
		return err
	}

	record := &entity.QARecord{
		Id:            uuid.New(),
		ChatSessionId: turn.SessionId,
		UserId:        turn.UserId,
		Question:      turn.Question,
		Answer:        turn.Answer,
		Provider:      turn.Provider,
		Model:         turn.Model,
		Citations:     snapshotCitations(turn),
		DurationMs:    turn.Duration.Milliseconds(),
		CreatedAt:     now,
	}
	if err := uow.QARecordRepository().Create(ctx, record); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	s.mu.Lock()
	s.recorded[turn.SessionId] = &RecordedTurn{
		Sent:         sent,
		Reply:        reply,
		Citations:    citations,
		SessionTitle: session.Title,
	}
	s.mu.Unlock()

	if s.eventPublisher != nil {
		evt := events.TurnCompleted(turn.SessionId, turn.UserId, turn.Provider, turn.Model, len(turn.Citations), turn.Duration.Milliseconds())
		if err := s.eventPublisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("TurnRecorder", "Failed to publish TURN_COMPLETED", map[string]interface{}{"error": err.Error()})
		}
	}

	return nil
}

// TakeRecorded returns and removes the latest persisted turn for the
// session, if any.
func (s *turnRecorderService) TakeRecorded(sessionId uuid.UUID) *RecordedTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turn := s.recorded[sessionId]
	delete(s.recorded, sessionId)
	return turn
}

func snapshotCitations(turn *orchestrator.Turn) []entity.QARecordCitation {
	snapshot := make([]entity.QARecordCitation, len(turn.Citations))
	for i, c := range turn.Citations {
		snapshot[i] = entity.QARecordCitation{
			DocumentId: c.DocumentId,
			Filename:   c.Filename,
			ChunkIndex: c.ChunkIndex,
			PageNumber: c.PageNumber,
			Score:      c.Score,
		}
	}
	return snapshot
}

func deriveTitle(question string) string {
	runes := []rune(question)
	if len(runes) <= constant.SessionTitleLimit {
		return question
	}
	return string(runes[:constant.SessionTitleLimit]) + "..."
}
