package service

import (
	"context"
	"time"

	"doc-qa-be/internal/constant"
	"doc-qa-be/internal/dto"
	"doc-qa-be/internal/entity"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/memory"
	"doc-qa-be/internal/repository/specification"
	"doc-qa-be/internal/repository/unitofwork"
	"doc-qa-be/pkg/rag"
	"doc-qa-be/pkg/rag/orchestrator"
	"doc-qa-be/pkg/rag/stream"
	"doc-qa-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IChatService interface {
	CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error)
	RenameSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, req *dto.RenameSessionRequest) error
	DeleteSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error
	GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error)
	Ask(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (*dto.AskResponse, error)
	AskStream(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (<-chan stream.Event, error)
}

type chatService struct {
	uowFactory      unitofwork.RepositoryFactory
	orchestrator    *orchestrator.Orchestrator
	recorder        ITurnRecorderService
	conversations   *memory.ConversationRepository
	passageCache    *store.PassageCache
	defaultProvider string
	defaultModel    string
	logger          logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	orch *orchestrator.Orchestrator,
	recorder ITurnRecorderService,
	conversations *memory.ConversationRepository,
	passageCache *store.PassageCache,
	defaultProvider string,
	defaultModel string,
	log logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory:      uowFactory,
		orchestrator:    orch,
		recorder:        recorder,
		conversations:   conversations,
		passageCache:    passageCache,
		defaultProvider: defaultProvider,
		defaultModel:    defaultModel,
		logger:          log,
	}
}

func (s *chatService) CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	title := req.Title
	if title == "" {
		title = constant.DefaultSessionTitle
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	session := entity.ChatSession{
		Id:        uuid.New(),
		UserId:    userId,
		Title:     title,
		CreatedAt: time.Now(),
	}
	if err := uow.ChatSessionRepository().Create(ctx, &session); err != nil {
		return nil, err
	}
	return &dto.CreateSessionResponse{Id: session.Id}, nil
}

func (s *chatService) GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	sessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.ByUserID{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.GetAllSessionsResponse, len(sessions))
	for i, sess := range sessions {
		out[i] = &dto.GetAllSessionsResponse{
			Id:        sess.Id,
			Title:     sess.Title,
			CreatedAt: sess.CreatedAt,
			UpdatedAt: sess.UpdatedAt,
		}
	}
	return out, nil
}

func (s *chatService) RenameSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, req *dto.RenameSessionRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := s.ownedSession(ctx, uow, userId, sessionId)
	if err != nil {
		return err
	}
	session.Title = req.Title
	return uow.ChatSessionRepository().Update(ctx, session)
}

func (s *chatService) DeleteSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.ownedSession(ctx, uow, userId, sessionId); err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.ChatCitationRepository().DeleteByChatSessionId(ctx, sessionId); err != nil {
		return err
	}
	if err := uow.ChatMessageRepository().DeleteByChatSessionId(ctx, sessionId); err != nil {
		return err
	}
	if err := uow.ChatSessionRepository().Delete(ctx, sessionId); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.conversations.Clear(sessionId.String())
	if s.passageCache != nil {
		if err := s.passageCache.Invalidate(ctx, sessionId.String()); err != nil {
			s.logger.Warn("ChatService", "Passage cache invalidation failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func (s *chatService) GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) ([]*dto.GetChatHistoryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.ownedSession(ctx, uow, userId, sessionId); err != nil {
		return nil, err
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
	)
	if err != nil {
		return nil, err
	}

	var assistantIds []uuid.UUID
	for _, m := range messages {
		if m.Role == constant.ChatMessageRoleAssistant {
			assistantIds = append(assistantIds, m.Id)
		}
	}
	citations, err := uow.ChatCitationRepository().FindAllByMessageIds(ctx, assistantIds)
	if err != nil {
		return nil, err
	}
	byMessage := map[uuid.UUID][]dto.CitationDTO{}
	for _, c := range citations {
		byMessage[c.ChatMessageId] = append(byMessage[c.ChatMessageId], citationToDTO(c))
	}

	out := make([]*dto.GetChatHistoryResponse, len(messages))
	for i, m := range messages {
		out[i] = &dto.GetChatHistoryResponse{
			Id:        m.Id,
			Role:      m.Role,
			Content:   m.Content,
			Provider:  m.Provider,
			Model:     m.Model,
			CreatedAt: m.CreatedAt,
			Citations: byMessage[m.Id],
		}
	}
	return out, nil
}

// Ask answers synchronously. The pipeline is identical to the streamed
// path; the response carries the persisted message pair.
func (s *chatService) Ask(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (*dto.AskResponse, error) {
	request, err := s.buildRequest(ctx, userId, req)
	if err != nil {
		return nil, err
	}

	result, err := s.orchestrator.Answer(ctx, *request)
	if err != nil {
		return nil, err
	}

	recorded := s.recorder.TakeRecorded(req.ChatSessionId)
	return newAskResponse(req.ChatSessionId, request.Provider, request.Model, result, recorded), nil
}

// newAskResponse shapes the synchronous reply. Answer and citations come
// straight from the pipeline result so a failed persistence write never
// produces an empty success response; the recorded message pair is
// enrichment only.
func newAskResponse(sessionId uuid.UUID, requestedProvider, requestedModel string, result *orchestrator.Result, recorded *RecordedTurn) *dto.AskResponse {
	provider := result.Provider
	if provider == "" {
		provider = requestedProvider
	}
	model := result.Model
	if model == "" {
		model = requestedModel
	}

	resp := &dto.AskResponse{
		ChatSessionId: sessionId,
		Answer:        result.Answer,
		Provider:      provider,
		Model:         model,
		DurationMs:    result.Duration.Milliseconds(),
	}
	for _, c := range result.Citations {
		resp.Citations = append(resp.Citations, dto.CitationDTO{
			DocumentId: c.DocumentId,
			Filename:   c.Filename,
			ChunkIndex: c.ChunkIndex,
			PageNumber: c.PageNumber,
			Score:      c.Score,
			Snippet:    c.Snippet,
		})
	}

	if recorded != nil {
		resp.ChatSessionTitle = recorded.SessionTitle
		resp.Sent = &dto.AskResponseChat{
			Id:        recorded.Sent.Id,
			Role:      recorded.Sent.Role,
			Content:   recorded.Sent.Content,
			CreatedAt: recorded.Sent.CreatedAt,
		}
		reply := &dto.AskResponseChat{
			Id:        recorded.Reply.Id,
			Role:      recorded.Reply.Role,
			Content:   recorded.Reply.Content,
			CreatedAt: recorded.Reply.CreatedAt,
		}
		for _, c := range recorded.Citations {
			reply.Citations = append(reply.Citations, citationToDTO(c))
		}
		resp.Reply = reply
	}
	return resp
}

// AskStream validates the request and hands back the live event stream.
func (s *chatService) AskStream(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (<-chan stream.Event, error) {
	request, err := s.buildRequest(ctx, userId, req)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.Stream(ctx, *request), nil
}

func (s *chatService) buildRequest(ctx context.Context, userId uuid.UUID, req *dto.AskRequest) (*orchestrator.Request, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.ownedSession(ctx, uow, userId, req.ChatSessionId); err != nil {
		return nil, err
	}

	options, err := rag.OptionsFromMap(req.RagOptions)
	if err != nil {
		return nil, err
	}

	if len(req.ImageIds) > 0 {
		s.logger.Info("ChatService", "Image attachments accepted but not used for grounding", map[string]interface{}{
			"session_id": req.ChatSessionId.String(),
			"count":      len(req.ImageIds),
		})
	}

	provider := req.Provider
	if provider == "" {
		provider = s.defaultProvider
	}
	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	return &orchestrator.Request{
		SessionId:   req.ChatSessionId,
		UserId:      userId,
		Question:    req.Question,
		Provider:    provider,
		Model:       model,
		DocumentIds: req.DocumentIds,
		TopK:        req.TopK,
		Options:     options,
	}, nil
}

func (s *chatService) ownedSession(ctx context.Context, uow unitofwork.UnitOfWork, userId, sessionId uuid.UUID) (*entity.ChatSession, error) {
	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.ByUserID{UserID: userId},
	)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, "Chat session not found")
	}
	return session, nil
}

func citationToDTO(c *entity.ChatCitation) dto.CitationDTO {
	out := dto.CitationDTO{
		DocumentId: c.DocumentId,
		ChunkIndex: c.ChunkIndex,
		PageNumber: c.PageNumber,
		Score:      c.Score,
	}
	if c.Document != nil {
		out.Filename = c.Document.Filename
	}
	return out
}
