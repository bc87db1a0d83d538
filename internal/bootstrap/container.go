package bootstrap

import (
	"context"
	"log"
	"time"

	"doc-qa-be/internal/config"
	"doc-qa-be/internal/controller"
	"doc-qa-be/internal/handler"
	"doc-qa-be/internal/pkg/logger"
	"doc-qa-be/internal/repository/implementation"
	"doc-qa-be/internal/repository/memory"
	"doc-qa-be/internal/repository/unitofwork"
	"doc-qa-be/internal/service"
	"doc-qa-be/internal/websocket"
	"doc-qa-be/pkg/chunker"
	"doc-qa-be/pkg/embedding"
	"doc-qa-be/pkg/llm/factory"
	"doc-qa-be/pkg/rag/orchestrator"
	"doc-qa-be/pkg/rag/prompt"
	"doc-qa-be/pkg/rag/retriever"
	"doc-qa-be/pkg/rerank"
	"doc-qa-be/pkg/rerank/jina"
	"doc-qa-be/pkg/store"

	pktNats "doc-qa-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController     controller.IChatController
	DocumentController controller.IDocumentController

	// WebSocket streaming
	StreamHandler *websocket.StreamHandler

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService
	EventHandler    *handler.EventHandler
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Indexing job bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI providers
	var embeddingProvider embedding.Provider
	if cfg.Ai.EmbeddingProvider == "openai" {
		embeddingProvider = embedding.NewOpenAIProvider(
			cfg.Keys.OpenAI,
			cfg.Ai.EmbeddingModel,
			cfg.Ai.EmbeddingDimensions,
		)
		log.Printf("[INFO] Using Embedding Provider: OPENAI (%s)", cfg.Ai.EmbeddingModel)
	} else {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.EmbeddingModel,
			cfg.Ai.EmbeddingDimensions,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)
	}

	llmRegistry := factory.NewRegistry(factory.Config{
		OpenAIAPIKey:  cfg.Keys.OpenAI,
		OpenAIBaseURL: cfg.Ai.OpenAIBaseURL,
		OpenAIModel:   cfg.Ai.LLMModel,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		OllamaModel:   cfg.Ai.OllamaLLMModel,
	})
	log.Printf("[INFO] Default LLM Provider: %s", cfg.Ai.LLMProvider)

	var reranker rerank.Reranker
	if cfg.Keys.Jina != "" {
		reranker = jina.NewJinaReranker(cfg.Keys.Jina).WithModel(cfg.Ai.RerankModel)
		log.Printf("[INFO] Reranker enabled: %s", reranker.ModelName())
	}

	// 4. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		rdb = nil
	}

	passageCache := store.NewPassageCache(rdb)
	conversations := memory.NewConversationRepository()

	// 5. Indexing pipeline
	splitter := chunker.New(chunker.DefaultWindowSize, chunker.DefaultOverlap)
	publisherService := service.NewPublisherService(cfg.Keys.IndexTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.IndexTopic,
		uowFactory,
		embeddingProvider,
		splitter,
		natsPub,
		sysLogger,
	)

	// 6. Answer pipeline
	ret := retriever.New(
		implementation.NewChunkEmbeddingRepository(db),
		implementation.NewDocumentRepository(db),
		embeddingProvider,
		reranker,
		sysLogger,
	).
		WithWeights(cfg.Ai.HybridDenseWeight, cfg.Ai.HybridSparseWeight).
		WithTimeouts(
			time.Duration(cfg.Ai.EmbedTimeoutSeconds)*time.Second,
			time.Duration(cfg.Ai.SearchTimeoutSeconds)*time.Second,
		)
	assembler := prompt.NewAssembler(cfg.Ai.ContextBudget)
	turnRecorder := service.NewTurnRecorderService(uowFactory, natsPub, sysLogger)
	orch := orchestrator.New(
		llmRegistry,
		ret,
		assembler,
		conversations,
		passageCache,
		turnRecorder,
		sysLogger,
	).WithGenerationTimeout(time.Duration(cfg.Ai.GenerateTimeoutSeconds) * time.Second)

	defaultModel := cfg.Ai.LLMModel
	if cfg.Ai.LLMProvider == factory.ProviderOllama {
		defaultModel = cfg.Ai.OllamaLLMModel
	}

	// 7. Services
	chatService := service.NewChatService(
		uowFactory,
		orch,
		turnRecorder,
		conversations,
		passageCache,
		cfg.Ai.LLMProvider,
		defaultModel,
		sysLogger,
	)
	documentService := service.NewDocumentService(uowFactory, publisherService, natsPub, sysLogger)

	// 8. Event log worker
	eventHandler := handler.NewEventHandler(natsSub, sysLogger)
	go eventHandler.Start()

	return &Container{
		ChatController:     controller.NewChatController(chatService),
		DocumentController: controller.NewDocumentController(documentService),
		StreamHandler:      websocket.NewStreamHandler(chatService, sysLogger),
		ConsumerService:    consumerService,
		EventHandler:       eventHandler,
	}
}
