package bootstrap

import (
	"context"
	"log"

	"ai-notetaking-agent/internal/config"
	"ai-notetaking-agent/internal/controller"
	"ai-notetaking-agent/internal/handler"
	"ai-notetaking-agent/internal/pkg/logger"
	"ai-notetaking-agent/internal/repository/memory"
	"ai-notetaking-agent/internal/repository/unitofwork"
	"ai-notetaking-agent/internal/service"
	"ai-notetaking-agent/internal/websocket"
	"ai-notetaking-agent/pkg/agent/bulk"
	"ai-notetaking-agent/pkg/agent/loop"
	"ai-notetaking-agent/pkg/agent/plan"
	"ai-notetaking-agent/pkg/agent/session"
	"ai-notetaking-agent/pkg/agent/store"
	"ai-notetaking-agent/pkg/agent/tools"
	"ai-notetaking-agent/pkg/embedding"
	"ai-notetaking-agent/pkg/llm/factory"
	pktNats "ai-notetaking-agent/pkg/nats"
	"ai-notetaking-agent/pkg/rag/assembler"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AgentController controller.IAgentController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	EventRelay      *service.EventRelayService

	// WebSockets
	AgentEventHandler *handler.AgentEventHandler
	WebSocketHub      *websocket.Hub

	Logger logger.ILogger

	natsPub   *pktNats.Publisher
	natsSub   *pktNats.Subscriber
	pubSub    *gochannel.GoChannel
	turnQueue *session.Queue
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	agentLogger := logger.NewIsolatedLogger("logs/agent.log")

	// 2. In-process job bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)

	// 3. AI providers
	embeddingProvider, err := embedding.NewProvider(
		cfg.Ai.EmbeddingProvider,
		cfg.Keys.GoogleGemini,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OllamaModel,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize Embedding Provider: %v", err)
	}
	sysLogger.Info("Bootstrap", "Embedding provider ready", map[string]interface{}{"provider": cfg.Ai.EmbeddingProvider})

	llmBaseURL := cfg.Ai.LLMBaseURL
	if llmBaseURL == "" && cfg.Ai.LLMProvider == "ollama" {
		llmBaseURL = cfg.Ai.OllamaBaseURL
	}
	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, llmBaseURL, cfg.Keys.OpenAI)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	sysLogger.Info("Bootstrap", "LLM provider ready", map[string]interface{}{
		"provider": cfg.Ai.LLMProvider,
		"model":    cfg.Ai.LLMModel,
	})

	// 4. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("Bootstrap", "NATS publisher unavailable, agent events disabled", map[string]interface{}{"error": err.Error()})
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("Bootstrap", "NATS subscriber unavailable, event relay disabled", map[string]interface{}{"error": err.Error()})
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		sysLogger.Warn("Bootstrap", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		sysLogger.Warn("Bootstrap", "Redis unavailable, websocket fan-out stays local", map[string]interface{}{"error": err.Error()})
		rdb = nil
	}

	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	wsHub := websocket.NewHub(rdb, wsLogger)

	// 5. Agent core
	noteStore := store.NewGormStore(uowFactory)
	embedNotifier := service.NewEmbedNotifier(service.NewPublisherService(cfg.Agent.EmbedTopic, pubSub), sysLogger)
	profilePublisher := service.NewPublisherService(cfg.Agent.ProfileTopic, pubSub)

	bulkEngine := bulk.NewEngine(noteStore, agentLogger)
	var eventPublisher service.EventPublisher
	if natsPub != nil {
		eventPublisher = natsPub
		bulkEngine.OnApplied(service.BulkEventObserver(natsPub, sysLogger))
	}

	operations := tools.NewOperations(noteStore, embedNotifier, agentLogger)
	registry := tools.NewRegistry(tools.Deps{
		Store:            noteStore,
		Operations:       operations,
		Bulk:             bulkEngine,
		Embedder:         embeddingProvider,
		EmbeddingTimeout: cfg.Ai.EmbeddingTimeout,
		Logger:           agentLogger,
	})

	ragAssembler := assembler.New(noteStore, embeddingProvider, agentLogger, assembler.Config{
		NoteTopK:              cfg.Agent.NoteTopK,
		NoteThreshold:         cfg.Agent.NoteThreshold,
		ConversationTopK:      cfg.Agent.ConversationTopK,
		ConversationThreshold: cfg.Agent.ConversationThreshold,
		ConversationChars:     cfg.Agent.ConversationChars,
		EmbeddingTimeout:      cfg.Ai.EmbeddingTimeout,
	})

	loopController := loop.NewController(llmProvider, registry, agentLogger, loop.Config{
		MaxIterations: cfg.Agent.MaxIterations,
		LLMTimeout:    cfg.Ai.LLMTimeout,
	})

	turnQueue := session.NewQueue()
	agentService := service.NewAgentService(service.AgentServiceDeps{
		Sessions:   memory.NewSessionRepository(cfg.Agent.SessionTTL),
		Queue:      turnQueue,
		Messages:   service.NewMessageLog(uowFactory),
		Assembler:  ragAssembler,
		Controller: loopController,
		Executor:   plan.NewExecutor(operations, bulkEngine, agentLogger),
		Embeds:     embedNotifier,
		Profiles:   profilePublisher,
		Events:     eventPublisher,
		Config:     cfg.Agent,
		Logger:     sysLogger,
	})

	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Agent.EmbedTopic,
		cfg.Agent.ProfileTopic,
		uowFactory,
		embeddingProvider,
		cfg.Ai.EmbeddingTimeout,
		sysLogger,
	)

	return &Container{
		AgentController:   controller.NewAgentController(agentService),
		ConsumerService:   consumerService,
		EventRelay:        service.NewEventRelayService(wsHub, wsLogger),
		AgentEventHandler: handler.NewAgentEventHandler(wsHub, wsLogger),
		WebSocketHub:      wsHub,
		Logger:            sysLogger,
		natsPub:           natsPub,
		natsSub:           natsSub,
		pubSub:            pubSub,
		turnQueue:         turnQueue,
	}
}

// Start runs the background workers until ctx ends.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if err := c.ConsumerService.Consume(ctx); err != nil {
		return err
	}

	if c.natsSub != nil {
		if err := c.natsSub.Subscribe(ctx, pktNats.SubjectPrefix+">", "agent-ws-relay", c.EventRelay.Handle); err != nil {
			c.Logger.Warn("Bootstrap", "Event relay not started", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

// Close waits for queued turns, then releases the buses.
func (c *Container) Close() {
	c.turnQueue.Close()
	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if err := c.pubSub.Close(); err != nil {
		c.Logger.Warn("Bootstrap", "Failed to close job bus", map[string]interface{}{"error": err.Error()})
	}
	_ = c.Logger.Sync()
}
