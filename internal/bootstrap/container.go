package bootstrap

import (
	"log"

	"ai-triage-be/internal/config"
	"ai-triage-be/internal/controller"
	"ai-triage-be/internal/pkg/logger"
	"ai-triage-be/internal/repository/memory"
	"ai-triage-be/internal/service"
	"ai-triage-be/pkg/embedding"
	"ai-triage-be/pkg/llm/factory"
	"ai-triage-be/pkg/persona"
	"ai-triage-be/pkg/retrieval"
	"ai-triage-be/pkg/vectorstore"
	"ai-triage-be/pkg/vectorstore/pgvec"
	"ai-triage-be/pkg/vectorstore/sqlitevec"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type Container struct {
	Logger          logger.ILogger
	ChatController  controller.IChatController
	ConsumerService service.IConsumerService
	IngestService   service.IIngestService
}

func NewContainer(cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Vector store backend is chosen once here; everything downstream sees
	// only the vectorstore.Store interface.
	var vstore vectorstore.Store
	switch cfg.VectorStore.Mode {
	case "postgres":
		if cfg.VectorStore.Connection == "" {
			log.Fatalf("[FATAL] Vector store mode 'postgres' requires DB_CONNECTION_STRING")
		}
		vstore = pgvec.NewStore(cfg.VectorStore.Connection)
	case "sqlite", "":
		vstore = sqlitevec.NewStore(cfg.VectorStore.SQLitePath)
	default:
		log.Fatalf("[FATAL] Unsupported vector store mode: %s", cfg.VectorStore.Mode)
	}
	log.Printf("[INFO] Using Vector Store: %s", cfg.VectorStore.Mode)

	var embedder embedding.Provider
	var counter embedding.TokenCounter
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embedder = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaEmbeddingModel)
		counter = embedding.HeuristicTokenCounter{}
	} else {
		embedder = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		counter = embedding.NewGeminiTokenCounter(cfg.Keys.GoogleGemini)
	}

	llmProvider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, cfg.Ai.OllamaBaseURL, cfg.Keys.GoogleGemini)
	if err != nil {
		log.Fatalf("[FATAL] Failed to create LLM provider: %v", err)
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))

	sessionRepo := memory.NewSessionRepository()
	registry := persona.NewRegistry()
	retriever := retrieval.NewService(vstore, embedder, cfg.VectorStore.Collection, sysLogger)

	triageService := service.NewTriageService(sessionRepo, registry, llmProvider, retriever, cfg.Retrieval.TopK, pubSub, sysLogger)
	consumerService := service.NewConsumerService(pubSub, sysLogger)
	ingestService := service.NewIngestService(
		vstore, embedder, counter,
		cfg.VectorStore.Collection, cfg.Ingest.DatasetPath,
		cfg.Ingest.MaxSamples, cfg.Ingest.MaxInputTokens,
		sysLogger,
	)

	return &Container{
		Logger:          sysLogger,
		ChatController:  controller.NewChatController(triageService),
		ConsumerService: consumerService,
		IngestService:   ingestService,
	}
}
