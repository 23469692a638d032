package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uitchat/admissions-rag/internal/config"
	"github.com/uitchat/admissions-rag/internal/core/ports"
	"github.com/uitchat/admissions-rag/internal/core/usecase"
	"github.com/uitchat/admissions-rag/internal/infrastructure/audit"
	"github.com/uitchat/admissions-rag/internal/infrastructure/dataset"
	openaillm "github.com/uitchat/admissions-rag/internal/infrastructure/llm/openai"
	"github.com/uitchat/admissions-rag/internal/infrastructure/queue/nats"
	"github.com/uitchat/admissions-rag/internal/infrastructure/repository/postgres"
	"github.com/uitchat/admissions-rag/internal/infrastructure/rerank/crossencoder"
	"github.com/uitchat/admissions-rag/internal/infrastructure/resilience"
	"github.com/uitchat/admissions-rag/internal/infrastructure/search/elastic"
)

// App is the composed dependency graph shared by the api and worker
// binaries.
type App struct {
	Config config.Config

	Queue       *nats.Queue
	Store       ports.ConversationStore
	Index       *elastic.Client
	ChatUC      ports.ChatService
	RetrievalUC ports.RetrievalService
	IngestUC    ports.DatasetIngestor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	convRepo := postgres.NewConversationRepository(db)
	if err := convRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	feedbackRepo := postgres.NewFeedbackRepository(db)

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder, err := openaillm.NewEmbedder(cfg.EmbeddingURL, cfg.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	index := elastic.New(cfg.ElasticURL, cfg.ElasticIndex,
		cfg.RetrievalLexicalBoost, cfg.RetrievalVectorBoost, cfg.EmbeddingDimension)

	var scorer ports.PairwiseScorer
	if cfg.RerankerEnabled && cfg.RerankerURL != "" {
		scorer = crossencoder.New(cfg.RerankerURL, cfg.RerankerModel)
	}
	reranker := usecase.NewReranker(scorer, cfg.RerankerEnabled, cfg.RerankerTopN)

	retriever := usecase.NewHybridRetriever(embedder, index, reranker, usecase.RetrieverConfig{
		TopN:       cfg.RetrievalTopK,
		RerankTopK: cfg.RerankerTopK,
	}, logger)

	generationOn := generationConfigured(cfg)
	if cfg.GenerationEnabled && !generationOn {
		logger.Warn("answer generation enabled without credentials or base url, disabling")
	}
	var chatModel ports.ChatModel
	if generationOn {
		generator, err := openaillm.NewGenerator(cfg.GenerationAPIKey, cfg.GenerationBaseURL, cfg.GenerationModel)
		if err != nil {
			return nil, fmt.Errorf("init generator: %w", err)
		}
		chatModel = generator
	}

	var auditor ports.GenerationAuditor
	var auditLogger *audit.Logger
	if cfg.AuditLogPath != "" {
		auditLogger, err = audit.NewLogger(cfg.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("init audit log: %w", err)
		}
		auditor = auditLogger
	}

	answerGen := usecase.NewAnswerGenerator(chatModel, auditor, usecase.GeneratorConfig{
		Enabled:         generationOn,
		Temperature:     cfg.GenerationTemperature,
		MaxTokens:       cfg.GenerationMaxTokens,
		MaxContextDocs:  cfg.MaxContextDocs,
		MaxHistoryTurns: cfg.MaxConversationTurns,
	}, logger)

	pipeline := usecase.NewPipeline(retriever, answerGen, cfg.RetrievalTopK, reranker.Enabled(), logger)
	chatUC := usecase.NewChatUseCase(pipeline, convRepo, feedbackRepo, cfg.HistoryWindowMessages, logger)

	readers := map[string]ports.DatasetReader{
		".csv":  dataset.NewCSVReader(),
		".xlsx": dataset.NewXLSXReader(),
	}
	ingestUC := usecase.NewIngestUseCase(readers, embedder, index, cfg.EmbeddingBatchSize, logger)

	return &App{
		Config: cfg,

		Queue:       queue,
		Store:       convRepo,
		Index:       index,
		ChatUC:      chatUC,
		RetrievalUC: retriever,
		IngestUC:    ingestUC,

		closeFn: func() {
			queue.Close()
			if auditLogger != nil {
				_ = auditLogger.Close()
			}
			_ = db.Close()
		},
	}, nil
}

// generationConfigured reports whether answer generation can actually run.
// Enabled without an API key or a local base URL means no model endpoint to
// call; the generator then serves stored fallback answers instead.
func generationConfigured(cfg config.Config) bool {
	if !cfg.GenerationEnabled {
		return false
	}
	return cfg.GenerationAPIKey != "" || cfg.GenerationBaseURL != ""
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// WaitReady blocks until the search index answers a health probe or the
// context expires. Startup ordering in compose environments is not
// guaranteed.
func (a *App) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		if err := a.Index.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
