package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/precisesoft/DocQueryAI/internal/chat"
	"github.com/precisesoft/DocQueryAI/internal/config"
	"github.com/precisesoft/DocQueryAI/internal/core/llm"
	"github.com/precisesoft/DocQueryAI/internal/ingest"
	"github.com/precisesoft/DocQueryAI/internal/orchestrator"
	"github.com/precisesoft/DocQueryAI/internal/retrieval"
	"github.com/precisesoft/DocQueryAI/internal/store/memory"
)

type App struct {
	Docs    *memory.DocumentStore
	Jobs    *memory.JobStore
	Engine  *retrieval.Engine
	Manager *orchestrator.Manager
	Server  *Server
	logger  *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	docs := memory.NewDocumentStore()
	jobs := memory.NewJobStore()

	provider := llm.NewOpenAIProvider(cfg.LLMAPIURL, cfg.LLMAPIKey, cfg.EmbedModel, cfg.ChatModel)
	engine := retrieval.NewEngine(provider)

	// One-shot availability probe; ingestion and retrieval degrade rather
	// than fail when the embedding endpoint is down.
	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if engine.Probe(probeCtx) {
		logger.Info("embedding service reachable", "model", cfg.EmbedModel)
	} else {
		logger.Warn("embedding service unreachable; running without semantic retrieval")
	}

	ingestor := ingest.NewIngestor(docs, engine, ingest.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	}, logger)

	chatService := chat.NewService(docs, engine, provider, cfg.TopK, logger)

	extractor := llm.NewOllamaExtractor(cfg.OllamaAPIURL)
	manager, err := orchestrator.NewManager(jobs, docs, orchestrator.NewTextPageSource(docs), extractor, orchestrator.Config{
		Workers:         cfg.Workers,
		DefaultModel:    cfg.ExtractModel,
		DefaultMaxPages: cfg.DefaultMaxPages,
		DefaultScale:    cfg.DefaultScale,
		AgentVersion:    cfg.AgentVersion,
		RunSyncTimeout:  cfg.RunSyncTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init job manager: %w", err)
	}

	server := NewServer(cfg, docs, ingestor, chatService, manager, engine, logger)

	return &App{
		Docs:    docs,
		Jobs:    jobs,
		Engine:  engine,
		Manager: manager,
		Server:  server,
		logger:  logger,
	}, nil
}

func (a *App) Close() {
	if a.Manager != nil {
		a.Manager.Release()
	}
}
