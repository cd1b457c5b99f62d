package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/precisesoft/DocQueryAI/internal/api/handlers"
	"github.com/precisesoft/DocQueryAI/internal/chat"
	"github.com/precisesoft/DocQueryAI/internal/config"
	"github.com/precisesoft/DocQueryAI/internal/core"
	"github.com/precisesoft/DocQueryAI/internal/ingest"
	"github.com/precisesoft/DocQueryAI/internal/orchestrator"
	"github.com/precisesoft/DocQueryAI/internal/retrieval"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, docs core.DocumentStore, ing *ingest.Ingestor, chatService *chat.Service, manager *orchestrator.Manager, engine *retrieval.Engine, logger *slog.Logger) *Server {
	docHandler := handlers.NewDocumentHandler(docs, ing, logger)
	chatHandler := handlers.NewChatHandler(chatService, logger)
	jobHandler := handlers.NewJobHandler(manager, logger)
	healthHandler := handlers.NewHealthHandler(engine)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", healthHandler.Health)
		api.Get("/embedding-test", healthHandler.EmbeddingTest)
		api.Post("/embedding-test", healthHandler.EmbeddingTest)

		api.Post("/documents/upload", docHandler.UploadDocument)
		api.Get("/documents", docHandler.GetDocuments)
		api.Post("/documents/clear", docHandler.ClearDocuments)

		api.Post("/chat", chatHandler.StreamChat)

		api.Route("/jobs", func(jobs chi.Router) {
			jobs.Post("/create", jobHandler.CreateJob)
			jobs.Post("/", jobHandler.RunJob)
			jobs.Get("/", jobHandler.ListJobs)
			jobs.Get("/{jobID}", jobHandler.GetJob)
			jobs.Get("/{jobID}/result", jobHandler.GetJobResult)
			jobs.Post("/{jobID}/cancel", jobHandler.CancelJob)
			jobs.Delete("/{jobID}", jobHandler.DeleteJob)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
