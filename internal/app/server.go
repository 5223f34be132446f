package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/eventinsight/eventinsight/internal/api/handlers"
	"github.com/eventinsight/eventinsight/internal/config"
	"github.com/eventinsight/eventinsight/internal/core"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, dbClient core.DbClient, ingestor handlers.Ingestor, conversation handlers.Conversation, logger *slog.Logger) *Server {
	eventHandler := handlers.NewEventHandler(dbClient, ingestor)
	chatHandler := handlers.NewChatHandler(conversation)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Post("/events", eventHandler.CreateEvent)
		api.Get("/events", eventHandler.ListEvents)
		api.Get("/events/{eventID}", eventHandler.GetEvent)
		api.Delete("/events/{eventID}", eventHandler.DeleteEvent)
		api.Post("/events/{eventID}/crawl", eventHandler.CrawlEvent)

		api.Post("/chat", chatHandler.SendMessage)
		api.Get("/chat/sessions/{sessionID}/messages", chatHandler.GetMessages)
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server until it is shut down.
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
	return s.httpServer.Shutdown(ctx)
}
