package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pageturn/ingest/internal/config"
	"github.com/pageturn/ingest/internal/pipeline"
	"github.com/pageturn/ingest/internal/task"
)

// Server is the HTTP surface over the document pipeline.
type Server struct {
	router   chi.Router
	pipeline *pipeline.Pipeline
	registry *task.Registry
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(p *pipeline.Pipeline, registry *task.Registry, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		pipeline: p,
		registry: registry,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/documents", s.handleUpload)
		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}", s.handleGetDocument)
		r.Delete("/api/documents/{docID}", s.handleDeleteDocument)

		r.Post("/api/documents/{docID}/process", s.handleProcess)
		r.Post("/api/documents/{docID}/pause", s.handlePause)
		r.Get("/api/documents/{docID}/progress", s.handleProgress)
		r.Get("/api/documents/{docID}/chunks", s.handleChunks)

		r.Get("/api/tasks", s.handleTasks)
		r.Post("/api/lifecycle", s.handleLifecycle)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
