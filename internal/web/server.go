// Package web exposes the import pipeline over HTTP: job submission,
// per-job status streaming (SSE), report retrieval and payload preview.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fieldserve/fieldserve/internal/config"
	"github.com/fieldserve/fieldserve/internal/job"
	webmiddleware "github.com/fieldserve/fieldserve/internal/web/middleware"
)

// Server is the HTTP front end of the import service.
type Server struct {
	queue  *job.Queue
	pub    *job.Publisher
	cfg    *config.Config
	router *chi.Mux
	server *http.Server
}

// NewServer creates a server submitting to queue and observing pub.
func NewServer(queue *job.Queue, pub *job.Publisher, cfg *config.Config) *Server {
	s := &Server{
		queue:  queue,
		pub:    pub,
		cfg:    cfg,
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(webmiddleware.Logger)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/kinds", s.handleListKinds)

		r.Post("/imports", s.handleSubmit)
		r.Post("/imports/preview", s.handlePreview)

		r.Get("/imports/{jobID}", s.handleStatus)
		r.Get("/imports/{jobID}/events", s.handleEvents)
		r.Get("/imports/{jobID}/report", s.handleReport)
		r.Get("/imports/{jobID}/report.txt", s.handleReportText)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 keeps SSE streams open
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// sseRetryHint tells reconnecting EventSource clients how long to wait.
const sseRetryHint = 2 * time.Second
