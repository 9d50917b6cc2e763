// Package server exposes the progress-polling and coverage surfaces
// over HTTP JSON.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/docharvester/docharvester-go/internal/metrics"
	"github.com/docharvester/docharvester-go/internal/service"
	"github.com/docharvester/docharvester-go/internal/tasks"
)

// Deps carries the wired services the handlers dispatch to.
type Deps struct {
	Tracker   *tasks.Tracker
	Runner    *tasks.Runner
	Coverage  *service.CoverageService
	Documents *service.DocumentService
	Generate  *service.GenerateService
	Entities  *service.EntityService
	Wiki      *service.WikiService
	Search    *service.SearchService
	Metrics   *metrics.Collector
}

// Server hosts the HTTP API with lifecycle management.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// New creates the HTTP server listening on addr.
func New(addr string, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector()
	}

	s := &Server{deps: deps, logger: logger}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      LoggingMiddleware(logger)(s.routes()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)

	// Progress polling surface
	mux.HandleFunc("GET /api/progress/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("DELETE /api/progress/tasks/{id}", s.handleCancelTask)
	mux.HandleFunc("GET /api/progress/projects/{project}/tasks", s.handleListActiveTasks)
	mux.HandleFunc("GET /api/progress/projects/{project}/tasks/history", s.handleTaskHistory)

	// Coverage surface
	mux.HandleFunc("GET /api/coverage/requirements/{project}", s.handleGetRequirements)
	mux.HandleFunc("PUT /api/coverage/requirements/{project}/{lens}", s.handleSetRequirement)
	mux.HandleFunc("GET /api/coverage/status/{project}", s.handleGetCoverageStatus)
	mux.HandleFunc("POST /api/coverage/check/{project}", s.handleTriggerCheck)
	mux.HandleFunc("POST /api/coverage/generate/{project}", s.handleGenerate)

	// Operation submission
	mux.HandleFunc("POST /api/projects/{project}/documents", s.handleProcessDocument)
	mux.HandleFunc("POST /api/projects/{project}/extract", s.handleExtract)
	mux.HandleFunc("POST /api/projects/{project}/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/projects/{project}/wiki", s.handleWiki)

	mux.HandleFunc("GET /api/projects/{project}/search", s.handleSearch)

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully,
// waiting for in-flight operations to finish.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if s.deps.Runner != nil {
		if err := s.deps.Runner.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("tasks still running at shutdown deadline", "error", err)
		}
	}
	return nil
}
