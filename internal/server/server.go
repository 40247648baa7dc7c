// Package server provides the HTTP API for kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/session"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/internal/workflow"
)

// Runner executes one conversational turn.
type Runner interface {
	Run(ctx context.Context, workflowID, query string) (*workflow.Result, error)
}

// Server is the HTTP server for the kotae API.
type Server struct {
	runner   Runner
	indexes  *vector.Set
	sessions session.Store
	config   *config.Config
	logger   *zap.Logger
	validate *validator.Validate
	started  time.Time
	server   *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	runner Runner,
	indexes *vector.Set,
	sessions session.Store,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		runner:   runner,
		indexes:  indexes,
		sessions: sessions,
		config:   cfg,
		logger:   logger,
		validate: validator.New(),
		started:  time.Now(),
	}
}

// Routes returns the HTTP handler with all routes and middleware.
func (s *Server) Routes() http.Handler {
	timeout := s.config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))

	r.Post("/workflow", s.handleWorkflow)
	r.Get("/hello", s.handleHello)
	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
