// Package server provides the HTTP API for codelens.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/codelens/internal/config"
	"github.com/hyperjump/codelens/internal/indexer"
	"github.com/hyperjump/codelens/internal/search"
	"github.com/hyperjump/codelens/internal/storage"
	"github.com/hyperjump/codelens/internal/vector"
	"go.uber.org/zap"
)

// WatchService is the subset of the watcher the API exposes.
type WatchService interface {
	Directories() []string
	AddDirectory(root string, rebuild bool) error
	RemoveDirectory(root string) error
}

// Server is the HTTP server for the codelens API.
type Server struct {
	engine  *search.Engine
	indexer *indexer.Indexer
	storage storage.Storage
	vectors *vector.Registry
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server

	// watch is nil when watching is disabled.
	watch      WatchService
	configPath string
	configMu   sync.Mutex
}

// NewServer creates a server with the given dependencies. watch may be nil. When
// configPath is set, watch directory changes are written back to it.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	storage storage.Storage,
	vectors *vector.Registry,
	cfg *config.Config,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:     engine,
		indexer:    idx,
		storage:    storage,
		vectors:    vectors,
		config:     cfg,
		logger:     logger,
		watch:      watch,
		configPath: configPath,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	timeout := 60 * time.Second
	if s.config != nil && s.config.Server.RequestTimeoutSeconds > 0 {
		timeout = time.Duration(s.config.Server.RequestTimeoutSeconds) * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/search", s.handleSearch)

		r.Route("/repositories", func(r chi.Router) {
			r.Get("/", s.handleListRepositories)
			r.Post("/", s.handleCreateRepository)
			r.Post("/upload", s.handleUploadRepository)
			r.Get("/{id}", s.handleGetRepository)
			r.Delete("/{id}", s.handleDeleteRepository)
			r.Post("/{id}/reindex", s.handleReindexRepository)
			r.Get("/{id}/chunks", s.handleListChunks)
		})
		r.Get("/chunks/{id}", s.handleGetChunk)

		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	host, port := "localhost", 8080
	if s.config != nil {
		host, port = s.config.Server.Host, s.config.Server.Port
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
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
