// Package server provides the HTTP API: collection tools, search and chat.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/ragchat/internal/config"
	"github.com/hyperjump/ragchat/internal/llm"
	"github.com/hyperjump/ragchat/internal/models"
	"github.com/hyperjump/ragchat/internal/tools"
	"go.uber.org/zap"
)

// ToolExecutor runs collection operations.
type ToolExecutor interface {
	Execute(ctx context.Context, op tools.Operation) tools.Result
	Run(ctx context.Context, name string, args json.RawMessage) tools.Result
}

// Searcher runs validated search requests.
type Searcher interface {
	Do(ctx context.Context, req *models.SearchRequest, keyword bool) ([]models.SearchResult, error)
}

// Assistant answers chat messages.
type Assistant interface {
	Chat(ctx context.Context, history []llm.Message, userMessage string) string
}

// WatchService manages watched directories.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server.
type Server struct {
	tools     ToolExecutor
	searcher  Searcher
	assistant Assistant    // optional
	watch     WatchService // optional
	config    *config.Config
	// configPath is where watch directory changes are persisted; empty disables it.
	configPath string
	configMu   sync.Mutex
	logger     *zap.Logger
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithAssistant enables POST /api/v1/chat.
func WithAssistant(a Assistant) Option {
	return func(s *Server) { s.assistant = a }
}

// WithWatch enables the watch directory endpoints. When configPath is set,
// changes to the directory list are saved there.
func WithWatch(w WatchService, configPath string) Option {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(exec ToolExecutor, searcher Searcher, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		tools:    exec,
		searcher: searcher,
		config:   cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(s.config.LLM.TimeoutSeconds+60) * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/collection", s.handleCollectionInfo)
		r.Post("/search", s.handleSearch)
		r.Post("/search/keyword", s.handleKeywordSearch)
		r.Post("/documents", s.handleAddDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
		r.Post("/files", s.handleAddFile)
		r.Post("/tools/{name}", s.handleTool)
		r.Post("/chat", s.handleChat)
		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
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

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
