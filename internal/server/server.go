// Package server provides the HTTP API for Tanya.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/metrics"
	"github.com/hyperjump/tanya/internal/search"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the HTTP server for the Tanya API.
type Server struct {
	engine        *search.Engine
	indexer       *indexer.Indexer
	conversations storage.ConversationStore
	metrics       *metrics.Metrics
	config        *config.Config
	logger        *zap.Logger
	server        *http.Server
}

// NewServer creates a server with the given dependencies. m may be nil, in which case
// /metrics is not mounted.
func NewServer(
	engine *search.Engine,
	idx *indexer.Indexer,
	conversations storage.ConversationStore,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		engine:        engine,
		indexer:       idx,
		conversations: conversations,
		metrics:       m,
		config:        cfg,
		logger:        logger,
	}
}

// Handler builds the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if s.config.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
		}
		r.Get("/status", s.handleStatus)
		r.Post("/upload", s.handleUpload)
		r.Post("/query", s.handleQuery)
		r.Post("/query/global", s.handleQueryGlobal)
		r.Get("/namespaces", s.handleListNamespaces)
		r.Delete("/namespaces/delete/{namespace}", s.handleDeleteNamespace)
		r.Get("/namespaces/history/{namespace}", s.handleHistory)
		r.Get("/chat/global/history", s.handleGlobalHistory)
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

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
