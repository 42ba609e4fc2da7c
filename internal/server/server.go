// Package server provides the HTTP API for saiyo.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/saiyo/internal/config"
	"github.com/hyperjump/saiyo/internal/extract"
	"github.com/hyperjump/saiyo/internal/indexer"
	"github.com/hyperjump/saiyo/internal/keyword"
	"github.com/hyperjump/saiyo/internal/search"
	"github.com/hyperjump/saiyo/internal/storage"
	"github.com/hyperjump/saiyo/pkg/utils"
)

// Server is the HTTP server for the saiyo API.
type Server struct {
	engine    *search.Engine
	manager   *indexer.Manager
	store     storage.Storage
	directory keyword.Directory
	extractor *extract.Extractor
	cfg       *config.Config
	logger    *zap.Logger
	server    *http.Server

	errorHandlers []errorHandler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDirectory enables candidate directory lookups.
func WithDirectory(d keyword.Directory) Option {
	return func(s *Server) { s.directory = d }
}

// NewServer creates a server with the given dependencies.
func NewServer(engine *search.Engine, manager *indexer.Manager, store storage.Storage, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		manager:   manager,
		store:     store,
		extractor: extract.NewExtractor(),
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.errorHandlers = defaultErrorHandlers()
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(jsonRecoverer(s.logger))
	if s.cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/search/file", s.handleSearchFile)
		r.Get("/candidates", s.handleListCandidates)
		r.Put("/candidates/{identity}", s.handlePutCandidate)
		r.Get("/candidates/{identity}", s.handleGetCandidate)
		r.Delete("/candidates/{identity}", s.handleDeleteCandidate)
		r.Post("/index/rebuild", s.handleRebuild)
		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.cfg.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// requestLogger stores a request-scoped logger in the context and logs one line per request.
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := middleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := utils.ContextWithLogger(r.Context(), reqLogger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

// jsonRecoverer turns a panic into a 500 with the usual JSON error body.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered", zap.Any("panic", rvr), zap.Stack("stacktrace"))
					writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
