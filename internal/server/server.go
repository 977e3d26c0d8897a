package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/soundscape-ai/lexicon/internal/auth"
	"github.com/soundscape-ai/lexicon/internal/ratelimit"
)

// Server is the vocabulary HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Config holds all dependencies and settings for creating a Server.
// Optional (nil = disabled): Limiter, MCPServer.
type Config struct {
	Handlers HandlersDeps
	JWTMgr   *auth.JWTManager
	Logger   *slog.Logger

	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New creates a new HTTP server with all routes configured.
func New(cfg Config) *Server {
	h := NewHandlers(cfg.Handlers)

	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	rl := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, reqIDFunc, cfg.Logger)
	reviewer := requireReviewer(cfg.JWTMgr)

	mux := http.NewServeMux()

	// Auth (no auth required, rate limited by IP).
	mux.Handle("POST /auth/token", rl(http.HandlerFunc(h.HandleAuthToken)))

	// Ingestion from the tagging pipeline (no auth, rate limited).
	mux.Handle("POST /v1/unrecognized", rl(http.HandlerFunc(h.HandleRecordUnrecognized)))
	mux.Handle("POST /v1/candidates", rl(http.HandlerFunc(h.HandleSubmitCandidate)))

	// Read-only projection for downstream classifiers.
	mux.Handle("GET /v1/vocabulary", rl(http.HandlerFunc(h.HandleVocabulary)))

	// Reviewer operations (token required).
	mux.Handle("POST /v1/auto-expand", rl(reviewer(http.HandlerFunc(h.HandleAutoExpand))))
	mux.Handle("POST /v1/review", rl(reviewer(http.HandlerFunc(h.HandleReview))))
	mux.Handle("GET /v1/integrity", rl(reviewer(http.HandlerFunc(h.HandleIntegrity))))

	// MCP StreamableHTTP transport (token required).
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", reviewer(mcpHTTP))
	}

	// Health (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
