package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/soundscape-ai/lexicon/internal/auth"
	"github.com/soundscape-ai/lexicon/internal/config"
	"github.com/soundscape-ai/lexicon/internal/conflicts"
	"github.com/soundscape-ai/lexicon/internal/embedding"
	"github.com/soundscape-ai/lexicon/internal/integrity"
	"github.com/soundscape-ai/lexicon/internal/mcp"
	"github.com/soundscape-ai/lexicon/internal/oracle"
	"github.com/soundscape-ai/lexicon/internal/ratelimit"
	"github.com/soundscape-ai/lexicon/internal/server"
	"github.com/soundscape-ai/lexicon/internal/service/expansion"
	"github.com/soundscape-ai/lexicon/internal/service/tracker"
	"github.com/soundscape-ai/lexicon/internal/storage"
	"github.com/soundscape-ai/lexicon/internal/telemetry"
	"github.com/soundscape-ai/lexicon/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("LEXICON_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("lexicon starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to database and apply migrations.
	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Create JWT manager and hash the bootstrap reviewer key.
	jwtMgr, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	var reviewerKeyHash string
	if cfg.ReviewerAPIKey != "" {
		reviewerKeyHash, err = auth.HashAPIKey(cfg.ReviewerAPIKey)
		if err != nil {
			return fmt.Errorf("auth: hash reviewer key: %w", err)
		}
	} else {
		logger.Warn("no reviewer API key configured, token issuance disabled")
	}

	// Embedding provider (term vectors; also backs the embedding oracle).
	embedder := newEmbeddingProvider(cfg, logger)

	// Conflict snapshot cache over the approved vocabulary, warmed once
	// so the first request does not pay the load.
	cache := conflicts.NewCache(db, logger)
	if _, err := cache.Refresh(ctx); err != nil {
		logger.Warn("conflict snapshot warmup failed", "error", err)
	}
	checker := conflicts.NewChecker(cache)

	// Similarity oracle.
	scorer := newOracleProvider(cfg, embedder, logger)
	assessor := oracle.New(scorer, logger, cfg.SimilarityThreshold, cfg.OracleChunkSize, cfg.OracleChunkTimeout)

	// Services.
	engine := expansion.New(db, cache, checker, assessor, embedder, logger)
	trk := tracker.New(db, logger, cfg.MinFrequency)
	sweeper := integrity.NewSweeper(db, logger)

	// MCP server for tagging agents.
	mcpSrv := mcp.New(trk, engine, db, logger)

	// Rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitPerSecond > 0 {
		mem := ratelimit.NewMemoryLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
		defer func() { _ = mem.Close() }()
		limiter = mem
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitPerSecond, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	srv := server.New(server.Config{
		Handlers: server.HandlersDeps{
			DB:                  db,
			JWTMgr:              jwtMgr,
			Tracker:             trk,
			Expander:            engine,
			Vocab:               db,
			Sweeper:             sweeper,
			Logger:              logger,
			Version:             version,
			MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
			ReviewerKeyHash:     reviewerKeyHash,
		},
		JWTMgr:       jwtMgr,
		Logger:       logger,
		Limiter:      limiter,
		MCPServer:    mcpSrv.MCPServer(),
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Periodic integrity sweep; findings are logged, the report endpoint
	// serves on-demand runs.
	go sweepLoop(ctx, sweeper, logger, time.Hour)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("lexicon shutting down")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("lexicon stopped")
	return nil
}

// newEmbeddingProvider creates an embedding provider based on configuration.
// Auto mode tries Ollama if reachable, then OpenAI if a key is present,
// else noop. Ollama is preferred: embeddings stay on-premises.
func newEmbeddingProvider(cfg config.Config, logger *slog.Logger) embedding.Provider {
	dims := cfg.EmbeddingDimensions

	if cfg.OracleProvider == "noop" {
		return embedding.NewNoopProvider(dims)
	}

	if ollamaReachable(cfg.OllamaURL) {
		logger.Info("embedding provider: ollama", "url", cfg.OllamaURL, "model", cfg.EmbeddingModel, "dimensions", dims)
		return embedding.NewOllamaProvider(cfg.OllamaURL, cfg.EmbeddingModel, dims)
	}
	if cfg.OpenAIAPIKey != "" {
		logger.Info("embedding provider: openai", "model", cfg.EmbeddingModel, "dimensions", dims)
		return embedding.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.EmbeddingModel, dims)
	}
	logger.Warn("no embedding provider available, using noop (term vectors disabled)")
	return embedding.NewNoopProvider(dims)
}

// newOracleProvider selects the similarity scorer: "openai", "ollama",
// "embedding" (cosine over the embedding provider), "noop", or "auto".
// Auto prefers a local Ollama, then OpenAI, then the embedding fallback.
func newOracleProvider(cfg config.Config, embedder embedding.Provider, logger *slog.Logger) oracle.Provider {
	switch cfg.OracleProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			logger.Error("OPENAI_API_KEY required when LEXICON_ORACLE_PROVIDER=openai")
			return oracle.NoopProvider{}
		}
		logger.Info("similarity oracle: openai", "model", cfg.OpenAIModel)
		return oracle.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, "")

	case "ollama":
		logger.Info("similarity oracle: ollama", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return oracle.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel)

	case "embedding":
		logger.Info("similarity oracle: embedding cosine")
		return oracle.NewEmbeddingProvider(embedder)

	case "noop":
		logger.Info("similarity oracle: noop (every candidate scores 0)")
		return oracle.NoopProvider{}

	case "auto":
		fallthrough
	default:
		if ollamaReachable(cfg.OllamaURL) {
			logger.Info("similarity oracle: ollama (auto-detected)", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
			return oracle.NewOllamaProvider(cfg.OllamaURL, cfg.OllamaModel)
		}
		if cfg.OpenAIAPIKey != "" {
			logger.Info("similarity oracle: openai (auto-detected)", "model", cfg.OpenAIModel)
			return oracle.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel, "")
		}
		logger.Warn("no LLM oracle available, falling back to embedding cosine")
		return oracle.NewEmbeddingProvider(embedder)
	}
}

// ollamaReachable checks if an Ollama server is responding.
func ollamaReachable(baseURL string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func sweepLoop(ctx context.Context, sweeper *integrity.Sweeper, logger *slog.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := sweeper.Sweep(ctx)
			if err != nil {
				logger.Warn("integrity sweep failed", "error", err)
				continue
			}
			if len(report.Errors) > 0 || len(report.Warnings) > 0 {
				logger.Warn("integrity sweep findings",
					"errors", len(report.Errors),
					"warnings", len(report.Warnings),
					"suggestions", len(report.Suggestions))
			}
		}
	}
}
