// Command server starts the resume match engine HTTP server.
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

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/resume-match-engine/internal/adapter/ai/embedcache"
	"github.com/fairyhunter13/resume-match-engine/internal/adapter/ai/gemini"
	"github.com/fairyhunter13/resume-match-engine/internal/adapter/ai/openai"
	"github.com/fairyhunter13/resume-match-engine/internal/adapter/httpserver"
	"github.com/fairyhunter13/resume-match-engine/internal/adapter/observability"
	"github.com/fairyhunter13/resume-match-engine/internal/adapter/repo/memory"
	"github.com/fairyhunter13/resume-match-engine/internal/adapter/repo/postgres"
	tikaext "github.com/fairyhunter13/resume-match-engine/internal/adapter/textextractor/tika"
	qdrantcli "github.com/fairyhunter13/resume-match-engine/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/resume-match-engine/internal/app"
	"github.com/fairyhunter13/resume-match-engine/internal/config"
	"github.com/fairyhunter13/resume-match-engine/internal/domain"
	"github.com/fairyhunter13/resume-match-engine/internal/evaluate"
	"github.com/fairyhunter13/resume-match-engine/internal/match"
	"github.com/fairyhunter13/resume-match-engine/internal/parse"
	"github.com/fairyhunter13/resume-match-engine/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)

	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		records domain.RecordRepository
		matches domain.MatchRepository
		dbCheck func(ctx context.Context) error
	)
	if cfg.DBURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DBURL)
		if err != nil {
			slog.Error("db connect failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			slog.Error("schema setup failed", slog.Any("error", err))
			os.Exit(1)
		}
		records = postgres.NewRecordRepo(pool)
		matches = postgres.NewMatchRepo(pool)
		dbCheck = pool.Ping
	} else {
		slog.Warn("DB_URL not set, using in-memory stores")
		records = memory.NewRecordStore()
		matches = memory.NewMatchStore()
	}

	// Redis backs the embedding cache; absent it the provider is called directly.
	var (
		rdb        *redis.Client
		redisCheck func(ctx context.Context) error
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid redis url", slog.Any("error", err))
			os.Exit(1)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		redisCheck = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	provider := embedcache.New(openai.New(cfg), rdb, cfg.EmbedCacheTTL)
	embedder := match.NewEmbedder(provider, cfg.EmbeddingDim)

	// Evaluator; without a key the service runs embeddings-only and every
	// explanation degrades.
	var (
		evaluator domain.Evaluator
		orch      *evaluate.Orchestrator
		condenser parse.Condenser
	)
	if cfg.GeminiAPIKey != "" {
		gcl, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Error("gemini client failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer gcl.Close()
		evaluator = gcl
		orch = evaluate.New(evaluator, cfg.EvalTimeout, cfg.ReasonMaxChars, cfg.MaxPromptTokens)
		condenser = &parse.LLMCondenser{Provider: evaluator, Timeout: cfg.EvalTimeout}
	} else {
		slog.Warn("GEMINI_API_KEY not set, evaluations will be degraded")
	}

	var vectors domain.VectorStore
	if cfg.QdrantURL != "" {
		qc := qdrantcli.New(cfg.QdrantURL, cfg.QdrantAPIKey)
		if err := qc.EnsureCollection(ctx, cfg.QdrantCollection, cfg.EmbeddingDim, "Cosine"); err != nil {
			slog.Error("qdrant collection setup failed", slog.Any("error", err))
			os.Exit(1)
		}
		vectors = qdrantcli.NewStore(qc, cfg.QdrantCollection)
	}

	extractor := tikaext.New(cfg.TikaURL)

	normalizer := &parse.Normalizer{
		Condenser:       condenser,
		Policy:          cfg.CondensePolicy,
		NarrativeBudget: cfg.NarrativeBudgetChars,
	}

	spec, err := cfg.LoadWeightSpec(match.CanonicalSpec())
	if err != nil {
		slog.Error("weight spec invalid", slog.Any("error", err))
		os.Exit(1)
	}

	ingest := usecase.NewIngestService(normalizer, embedder, records, vectors)
	matcher := usecase.NewMatchService(records, matches, orch, spec, cfg.SkipEmptyCandidates)

	srv := httpserver.NewServer(cfg, ingest, matcher, extractor)
	srv.DBCheck = dbCheck
	srv.RedisCheck = redisCheck

	router := app.BuildRouter(cfg, srv)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", slog.Int("port", cfg.Port), slog.String("env", cfg.AppEnv))
		errCh <- httpSrv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-stop:
		slog.Info("shutting down", slog.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", slog.Any("error", err))
		}
	}
}
