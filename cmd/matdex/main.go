package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/materia-cloud/matdex/internal/config"
	dbRedis "github.com/materia-cloud/matdex/internal/db/redis"
	"github.com/materia-cloud/matdex/internal/domain"
	logpkg "github.com/materia-cloud/matdex/internal/logger"
	"github.com/materia-cloud/matdex/internal/metrics"
	"github.com/materia-cloud/matdex/internal/repository/configstore"
	"github.com/materia-cloud/matdex/internal/repository/embcache"
	knowledgerepo "github.com/materia-cloud/matdex/internal/repository/knowledge"
	vectorrepo "github.com/materia-cloud/matdex/internal/repository/vector"
	httpTransport "github.com/materia-cloud/matdex/internal/transport/http"
	openaiEmb "github.com/materia-cloud/matdex/internal/transport/openai"
	cataloguc "github.com/materia-cloud/matdex/internal/usecase/catalog"
	engineuc "github.com/materia-cloud/matdex/internal/usecase/engine"
	healthuc "github.com/materia-cloud/matdex/internal/usecase/health"
	organizeruc "github.com/materia-cloud/matdex/internal/usecase/organizer"
	registryuc "github.com/materia-cloud/matdex/internal/usecase/registry"
	routeruc "github.com/materia-cloud/matdex/internal/usecase/router"
	"github.com/materia-cloud/matdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting matdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx, stopProbes := context.WithCancel(context.Background())
	defer stopProbes()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterEngineMetrics()

	// Embedder chain: OpenAI provider wrapped in the store-backed cache.
	baseEmbedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTextLen: cfg.Embedding.MaxTextLen,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})
	embedder := embcache.New(
		baseEmbedder,
		store,
		time.Duration(cfg.Embedding.CacheTTLHour)*time.Hour,
		metrics.EmbeddingCacheTotal,
		logger,
	)
	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	vecRepo := vectorrepo.New(store, logger)
	knowRepo := knowledgerepo.New(store, logger)
	cfgStore := configstore.New(store)

	if err := vecRepo.EnsureIndex(ctx,
		cfg.Embedding.Dimensions, cfg.Search.HNSWM, cfg.Search.HNSWEFConstruct); err != nil {
		logger.Fatal("Failed to ensure material index", zap.Error(err))
	}
	if err := knowRepo.EnsureIndex(ctx); err != nil {
		logger.Fatal("Failed to ensure knowledge index", zap.Error(err))
	}

	registry := registryuc.New(cfgStore)

	// Backend health: both branches live on the store today, but they probe
	// independently so a future split needs no routing changes.
	tracker := routeruc.NewTracker(logger)
	tracker.Register(domain.BackendVector, store.Ping)
	tracker.Register(domain.BackendKnowledge, store.Ping)
	go tracker.Run(ctx, time.Duration(cfg.Search.HealthProbeSec)*time.Second)

	queryRouter := routeruc.New(
		tracker,
		time.Duration(cfg.Search.QueryTimeoutMs)*time.Millisecond,
		cfg.Search.VectorSharePct,
	)

	organizer := organizeruc.New(embedder)

	engine := engineuc.New(
		embedder, vecRepo, knowRepo,
		queryRouter, tracker, registry, registry, organizer,
		cfg.Search.ConfigName, logger,
	)
	catalog := cataloguc.New(embedder, vecRepo, knowRepo)
	health := healthuc.New(store, newEmbeddingHealthChecker(baseEmbedder), tracker)

	server := httpTransport.NewServer(engine, catalog, registry, health, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(httpTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")
	stopProbes()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
