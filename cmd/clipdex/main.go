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

	"github.com/kailas-cloud/clipdex/internal/config"
	logpkg "github.com/kailas-cloud/clipdex/internal/logger"
	"github.com/kailas-cloud/clipdex/internal/metrics"
	"github.com/kailas-cloud/clipdex/internal/store"
	storePinecone "github.com/kailas-cloud/clipdex/internal/store/pinecone"
	storeRedis "github.com/kailas-cloud/clipdex/internal/store/redis"
	chiTransport "github.com/kailas-cloud/clipdex/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/clipdex/internal/transport/openai"
	healthuc "github.com/kailas-cloud/clipdex/internal/usecase/health"
	queryuc "github.com/kailas-cloud/clipdex/internal/usecase/query"
	"github.com/kailas-cloud/clipdex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting clipdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("index_name", cfg.IndexName()),
	)

	st, err := newStore(cfg)
	if err != nil {
		logger.Fatal("Failed to create vector store", zap.Error(err))
	}
	defer st.Close()

	// Wait for the backend to be ready
	ctx := context.Background()
	if err := st.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Vector store not ready", zap.Error(err))
	}
	logger.Info("Connected to vector store")

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterEmbeddingMetrics()

	queryEmbedder := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.Text.APIKey,
		BaseURL:    cfg.Embedding.Text.BaseURL,
		Model:      cfg.Embedding.Text.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     logger,
	})
	logger.Info("Query embedder created",
		zap.String("model", cfg.Embedding.Text.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	querySvc := queryuc.New(st, queryEmbedder)
	healthSvc := healthuc.New(st, queryEmbedder, cfg.IndexName())

	server := chiTransport.NewServer(querySvc, healthSvc, st, cfg.IndexName(), logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(corsMiddleware())
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// newStore creates the vector store driver selected by config. The Redis
// driver also bootstraps its FT index.
func newStore(cfg config.Config) (store.Store, error) {
	switch cfg.Database.Driver {
	case "pinecone":
		return storePinecone.New(storePinecone.Config{
			APIKey:    cfg.Database.Pinecone.APIKey,
			Host:      cfg.Database.Pinecone.Host,
			Namespace: cfg.Database.Pinecone.Namespace,
			Dimension: cfg.Embedding.Dimensions,
		})
	case "redis":
		rs, err := storeRedis.NewStore(storeRedis.Config{
			Addrs:           cfg.Database.Redis.Addrs,
			Username:        cfg.Database.Redis.Username,
			Password:        cfg.Database.Redis.Password,
			DB:              cfg.Database.Redis.DB,
			IndexName:       cfg.Database.Redis.IndexName,
			KeyPrefix:       cfg.Database.Redis.KeyPrefix,
			Dimension:       cfg.Embedding.Dimensions,
			HNSWM:           cfg.Database.Redis.HNSWM,
			HNSWEFConstruct: cfg.Database.Redis.HNSWEFConstruct,
		})
		if err != nil {
			return nil, err
		}
		if err := rs.EnsureIndex(context.Background()); err != nil {
			rs.Close()
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
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
						"error": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware allows the browser frontend to call the API from any
// origin, mirroring the permissive policy of the previous deployment.
func corsMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
