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
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kailas-cloud/sonicweb/internal/config"
	"github.com/kailas-cloud/sonicweb/internal/db"
	dbPostgres "github.com/kailas-cloud/sonicweb/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/sonicweb/internal/db/redis"
	dbSqlite "github.com/kailas-cloud/sonicweb/internal/db/sqlite"
	"github.com/kailas-cloud/sonicweb/internal/domain"
	domdoc "github.com/kailas-cloud/sonicweb/internal/domain/document"
	logpkg "github.com/kailas-cloud/sonicweb/internal/logger"
	"github.com/kailas-cloud/sonicweb/internal/metrics"
	"github.com/kailas-cloud/sonicweb/internal/repository/doccache"
	documentrepo "github.com/kailas-cloud/sonicweb/internal/repository/document"
	indexrepo "github.com/kailas-cloud/sonicweb/internal/repository/index"
	"github.com/kailas-cloud/sonicweb/internal/sonic"
	chiTransport "github.com/kailas-cloud/sonicweb/internal/transport/chi"
	controluc "github.com/kailas-cloud/sonicweb/internal/usecase/control"
	healthuc "github.com/kailas-cloud/sonicweb/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/sonicweb/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/sonicweb/internal/usecase/search"
	"github.com/kailas-cloud/sonicweb/internal/version"
)

// documents is what both use cases need from the document layer, cached or not.
type documents interface {
	ingestuc.Repository
	GetMany(ctx context.Context, ids []string) (map[string]domdoc.Document, error)
}

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

	logger.Info("Starting sonicweb server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("sonic_addr", fmt.Sprintf("%s:%d", cfg.Sonic.Host, cfg.Sonic.Port)),
	)

	ctx := context.Background()

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	readinessTimeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, readinessTimeout); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	if *cfg.Database.AutoMigrate {
		applied, err := store.Migrate(ctx)
		if err != nil {
			logger.Fatal("Migration failed", zap.Error(err))
		}
		logger.Info("Migrations applied", zap.Strings("files", applied))
	}

	// Register metrics explicitly (no init())
	metrics.RegisterSonicMetrics()

	var docRepo documents = documentrepo.New(store)

	// Pass nil interface (not typed nil pointer!) when the cache is disabled.
	var cachePinger healthuc.DBPinger
	if cfg.Cache.Enabled() {
		cache, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
			Timeout:  time.Duration(cfg.Cache.TimeoutMs) * time.Millisecond,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer cache.Close()

		// The cache is optional: start without it warm and let health report it.
		if err := cache.WaitForReady(ctx, readinessTimeout); err != nil {
			logger.Warn("Cache not ready, continuing", zap.Error(err))
		}

		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		docRepo = doccache.New(docRepo, cache, ttl, metrics.DocumentCacheTotal, logger)
		cachePinger = cache
		logger.Info("Document cache enabled", zap.Strings("addrs", cfg.Cache.Addrs), zap.Duration("ttl", ttl))
	}

	sonicClient, err := sonic.New(sonic.Config{
		Host:     cfg.Sonic.Host,
		Port:     cfg.Sonic.Port,
		Password: cfg.Sonic.Password,
		PoolSize: cfg.Sonic.PoolSize,
	})
	if err != nil {
		logger.Fatal("Failed to create sonic client", zap.Error(err))
	}
	defer sonicClient.Close()

	indexRepo := indexrepo.New(sonicClient, indexrepo.Config{
		Namespace: domain.Namespace{
			Collection: cfg.Sonic.Collection,
			Bucket:     cfg.Sonic.Bucket,
		},
		Lang:         cfg.Sonic.Lang,
		Timeout:      time.Duration(cfg.Sonic.TimeoutSec) * time.Second,
		QueryLimit:   cfg.Sonic.QueryLimit,
		SuggestLimit: cfg.Sonic.SuggestLimit,
	})
	logger.Info("Search index configured", zap.Stringer("namespace", indexRepo.Namespace()))

	// Create use case services
	ingestSvc := ingestuc.New(docRepo, indexRepo, logger).
		WithReindex(cfg.Reindex.BatchSize, cfg.Reindex.RatePerSec, cfg.Reindex.Concurrency)
	searchSvc := searchuc.New(docRepo, indexRepo, logger)
	controlSvc := controluc.New(indexRepo)
	healthSvc := healthuc.New(store, sonicClient, cachePinger).
		WithTimeout(time.Duration(cfg.Sonic.TimeoutSec) * time.Second)

	server := chiTransport.NewServer(ingestSvc, searchSvc, controlSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           cfg.CORS.MaxAgeSec,
	}))
	r.Use(chiMiddleware.Compress(5))
	r.Use(chiTransport.StripTrailingSlash)
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys, cfg.Auth.ReadOnlyKeys))
	r.Use(metrics.Middleware())
	server.Register(r)

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

// openStore creates the relational store for the configured driver.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case "postgres":
		s, err := dbPostgres.NewStore(ctx, dbPostgres.Config{
			DSN:      cfg.DSN,
			Schema:   cfg.Schema,
			MaxConns: cfg.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := dbSqlite.NewStore(dbSqlite.Config{
			Path:     cfg.Path,
			MaxConns: cfg.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
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

			// Canonical log line
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
