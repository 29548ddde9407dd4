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

	"github.com/framery/outliner/internal/config"
	dbRedis "github.com/framery/outliner/internal/db/redis"
	"github.com/framery/outliner/internal/domain/jobkind"
	"github.com/framery/outliner/internal/domain/profile"
	logpkg "github.com/framery/outliner/internal/logger"
	"github.com/framery/outliner/internal/metrics"
	"github.com/framery/outliner/internal/repository/outlinecache"
	chiTransport "github.com/framery/outliner/internal/transport/chi"
	tracerTransport "github.com/framery/outliner/internal/transport/tracer"
	convertuc "github.com/framery/outliner/internal/usecase/convert"
	decomposeuc "github.com/framery/outliner/internal/usecase/decompose"
	healthuc "github.com/framery/outliner/internal/usecase/health"
	normalizeuc "github.com/framery/outliner/internal/usecase/normalize"
	textrasteruc "github.com/framery/outliner/internal/usecase/textraster"
	"github.com/framery/outliner/internal/version"
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

	logger.Info("Starting outliner API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("tracer_url", cfg.Tracer.BaseURL),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	ctx := context.Background()

	// Optional outline cache store
	var store *dbRedis.Store
	if cfg.Cache.Enabled {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Username: cfg.Cache.Username,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		readiness := time.Duration(cfg.Cache.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, readiness); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		logger.Info("Connected to cache store")
	}

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	// Conversion profiles with config-level overrides
	profiles := profile.NewRegistry(profileOverrides(cfg.Profiles))

	// Font registry: built-in faces plus config-declared files
	extraFonts, err := loadFonts(cfg.Fonts)
	if err != nil {
		logger.Fatal("Failed to load fonts", zap.Error(err))
	}
	fonts, err := textrasteruc.NewRegistry(extraFonts)
	if err != nil {
		logger.Fatal("Failed to build font registry", zap.Error(err))
	}
	logger.Info("Fonts loaded", zap.Strings("keys", fonts.Keys()))

	// Tracing engine client
	tracer := tracerTransport.NewClient(&tracerTransport.Config{
		BaseURL: cfg.Tracer.BaseURL,
		Timeout: time.Duration(cfg.Tracer.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	// Use case services
	convertSvc := convertuc.New(
		normalizeuc.New(),
		textrasteruc.New(fonts),
		tracer,
		decomposeuc.New(),
		profiles,
	).WithLimits(
		cfg.Limits.RecordCap,
		cfg.Limits.MaxBatchSize,
		cfg.Limits.MaxInputBytes,
		time.Duration(cfg.Limits.ItemTimeoutSec)*time.Second,
	)

	// Cached single conversions when the store is up
	var images chiTransport.ImageConverter = convertSvc
	if store != nil {
		images = outlinecache.New(
			convertSvc, store, profiles,
			time.Duration(cfg.Cache.TTLSec)*time.Second,
			metrics.OutlineCacheTotal, logger,
		)
	}

	// Health service.
	// Pass nil interface (not typed nil pointer!) if the cache is disabled.
	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(tracer, cachePinger)

	maxBody := int64(cfg.Limits.MaxInputBytes)
	if maxBody <= 0 {
		maxBody = convertuc.DefaultMaxInputBytes
	}

	server := chiTransport.NewServer(images, convertSvc, convertSvc, healthSvc, maxBody, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
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

// profileOverrides converts config overrides to domain overrides.
func profileOverrides(in map[string]config.ProfileOverride) map[jobkind.Kind]profile.Override {
	if len(in) == 0 {
		return nil
	}
	out := make(map[jobkind.Kind]profile.Override, len(in))
	for kind, o := range in {
		out[jobkind.Kind(kind)] = profile.Override{
			MinContourArea: o.MinContourArea,
			Threshold:      o.Threshold,
		}
	}
	return out
}

// loadFonts reads config-declared font files into memory.
func loadFonts(paths map[string]string) (map[string][]byte, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	fonts := make(map[string][]byte, len(paths))
	for key, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("font %q: %w", key, err)
		}
		fonts[key] = data
	}
	return fonts, nil
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

			// Canonical log line, one per request
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
