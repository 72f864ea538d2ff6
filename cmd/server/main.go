package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/go-contracts/internal/config"
	"github.com/diewo77/go-contracts/internal/db"
	"github.com/diewo77/go-contracts/internal/metrics"
	"github.com/diewo77/go-contracts/internal/signing/provider"
	"github.com/joho/godotenv"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	logger := newLogger(cfg.App.Dev)
	slog.SetDefault(logger)

	dbConn, err := db.Connect(cfg.Database, logger)
	if err != nil {
		fatal(logger, "failed to connect to database", err)
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn, cfg.Database, cfg.App.Migrations); err != nil {
			fatal(logger, "migration failed", err)
		}
		logger.Info("migrations completed")
		return
	}
	if err := db.Migrate(dbConn, cfg.Database, cfg.App.Migrations); err != nil {
		fatal(logger, "migration failed", err)
	}

	m := metrics.New()

	tokens, closeTokens := tokenCache(cfg.Redis, logger)
	defer closeTokens()

	signer, err := newProvider(cfg.Signing, tokens, logger, m)
	if err != nil {
		fatal(logger, "signing provider", err)
	}

	app := NewApp(dbConn, cfg, signer, m, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      withLogging(logger, app),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port, "dev", cfg.App.Dev, "provider", signer.Kind())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(logger, "server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
	logger.Info("server stopped gracefully")
}

func newLogger(dev bool) *slog.Logger {
	if dev {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

// tokenCache shares OAuth tokens through Redis when REDIS_URL is set.
func tokenCache(cfg config.RedisConfig, logger *slog.Logger) (provider.TokenCache, func()) {
	if cfg.URL == "" {
		return provider.NewMemoryTokenCache(), func() {}
	}
	rc, err := provider.NewRedisTokenCache(cfg.URL, logger)
	if err != nil {
		logger.Warn("redis unavailable, caching tokens in memory", "error", err)
		return provider.NewMemoryTokenCache(), func() {}
	}
	return rc, func() { _ = rc.Close() }
}

func newProvider(cfg config.SigningConfig, tokens provider.TokenCache, logger *slog.Logger, m *metrics.Metrics) (provider.Provider, error) {
	kind, err := provider.ParseKind(cfg.Provider)
	if err != nil {
		return nil, err
	}
	return provider.New(provider.Config{
		Kind:         kind,
		BaseURL:      cfg.BaseURL,
		TokenURL:     cfg.AuthURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AccountID:    cfg.AccountID,
		Topology:     provider.Topology(cfg.Topology),
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		Backoff:      cfg.Backoff,
	}, tokens, logger, m)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging adds request logging middleware.
func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
