package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/diewo77/go-contracts/internal/config"
	"github.com/diewo77/go-contracts/internal/handlers"
	"github.com/diewo77/go-contracts/internal/httpx"
	"github.com/diewo77/go-contracts/internal/metrics"
	"github.com/diewo77/go-contracts/internal/models"
	"github.com/diewo77/go-contracts/internal/numbering"
	"github.com/diewo77/go-contracts/internal/services"
	"github.com/diewo77/go-contracts/internal/signing/provider"
	"github.com/diewo77/go-contracts/internal/tenant"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux      *http.ServeMux
	db       *gorm.DB
	sessions *tenant.Sessions
	metrics  *metrics.Metrics
}

// NewApp wires services and handlers onto a fresh mux.
func NewApp(db *gorm.DB, cfg *config.Config, signer provider.Provider, m *metrics.Metrics, logger *slog.Logger) *App {
	app := &App{
		mux:     http.NewServeMux(),
		db:      db,
		metrics: m,
	}
	app.sessions = tenant.NewSessions(cfg.App.SessionSecret, app.companyExists)

	alloc := numbering.New(db,
		numbering.WithMaxAttempts(cfg.Numbering.MaxAttempts),
		numbering.WithBackoff(cfg.Numbering.Backoff),
		numbering.WithLogger(logger),
		numbering.WithMetrics(m),
	)
	docs := services.NewDocumentService(db, alloc, logger, m)
	signing := services.NewSigningService(db, signer, cfg.Signing.WebhookSecret, logger, m)

	protect := func(next http.Handler) http.Handler { return app.sessions.RequireCompany(next) }
	handlers.NewDocumentHandler(docs, signing, logger).Register(app.mux, protect)
	handlers.NewCompanyHandler(services.NewCompanyService(db, logger), logger).Register(app.mux, protect)
	handlers.NewCostItemHandler(services.NewCostItemService(db, logger), logger).Register(app.mux, protect)
	handlers.NewWebhookHandler(signing, logger).Register(app.mux)

	app.mux.HandleFunc("GET /health", app.health)
	app.mux.HandleFunc("GET /healthz", app.health)
	app.mux.Handle("GET /metrics", m.Handler())
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.sessions.Middleware(a.mux).ServeHTTP(w, r)
}

func (a *App) companyExists(ctx context.Context, id uint) bool {
	var count int64
	a.db.WithContext(ctx).Model(&models.Company{}).Where("id = ?", id).Count(&count)
	return count > 0
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	if err := a.db.WithContext(r.Context()).Exec("SELECT 1").Error; err != nil {
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
