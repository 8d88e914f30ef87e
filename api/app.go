// Package api exposes the run ledger over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gomic/internal"
	"gomic/ports"
)

// App represents the HTTP application
type App struct {
	router *chi.Mux
	ledger ports.RunLedger
	logger *internal.Logger
}

// NewApp creates the HTTP application over a run ledger.
func NewApp(ledger ports.RunLedger) *App {
	app := &App{
		router: chi.NewRouter(),
		ledger: ledger,
		logger: internal.DefaultLogger,
	}
	app.setupMiddleware()
	app.setupRoutes()
	return app
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)
	a.router.Get("/api/runs", a.handleListRuns)
	a.router.Get("/api/runs/{id}", a.handleGetRun)
	a.router.Get("/report", a.handleReport)
}

// Router returns the configured handler.
func (a *App) Router() http.Handler {
	return a.router
}
