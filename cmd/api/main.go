package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"gomic/adapters/memory"
	"gomic/adapters/postgres"
	"gomic/adapters/postgres/migrations"
	"gomic/api"
	"gomic/internal"
	"gomic/internal/config"
	"gomic/ports"
)

func main() {
	godotenv.Load()
	logger := internal.DefaultLogger

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ledger ports.RunLedger
	if cfg.Database.Enabled() {
		db, err := postgres.Connect(cfg.Database.URL)
		if err != nil {
			logger.Error("connect database: %v", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := migrations.Up(ctx, db.DB); err != nil {
			logger.Error("migrate: %v", err)
			os.Exit(1)
		}
		ledger = postgres.NewRunRepository(db)
		logger.Info("Using PostgreSQL run ledger")
	} else {
		ledger = memory.NewRunLedger()
		logger.Warn("DATABASE_URL not set, runs are kept in memory only")
	}

	app := api.NewApp(ledger)
	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: app.Router(),
	}

	go func() {
		logger.Info("API listening on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown: %v", err)
	}
}
