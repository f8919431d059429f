package main

// HTTP API for the dashboard, callctl and ingest producers:
//   DATABASE_URL=postgres://... JWT_SECRET=... go run ./cmd/api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callcenter-backend/internal/bootstrap"
	"callcenter-backend/internal/shared/config"
	"callcenter-backend/internal/shared/scheduler"
	"callcenter-backend/internal/shared/server"
	"callcenter-backend/internal/shared/telemetry"
)

const shutdownTimeout = 15 * time.Second

func run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	app, err := bootstrap.Build(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	jobs := scheduler.New(time.UTC, time.Minute)
	if _, err := jobs.Add(cfg.SessionPurgeCron, "sessions.purge", app.AuthService.PurgeExpired); err != nil {
		return fmt.Errorf("schedule session purge: %w", err)
	}
	jobs.Start()
	defer jobs.Stop()

	srv := &http.Server{
		Addr:              server.Addr(cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		telemetry.Info("api.started", map[string]any{"addr": srv.Addr, "env": cfg.Env})
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	telemetry.Info("api.shutdown", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config.Load()); err != nil {
		telemetry.Error("api.failed", map[string]any{"error": err.Error()})
		telemetry.Sync()
		os.Exit(1)
	}
}
