package main

// Apply the accounts, personnel and calls schema:
//   DATABASE_URL=postgres://... go run ./cmd/migrate

import (
	"context"
	"os"

	"callcenter-backend/internal/shared/config"
	"callcenter-backend/internal/shared/storage/db"
	"callcenter-backend/internal/shared/telemetry"
)

func run(ctx context.Context, cfg config.Config) (int64, error) {
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.DefaultOptions(db.ProfileMigrate).WithEnv())
	if err != nil {
		return 0, err
	}
	defer sqlDB.Close()
	return db.RunMigrations(ctx, sqlDB)
}

func main() {
	defer telemetry.Sync()

	version, err := run(context.Background(), config.Load())
	if err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err.Error()})
		telemetry.Sync()
		os.Exit(1)
	}
	telemetry.Info("migrate.completed", map[string]any{"version": version})
}
