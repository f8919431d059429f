package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"callcenter-backend/internal/shared/telemetry"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

var gooseOnce sync.Once

func setupGoose() error {
	var err error
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrationFiles)
		err = goose.SetDialect("postgres")
	})
	return err
}

// RunMigrations applies the embedded migrations for accounts, personnel and
// calls and returns the resulting schema version. A nil database is a no-op.
func RunMigrations(ctx context.Context, database *sql.DB) (int64, error) {
	if database == nil {
		return 0, nil
	}
	if err := setupGoose(); err != nil {
		return 0, err
	}
	before, err := goose.GetDBVersionContext(ctx, database)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if err := goose.UpContext(ctx, database, "migrations"); err != nil {
		return before, fmt.Errorf("apply migrations: %w", err)
	}
	after, err := goose.GetDBVersionContext(ctx, database)
	if err != nil {
		return before, fmt.Errorf("read schema version: %w", err)
	}
	telemetry.Info("db.migrations.applied", map[string]any{
		"from_version": before,
		"to_version":   after,
	})
	return after, nil
}
