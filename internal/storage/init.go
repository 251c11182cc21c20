// internal/storage/init.go
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationPath = "migrations"

// Migration commands accepted by Migrate.
const (
	MigrateUp     = "up"
	MigrateDown   = "down"
	MigrateStatus = "status"
)

func newMigrationProvider(db *sql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(embedMigrations, migrationPath)
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectPostgres, db, fsys)
}

// Migrate runs a goose command against db using the embedded migrations.
func Migrate(ctx context.Context, db *sql.DB, command string, log *zap.Logger) error {
	const op = "storage.Migrate"

	provider, err := newMigrationProvider(db)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch command {
	case MigrateUp:
		results, err := provider.Up(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		for _, r := range results {
			log.Info("migration applied",
				zap.String("source", r.Source.Path),
				zap.Duration("duration", r.Duration))
		}
		if len(results) == 0 {
			log.Info("no migrations to apply")
		}
	case MigrateDown:
		r, err := provider.Down(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		log.Info("migration rolled back", zap.String("source", r.Source.Path))
	case MigrateStatus:
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		for _, s := range statuses {
			log.Info("migration status",
				zap.Int64("version", s.Source.Version),
				zap.String("source", s.Source.Path),
				zap.String("state", string(s.State)),
				zap.Time("applied_at", s.AppliedAt))
		}
	default:
		return fmt.Errorf("%s: unknown command %q", op, command)
	}
	return nil
}
