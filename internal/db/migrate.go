// Package db holds schema migrations and the LISTEN/NOTIFY bridge.
//
// Migrations are goose-annotated SQL files embedded from internal/db/migrations.
// The server applies pending migrations on startup; `paramkeep-server migrate`
// applies them or reports their status without serving.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/dbpool"
)

// MigrationState describes one migration file and whether it has been applied.
type MigrationState struct {
	Version int64
	Path    string
	Applied bool
}

// withProvider opens a database/sql handle on the pool's connection string,
// since goose requires one, and runs fn with a provider over fsys.
func withProvider(pool *dbpool.Pool, fsys fs.FS, fn func(*goose.Provider) error) error {
	sqlDB, err := sql.Open("pgx", pool.ConnString())
	if err != nil {
		return fmt.Errorf("opening sql.DB for migrations: %w", err)
	}
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("creating goose provider: %w", err)
	}

	return fn(provider)
}

// RunMigrations applies all pending migrations from the provided filesystem.
func RunMigrations(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger, fsys fs.FS) error {
	return withProvider(pool, fsys, func(provider *goose.Provider) error {
		results, err := provider.Up(ctx)
		if err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}

		for _, r := range results {
			if r.Error != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
			}

			log.WithFields(logrus.Fields{
				"version":  r.Source.Version,
				"file":     r.Source.Path,
				"duration": r.Duration,
			}).Info("migration applied")
		}

		if len(results) == 0 {
			log.Debug("all migrations already applied")
		}

		return nil
	})
}

// MigrationStatus lists every known migration with its applied state.
func MigrationStatus(ctx context.Context, pool *dbpool.Pool, fsys fs.FS) ([]MigrationState, error) {
	var out []MigrationState

	err := withProvider(pool, fsys, func(provider *goose.Provider) error {
		statuses, err := provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("reading migration status: %w", err)
		}

		for _, s := range statuses {
			out = append(out, MigrationState{
				Version: s.Source.Version,
				Path:    s.Source.Path,
				Applied: s.State == goose.StateApplied,
			})
		}

		return nil
	})

	return out, err
}

// AppliedVersion returns the highest applied migration version.
func AppliedVersion(ctx context.Context, pool *dbpool.Pool, fsys fs.FS) (int64, error) {
	var version int64

	err := withProvider(pool, fsys, func(provider *goose.Provider) error {
		v, err := provider.GetDBVersion(ctx)
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
		version = v
		return nil
	})

	return version, err
}
