// Package store provides focused, single-concern data access stores
// for paramkeep.
//
// Each store owns one domain (audit log, catalog, organizations) and embeds
// shared helpers (Pool, logger) via the Base struct. Stores never import each
// other; shared logic lives in this file.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/dbpool"
	"github.com/paramkeep/paramkeep/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// setOrg sets the organization context for RLS policies within a transaction.
func setOrg(ctx context.Context, tx pgx.Tx, orgID string) error {
	if _, err := uuid.Parse(orgID); err != nil {
		return fmt.Errorf("invalid org ID format: %w", err)
	}

	_, err := tx.Exec(ctx, "SELECT set_config('app.org_id', $1, true)", orgID)
	if err != nil {
		return fmt.Errorf("setting org context: %w", err)
	}

	return nil
}

// beginTx starts a read-write transaction and sets the org context.
func (b *Base) beginTx(ctx context.Context, orgID string) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	if err := setOrg(ctx, tx, orgID); err != nil {
		tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on setup failure.

		return nil, err
	}

	return tx, nil
}

// beginReadTx starts a read-only transaction and sets the org context.
func (b *Base) beginReadTx(ctx context.Context, orgID string) (pgx.Tx, error) {
	tx, err := b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}

	if err := setOrg(ctx, tx, orgID); err != nil {
		tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on setup failure.

		return nil, err
	}

	return tx, nil
}

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// isRejectedValue reports whether err is a data exception (class 22) or an
// integrity violation (class 23) other than a unique violation. Neither goes
// away on retry.
func isRejectedValue(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || len(pgErr.Code) != 5 || pgErr.Code == pgUniqueViolation {
		return false
	}
	class := pgErr.Code[:2]
	return class == "22" || class == "23"
}

// wrapWriteErr maps unique violations to models.ErrDuplicateKey.
func wrapWriteErr(what string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", what, models.ErrDuplicateKey)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// nullable turns an empty string into SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// deref returns the string a nullable column scanned into, or "".
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
