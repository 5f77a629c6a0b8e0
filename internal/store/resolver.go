package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/paramkeep/paramkeep/internal/models"
)

// ResolverStore maps catalog names to ids for audit filters. Missing names
// fail with a *models.NotFoundError.
type ResolverStore struct {
	Base
}

// NewResolverStore creates a ResolverStore.
func NewResolverStore(base Base) *ResolverStore {
	return &ResolverStore{Base: base}
}

func (s *ResolverStore) resolve(
	ctx context.Context, orgID, what string, fn func(ctx context.Context, tx pgx.Tx) (string, error),
) (string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, orgID)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", what, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only transaction.

	return fn(ctx, tx)
}

// EnvironmentID resolves an environment name.
func (s *ResolverStore) EnvironmentID(ctx context.Context, orgID, name string) (string, error) {
	return s.resolve(ctx, orgID, "environment", func(ctx context.Context, tx pgx.Tx) (string, error) {
		return environmentID(ctx, tx, orgID, name)
	})
}

// ProjectID resolves a project name.
func (s *ResolverStore) ProjectID(ctx context.Context, orgID, name string) (string, error) {
	return s.resolve(ctx, orgID, "project", func(ctx context.Context, tx pgx.Tx) (string, error) {
		return projectID(ctx, tx, orgID, name)
	})
}

// ParameterID resolves a parameter name within a project.
func (s *ResolverStore) ParameterID(ctx context.Context, orgID, projectID, name string) (string, error) {
	return s.resolve(ctx, orgID, "parameter", func(ctx context.Context, tx pgx.Tx) (string, error) {
		return parameterID(ctx, tx, orgID, projectID, name)
	})
}

// UserID resolves a user name. Users are not row-level secured; the org
// filter is explicit.
func (s *ResolverStore) UserID(ctx context.Context, orgID, name string) (string, error) {
	return s.resolve(ctx, orgID, "user", func(ctx context.Context, tx pgx.Tx) (string, error) {
		return lookupID(ctx, tx, "SELECT id FROM users WHERE org_id = $1 AND name = $2",
			models.KindUser, name, orgID, name)
	})
}
