package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/paramkeep/paramkeep/internal/domain"
	"github.com/paramkeep/paramkeep/internal/models"
)

// CatalogStore handles environments, projects, parameters, values, templates
// and users. Every mutation appends its audit entry in the same transaction.
type CatalogStore struct {
	Base
}

// Compile-time check: *CatalogStore must satisfy domain.CatalogService.
var _ domain.CatalogService = (*CatalogStore)(nil)

// NewCatalogStore creates a CatalogStore.
func NewCatalogStore(base Base) *CatalogStore {
	return &CatalogStore{Base: base}
}

// mutate runs fn in an org-scoped transaction and appends the audit entry it
// returns before committing.
func (s *CatalogStore) mutate(
	ctx context.Context, sess models.Session, fn func(ctx context.Context, tx pgx.Tx) (models.NewAuditEntry, error),
) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, sess.OrgID)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	entry, err := fn(ctx, tx)
	if err != nil {
		return err
	}

	if err := appendAudit(ctx, tx, sess, entry); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	return nil
}

// list runs a read-only org-scoped query and collects rows into T by position.
func list[T any](ctx context.Context, b *Base, orgID, query string, args ...any) ([]T, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := b.beginReadTx(ctx, orgID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only transaction.

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowToStructByPos[T])
}

// notFound maps pgx.ErrNoRows to a NotFoundError for the given kind and name.
func notFound(err error, kind, name string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.NotFoundError{Kind: kind, Name: name}
	}
	return err
}

// lookupID resolves a name to an id inside a transaction.
func lookupID(ctx context.Context, tx pgx.Tx, query, kind, name string, args ...any) (string, error) {
	var id string
	if err := tx.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return "", notFound(err, kind, name)
	}
	return id, nil
}

func projectID(ctx context.Context, tx pgx.Tx, orgID, name string) (string, error) {
	return lookupID(ctx, tx, "SELECT id FROM projects WHERE org_id = $1 AND name = $2",
		models.KindProject, name, orgID, name)
}

func environmentID(ctx context.Context, tx pgx.Tx, orgID, name string) (string, error) {
	return lookupID(ctx, tx, "SELECT id FROM environments WHERE org_id = $1 AND name = $2",
		models.KindEnvironment, name, orgID, name)
}

func parameterID(ctx context.Context, tx pgx.Tx, orgID, projectID, name string) (string, error) {
	return lookupID(ctx, tx, "SELECT id FROM parameters WHERE org_id = $1 AND project_id = $2 AND name = $3",
		models.KindParameter, name, orgID, projectID, name)
}

// ListEnvironments returns the organization's environments by name.
func (s *CatalogStore) ListEnvironments(ctx context.Context, sess models.Session) ([]models.Environment, error) {
	envs, err := list[models.Environment](ctx, &s.Base, sess.OrgID,
		"SELECT id, name, description, created_at FROM environments WHERE org_id = $1 ORDER BY name LIMIT $2",
		sess.OrgID, maxListLimit)
	if err != nil {
		return nil, fmt.Errorf("listing environments: %w", err)
	}
	return envs, nil
}

// CreateEnvironment inserts an environment.
func (s *CatalogStore) CreateEnvironment(
	ctx context.Context, sess models.Session, req models.CreateNamedRequest,
) (*models.Environment, error) {
	var env models.Environment

	err := s.mutate(ctx, sess, func(ctx context.Context, tx pgx.Tx) (models.NewAuditEntry, error) {
		err := tx.QueryRow(ctx, `
			INSERT INTO environments (org_id, name, description) VALUES ($1, $2, $3)
			RETURNING id, name, description, created_at`,
			sess.OrgID, req.Name, req.Description,
		).Scan(&env.ID, &env.Name, &env.Description, &env.CreatedAt)
		if err != nil {
			return models.NewAuditEntry{}, wrapWriteErr("creating environment", err)
		}

		return models.NewAuditEntry{
			ObjectType:    models.ObjectEnvironment,
			ObjectID:      env.ID,
			ObjectName:    env.Name,
			Action:        models.ActionCreate,
			EnvironmentID: env.ID,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &env, nil
}

// DeleteEnvironment deletes an environment and, by cascade, its values.
func (s *CatalogStore) DeleteEnvironment(ctx context.Context, sess models.Session, name string) error {
	return s.mutate(ctx, sess, func(ctx context.Context, tx pgx.Tx) (models.NewAuditEntry, error) {
		var id string
		err := tx.QueryRow(ctx,
			"DELETE FROM environments WHERE org_id = $1 AND name = $2 RETURNING id",
			sess.OrgID, name,
		).Scan(&id)
		if err != nil {
			return models.NewAuditEntry{}, notFound(err, models.KindEnvironment, name)
		}

		return models.NewAuditEntry{
			ObjectType:    models.ObjectEnvironment,
			ObjectID:      id,
			ObjectName:    name,
			Action:        models.ActionDelete,
			EnvironmentID: id,
		}, nil
	})
}

// ListProjects returns the organization's projects by name.
func (s *CatalogStore) ListProjects(ctx context.Context, sess models.Session) ([]models.Project, error) {
	projects, err := list[models.Project](ctx, &s.Base, sess.OrgID,
		"SELECT id, name, description, created_at FROM projects WHERE org_id = $1 ORDER BY name LIMIT $2",
		sess.OrgID, maxListLimit)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

// CreateProject inserts a project.
func (s *CatalogStore) CreateProject(
	ctx context.Context, sess models.Session, req models.CreateNamedRequest,
) (*models.Project, error) {
	var p models.Project

	err := s.mutate(ctx, sess, func(ctx context.Context, tx pgx.Tx) (models.NewAuditEntry, error) {
		err := tx.QueryRow(ctx, `
			INSERT INTO projects (org_id, name, description) VALUES ($1, $2, $3)
			RETURNING id, name, description, created_at`,
			sess.OrgID, req.Name, req.Description,
		).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
		if err != nil {
			return models.NewAuditEntry{}, wrapWriteErr("creating project", err)
		}

		return models.NewAuditEntry{
			ObjectType: models.ObjectProject,
			ObjectID:   p.ID,
			ObjectName: p.Name,
			Action:     models.ActionCreate,
			ProjectID:  p.ID,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// DeleteProject deletes a project and, by cascade, its parameters and templates.
func (s *CatalogStore) DeleteProject(ctx context.Context, sess models.Session, name string) error {
	return s.mutate(ctx, sess, func(ctx context.Context, tx pgx.Tx) (models.NewAuditEntry, error) {
		var id string
		err := tx.QueryRow(ctx,
			"DELETE FROM projects WHERE org_id = $1 AND name = $2 RETURNING id",
			sess.OrgID, name,
		).Scan(&id)
		if err != nil {
			return models.NewAuditEntry{}, notFound(err, models.KindProject, name)
		}

		return models.NewAuditEntry{
			ObjectType: models.ObjectProject,
			ObjectID:   id,
			ObjectName: name,
			Action:     models.ActionDelete,
			ProjectID:  id,
		}, nil
	})
}
