package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/paramkeep/paramkeep/internal/models"
)

// inProject resolves the project name in a read-only transaction and runs fn
// with its id.
func (s *CatalogStore) inProject(
	ctx context.Context, orgID, project string, fn func(ctx context.Context, tx pgx.Tx, projectID string) error,
) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, orgID)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only transaction.

	pid, err := projectID(ctx, tx, orgID, project)
	if err != nil {
		return err
	}

	return fn(ctx, tx, pid)
}

// ListParameters returns the parameters of a project by name.
func (s *CatalogStore) ListParameters(ctx context.Context, sess models.Session, project string) ([]models.Parameter, error) {
	var params []models.Parameter

	err := s.inProject(ctx, sess.OrgID, project, func(ctx context.Context, tx pgx.Tx, pid string) error {
		rows, err := tx.Query(ctx, `
			SELECT id, project_id, name, description, secret, created_at
			FROM parameters WHERE org_id = $1 AND project_id = $2 ORDER BY name LIMIT $3`,
			sess.OrgID, pid, maxListLimit)
		if err != nil {
			return fmt.Errorf("listing parameters: %w", err)
		}
		params, err = pgx.CollectRows(rows, pgx.RowToStructByPos[models.Parameter])
		return err
	})
	if err != nil {
		return nil, err
	}

	return params, nil
}

// CreateParameter inserts a parameter into a project.
func (s *CatalogStore) CreateParameter(
	ctx context.Context, sess models.Session, project string, req models.CreateParameterRequest,
) (*models.Parameter, error) {
	var p models.Parameter

	err := s.mutate(ctx, sess, func(ctx context.Context, tx pgx.Tx) (models.NewAuditEntry, error) {
		pid, err := projectID(ctx, tx, sess.OrgID, project)
		if err != nil {
			return models.NewAuditEntry{}, err
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO parameters (org_id, project_id, name, description, secret) VALUES ($1, $2, $3, $4, $5)
			RETURNING id, project_id, name, description, secret, created_at`,
			sess.OrgID, pid, req.Name, req.Description, req.Secret,
		).Scan(&p.ID, &p.ProjectID, &p.Name, &p.Description, &p.Secret, &p.CreatedAt)
		if err != nil {
			return models.NewAuditEntry{}, wrapWriteErr("creating parameter", err)
		}

		return models.NewAuditEntry{
			ObjectType:  models.ObjectParameter,
			ObjectID:    p.ID,
			ObjectName:  p.Name,
			Action:      models.ActionCreate,
			ProjectID:   pid,
			ParameterID: p.ID,
			Detail:      map[string]any{"project": project, "secret": p.Secret},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// DeleteParameter deletes a parameter and, by cascade, its values.
func (s *CatalogStore) DeleteParameter(ctx context.Context, sess models.Session, project, name string) error {
	return s.mutate(ctx, sess, func(ctx context.Context, tx pgx.Tx) (models.NewAuditEntry, error) {
		pid, err := projectID(ctx, tx, sess.OrgID, project)
		if err != nil {
			return models.NewAuditEntry{}, err
		}

		var id string
		err = tx.QueryRow(ctx,
			"DELETE FROM parameters WHERE org_id = $1 AND project_id = $2 AND name = $3 RETURNING id",
			sess.OrgID, pid, name,
		).Scan(&id)
		if err != nil {
			return models.NewAuditEntry{}, notFound(err, models.KindParameter, name)
		}

		return models.NewAuditEntry{
			ObjectType:  models.ObjectParameter,
			ObjectID:    id,
			ObjectName:  name,
			Action:      models.ActionDelete,
			ProjectID:   pid,
			ParameterID: id,
			Detail:      map[string]any{"project": project},
		}, nil
	})
}

// ListValues returns the values of a parameter in every environment.
func (s *CatalogStore) ListValues(ctx context.Context, sess models.Session, project, parameter string) ([]models.Value, error) {
	var values []models.Value

	err := s.inProject(ctx, sess.OrgID, project, func(ctx context.Context, tx pgx.Tx, pid string) error {
		paramID, err := parameterID(ctx, tx, sess.OrgID, pid, parameter)
		if err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
			SELECT id, parameter_id, environment_id, value, updated_at
			FROM parameter_values WHERE org_id = $1 AND parameter_id = $2 ORDER BY updated_at DESC`,
			sess.OrgID, paramID)
		if err != nil {
			return fmt.Errorf("listing values: %w", err)
		}
		values, err = pgx.CollectRows(rows, pgx.RowToStructByPos[models.Value])
		return err
	})
	if err != nil {
		return nil, err
	}

	return values, nil
}

// SetValue creates or replaces the value of a parameter in an environment. The
// audit entry records create or update accordingly; the value itself is never
// written to the audit log.
func (s *CatalogStore) SetValue(
	ctx context.Context, sess models.Session, project, parameter, env string, req models.SetValueRequest,
) (*models.Value, error) {
	var v models.Value

	err := s.mutate(ctx, sess, func(ctx context.Context, tx pgx.Tx) (models.NewAuditEntry, error) {
		ids, err := valueScope(ctx, tx, sess.OrgID, project, parameter, env)
		if err != nil {
			return models.NewAuditEntry{}, err
		}

		var inserted bool
		err = tx.QueryRow(ctx, `
			INSERT INTO parameter_values (org_id, parameter_id, environment_id, value) VALUES ($1, $2, $3, $4)
			ON CONFLICT (parameter_id, environment_id)
			DO UPDATE SET value = EXCLUDED.value, updated_at = now()
			RETURNING id, parameter_id, environment_id, value, updated_at, (xmax = 0)`,
			sess.OrgID, ids.parameter, ids.environment, req.Value,
		).Scan(&v.ID, &v.ParameterID, &v.EnvironmentID, &v.Value, &v.UpdatedAt, &inserted)
		if err != nil {
			return models.NewAuditEntry{}, wrapWriteErr("setting value", err)
		}

		action := models.ActionUpdate
		if inserted {
			action = models.ActionCreate
		}

		return ids.entry(v.ID, models.ValueName(parameter, env), action, project), nil
	})
	if err != nil {
		return nil, err
	}

	return &v, nil
}

// DeleteValue removes the value of a parameter in an environment.
func (s *CatalogStore) DeleteValue(ctx context.Context, sess models.Session, project, parameter, env string) error {
	return s.mutate(ctx, sess, func(ctx context.Context, tx pgx.Tx) (models.NewAuditEntry, error) {
		ids, err := valueScope(ctx, tx, sess.OrgID, project, parameter, env)
		if err != nil {
			return models.NewAuditEntry{}, err
		}

		var id string
		err = tx.QueryRow(ctx,
			"DELETE FROM parameter_values WHERE org_id = $1 AND parameter_id = $2 AND environment_id = $3 RETURNING id",
			sess.OrgID, ids.parameter, ids.environment,
		).Scan(&id)
		if err != nil {
			return models.NewAuditEntry{}, notFound(err, "Value", models.ValueName(parameter, env))
		}

		return ids.entry(id, models.ValueName(parameter, env), models.ActionDelete, project), nil
	})
}

type valueIDs struct {
	project, parameter, environment string
}

func (ids valueIDs) entry(id, name string, action models.Action, project string) models.NewAuditEntry {
	return models.NewAuditEntry{
		ObjectType:    models.ObjectValue,
		ObjectID:      id,
		ObjectName:    name,
		Action:        action,
		ProjectID:     ids.project,
		EnvironmentID: ids.environment,
		ParameterID:   ids.parameter,
		Detail:        map[string]any{"project": project},
	}
}

// valueScope resolves the project, parameter and environment a value lives in.
func valueScope(ctx context.Context, tx pgx.Tx, orgID, project, parameter, env string) (valueIDs, error) {
	var ids valueIDs
	var err error

	if ids.project, err = projectID(ctx, tx, orgID, project); err != nil {
		return ids, err
	}
	if ids.parameter, err = parameterID(ctx, tx, orgID, ids.project, parameter); err != nil {
		return ids, err
	}
	if ids.environment, err = environmentID(ctx, tx, orgID, env); err != nil {
		return ids, err
	}

	return ids, nil
}

// ListTemplates returns the templates of a project by name.
func (s *CatalogStore) ListTemplates(ctx context.Context, sess models.Session, project string) ([]models.Template, error) {
	var templates []models.Template

	err := s.inProject(ctx, sess.OrgID, project, func(ctx context.Context, tx pgx.Tx, pid string) error {
		rows, err := tx.Query(ctx, `
			SELECT id, project_id, name, body, created_at
			FROM templates WHERE org_id = $1 AND project_id = $2 ORDER BY name LIMIT $3`,
			sess.OrgID, pid, maxListLimit)
		if err != nil {
			return fmt.Errorf("listing templates: %w", err)
		}
		templates, err = pgx.CollectRows(rows, pgx.RowToStructByPos[models.Template])
		return err
	})
	if err != nil {
		return nil, err
	}

	return templates, nil
}

// CreateTemplate inserts a template into a project.
func (s *CatalogStore) CreateTemplate(
	ctx context.Context, sess models.Session, project string, req models.CreateTemplateRequest,
) (*models.Template, error) {
	var t models.Template

	err := s.mutate(ctx, sess, func(ctx context.Context, tx pgx.Tx) (models.NewAuditEntry, error) {
		pid, err := projectID(ctx, tx, sess.OrgID, project)
		if err != nil {
			return models.NewAuditEntry{}, err
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO templates (org_id, project_id, name, body) VALUES ($1, $2, $3, $4)
			RETURNING id, project_id, name, body, created_at`,
			sess.OrgID, pid, req.Name, req.Body,
		).Scan(&t.ID, &t.ProjectID, &t.Name, &t.Body, &t.CreatedAt)
		if err != nil {
			return models.NewAuditEntry{}, wrapWriteErr("creating template", err)
		}

		return models.NewAuditEntry{
			ObjectType: models.ObjectTemplate,
			ObjectID:   t.ID,
			ObjectName: t.Name,
			Action:     models.ActionCreate,
			ProjectID:  pid,
			Detail:     map[string]any{"project": project},
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// DeleteTemplate deletes a template.
func (s *CatalogStore) DeleteTemplate(ctx context.Context, sess models.Session, project, name string) error {
	return s.mutate(ctx, sess, func(ctx context.Context, tx pgx.Tx) (models.NewAuditEntry, error) {
		pid, err := projectID(ctx, tx, sess.OrgID, project)
		if err != nil {
			return models.NewAuditEntry{}, err
		}

		var id string
		err = tx.QueryRow(ctx,
			"DELETE FROM templates WHERE org_id = $1 AND project_id = $2 AND name = $3 RETURNING id",
			sess.OrgID, pid, name,
		).Scan(&id)
		if err != nil {
			return models.NewAuditEntry{}, notFound(err, "Template", name)
		}

		return models.NewAuditEntry{
			ObjectType: models.ObjectTemplate,
			ObjectID:   id,
			ObjectName: name,
			Action:     models.ActionDelete,
			ProjectID:  pid,
			Detail:     map[string]any{"project": project},
		}, nil
	})
}
