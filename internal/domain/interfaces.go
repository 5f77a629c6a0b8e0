// Package domain defines the canonical service interfaces shared across API
// layers (REST handlers, WebSocket stream, server commands). Consumers should
// depend on these interfaces rather than re-declaring equivalent ones.
package domain

import (
	"context"

	"github.com/paramkeep/paramkeep/internal/models"
)

// AuditService answers audit log queries.
type AuditService interface {
	Query(ctx context.Context, sess models.Session, filter models.AuditFilter) (*models.AuditResult, error)
	Get(ctx context.Context, sess models.Session, id int64) (*models.AuditEntry, error)
	Summary(ctx context.Context, sess models.Session) (*models.AuditSummary, error)
}

// AuditIngester accepts entries submitted by audited subsystems.
type AuditIngester interface {
	Submit(ctx context.Context, sess models.Session, entries []models.NewAuditEntry) ([]string, error)
}

// AuditPruner enforces the retention policy.
type AuditPruner interface {
	Policy() models.RetentionPolicy
	PruneOrg(ctx context.Context, orgID string, policy models.RetentionPolicy) (*models.PruneResult, error)
}

// EnvironmentService manages environments.
type EnvironmentService interface {
	ListEnvironments(ctx context.Context, sess models.Session) ([]models.Environment, error)
	CreateEnvironment(ctx context.Context, sess models.Session, req models.CreateNamedRequest) (*models.Environment, error)
	DeleteEnvironment(ctx context.Context, sess models.Session, name string) error
}

// ProjectService manages projects.
type ProjectService interface {
	ListProjects(ctx context.Context, sess models.Session) ([]models.Project, error)
	CreateProject(ctx context.Context, sess models.Session, req models.CreateNamedRequest) (*models.Project, error)
	DeleteProject(ctx context.Context, sess models.Session, name string) error
}

// ParameterService manages parameters and their values.
type ParameterService interface {
	ListParameters(ctx context.Context, sess models.Session, project string) ([]models.Parameter, error)
	CreateParameter(ctx context.Context, sess models.Session, project string, req models.CreateParameterRequest) (*models.Parameter, error)
	DeleteParameter(ctx context.Context, sess models.Session, project, name string) error
	ListValues(ctx context.Context, sess models.Session, project, parameter string) ([]models.Value, error)
	SetValue(ctx context.Context, sess models.Session, project, parameter, env string, req models.SetValueRequest) (*models.Value, error)
	DeleteValue(ctx context.Context, sess models.Session, project, parameter, env string) error
}

// TemplateService manages templates.
type TemplateService interface {
	ListTemplates(ctx context.Context, sess models.Session, project string) ([]models.Template, error)
	CreateTemplate(ctx context.Context, sess models.Session, project string, req models.CreateTemplateRequest) (*models.Template, error)
	DeleteTemplate(ctx context.Context, sess models.Session, project, name string) error
}

// UserService manages users and service accounts.
type UserService interface {
	ListUsers(ctx context.Context, sess models.Session) ([]models.User, error)
	CreateUser(ctx context.Context, sess models.Session, req models.CreateUserRequest) (*models.CreatedUser, error)
	DeleteUser(ctx context.Context, sess models.Session, name string) error
}

// CatalogService is the full audited catalog.
type CatalogService interface {
	EnvironmentService
	ProjectService
	ParameterService
	TemplateService
	UserService
}
