// Package service provides business logic between API handlers and data stores.
package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/domain"
	"github.com/paramkeep/paramkeep/internal/models"
)

// CatalogStore is the data-access interface CatalogService depends on. Every
// mutation appends its audit entry in the same transaction, so the method set
// matches domain.CatalogService exactly.
type CatalogStore = domain.CatalogService

// Compile-time check: *CatalogService must satisfy domain.CatalogService.
var _ domain.CatalogService = (*CatalogService)(nil)

// OrgInvalidator drops cached data of an organization.
type OrgInvalidator interface {
	InvalidateOrg(orgID string)
}

// OrgInvalidators fans InvalidateOrg out to several caches.
type OrgInvalidators []OrgInvalidator

// InvalidateOrg invalidates orgID in every cache.
func (m OrgInvalidators) InvalidateOrg(orgID string) {
	for _, c := range m {
		c.InvalidateOrg(orgID)
	}
}

// CatalogService wraps CatalogStore with request validation and keeps the
// name-resolution cache consistent with deletes. List operations are promoted
// from the store unchanged.
type CatalogService struct {
	CatalogStore
	cache OrgInvalidator
	log   *logrus.Logger
}

// NewCatalogService creates a CatalogService. cache may be nil.
func NewCatalogService(store CatalogStore, cache OrgInvalidator, log *logrus.Logger) *CatalogService {
	return &CatalogService{CatalogStore: store, cache: cache, log: log}
}

// invalidate runs after a committed delete. The notification bridge does the
// same on every other instance.
func (s *CatalogService) invalidate(sess models.Session, kind, name string) {
	if s.cache != nil {
		s.cache.InvalidateOrg(sess.OrgID)
	}
	s.log.WithFields(logrus.Fields{
		"org_id": sess.OrgID,
		"user":   sess.UserName,
		"kind":   kind,
		"name":   name,
	}).Info("catalog object deleted")
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", models.ErrInvalidInput, err)
}

// CreateEnvironment validates and creates an environment.
func (s *CatalogService) CreateEnvironment(
	ctx context.Context, sess models.Session, req models.CreateNamedRequest,
) (*models.Environment, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid(err)
	}
	return s.CatalogStore.CreateEnvironment(ctx, sess, req)
}

// DeleteEnvironment deletes an environment and every value set in it.
func (s *CatalogService) DeleteEnvironment(ctx context.Context, sess models.Session, name string) error {
	if err := s.CatalogStore.DeleteEnvironment(ctx, sess, name); err != nil {
		return err
	}
	s.invalidate(sess, models.KindEnvironment, name)
	return nil
}

// CreateProject validates and creates a project.
func (s *CatalogService) CreateProject(
	ctx context.Context, sess models.Session, req models.CreateNamedRequest,
) (*models.Project, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid(err)
	}
	return s.CatalogStore.CreateProject(ctx, sess, req)
}

// DeleteProject deletes a project with its parameters and templates.
func (s *CatalogService) DeleteProject(ctx context.Context, sess models.Session, name string) error {
	if err := s.CatalogStore.DeleteProject(ctx, sess, name); err != nil {
		return err
	}
	s.invalidate(sess, models.KindProject, name)
	return nil
}

// CreateParameter validates and creates a parameter in a project.
func (s *CatalogService) CreateParameter(
	ctx context.Context, sess models.Session, project string, req models.CreateParameterRequest,
) (*models.Parameter, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid(err)
	}
	return s.CatalogStore.CreateParameter(ctx, sess, project, req)
}

// DeleteParameter deletes a parameter and its values.
func (s *CatalogService) DeleteParameter(ctx context.Context, sess models.Session, project, name string) error {
	if err := s.CatalogStore.DeleteParameter(ctx, sess, project, name); err != nil {
		return err
	}
	s.invalidate(sess, models.KindParameter, name)
	return nil
}

// SetValue validates and sets a parameter value in an environment.
func (s *CatalogService) SetValue(
	ctx context.Context, sess models.Session, project, parameter, env string, req models.SetValueRequest,
) (*models.Value, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid(err)
	}
	return s.CatalogStore.SetValue(ctx, sess, project, parameter, env, req)
}

// CreateTemplate validates and creates a template.
func (s *CatalogService) CreateTemplate(
	ctx context.Context, sess models.Session, project string, req models.CreateTemplateRequest,
) (*models.Template, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid(err)
	}
	return s.CatalogStore.CreateTemplate(ctx, sess, project, req)
}

// CreateUser validates the request and creates a user with a fresh API key.
func (s *CatalogService) CreateUser(
	ctx context.Context, sess models.Session, req models.CreateUserRequest,
) (*models.CreatedUser, error) {
	if err := req.Validate(); err != nil {
		return nil, invalid(err)
	}
	return s.CatalogStore.CreateUser(ctx, sess, req)
}

// DeleteUser deletes a user. Entries the user produced keep their actor name.
func (s *CatalogService) DeleteUser(ctx context.Context, sess models.Session, name string) error {
	if err := s.CatalogStore.DeleteUser(ctx, sess, name); err != nil {
		return err
	}
	s.invalidate(sess, models.KindUser, name)
	return nil
}
