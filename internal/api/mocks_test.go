package api_test

import (
	"context"

	"github.com/paramkeep/paramkeep/internal/domain"
	"github.com/paramkeep/paramkeep/internal/models"
)

// mockAuditService implements api.AuditService for testing.
type mockAuditService struct {
	queryFn   func(ctx context.Context, sess models.Session, f models.AuditFilter) (*models.AuditResult, error)
	getFn     func(ctx context.Context, sess models.Session, id int64) (*models.AuditEntry, error)
	summaryFn func(ctx context.Context, sess models.Session) (*models.AuditSummary, error)
}

func (m *mockAuditService) Query(ctx context.Context, sess models.Session, f models.AuditFilter) (*models.AuditResult, error) {
	return m.queryFn(ctx, sess, f)
}

func (m *mockAuditService) Get(ctx context.Context, sess models.Session, id int64) (*models.AuditEntry, error) {
	return m.getFn(ctx, sess, id)
}

func (m *mockAuditService) Summary(ctx context.Context, sess models.Session) (*models.AuditSummary, error) {
	return m.summaryFn(ctx, sess)
}

// mockIngester implements api.AuditIngester for testing.
type mockIngester struct {
	submitFn func(ctx context.Context, sess models.Session, entries []models.NewAuditEntry) ([]string, error)
}

func (m *mockIngester) Submit(ctx context.Context, sess models.Session, entries []models.NewAuditEntry) ([]string, error) {
	return m.submitFn(ctx, sess, entries)
}

// mockPruner implements api.AuditPruner for testing.
type mockPruner struct {
	policy  models.RetentionPolicy
	pruneFn func(ctx context.Context, orgID string, policy models.RetentionPolicy) (*models.PruneResult, error)
}

func (m *mockPruner) Policy() models.RetentionPolicy { return m.policy }

func (m *mockPruner) PruneOrg(ctx context.Context, orgID string, policy models.RetentionPolicy) (*models.PruneResult, error) {
	return m.pruneFn(ctx, orgID, policy)
}

// mockCatalog implements api.CatalogService. Methods a test does not set
// panic through the nil embedded interface.
type mockCatalog struct {
	domain.CatalogService

	listEnvsFn  func(ctx context.Context, sess models.Session) ([]models.Environment, error)
	createEnvFn func(ctx context.Context, sess models.Session, req models.CreateNamedRequest) (*models.Environment, error)
	deleteEnvFn func(ctx context.Context, sess models.Session, name string) error
	setValueFn  func(ctx context.Context, sess models.Session, project, parameter, env string, req models.SetValueRequest) (*models.Value, error)
	createUser  func(ctx context.Context, sess models.Session, req models.CreateUserRequest) (*models.CreatedUser, error)
}

func (m *mockCatalog) ListEnvironments(ctx context.Context, sess models.Session) ([]models.Environment, error) {
	return m.listEnvsFn(ctx, sess)
}

func (m *mockCatalog) CreateEnvironment(ctx context.Context, sess models.Session, req models.CreateNamedRequest) (*models.Environment, error) {
	return m.createEnvFn(ctx, sess, req)
}

func (m *mockCatalog) DeleteEnvironment(ctx context.Context, sess models.Session, name string) error {
	return m.deleteEnvFn(ctx, sess, name)
}

func (m *mockCatalog) SetValue(
	ctx context.Context, sess models.Session, project, parameter, env string, req models.SetValueRequest,
) (*models.Value, error) {
	return m.setValueFn(ctx, sess, project, parameter, env, req)
}

func (m *mockCatalog) CreateUser(ctx context.Context, sess models.Session, req models.CreateUserRequest) (*models.CreatedUser, error) {
	return m.createUser(ctx, sess, req)
}
