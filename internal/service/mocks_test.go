package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/paramkeep/paramkeep/internal/domain"
	"github.com/paramkeep/paramkeep/internal/models"
)

// mockAuditReader serves entries from a slice already sorted newest first and
// records every page request.
type mockAuditReader struct {
	mu      sync.Mutex
	entries []models.AuditEntry
	err     error
	queries []models.AuditQuery
	limits  []int
	cursors []*models.AuditCursor

	getEntry  func(ctx context.Context, orgID string, id int64) (*models.AuditEntry, error)
	summarize func(ctx context.Context, orgID string) (*models.AuditSummary, error)
}

func (m *mockAuditReader) QueryAudit(
	_ context.Context, _ string, q models.AuditQuery, after *models.AuditCursor, limit int,
) ([]models.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries = append(m.queries, q)
	m.limits = append(m.limits, limit)
	m.cursors = append(m.cursors, after)

	if m.err != nil {
		return nil, m.err
	}

	var page []models.AuditEntry
	for _, e := range m.entries {
		if after != nil && !olderThan(e, after) {
			continue
		}
		page = append(page, e)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func olderThan(e models.AuditEntry, c *models.AuditCursor) bool {
	if e.CreatedAt.Equal(c.CreatedAt) {
		return e.ID < c.ID
	}
	return e.CreatedAt.Before(c.CreatedAt)
}

func (m *mockAuditReader) GetAuditEntry(ctx context.Context, orgID string, id int64) (*models.AuditEntry, error) {
	return m.getEntry(ctx, orgID, id)
}

func (m *mockAuditReader) SummarizeAudit(ctx context.Context, orgID string) (*models.AuditSummary, error) {
	return m.summarize(ctx, orgID)
}

// mockResolver resolves from fixed maps keyed by name. Parameters are keyed by
// "projectID/name".
type mockResolver struct {
	mu    sync.Mutex
	calls int

	envs     map[string]string
	projects map[string]string
	params   map[string]string
	users    map[string]string
	err      error

	// When gate is set, ProjectID signals started and blocks until gate closes.
	gate    chan struct{}
	started chan struct{}
}

func (m *mockResolver) find(set map[string]string, kind, name string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	if id, ok := set[name]; ok {
		return id, nil
	}
	return "", &models.NotFoundError{Kind: kind, Name: name}
}

func (m *mockResolver) EnvironmentID(_ context.Context, _, name string) (string, error) {
	return m.find(m.envs, models.KindEnvironment, name)
}

func (m *mockResolver) ProjectID(ctx context.Context, _, name string) (string, error) {
	if m.gate != nil {
		m.started <- struct{}{}
		select {
		case <-m.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.find(m.projects, models.KindProject, name)
}

func (m *mockResolver) ParameterID(_ context.Context, _, projectID, name string) (string, error) {
	return m.find(m.params, models.KindParameter, projectID+"/"+name)
}

func (m *mockResolver) UserID(_ context.Context, _, name string) (string, error) {
	return m.find(m.users, models.KindUser, name)
}

func (m *mockResolver) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockBatchWriter records written batches. failures makes the first N calls
// fail; a batch holding a record reject accepts fails the way a column type
// mismatch does.
type mockBatchWriter struct {
	mu       sync.Mutex
	batches  [][]models.AuditRecord
	orgs     []string
	failures int
	reject   func(models.AuditRecord) bool
	attempts int
	seen     map[string]bool
}

func (m *mockBatchWriter) RecordAuditBatch(_ context.Context, orgID string, records []models.AuditRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts++
	if m.attempts <= m.failures {
		return 0, errors.New("connection reset")
	}
	if m.reject != nil {
		for _, r := range records {
			if m.reject(r) {
				return 0, fmt.Errorf("%w: invalid input syntax for type uuid: %q", models.ErrEntryRejected, r.ProjectID)
			}
		}
	}

	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	written := 0
	for _, r := range records {
		if !m.seen[r.EventID] {
			m.seen[r.EventID] = true
			written++
		}
	}

	m.orgs = append(m.orgs, orgID)
	m.batches = append(m.batches, records)
	return written, nil
}

func (m *mockBatchWriter) snapshot() (batches [][]models.AuditRecord, orgs []string, attempts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]models.AuditRecord(nil), m.batches...), append([]string(nil), m.orgs...), m.attempts
}

// mockRetentionStore records prune calls.
type mockRetentionStore struct {
	mu        sync.Mutex
	orgs      []string
	cutoffs   map[string]time.Time
	overflows map[string]int

	expired  int
	overflow int
	failOrg  string
}

func (m *mockRetentionStore) ListOrgIDs(context.Context) ([]string, error) {
	return m.orgs, nil
}

func (m *mockRetentionStore) PruneExpired(_ context.Context, orgID string, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if orgID == m.failOrg {
		return 0, errors.New("lock timeout")
	}
	if m.cutoffs == nil {
		m.cutoffs = make(map[string]time.Time)
	}
	m.cutoffs[orgID] = cutoff
	return m.expired, nil
}

func (m *mockRetentionStore) PruneOverflow(_ context.Context, orgID string, maxRecords int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.overflows == nil {
		m.overflows = make(map[string]int)
	}
	m.overflows[orgID] = maxRecords
	return m.overflow, nil
}

// mockCatalogStore implements the catalog methods the tests need; calling any
// other method panics on the nil embedded interface.
type mockCatalogStore struct {
	domain.CatalogService

	createEnvironment func(ctx context.Context, sess models.Session, req models.CreateNamedRequest) (*models.Environment, error)
	deleteEnvironment func(ctx context.Context, sess models.Session, name string) error
	createUser        func(ctx context.Context, sess models.Session, req models.CreateUserRequest) (*models.CreatedUser, error)
}

func (m *mockCatalogStore) CreateEnvironment(
	ctx context.Context, sess models.Session, req models.CreateNamedRequest,
) (*models.Environment, error) {
	return m.createEnvironment(ctx, sess, req)
}

func (m *mockCatalogStore) DeleteEnvironment(ctx context.Context, sess models.Session, name string) error {
	return m.deleteEnvironment(ctx, sess, name)
}

func (m *mockCatalogStore) CreateUser(
	ctx context.Context, sess models.Session, req models.CreateUserRequest,
) (*models.CreatedUser, error) {
	return m.createUser(ctx, sess, req)
}

// mockInvalidator counts invalidations per organization.
type mockInvalidator struct {
	orgs []string
}

func (m *mockInvalidator) InvalidateOrg(orgID string) {
	m.orgs = append(m.orgs, orgID)
}
