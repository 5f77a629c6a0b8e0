package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/domain"
	"github.com/paramkeep/paramkeep/internal/metrics"
	"github.com/paramkeep/paramkeep/internal/models"
)

// AuditReader is the read side of the audit log the engine depends on.
type AuditReader interface {
	QueryAudit(ctx context.Context, orgID string, q models.AuditQuery, after *models.AuditCursor, limit int) ([]models.AuditEntry, error)
	GetAuditEntry(ctx context.Context, orgID string, id int64) (*models.AuditEntry, error)
	SummarizeAudit(ctx context.Context, orgID string) (*models.AuditSummary, error)
}

// Compile-time check: *AuditEngine must satisfy domain.AuditService.
var _ domain.AuditService = (*AuditEngine)(nil)

const (
	defaultAuditPageSize = 100
	maxAuditPageSize     = 1000
)

// AuditEngine answers audit log queries. It holds no per-query state and is
// safe for concurrent use.
type AuditEngine struct {
	store    AuditReader
	resolver NameResolver
	policy   models.RetentionPolicy
	pageSize int
	log      *logrus.Logger
}

// NewAuditEngine creates an AuditEngine. pageSize is the default number of
// entries fetched from the store per round trip.
func NewAuditEngine(
	store AuditReader, resolver NameResolver, policy models.RetentionPolicy, pageSize int, log *logrus.Logger,
) *AuditEngine {
	if pageSize <= 0 {
		pageSize = defaultAuditPageSize
	}
	return &AuditEngine{
		store:    store,
		resolver: resolver,
		policy:   policy,
		pageSize: pageSize,
		log:      log,
	}
}

// Query validates the filter, resolves its names within the caller's
// organization and returns matching entries newest first. Validation failures
// are returned as *models.ValidationError.
func (e *AuditEngine) Query(ctx context.Context, sess models.Session, f models.AuditFilter) (*models.AuditResult, error) {
	start := time.Now()
	defer func() {
		metrics.AuditQueryDuration.Observe(time.Since(start).Seconds())
	}()

	r, err := resolveNames(ctx, e.resolver, sess.OrgID, f)
	if err != nil {
		metrics.AuditQueries.WithLabelValues("error").Inc()
		return nil, err
	}

	if err := r.validate(); err != nil {
		metrics.AuditQueries.WithLabelValues("invalid").Inc()
		e.log.WithFields(logrus.Fields{
			"org_id": sess.OrgID,
			"user":   sess.UserName,
			"reason": err.Error(),
		}).Debug("audit.query rejected")
		return nil, err
	}

	q, warnings := r.query()
	if len(warnings) > 0 {
		metrics.AuditWarnings.Add(float64(len(warnings)))
	}

	entries, err := e.collect(ctx, sess.OrgID, q, f.MaxEntries, e.pageSizeFor(f))
	if err != nil {
		metrics.AuditQueries.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.AuditQueries.WithLabelValues("ok").Inc()

	return &models.AuditResult{Entries: entries, Warnings: warnings}, nil
}

func (e *AuditEngine) pageSizeFor(f models.AuditFilter) int {
	switch {
	case f.PageSize <= 0:
		return e.pageSize
	case f.PageSize > maxAuditPageSize:
		return maxAuditPageSize
	default:
		return f.PageSize
	}
}

// collect pages through the store until maxEntries entries are gathered or the
// store runs dry. A maxEntries of zero collects everything. Entries pruned
// between pages are simply missing from the result.
func (e *AuditEngine) collect(
	ctx context.Context, orgID string, q models.AuditQuery, maxEntries, pageSize int,
) ([]models.AuditEntry, error) {
	entries := make([]models.AuditEntry, 0)
	var cursor *models.AuditCursor

	for {
		limit := pageSize
		if maxEntries > 0 && maxEntries-len(entries) < limit {
			limit = maxEntries - len(entries)
		}

		page, err := e.store.QueryAudit(ctx, orgID, q, cursor, limit)
		if err != nil {
			return nil, err
		}

		entries = append(entries, page...)

		if len(page) < limit || (maxEntries > 0 && len(entries) >= maxEntries) {
			return entries, nil
		}

		last := page[len(page)-1]
		cursor = &models.AuditCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
}

// Get returns a single entry of the caller's organization.
func (e *AuditEngine) Get(ctx context.Context, sess models.Session, id int64) (*models.AuditEntry, error) {
	entry, err := e.store.GetAuditEntry(ctx, sess.OrgID, id)
	if err != nil {
		if !errors.Is(err, models.ErrAuditEntryNotFound) {
			e.log.WithError(err).WithField("id", id).Error("audit.get failed")
		}
		return nil, err
	}
	return entry, nil
}

// Summary reports the size and time span of the caller's audit log together
// with the retention policy that bounds it.
func (e *AuditEngine) Summary(ctx context.Context, sess models.Session) (*models.AuditSummary, error) {
	s, err := e.store.SummarizeAudit(ctx, sess.OrgID)
	if err != nil {
		return nil, err
	}
	s.MaxRecords = e.policy.MaxRecords
	s.MaxDays = e.policy.MaxDays
	return s, nil
}
