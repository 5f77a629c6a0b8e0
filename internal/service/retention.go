package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/domain"
	"github.com/paramkeep/paramkeep/internal/metrics"
	"github.com/paramkeep/paramkeep/internal/models"
)

// AuditRetentionStore deletes audit history. Both prune methods delete in
// bounded batches and return the number of entries removed.
type AuditRetentionStore interface {
	ListOrgIDs(ctx context.Context) ([]string, error)
	PruneExpired(ctx context.Context, orgID string, cutoff time.Time) (int, error)
	PruneOverflow(ctx context.Context, orgID string, maxRecords int) (int, error)
}

// Compile-time check: *RetentionPruner must satisfy domain.AuditPruner.
var _ domain.AuditPruner = (*RetentionPruner)(nil)

// RetentionPruner enforces the retention policy on a schedule and on demand.
// It runs independently of queries.
type RetentionPruner struct {
	store    AuditRetentionStore
	policy   models.RetentionPolicy
	schedule string
	log      *logrus.Logger
	cron     *cron.Cron
	now      func() time.Time
}

// NewRetentionPruner creates a RetentionPruner. schedule is a cron spec such as
// "@every 1h" or "0 3 * * *".
func NewRetentionPruner(
	store AuditRetentionStore, policy models.RetentionPolicy, schedule string, log *logrus.Logger,
) *RetentionPruner {
	return &RetentionPruner{
		store:    store,
		policy:   policy,
		schedule: schedule,
		log:      log,
		now:      time.Now,
	}
}

// Policy returns the configured retention policy.
func (p *RetentionPruner) Policy() models.RetentionPolicy {
	return p.policy
}

// Start schedules PruneAll. A run still in progress when the next one is due
// causes that next run to be skipped.
func (p *RetentionPruner) Start() error {
	logger := cron.PrintfLogger(p.log)
	p.cron = cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	if _, err := p.cron.AddFunc(p.schedule, func() {
		if err := p.PruneAll(context.Background()); err != nil {
			p.log.WithError(err).Error("scheduled audit prune failed")
		}
	}); err != nil {
		return fmt.Errorf("scheduling audit prune %q: %w", p.schedule, err)
	}

	p.cron.Start()
	p.log.WithField("schedule", p.schedule).Info("audit retention pruner started")

	return nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *RetentionPruner) Stop() {
	if p.cron == nil {
		return
	}
	<-p.cron.Stop().Done()
}

// PruneAll applies the configured policy to every organization. A failure for
// one organization does not stop the others; the first error is returned.
func (p *RetentionPruner) PruneAll(ctx context.Context) error {
	orgs, err := p.store.ListOrgIDs(ctx)
	if err != nil {
		return fmt.Errorf("listing organizations: %w", err)
	}

	var firstErr error
	for _, orgID := range orgs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := p.PruneOrg(ctx, orgID, p.policy); err != nil {
			p.log.WithError(err).WithField("org_id", orgID).Error("audit prune failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// PruneOrg removes the entries of one organization that are older than
// policy.MaxDays, then those beyond the newest policy.MaxRecords. A zero
// bound is not enforced.
func (p *RetentionPruner) PruneOrg(
	ctx context.Context, orgID string, policy models.RetentionPolicy,
) (*models.PruneResult, error) {
	res := &models.PruneResult{MaxRecords: policy.MaxRecords, MaxDays: policy.MaxDays}

	if policy.MaxDays > 0 {
		cutoff := p.now().UTC().AddDate(0, 0, -policy.MaxDays)
		n, err := p.store.PruneExpired(ctx, orgID, cutoff)
		res.ExpiredDeleted = n
		metrics.AuditPruned.WithLabelValues("expired").Add(float64(n))
		if err != nil {
			return res, fmt.Errorf("pruning expired audit entries: %w", err)
		}
	}

	if policy.MaxRecords > 0 {
		n, err := p.store.PruneOverflow(ctx, orgID, policy.MaxRecords)
		res.OverflowDeleted = n
		metrics.AuditPruned.WithLabelValues("overflow").Add(float64(n))
		if err != nil {
			return res, fmt.Errorf("pruning overflow audit entries: %w", err)
		}
	}

	if res.Total() > 0 {
		p.log.WithFields(logrus.Fields{
			"org_id":   orgID,
			"expired":  res.ExpiredDeleted,
			"overflow": res.OverflowDeleted,
		}).Info("audit entries pruned")
	}

	return res, nil
}
