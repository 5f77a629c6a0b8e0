package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/domain"
	"github.com/paramkeep/paramkeep/internal/metrics"
	"github.com/paramkeep/paramkeep/internal/models"
)

// AuditBatchWriter appends submitted entries for one organization. Entries whose
// event id already exists are skipped; the returned count excludes them.
type AuditBatchWriter interface {
	RecordAuditBatch(ctx context.Context, orgID string, records []models.AuditRecord) (int, error)
}

// Compile-time check: *AuditWorker must satisfy domain.AuditIngester.
var _ domain.AuditIngester = (*AuditWorker)(nil)

// AuditWorkerOptions tunes an AuditWorker. Zero values use defaults.
type AuditWorkerOptions struct {
	QueueSize  int
	BatchSize  int
	MaxRetries uint64
	RetryBase  time.Duration
}

// AuditWorker buffers submitted audit entries and writes them in batches via a
// single worker goroutine, retrying failed writes with exponential backoff.
type AuditWorker struct {
	writer     AuditBatchWriter
	log        *logrus.Logger
	jobs       chan models.AuditRecord
	batchSize  int
	maxRetries uint64
	retryBase  time.Duration
}

// NewAuditWorker creates an AuditWorker.
func NewAuditWorker(writer AuditBatchWriter, log *logrus.Logger, opts AuditWorkerOptions) *AuditWorker {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 100 * time.Millisecond
	}
	return &AuditWorker{
		writer:     writer,
		log:        log,
		jobs:       make(chan models.AuditRecord, opts.QueueSize),
		batchSize:  opts.BatchSize,
		maxRetries: opts.MaxRetries,
		retryBase:  opts.RetryBase,
	}
}

// Submit validates entries, assigns event ids to those without one and queues
// them for writing. It blocks while the queue is full until ctx is done. The
// returned ids identify the queued entries; resubmitting an id is a no-op.
func (w *AuditWorker) Submit(ctx context.Context, sess models.Session, entries []models.NewAuditEntry) ([]string, error) {
	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", models.ErrInvalidInput, i, err)
		}
		if entries[i].EventID == "" {
			entries[i].EventID = uuid.NewString()
		}
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		rec := models.AuditRecord{
			OrgID:         sess.OrgID,
			ActorID:       sess.UserID,
			ActorName:     sess.UserName,
			NewAuditEntry: e,
		}
		select {
		case w.jobs <- rec:
			metrics.AuditIngestQueueDepth.Set(float64(len(w.jobs)))
			ids = append(ids, e.EventID)
		case <-ctx.Done():
			return ids, ctx.Err()
		}
	}

	return ids, nil
}

// Run processes queued entries until the context is cancelled, then drains the
// remaining ones.
func (w *AuditWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case rec := <-w.jobs:
			// An accepted batch is written even if shutdown starts mid-flush.
			w.flush(context.WithoutCancel(ctx), w.collect(rec))
		}
	}
}

// collect gathers whatever is already queued behind first, up to the batch size.
func (w *AuditWorker) collect(first models.AuditRecord) []models.AuditRecord {
	batch := []models.AuditRecord{first}
	for len(batch) < w.batchSize {
		select {
		case rec := <-w.jobs:
			batch = append(batch, rec)
		default:
			return batch
		}
	}
	return batch
}

func (w *AuditWorker) drain() {
	// Writes after shutdown get a bounded window of their own.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for {
		select {
		case rec := <-w.jobs:
			w.flush(ctx, w.collect(rec))
		default:
			return
		}
	}
}

// flush writes a batch, one organization at a time, in submission order.
func (w *AuditWorker) flush(ctx context.Context, batch []models.AuditRecord) {
	metrics.AuditIngestQueueDepth.Set(float64(len(w.jobs)))

	var order []string
	byOrg := make(map[string][]models.AuditRecord)
	for _, rec := range batch {
		if _, ok := byOrg[rec.OrgID]; !ok {
			order = append(order, rec.OrgID)
		}
		byOrg[rec.OrgID] = append(byOrg[rec.OrgID], rec)
	}

	for _, orgID := range order {
		records := byOrg[orgID]
		written, rejected, err := w.write(ctx, orgID, records)
		if err != nil {
			metrics.AuditIngested.WithLabelValues("failed").Add(float64(len(records)))
			w.log.WithError(err).WithFields(logrus.Fields{
				"org_id":  orgID,
				"entries": len(records),
			}).Error("audit batch write failed")
			continue
		}
		metrics.AuditIngested.WithLabelValues("written").Add(float64(written))
		if rejected > 0 {
			metrics.AuditIngested.WithLabelValues("rejected").Add(float64(rejected))
		}
		if skipped := len(records) - written - rejected; skipped > 0 {
			w.log.WithFields(logrus.Fields{
				"org_id":  orgID,
				"skipped": skipped,
			}).Debug("audit batch contained already recorded events")
		}
	}
}

// write records one organization's entries. When the database rejects the
// batch outright, the entries are written one at a time so only the offending
// ones are dropped.
func (w *AuditWorker) write(ctx context.Context, orgID string, records []models.AuditRecord) (written, rejected int, err error) {
	written, err = w.writeBatch(ctx, orgID, records)
	if !errors.Is(err, models.ErrEntryRejected) {
		return written, 0, err
	}

	if len(records) > 1 {
		w.log.WithError(err).WithFields(logrus.Fields{
			"org_id":  orgID,
			"entries": len(records),
		}).Warn("audit batch rejected, writing entries individually")
	}

	for i := range records {
		n, err := w.writeBatch(ctx, orgID, records[i:i+1])
		switch {
		case errors.Is(err, models.ErrEntryRejected):
			rejected++
			w.log.WithError(err).WithFields(logrus.Fields{
				"org_id":   orgID,
				"event_id": records[i].EventID,
			}).Error("audit entry dropped")
		case err != nil:
			return written, rejected, err
		default:
			written += n
		}
	}

	return written, rejected, nil
}

// writeBatch retries transient failures with exponential backoff. Rejected
// entries are returned at once.
func (w *AuditWorker) writeBatch(ctx context.Context, orgID string, records []models.AuditRecord) (int, error) {
	var written int
	backoff := retry.WithMaxRetries(w.maxRetries, retry.NewExponential(w.retryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		n, err := w.writer.RecordAuditBatch(ctx, orgID, records)
		if errors.Is(err, models.ErrEntryRejected) {
			return err
		}
		if err != nil {
			w.log.WithError(err).WithField("org_id", orgID).Warn("audit batch write failed, retrying")
			return retry.RetryableError(err)
		}
		written = n
		return nil
	})

	return written, err
}
