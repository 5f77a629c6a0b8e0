package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/models"
)

// AuditStore provides data access for the audit_log table.
type AuditStore struct {
	Base
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(base Base) *AuditStore {
	return &AuditStore{Base: base}
}

const auditColumns = `id, event_id, object_type, object_id, object_name, action,
	actor_id, actor_name, project_id, environment_id, parameter_id, detail, created_at`

const insertAuditSQL = `
	INSERT INTO audit_log (org_id, event_id, object_type, object_id, object_name, action,
		actor_id, actor_name, project_id, environment_id, parameter_id, detail)
	VALUES ($1, COALESCE($2::uuid, gen_random_uuid()), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (org_id, event_id) DO NOTHING`

func auditArgs(rec models.AuditRecord) ([]any, error) {
	var detailJSON []byte
	if rec.Detail != nil {
		var err error
		detailJSON, err = json.Marshal(rec.Detail)
		if err != nil {
			return nil, fmt.Errorf("marshaling audit detail: %w", err)
		}
	}

	return []any{
		rec.OrgID, nullable(rec.EventID), string(rec.ObjectType), rec.ObjectID, rec.ObjectName, string(rec.Action),
		nullable(rec.ActorID), rec.ActorName,
		nullable(rec.ProjectID), nullable(rec.EnvironmentID), nullable(rec.ParameterID), detailJSON,
	}, nil
}

// appendAudit writes one entry inside the caller's transaction, so the entry
// exists exactly when the change it describes commits.
func appendAudit(ctx context.Context, tx pgx.Tx, sess models.Session, e models.NewAuditEntry) error {
	args, err := auditArgs(models.AuditRecord{
		OrgID:         sess.OrgID,
		ActorID:       sess.UserID,
		ActorName:     sess.UserName,
		NewAuditEntry: e,
	})
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, insertAuditSQL, args...); err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	return nil
}

// RecordAuditBatch inserts submitted entries for one organization in a single
// transaction. Entries whose event id is already recorded are skipped; the
// returned count covers only new rows.
func (s *AuditStore) RecordAuditBatch(ctx context.Context, orgID string, records []models.AuditRecord) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, orgID)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	batch := &pgx.Batch{}
	for _, rec := range records {
		rec.OrgID = orgID
		args, err := auditArgs(rec)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", models.ErrEntryRejected, err)
		}
		batch.Queue(insertAuditSQL, args...)
	}

	br := tx.SendBatch(ctx, batch)
	written := 0
	for range records {
		tag, err := br.Exec()
		if err != nil {
			br.Close() //nolint:errcheck // the Exec error is the one to report.
			if isRejectedValue(err) {
				return 0, fmt.Errorf("inserting audit batch: %w: %w", models.ErrEntryRejected, err)
			}
			return 0, fmt.Errorf("inserting audit batch: %w", err)
		}
		written += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("closing audit batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing audit batch: %w", err)
	}

	return written, nil
}

// buildAuditFilter builds the WHERE clause and args for a query. The org
// filter is explicit in addition to RLS.
func buildAuditFilter(orgID string, q models.AuditQuery, after *models.AuditCursor) (where string, args []any, nextArg int) {
	conditions := []string{"org_id = $1"}
	args = []any{orgID}
	argIdx := 2

	add := func(cond string, v any) {
		conditions = append(conditions, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(argIdx)))
		args = append(args, v)
		argIdx++
	}

	if q.ObjectType != "" {
		add("object_type = ?", string(q.ObjectType))
	}
	if q.NameContains != "" {
		add("strpos(object_name, ?) > 0", q.NameContains)
	}
	if q.Action != "" {
		add("action = ?", string(q.Action))
	}
	if q.ActorID != "" {
		add("actor_id = ?", q.ActorID)
	}
	if q.ProjectID != "" {
		add("project_id = ?", q.ProjectID)
	}
	if q.EnvironmentID != "" {
		add("environment_id = ?", q.EnvironmentID)
	}
	if q.ParameterID != "" {
		add("parameter_id = ?", q.ParameterID)
	}
	if q.Before != nil {
		add("created_at < ?", *q.Before)
	}
	if q.After != nil {
		add("created_at > ?", *q.After)
	}
	if after != nil {
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < ($%d, $%d)", argIdx, argIdx+1))
		args = append(args, after.CreatedAt, after.ID)
		argIdx += 2
	}

	return "WHERE " + strings.Join(conditions, " AND "), args, argIdx
}

// QueryAudit returns up to limit entries matching q, newest first, starting
// strictly after the cursor when one is given.
func (s *AuditStore) QueryAudit(
	ctx context.Context, orgID string, q models.AuditQuery, after *models.AuditCursor, limit int,
) ([]models.AuditEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, orgID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}

	where, args, argIdx := buildAuditFilter(orgID, q, after)
	query := fmt.Sprintf(
		"SELECT %s FROM audit_log %s ORDER BY created_at DESC, id DESC LIMIT $%d",
		auditColumns, where, argIdx,
	)
	args = append(args, limit)

	return scanAuditRows(ctx, tx, query, args, s.Log)
}

// GetAuditEntry returns a single entry of the organization.
func (s *AuditStore) GetAuditEntry(ctx context.Context, orgID string, id int64) (*models.AuditEntry, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, orgID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	entries, err := scanAuditRows(ctx, tx,
		"SELECT "+auditColumns+" FROM audit_log WHERE org_id = $1 AND id = $2",
		[]any{orgID, id}, s.Log)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, models.ErrAuditEntryNotFound
	}

	return &entries[0], nil
}

// SummarizeAudit reports the record count and time span of the organization's
// audit log. The retention policy fields are left for the caller.
func (s *AuditStore) SummarizeAudit(ctx context.Context, orgID string) (*models.AuditSummary, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx, orgID)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	var sum models.AuditSummary
	err = tx.QueryRow(ctx,
		"SELECT count(*), min(created_at), max(created_at) FROM audit_log WHERE org_id = $1",
		orgID,
	).Scan(&sum.TotalRecords, &sum.Earliest, &sum.Latest)
	if err != nil {
		return nil, fmt.Errorf("summarizing audit log: %w", err)
	}

	if sum.Earliest != nil {
		t := sum.Earliest.UTC()
		sum.Earliest = &t
	}
	if sum.Latest != nil {
		t := sum.Latest.UTC()
		sum.Latest = &t
	}

	return &sum, nil
}

// scanAuditRows executes a query and scans audit entries from the result.
func scanAuditRows(ctx context.Context, tx pgx.Tx, query string, args []any, log *logrus.Logger) ([]models.AuditEntry, error) {
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]models.AuditEntry, 0)
	for rows.Next() {
		var (
			e                                  models.AuditEntry
			detailJSON                         []byte
			actorID, projectID, envID, paramID *string
		)

		if err := rows.Scan(
			&e.ID, &e.EventID, &e.ObjectType, &e.ObjectID, &e.ObjectName, &e.Action,
			&actorID, &e.ActorName, &projectID, &envID, &paramID, &detailJSON, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		e.ActorID = deref(actorID)
		e.ProjectID = deref(projectID)
		e.EnvironmentID = deref(envID)
		e.ParameterID = deref(paramID)
		e.CreatedAt = e.CreatedAt.UTC()

		if detailJSON != nil {
			if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
				log.WithError(err).Warn("failed to unmarshal audit detail")
			}
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return entries, nil
}

// ListOrgIDs returns every organization id, oldest first.
func (s *AuditStore) ListOrgIDs(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, "SELECT id FROM organizations ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning organization ids: %w", err)
	}

	return ids, nil
}

// purgeBatchSize limits the number of rows deleted per transaction to avoid
// holding long locks on audit_log.
const purgeBatchSize = 5000

// PruneExpired deletes entries created before cutoff, in batches.
func (s *AuditStore) PruneExpired(ctx context.Context, orgID string, cutoff time.Time) (int, error) {
	return s.pruneBatches(ctx, orgID, `
		DELETE FROM audit_log WHERE ctid IN (
			SELECT ctid FROM audit_log
			WHERE org_id = $1 AND created_at < $2
			LIMIT $3
		)`, cutoff)
}

// PruneOverflow deletes the entries beyond the newest maxRecords, oldest
// first, in batches.
func (s *AuditStore) PruneOverflow(ctx context.Context, orgID string, maxRecords int) (int, error) {
	if maxRecords <= 0 {
		return 0, errors.New("maxRecords must be positive")
	}
	return s.pruneBatches(ctx, orgID, `
		DELETE FROM audit_log WHERE id IN (
			SELECT id FROM audit_log
			WHERE org_id = $1
			ORDER BY created_at DESC, id DESC
			OFFSET $2 LIMIT $3
		)`, maxRecords)
}

// pruneBatches runs a delete statement taking (orgID, bound, batch size) until
// a batch removes fewer rows than the batch size.
func (s *AuditStore) pruneBatches(ctx context.Context, orgID, stmt string, bound any) (int, error) {
	var total int

	for {
		batchCtx, cancel := withTimeout(ctx)
		deleted, err := s.pruneBatch(batchCtx, orgID, stmt, bound)
		cancel()

		if err != nil {
			return total, err
		}

		total += deleted
		if deleted < purgeBatchSize {
			return total, nil
		}
	}
}

func (s *AuditStore) pruneBatch(ctx context.Context, orgID, stmt string, bound any) (int, error) {
	tx, err := s.beginTx(ctx, orgID)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	tag, err := tx.Exec(ctx, stmt, orgID, bound, purgeBatchSize)
	if err != nil {
		return 0, fmt.Errorf("pruning audit entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), nil
}
