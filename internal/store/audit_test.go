package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/paramkeep/paramkeep/internal/models"
	"github.com/paramkeep/paramkeep/internal/store"
)

func record(name string, typ models.ObjectType, action models.Action, sess models.Session) models.AuditRecord {
	return models.AuditRecord{
		OrgID:     sess.OrgID,
		ActorID:   sess.UserID,
		ActorName: sess.UserName,
		NewAuditEntry: models.NewAuditEntry{
			EventID:    uuid.NewString(),
			ObjectType: typ,
			ObjectName: name,
			Action:     action,
		},
	}
}

func TestBootstrapIsAudited(t *testing.T) {
	base, sess := setupTestOrg(t)
	as := store.NewAuditStore(base)

	entries, err := as.QueryAudit(context.Background(), sess.OrgID, models.AuditQuery{}, nil, 10)
	if err != nil {
		t.Fatalf("QueryAudit: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	for _, e := range entries {
		if e.ActorName != "admin" || e.ActorID != sess.UserID {
			t.Errorf("actor = %q/%q, want admin/%s", e.ActorName, e.ActorID, sess.UserID)
		}
	}
	if entries[0].ObjectType != models.ObjectEnvironment || entries[0].ObjectName != "default" {
		t.Errorf("newest = %s %q, want Environment default", entries[0].ObjectType, entries[0].ObjectName)
	}
}

func TestRecordAuditBatch_Idempotent(t *testing.T) {
	base, sess := setupTestOrg(t)
	as := store.NewAuditStore(base)
	ctx := context.Background()

	recs := []models.AuditRecord{
		record("push-1", models.ObjectPush, models.ActionCreate, sess),
		record("pull-1", models.ObjectPull, models.ActionCreate, sess),
	}
	recs[0].Detail = map[string]any{"commit": "abc123"}

	n, err := as.RecordAuditBatch(ctx, sess.OrgID, recs)
	if err != nil {
		t.Fatalf("RecordAuditBatch: %v", err)
	}
	if n != 2 {
		t.Fatalf("written = %d, want 2", n)
	}

	n, err = as.RecordAuditBatch(ctx, sess.OrgID, recs)
	if err != nil {
		t.Fatalf("RecordAuditBatch (retry): %v", err)
	}
	if n != 0 {
		t.Errorf("written on retry = %d, want 0", n)
	}

	entries, err := as.QueryAudit(ctx, sess.OrgID, models.AuditQuery{ObjectType: models.ObjectPush}, nil, 10)
	if err != nil {
		t.Fatalf("QueryAudit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("push entries = %d, want 1", len(entries))
	}
	if entries[0].Detail["commit"] != "abc123" {
		t.Errorf("detail = %v", entries[0].Detail)
	}
	if entries[0].EventID != recs[0].EventID {
		t.Errorf("event_id = %q, want %q", entries[0].EventID, recs[0].EventID)
	}
}

func TestQueryAudit_Filters(t *testing.T) {
	base, sess := setupTestOrg(t)
	as := store.NewAuditStore(base)
	ctx := context.Background()

	_, err := as.RecordAuditBatch(ctx, sess.OrgID, []models.AuditRecord{
		record("db-password", models.ObjectParameter, models.ActionCreate, sess),
		record("DB-HOST", models.ObjectParameter, models.ActionUpdate, sess),
		record("web", models.ObjectProject, models.ActionCreate, sess),
	})
	if err != nil {
		t.Fatalf("RecordAuditBatch: %v", err)
	}

	tests := []struct {
		name string
		q    models.AuditQuery
		want int
	}{
		{"name contains is case-sensitive", models.AuditQuery{NameContains: "db-"}, 1},
		{"type", models.AuditQuery{ObjectType: models.ObjectParameter}, 2},
		{"type and action", models.AuditQuery{ObjectType: models.ObjectParameter, Action: models.ActionUpdate}, 1},
		{"actor", models.AuditQuery{ActorID: sess.UserID, ObjectType: models.ObjectProject}, 1},
		{"unknown actor", models.AuditQuery{ActorID: uuid.NewString()}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := as.QueryAudit(ctx, sess.OrgID, tc.q, nil, 50)
			if err != nil {
				t.Fatalf("QueryAudit: %v", err)
			}
			if len(entries) != tc.want {
				t.Errorf("got %d entries, want %d", len(entries), tc.want)
			}
		})
	}
}

func TestQueryAudit_CursorAndBounds(t *testing.T) {
	base, sess := setupTestOrg(t)
	as := store.NewAuditStore(base)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c", "d"} {
		if _, err := as.RecordAuditBatch(ctx, sess.OrgID, []models.AuditRecord{record(name, models.ObjectTag, models.ActionCreate, sess)}); err != nil {
			t.Fatalf("RecordAuditBatch: %v", err)
		}
	}

	q := models.AuditQuery{ObjectType: models.ObjectTag}
	first, err := as.QueryAudit(ctx, sess.OrgID, q, nil, 2)
	if err != nil {
		t.Fatalf("QueryAudit: %v", err)
	}
	if len(first) != 2 || first[0].ObjectName != "d" || first[1].ObjectName != "c" {
		t.Fatalf("first page = %+v", first)
	}

	cursor := &models.AuditCursor{CreatedAt: first[1].CreatedAt, ID: first[1].ID}
	second, err := as.QueryAudit(ctx, sess.OrgID, q, cursor, 2)
	if err != nil {
		t.Fatalf("QueryAudit: %v", err)
	}
	if len(second) != 2 || second[0].ObjectName != "b" || second[1].ObjectName != "a" {
		t.Fatalf("second page = %+v", second)
	}

	// Bounds are exclusive.
	before := first[0].CreatedAt
	after := second[1].CreatedAt
	bounded, err := as.QueryAudit(ctx, sess.OrgID, models.AuditQuery{ObjectType: models.ObjectTag, Before: &before, After: &after}, nil, 10)
	if err != nil {
		t.Fatalf("QueryAudit: %v", err)
	}
	if len(bounded) != 2 {
		t.Errorf("bounded = %d entries, want 2", len(bounded))
	}
}

func TestGetAuditEntry(t *testing.T) {
	base, sess := setupTestOrg(t)
	as := store.NewAuditStore(base)
	ctx := context.Background()

	entries, err := as.QueryAudit(ctx, sess.OrgID, models.AuditQuery{}, nil, 1)
	if err != nil || len(entries) != 1 {
		t.Fatalf("QueryAudit: %v (%d entries)", err, len(entries))
	}

	got, err := as.GetAuditEntry(ctx, sess.OrgID, entries[0].ID)
	if err != nil {
		t.Fatalf("GetAuditEntry: %v", err)
	}
	if got.ObjectName != entries[0].ObjectName {
		t.Errorf("ObjectName = %q, want %q", got.ObjectName, entries[0].ObjectName)
	}

	// Another organization cannot see it.
	_, other := setupTestOrg(t)
	if _, err := as.GetAuditEntry(ctx, other.OrgID, entries[0].ID); !errors.Is(err, models.ErrAuditEntryNotFound) {
		t.Errorf("cross-org get err = %v, want ErrAuditEntryNotFound", err)
	}
}

func TestSummarizeAudit(t *testing.T) {
	base, sess := setupTestOrg(t)
	as := store.NewAuditStore(base)

	sum, err := as.SummarizeAudit(context.Background(), sess.OrgID)
	if err != nil {
		t.Fatalf("SummarizeAudit: %v", err)
	}
	if sum.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", sum.TotalRecords)
	}
	if sum.Earliest == nil || sum.Latest == nil || sum.Latest.Before(*sum.Earliest) {
		t.Errorf("span = %v..%v", sum.Earliest, sum.Latest)
	}
}

func TestPruneExpiredAndOverflow(t *testing.T) {
	base, sess := setupTestOrg(t)
	as := store.NewAuditStore(base)
	ctx := context.Background()
	env := getTestEnv(t)

	if _, err := as.RecordAuditBatch(ctx, sess.OrgID, []models.AuditRecord{record("old", models.ObjectTask, models.ActionCreate, sess)}); err != nil {
		t.Fatalf("RecordAuditBatch: %v", err)
	}

	tx, err := env.pool.Begin(ctx)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if _, err := tx.Exec(ctx, "SELECT set_config('app.org_id', $1, true)", sess.OrgID); err != nil {
		t.Fatalf("set org: %v", err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE audit_log SET created_at = now() - interval '400 days' WHERE org_id = $1 AND object_name = 'old'",
		sess.OrgID); err != nil {
		t.Fatalf("backdating audit entry: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit backdate: %v", err)
	}

	n, err := as.PruneExpired(ctx, sess.OrgID, time.Now().AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("expired deleted = %d, want 1", n)
	}

	n, err = as.PruneOverflow(ctx, sess.OrgID, 1)
	if err != nil {
		t.Fatalf("PruneOverflow: %v", err)
	}
	if n != 2 {
		t.Errorf("overflow deleted = %d, want 2", n)
	}

	entries, err := as.QueryAudit(ctx, sess.OrgID, models.AuditQuery{}, nil, 10)
	if err != nil {
		t.Fatalf("QueryAudit: %v", err)
	}
	if len(entries) != 1 || entries[0].ObjectName != "default" {
		t.Errorf("remaining = %+v, want only the newest entry", entries)
	}
}

func TestListOrgIDs(t *testing.T) {
	base, sess := setupTestOrg(t)

	ids, err := store.NewAuditStore(base).ListOrgIDs(context.Background())
	if err != nil {
		t.Fatalf("ListOrgIDs: %v", err)
	}

	found := false
	for _, id := range ids {
		if id == sess.OrgID {
			found = true
		}
	}
	if !found {
		t.Errorf("org %s not listed", sess.OrgID)
	}
}

func TestRecordAuditBatch_RejectsBadAssociation(t *testing.T) {
	base, sess := setupTestOrg(t)
	as := store.NewAuditStore(base)

	bad := record("push-1", models.ObjectPush, models.ActionCreate, sess)
	bad.ProjectID = "my-project"

	_, err := as.RecordAuditBatch(context.Background(), sess.OrgID, []models.AuditRecord{bad})
	if !errors.Is(err, models.ErrEntryRejected) {
		t.Fatalf("err = %v, want ErrEntryRejected", err)
	}
}

// typesOf returns the object types of entries, newest first.
func typesOf(entries []models.AuditEntry) []models.ObjectType {
	types := make([]models.ObjectType, len(entries))
	for i, e := range entries {
		types[i] = e.ObjectType
	}
	return types
}

func sameTypes(got, want []models.ObjectType) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestQueryAudit_AssociationFilters(t *testing.T) {
	base, sess := setupTestOrg(t)
	as := store.NewAuditStore(base)
	cs := store.NewCatalogStore(base)
	rs := store.NewResolverStore(base)
	ctx := context.Background()

	proj, err := cs.CreateProject(ctx, sess, models.CreateNamedRequest{Name: "web"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	param, err := cs.CreateParameter(ctx, sess, "web", models.CreateParameterRequest{Name: "DB_HOST"})
	if err != nil {
		t.Fatalf("CreateParameter: %v", err)
	}
	if _, err := cs.CreateTemplate(ctx, sess, "web", models.CreateTemplateRequest{Name: "dotenv", Body: "DB_HOST={{ DB_HOST }}"}); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if _, err := cs.SetValue(ctx, sess, "web", "DB_HOST", "default", models.SetValueRequest{Value: "db1"}); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	staging, err := cs.CreateEnvironment(ctx, sess, models.CreateNamedRequest{Name: "staging"})
	if err != nil {
		t.Fatalf("CreateEnvironment: %v", err)
	}
	if _, err := as.RecordAuditBatch(ctx, sess.OrgID, []models.AuditRecord{record("v1", models.ObjectTag, models.ActionCreate, sess)}); err != nil {
		t.Fatalf("RecordAuditBatch: %v", err)
	}

	defaultEnv, err := rs.EnvironmentID(ctx, sess.OrgID, "default")
	if err != nil {
		t.Fatalf("EnvironmentID: %v", err)
	}

	tests := []struct {
		name string
		q    models.AuditQuery
		want []models.ObjectType
	}{
		{
			"project",
			models.AuditQuery{ProjectID: proj.ID},
			[]models.ObjectType{models.ObjectValue, models.ObjectTemplate, models.ObjectParameter, models.ObjectProject},
		},
		{
			"parameter",
			models.AuditQuery{ProjectID: proj.ID, ParameterID: param.ID},
			[]models.ObjectType{models.ObjectValue, models.ObjectParameter},
		},
		{
			"default environment",
			models.AuditQuery{EnvironmentID: defaultEnv},
			[]models.ObjectType{models.ObjectValue, models.ObjectEnvironment},
		},
		{
			"unrelated environment",
			models.AuditQuery{EnvironmentID: staging.ID},
			[]models.ObjectType{models.ObjectEnvironment},
		},
		{
			"project and type",
			models.AuditQuery{ProjectID: proj.ID, ObjectType: models.ObjectTemplate},
			[]models.ObjectType{models.ObjectTemplate},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := as.QueryAudit(ctx, sess.OrgID, tc.q, nil, 50)
			if err != nil {
				t.Fatalf("QueryAudit: %v", err)
			}
			if got := typesOf(entries); !sameTypes(got, tc.want) {
				t.Errorf("types = %v, want %v", got, tc.want)
			}
			for _, e := range entries {
				if tc.q.ProjectID != "" && e.ProjectID != tc.q.ProjectID {
					t.Errorf("%s entry %q has project %q", e.ObjectType, e.ObjectName, e.ProjectID)
				}
				if tc.q.EnvironmentID != "" && e.EnvironmentID != tc.q.EnvironmentID {
					t.Errorf("%s entry %q has environment %q", e.ObjectType, e.ObjectName, e.EnvironmentID)
				}
				if tc.q.ParameterID != "" && e.ParameterID != tc.q.ParameterID {
					t.Errorf("%s entry %q has parameter %q", e.ObjectType, e.ObjectName, e.ParameterID)
				}
			}
		})
	}
}

func TestQueryAudit_RepeatedQueryIsStable(t *testing.T) {
	base, sess := setupTestOrg(t)
	as := store.NewAuditStore(base)
	ctx := context.Background()

	if _, err := as.RecordAuditBatch(ctx, sess.OrgID, []models.AuditRecord{
		record("push-1", models.ObjectPush, models.ActionCreate, sess),
		record("push-2", models.ObjectPush, models.ActionCreate, sess),
	}); err != nil {
		t.Fatalf("RecordAuditBatch: %v", err)
	}

	q := models.AuditQuery{NameContains: "push"}
	first, err := as.QueryAudit(ctx, sess.OrgID, q, nil, 50)
	if err != nil {
		t.Fatalf("QueryAudit: %v", err)
	}
	second, err := as.QueryAudit(ctx, sess.OrgID, q, nil, 50)
	if err != nil {
		t.Fatalf("QueryAudit: %v", err)
	}

	if len(first) != 2 || len(second) != len(first) {
		t.Fatalf("results = %d then %d entries, want 2 both times", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("entry %d: id %d then %d", i, first[i].ID, second[i].ID)
		}
	}
}

func TestSummarizeAudit_TracksCatalogChanges(t *testing.T) {
	base, sess := setupTestOrg(t)
	as := store.NewAuditStore(base)
	cs := store.NewCatalogStore(base)
	ctx := context.Background()

	before, err := as.SummarizeAudit(ctx, sess.OrgID)
	if err != nil {
		t.Fatalf("SummarizeAudit: %v", err)
	}

	if _, err := cs.CreateEnvironment(ctx, sess, models.CreateNamedRequest{Name: "qa"}); err != nil {
		t.Fatalf("CreateEnvironment: %v", err)
	}
	created, err := as.SummarizeAudit(ctx, sess.OrgID)
	if err != nil {
		t.Fatalf("SummarizeAudit: %v", err)
	}
	if created.TotalRecords != before.TotalRecords+1 {
		t.Errorf("after create TotalRecords = %d, want %d", created.TotalRecords, before.TotalRecords+1)
	}
	if created.Latest == nil || created.Latest.Before(*before.Latest) {
		t.Errorf("after create Latest = %v, want at or after %v", created.Latest, before.Latest)
	}
	if !created.Earliest.Equal(*before.Earliest) {
		t.Errorf("Earliest moved from %v to %v", before.Earliest, created.Earliest)
	}

	if err := cs.DeleteEnvironment(ctx, sess, "qa"); err != nil {
		t.Fatalf("DeleteEnvironment: %v", err)
	}
	deleted, err := as.SummarizeAudit(ctx, sess.OrgID)
	if err != nil {
		t.Fatalf("SummarizeAudit: %v", err)
	}
	if deleted.TotalRecords != created.TotalRecords+1 {
		t.Errorf("after delete TotalRecords = %d, want %d", deleted.TotalRecords, created.TotalRecords+1)
	}
	if deleted.Latest.Before(*created.Latest) {
		t.Errorf("after delete Latest = %v, want at or after %v", deleted.Latest, created.Latest)
	}
}
