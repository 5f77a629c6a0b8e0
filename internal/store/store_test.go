package store_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/paramkeep/paramkeep/internal/db"
	"github.com/paramkeep/paramkeep/internal/db/migrations"
	"github.com/paramkeep/paramkeep/internal/dbpool"
	"github.com/paramkeep/paramkeep/internal/models"
	"github.com/paramkeep/paramkeep/internal/store"
)

// testEnv holds shared test infrastructure (single pool across all tests).
type testEnv struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

var (
	sharedEnv  *testEnv
	sharedOnce sync.Once
	sharedErr  error
)

func getTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	sharedOnce.Do(func() {
		ctx := context.Background()

		pool, err := dbpool.NewPool(ctx, dbURL, dbpool.Options{})
		if err != nil {
			sharedErr = err
			return
		}

		log := logrus.New()
		log.SetLevel(logrus.ErrorLevel)

		if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
			sharedErr = err
			return
		}

		sharedEnv = &testEnv{pool: pool, log: log}
	})
	if sharedErr != nil {
		t.Fatalf("preparing test DB: %v", sharedErr)
	}

	return sharedEnv
}

// setupTestOrg bootstraps a fresh organization, removed after the test.
func setupTestOrg(t *testing.T) (store.Base, models.Session) {
	t.Helper()

	env := getTestEnv(t)
	ctx := context.Background()

	org, admin, err := store.NewOrgStore(env.pool).Bootstrap(ctx, "test-org-"+uuid.NewString()[:8], "admin")
	if err != nil {
		t.Fatalf("bootstrapping test org: %v", err)
	}

	t.Cleanup(func() {
		env.pool.Exec(context.Background(), "DELETE FROM organizations WHERE id = $1", org.ID) //nolint:errcheck // best-effort cleanup
	})

	base := store.Base{Pool: env.pool, Log: env.log}
	sess := models.Session{OrgID: org.ID, UserID: admin.ID, UserName: admin.Name}

	return base, sess
}
