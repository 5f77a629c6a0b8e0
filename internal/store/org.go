package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/paramkeep/paramkeep/internal/dbpool"
	"github.com/paramkeep/paramkeep/internal/models"
)

// apiKeyPrefix marks paramkeep API keys so they are recognizable in configs.
const apiKeyPrefix = "pk_"

// NewAPIKey returns a random API key and the hash stored in its place.
func NewAPIKey() (key, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating API key: %w", err)
	}
	key = apiKeyPrefix + hex.EncodeToString(buf)
	return key, HashAPIKey(key), nil
}

// HashAPIKey returns the hex SHA-256 of an API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// OrgStore handles organization bootstrap and API key lookups. Neither runs
// inside an org context.
type OrgStore struct {
	Pool *dbpool.Pool
}

// NewOrgStore creates a new OrgStore.
func NewOrgStore(pool *dbpool.Pool) *OrgStore {
	return &OrgStore{Pool: pool}
}

// GetSessionByAPIKey resolves an API key to the session of its user.
func (s *OrgStore) GetSessionByAPIKey(ctx context.Context, apiKey string) (*models.Session, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var sess models.Session
	err := s.Pool.QueryRow(ctx,
		"SELECT org_id, id, name FROM users WHERE api_key_hash = $1",
		HashAPIKey(apiKey),
	).Scan(&sess.OrgID, &sess.UserID, &sess.UserName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("looking up API key: %w", models.ErrNotFound)
		}
		return nil, fmt.Errorf("looking up API key: %w", err)
	}

	return &sess, nil
}

// defaultEnvironment is created with every organization.
const defaultEnvironment = "default"

// Bootstrap creates an organization with its default environment and an admin
// user, and returns the admin's API key. The three creations are audited with
// the admin as actor.
func (s *OrgStore) Bootstrap(ctx context.Context, orgName, adminName string) (*models.Organization, *models.CreatedUser, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	key, hash, err := NewAPIKey()
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	var org models.Organization
	err = tx.QueryRow(ctx,
		"INSERT INTO organizations (name) VALUES ($1) RETURNING id, name, created_at", orgName,
	).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		return nil, nil, wrapWriteErr("creating organization", err)
	}

	if err := setOrg(ctx, tx, org.ID); err != nil {
		return nil, nil, err
	}

	admin := models.CreatedUser{APIKey: key}
	err = tx.QueryRow(ctx, `
		INSERT INTO users (org_id, name, kind, api_key_hash) VALUES ($1, $2, $3, $4)
		RETURNING id, name, kind, created_at`,
		org.ID, adminName, models.UserKindUser, hash,
	).Scan(&admin.ID, &admin.Name, &admin.Kind, &admin.CreatedAt)
	if err != nil {
		return nil, nil, wrapWriteErr("creating admin user", err)
	}

	var envID string
	err = tx.QueryRow(ctx,
		"INSERT INTO environments (org_id, name) VALUES ($1, $2) RETURNING id", org.ID, defaultEnvironment,
	).Scan(&envID)
	if err != nil {
		return nil, nil, wrapWriteErr("creating default environment", err)
	}

	sess := models.Session{OrgID: org.ID, UserID: admin.ID, UserName: admin.Name}
	for _, e := range []models.NewAuditEntry{
		{ObjectType: models.ObjectOrganization, ObjectID: org.ID, ObjectName: org.Name, Action: models.ActionCreate},
		{ObjectType: models.ObjectMembership, ObjectID: admin.ID, ObjectName: admin.Name, Action: models.ActionCreate},
		{ObjectType: models.ObjectEnvironment, ObjectID: envID, ObjectName: defaultEnvironment, Action: models.ActionCreate, EnvironmentID: envID},
	} {
		if err := appendAudit(ctx, tx, sess, e); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("committing bootstrap: %w", err)
	}

	return &org, &admin, nil
}

// userObjectType is the audit object type for a user of the given kind.
func userObjectType(kind string) models.ObjectType {
	if kind == models.UserKindServiceAccount {
		return models.ObjectServiceAccount
	}
	return models.ObjectMembership
}

// ListUsers returns the organization's users by name.
func (s *CatalogStore) ListUsers(ctx context.Context, sess models.Session) ([]models.User, error) {
	users, err := list[models.User](ctx, &s.Base, sess.OrgID,
		"SELECT id, name, kind, created_at FROM users WHERE org_id = $1 ORDER BY name LIMIT $2",
		sess.OrgID, maxListLimit)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// CreateUser inserts a user with a fresh API key. Only the key's hash is stored.
func (s *CatalogStore) CreateUser(
	ctx context.Context, sess models.Session, req models.CreateUserRequest,
) (*models.CreatedUser, error) {
	key, hash, err := NewAPIKey()
	if err != nil {
		return nil, err
	}

	u := models.CreatedUser{APIKey: key}
	err = s.mutate(ctx, sess, func(ctx context.Context, tx pgx.Tx) (models.NewAuditEntry, error) {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (org_id, name, kind, api_key_hash) VALUES ($1, $2, $3, $4)
			RETURNING id, name, kind, created_at`,
			sess.OrgID, req.Name, req.Kind, hash,
		).Scan(&u.ID, &u.Name, &u.Kind, &u.CreatedAt)
		if err != nil {
			return models.NewAuditEntry{}, wrapWriteErr("creating user", err)
		}

		return models.NewAuditEntry{
			ObjectType: userObjectType(u.Kind),
			ObjectID:   u.ID,
			ObjectName: u.Name,
			Action:     models.ActionCreate,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// DeleteUser deletes a user. Audit entries keep the user's name as actor.
func (s *CatalogStore) DeleteUser(ctx context.Context, sess models.Session, name string) error {
	return s.mutate(ctx, sess, func(ctx context.Context, tx pgx.Tx) (models.NewAuditEntry, error) {
		var id, kind string
		err := tx.QueryRow(ctx,
			"DELETE FROM users WHERE org_id = $1 AND name = $2 RETURNING id, kind",
			sess.OrgID, name,
		).Scan(&id, &kind)
		if err != nil {
			return models.NewAuditEntry{}, notFound(err, models.KindUser, name)
		}

		return models.NewAuditEntry{
			ObjectType: userObjectType(kind),
			ObjectID:   id,
			ObjectName: name,
			Action:     models.ActionDelete,
		}, nil
	})
}
