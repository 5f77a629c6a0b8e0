package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/paramkeep/paramkeep/internal/models"
)

const (
	sessionCacheTTL  = 5 * time.Minute
	negativeCacheTTL = 30 * time.Second
	maxCacheEntries  = 10000
)

// errCachedNotFound is returned for negative cache hits.
var errCachedNotFound = errors.New("api key not found (cached)")

// hashKey returns a hex-encoded SHA-256 hash of the API key so raw keys
// are never stored in memory.
func hashKey(apiKey string) string {
	h := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(h[:])
}

// CachedSessionLookup wraps a SessionLookup with bounded, expiring caches.
// Failed lookups are remembered for a shorter time than successful ones.
type CachedSessionLookup struct {
	inner    SessionLookup
	sessions *expirable.LRU[string, models.Session]
	negative *expirable.LRU[string, struct{}]
}

// NewCachedSessionLookup creates a caching wrapper around the given SessionLookup.
func NewCachedSessionLookup(inner SessionLookup) *CachedSessionLookup {
	return &CachedSessionLookup{
		inner:    inner,
		sessions: expirable.NewLRU[string, models.Session](maxCacheEntries, nil, sessionCacheTTL),
		negative: expirable.NewLRU[string, struct{}](maxCacheEntries, nil, negativeCacheTTL),
	}
}

// GetSessionByAPIKey returns a cached session or delegates to the inner lookup.
func (c *CachedSessionLookup) GetSessionByAPIKey(ctx context.Context, apiKey string) (*models.Session, error) {
	hk := hashKey(apiKey)

	if sess, ok := c.sessions.Get(hk); ok {
		return &sess, nil
	}
	if c.negative.Contains(hk) {
		return nil, errCachedNotFound
	}

	sess, err := c.inner.GetSessionByAPIKey(ctx, apiKey)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.negative.Add(hk, struct{}{})
		}
		return nil, err
	}

	c.sessions.Add(hk, *sess)
	return sess, nil
}

// InvalidateOrg drops the cached sessions of an organization, so a deleted
// user's key stops working immediately.
func (c *CachedSessionLookup) InvalidateOrg(orgID string) {
	for _, k := range c.sessions.Keys() {
		if sess, ok := c.sessions.Peek(k); ok && sess.OrgID == orgID {
			c.sessions.Remove(k)
		}
	}
}

// HandleAuditEvent invalidates an organization's sessions when one of its
// users is deleted on any instance.
func (c *CachedSessionLookup) HandleAuditEvent(orgID string, objectType models.ObjectType, action models.Action) {
	if action != models.ActionDelete {
		return
	}
	if objectType == models.ObjectMembership || objectType == models.ObjectServiceAccount {
		c.InvalidateOrg(orgID)
	}
}
