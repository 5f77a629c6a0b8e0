package service

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/paramkeep/paramkeep/internal/metrics"
	"github.com/paramkeep/paramkeep/internal/models"
)

// NameResolver maps the names used in audit filters to canonical ids.
// Lookups for names that do not exist fail with an error wrapping models.ErrNotFound.
type NameResolver interface {
	EnvironmentID(ctx context.Context, orgID, name string) (string, error)
	ProjectID(ctx context.Context, orgID, name string) (string, error)
	ParameterID(ctx context.Context, orgID, projectID, name string) (string, error)
	UserID(ctx context.Context, orgID, name string) (string, error)
}

// Compile-time check: *CachedResolver must satisfy NameResolver.
var _ NameResolver = (*CachedResolver)(nil)

const (
	defaultResolverCacheSize = 4096
	defaultResolverCacheTTL  = 30 * time.Second
	resolverFetchTimeout     = 5 * time.Second
)

type resolverKey struct {
	orgID string
	kind  string
	scope string
	name  string
}

func (k resolverKey) String() string {
	return k.orgID + "/" + k.kind + "/" + k.scope + "/" + k.name
}

// CachedResolver wraps a NameResolver with a bounded, expiring cache of
// successful lookups. Concurrent lookups of the same name share one call.
// Misses are never cached so a newly created object resolves immediately.
type CachedResolver struct {
	inner NameResolver
	cache *expirable.LRU[resolverKey, string]
	group singleflight.Group
}

// NewCachedResolver creates a CachedResolver. Non-positive size or ttl use defaults.
func NewCachedResolver(inner NameResolver, size int, ttl time.Duration) *CachedResolver {
	if size <= 0 {
		size = defaultResolverCacheSize
	}
	if ttl <= 0 {
		ttl = defaultResolverCacheTTL
	}
	return &CachedResolver{
		inner: inner,
		cache: expirable.NewLRU[resolverKey, string](size, nil, ttl),
	}
}

// EnvironmentID resolves an environment name.
func (r *CachedResolver) EnvironmentID(ctx context.Context, orgID, name string) (string, error) {
	key := resolverKey{orgID: orgID, kind: models.KindEnvironment, name: name}
	return r.lookup(ctx, key, func(ctx context.Context) (string, error) {
		return r.inner.EnvironmentID(ctx, orgID, name)
	})
}

// ProjectID resolves a project name.
func (r *CachedResolver) ProjectID(ctx context.Context, orgID, name string) (string, error) {
	key := resolverKey{orgID: orgID, kind: models.KindProject, name: name}
	return r.lookup(ctx, key, func(ctx context.Context) (string, error) {
		return r.inner.ProjectID(ctx, orgID, name)
	})
}

// ParameterID resolves a parameter name within a project.
func (r *CachedResolver) ParameterID(ctx context.Context, orgID, projectID, name string) (string, error) {
	key := resolverKey{orgID: orgID, kind: models.KindParameter, scope: projectID, name: name}
	return r.lookup(ctx, key, func(ctx context.Context) (string, error) {
		return r.inner.ParameterID(ctx, orgID, projectID, name)
	})
}

// UserID resolves a user name.
func (r *CachedResolver) UserID(ctx context.Context, orgID, name string) (string, error) {
	key := resolverKey{orgID: orgID, kind: models.KindUser, name: name}
	return r.lookup(ctx, key, func(ctx context.Context) (string, error) {
		return r.inner.UserID(ctx, orgID, name)
	})
}

func (r *CachedResolver) lookup(
	ctx context.Context, key resolverKey, fetch func(context.Context) (string, error),
) (string, error) {
	if id, ok := r.cache.Get(key); ok {
		metrics.ResolverLookups.WithLabelValues("hit").Inc()
		return id, nil
	}
	metrics.ResolverLookups.WithLabelValues("miss").Inc()

	// The shared fetch outlives any single caller; each caller still stops
	// waiting when its own context ends.
	ch := r.group.DoChan(key.String(), func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolverFetchTimeout)
		defer cancel()
		id, err := fetch(fetchCtx)
		if err == nil {
			r.cache.Add(key, id)
		}
		return id, err
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		id, _ := res.Val.(string) //nolint:errcheck // fetch always returns a string.
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// InvalidateOrg drops every cached name of the given organization.
func (r *CachedResolver) InvalidateOrg(orgID string) {
	for _, k := range r.cache.Keys() {
		if k.orgID == orgID {
			r.cache.Remove(k)
		}
	}
}

// HandleAuditEvent drops cached names when an entry reports that a resolvable
// object was deleted. It is fed by the LISTEN/NOTIFY bridge so every instance
// forgets deleted names, not only the one that served the delete.
func (r *CachedResolver) HandleAuditEvent(orgID string, objectType models.ObjectType, action models.Action) {
	if action != models.ActionDelete {
		return
	}
	switch objectType {
	case models.ObjectEnvironment, models.ObjectProject, models.ObjectParameter,
		models.ObjectServiceAccount, models.ObjectMembership:
		r.InvalidateOrg(orgID)
	}
}
