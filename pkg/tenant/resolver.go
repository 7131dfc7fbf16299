package tenant

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultCacheTTL bounds how long a resolution may be served without
	// consulting the directory.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultLookupTimeout bounds a single directory lookup. A timeout is
	// a resolver fault, never "tenant not found".
	DefaultLookupTimeout = 3 * time.Second

	// idKeyPrefix namespaces cache keys for by-id resolutions (school
	// switches) so they cannot collide with normalized host keys.
	idKeyPrefix = "id:"
)

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache sets the resolution cache. Defaults to NewNoopCache.
func WithCache(cache Cache) ResolverOption {
	return func(r *Resolver) {
		if cache != nil {
			r.cache = cache
		}
	}
}

// WithCacheTTL sets how long resolutions stay cached.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithLookupTimeout bounds each directory lookup.
func WithLookupTimeout(timeout time.Duration) ResolverOption {
	return func(r *Resolver) {
		if timeout > 0 {
			r.lookupTimeout = timeout
		}
	}
}

// Resolver composes the host classifier, the tenant directory and the
// resolution cache into one resolve operation. It owns its cache and
// directory reference; construct one at startup and inject it where
// needed instead of sharing globals.
type Resolver struct {
	classifier    *Classifier
	directory     Directory
	cache         Cache
	ttl           time.Duration
	lookupTimeout time.Duration
}

// NewResolver creates a resolver over the given classifier and directory.
func NewResolver(classifier *Classifier, directory Directory, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		classifier:    classifier,
		directory:     directory,
		cache:         NewNoopCache(),
		ttl:           DefaultCacheTTL,
		lookupTimeout: DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve maps a request host to a tenant resolution.
//
// The cache is consulted first unless forceRefresh is set. On a miss the
// host is classified and the directory queried under the lookup timeout.
// An inactive tenant is returned but never cached, so a flip back to
// active is visible immediately. Classification failures surface as
// ErrInvalidHost, missing tenants as ErrTenantNotFound, and directory
// faults or timeouts as ErrResolutionUnavailable.
func (r *Resolver) Resolve(ctx context.Context, host, override string, forceRefresh bool) (*Resolution, error) {
	cacheKey := NormalizeHost(host)

	if !forceRefresh {
		if res, ok := r.cache.Get(ctx, cacheKey); ok {
			return res, nil
		}
	}

	key, err := r.classifier.Classify(host, override)
	if err != nil {
		return nil, err
	}

	record, err := r.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	return r.finish(ctx, record, key.Pattern, cacheKey)
}

// ResolveByID resolves a tenant by its directory id. School switches use
// this path after membership validation; the request host plays no role,
// so the resolution carries PatternSchoolSwitch rather than a host pattern.
func (r *Resolver) ResolveByID(ctx context.Context, tenantID string) (*Resolution, error) {
	cacheKey := idKeyPrefix + tenantID

	if res, ok := r.cache.Get(ctx, cacheKey); ok {
		return res, nil
	}

	record, err := r.guard(ctx, func(ctx context.Context) (*Tenant, error) {
		return r.directory.FindByID(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	return r.finish(ctx, record, PatternSchoolSwitch, cacheKey)
}

// InvalidateTenant drops every cached resolution for the tenant. Admin
// tooling calls this after directory writes (deactivation, domain or
// entitlement changes) so no stale entry outlives the change.
func (r *Resolver) InvalidateTenant(ctx context.Context, tenantID string) {
	r.cache.DeleteByTenant(ctx, tenantID)
}

// InvalidateHost drops the cached resolution for one host.
func (r *Resolver) InvalidateHost(ctx context.Context, host string) {
	r.cache.Delete(ctx, NormalizeHost(host))
}

// Close releases the resolver's cache.
func (r *Resolver) Close() error {
	return r.cache.Close()
}

// lookup routes the tenant key to the matching directory query.
// Localhost and IP overrides name a subdomain, so they share that lookup.
func (r *Resolver) lookup(ctx context.Context, key Key) (*Tenant, error) {
	return r.guard(ctx, func(ctx context.Context) (*Tenant, error) {
		if key.Pattern == PatternCustomDomain {
			return r.directory.FindByCustomDomain(ctx, key.Value)
		}
		return r.directory.FindBySubdomain(ctx, key.Value)
	})
}

// guard runs one directory query under the lookup timeout and maps its
// failure modes: absence stays ErrTenantNotFound, everything else
// (timeout, cancellation, storage fault) becomes ErrResolutionUnavailable.
func (r *Resolver) guard(ctx context.Context, query func(context.Context) (*Tenant, error)) (*Tenant, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	record, err := query(lookupCtx)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, errors.Join(ErrResolutionUnavailable, err)
	}
	if record == nil {
		return nil, ErrTenantNotFound
	}
	return record, nil
}

// finish builds the resolution and caches it only when the tenant is
// active and the request has not been cancelled mid-flight. A partial or
// inactive resolution must never be served from cache.
func (r *Resolver) finish(ctx context.Context, record *Tenant, pattern Pattern, cacheKey string) (*Resolution, error) {
	now := time.Now()
	res := &Resolution{
		Tenant:     *record,
		Pattern:    pattern,
		ResolvedAt: now,
		CacheKey:   cacheKey,
		ExpiresAt:  now.Add(r.ttl),
	}
	if record.Active && ctx.Err() == nil {
		r.cache.Set(ctx, cacheKey, res, r.ttl)
	}
	return res, nil
}
