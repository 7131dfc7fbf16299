package tenant_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneclass-zw/platform/pkg/tenant"
)

// stubDirectory is an in-memory tenant.Directory that counts lookups and
// can inject faults and latency.
type stubDirectory struct {
	mu      sync.Mutex
	tenants []*tenant.Tenant
	lookups int
	fail    error
	delay   time.Duration
}

func (d *stubDirectory) find(ctx context.Context, match func(*tenant.Tenant) bool) (*tenant.Tenant, error) {
	d.mu.Lock()
	d.lookups++
	fail, delay := d.fail, d.delay
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		return nil, fail
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tenants {
		if match(t) {
			copied := *t
			return &copied, nil
		}
	}
	return nil, tenant.ErrTenantNotFound
}

func (d *stubDirectory) FindBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	return d.find(ctx, func(t *tenant.Tenant) bool { return t.Subdomain == subdomain })
}

func (d *stubDirectory) FindByCustomDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	return d.find(ctx, func(t *tenant.Tenant) bool { return t.CustomDomain == domain })
}

func (d *stubDirectory) FindByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	return d.find(ctx, func(t *tenant.Tenant) bool { return t.ID == id })
}

func (d *stubDirectory) lookupCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookups
}

func (d *stubDirectory) setActive(id string, active bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.tenants {
		if t.ID == id {
			t.Active = active
		}
	}
}

func greenfieldDirectory() *stubDirectory {
	return &stubDirectory{tenants: []*tenant.Tenant{
		{
			ID:           "T1",
			Name:         "Greenfield Primary",
			Subdomain:    "greenfield",
			CustomDomain: "www.greenfield-school.org",
			Tier:         "standard",
			Modules:      []string{"sis"},
			Active:       true,
		},
	}}
}

func newTestResolver(ctx context.Context, dir tenant.Directory, opts ...tenant.ResolverOption) *tenant.Resolver {
	base := []tenant.ResolverOption{tenant.WithCache(tenant.NewMemoryCache(ctx))}
	return tenant.NewResolver(
		tenant.NewClassifier(baseDomain, ""),
		dir,
		append(base, opts...)...,
	)
}

func TestResolverResolve(t *testing.T) {
	t.Parallel()

	t.Run("resolves a subdomain host", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		resolver := newTestResolver(ctx, greenfieldDirectory())
		defer resolver.Close()

		res, err := resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		require.NoError(t, err)
		assert.Equal(t, "T1", res.ID)
		assert.Equal(t, tenant.PatternSubdomain, res.Pattern)
		assert.Equal(t, "greenfield."+baseDomain, res.CacheKey)
	})

	t.Run("resolves a custom domain host", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		resolver := newTestResolver(ctx, greenfieldDirectory())
		defer resolver.Close()

		res, err := resolver.Resolve(ctx, "www.greenfield-school.org", "", false)
		require.NoError(t, err)
		assert.Equal(t, "T1", res.ID)
		assert.Equal(t, tenant.PatternCustomDomain, res.Pattern)
	})

	t.Run("resolves localhost override like a subdomain", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		resolver := newTestResolver(ctx, greenfieldDirectory())
		defer resolver.Close()

		res, err := resolver.Resolve(ctx, "localhost:3000", "greenfield", false)
		require.NoError(t, err)
		assert.Equal(t, "T1", res.ID)
		assert.Equal(t, tenant.PatternLocalhostDev, res.Pattern)
	})

	t.Run("second resolve is a cache hit", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dir := greenfieldDirectory()
		resolver := newTestResolver(ctx, dir)
		defer resolver.Close()

		first, err := resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		require.NoError(t, err)
		second, err := resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.Tier, second.Tier)
		assert.Equal(t, first.Modules, second.Modules)
		assert.Equal(t, 1, dir.lookupCount(), "cache hit must not touch the directory")
	})

	t.Run("force refresh bypasses the cache", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dir := greenfieldDirectory()
		resolver := newTestResolver(ctx, dir)
		defer resolver.Close()

		_, err := resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		require.NoError(t, err)
		_, err = resolver.Resolve(ctx, "greenfield."+baseDomain, "", true)
		require.NoError(t, err)

		assert.Equal(t, 2, dir.lookupCount())
	})

	t.Run("unknown tenant is not found and not cached", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dir := greenfieldDirectory()
		resolver := newTestResolver(ctx, dir)
		defer resolver.Close()

		_, err := resolver.Resolve(ctx, "unknown-school."+baseDomain, "", false)
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)

		_, err = resolver.Resolve(ctx, "unknown-school."+baseDomain, "", false)
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
		assert.Equal(t, 2, dir.lookupCount(), "absence must not be cached")
	})

	t.Run("invalid host fails classification", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		resolver := newTestResolver(ctx, greenfieldDirectory())
		defer resolver.Close()

		_, err := resolver.Resolve(ctx, "ab..cd", "", false)
		assert.ErrorIs(t, err, tenant.ErrInvalidHost)
	})

	t.Run("inactive tenant is returned but never cached", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dir := greenfieldDirectory()
		dir.setActive("T1", false)
		resolver := newTestResolver(ctx, dir)
		defer resolver.Close()

		res, err := resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		require.NoError(t, err)
		assert.False(t, res.Active)

		// Reactivation is visible immediately because nothing was cached.
		dir.setActive("T1", true)
		res, err = resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		require.NoError(t, err)
		assert.True(t, res.Active)
		assert.Equal(t, 2, dir.lookupCount())
	})

	t.Run("deactivation flip bypassing cache via force refresh", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dir := greenfieldDirectory()
		resolver := newTestResolver(ctx, dir)
		defer resolver.Close()

		res, err := resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		require.NoError(t, err)
		assert.True(t, res.Active)

		dir.setActive("T1", false)
		res, err = resolver.Resolve(ctx, "greenfield."+baseDomain, "", true)
		require.NoError(t, err)
		assert.False(t, res.Active)

		// The inactive result must not have refreshed the cache.
		dir.setActive("T1", true)
		res, err = resolver.Resolve(ctx, "greenfield."+baseDomain, "", true)
		require.NoError(t, err)
		assert.True(t, res.Active)
	})

	t.Run("lookup timeout is a resolver fault", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dir := greenfieldDirectory()
		dir.delay = 200 * time.Millisecond
		resolver := newTestResolver(ctx, dir, tenant.WithLookupTimeout(10*time.Millisecond))
		defer resolver.Close()

		_, err := resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		assert.ErrorIs(t, err, tenant.ErrResolutionUnavailable)
		assert.NotErrorIs(t, err, tenant.ErrTenantNotFound, "an outage must never look like missing data")
	})

	t.Run("storage fault is a resolver fault", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dir := greenfieldDirectory()
		dir.fail = errors.New("connection refused")
		resolver := newTestResolver(ctx, dir)
		defer resolver.Close()

		_, err := resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		assert.ErrorIs(t, err, tenant.ErrResolutionUnavailable)
	})

	t.Run("cancelled resolution is not cached", func(t *testing.T) {
		t.Parallel()

		dir := greenfieldDirectory()
		resolver := newTestResolver(context.Background(), dir)
		defer resolver.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		if err == nil {
			// The stub answered before noticing cancellation; the result
			// must still have stayed out of the cache.
			_, err = resolver.Resolve(context.Background(), "greenfield."+baseDomain, "", false)
			require.NoError(t, err)
			assert.Equal(t, 2, dir.lookupCount())
		}
	})
}

func TestResolverResolveByID(t *testing.T) {
	t.Parallel()

	t.Run("resolves by tenant id", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		resolver := newTestResolver(ctx, greenfieldDirectory())
		defer resolver.Close()

		res, err := resolver.ResolveByID(ctx, "T1")
		require.NoError(t, err)
		assert.Equal(t, "T1", res.ID)
		assert.Equal(t, tenant.PatternSchoolSwitch, res.Pattern, "by-id resolutions are not host-addressed")
	})

	t.Run("caches by id separately from hosts", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dir := greenfieldDirectory()
		resolver := newTestResolver(ctx, dir)
		defer resolver.Close()

		_, err := resolver.ResolveByID(ctx, "T1")
		require.NoError(t, err)
		_, err = resolver.ResolveByID(ctx, "T1")
		require.NoError(t, err)
		assert.Equal(t, 1, dir.lookupCount())
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		resolver := newTestResolver(ctx, greenfieldDirectory())
		defer resolver.Close()

		_, err := resolver.ResolveByID(ctx, "T9")
		assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	})
}

func TestResolverInvalidation(t *testing.T) {
	t.Parallel()

	t.Run("invalidate by tenant forces a fresh lookup", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dir := greenfieldDirectory()
		resolver := newTestResolver(ctx, dir)
		defer resolver.Close()

		_, err := resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		require.NoError(t, err)
		_, err = resolver.Resolve(ctx, "www.greenfield-school.org", "", false)
		require.NoError(t, err)
		require.Equal(t, 2, dir.lookupCount())

		resolver.InvalidateTenant(ctx, "T1")

		_, err = resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		require.NoError(t, err)
		_, err = resolver.Resolve(ctx, "www.greenfield-school.org", "", false)
		require.NoError(t, err)
		assert.Equal(t, 4, dir.lookupCount(), "both host mappings must be dropped regardless of remaining TTL")
	})

	t.Run("invalidate by host drops one mapping", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		dir := greenfieldDirectory()
		resolver := newTestResolver(ctx, dir)
		defer resolver.Close()

		_, err := resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		require.NoError(t, err)

		resolver.InvalidateHost(ctx, "Greenfield."+baseDomain+":443")

		_, err = resolver.Resolve(ctx, "greenfield."+baseDomain, "", false)
		require.NoError(t, err)
		assert.Equal(t, 2, dir.lookupCount())
	})
}
