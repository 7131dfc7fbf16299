// Package tenant implements the tenant resolution and request-isolation
// core of the platform: mapping every inbound host to exactly one tenant,
// caching that mapping safely, enforcing activity and entitlement, and
// propagating the resolved context to storage and business handlers.
//
// # Architecture
//
// The package is built from four cooperating pieces:
//
//  1. Classifier - parses a request host into an addressing pattern
//     (subdomain, custom domain, localhost dev, bare IP) and a tenant key
//  2. Directory - the read-only lookup from key to tenant record
//  3. Cache - a TTL-bound, per-tenant-invalidatable resolution cache
//  4. Resolver - composes the three into one resolve operation
//
// The Middleware orchestrates them per request and is the only place
// rejections are converted to HTTP responses.
//
// # Usage
//
//	classifier := tenant.NewClassifier("oneclass.ac.zw", "")
//	resolver := tenant.NewResolver(classifier, directory,
//		tenant.WithCache(tenant.NewMemoryCache(ctx)),
//		tenant.WithCacheTTL(5*time.Minute),
//	)
//
//	mw := tenant.Middleware(resolver, extractor,
//		tenant.WithPublicPrefixes("/healthz", "/readyz"),
//		tenant.WithPlatformAdminPrefixes("/api/v1/platform"),
//		tenant.WithModuleMap(map[string]string{
//			"/api/v1/finance": "finance_management",
//		}),
//	)
//	router.Use(mw)
//
// Handlers read the resolved context through the ambient accessors:
//
//	tc := tenant.MustFromContext(r.Context())
//	_ = tc.Resolution.ID
//
// # Caching invariants
//
// The cache is keyed by normalized host and is a pure optimization:
// every path is correct, only slower, with the cache cold or disabled.
// Inactive, partial or cancelled resolutions are never cached, so a
// deactivated tenant is rejected and a reactivated one served without
// waiting for TTL expiry. DeleteByTenant drops every key mapping to a
// tenant (subdomain and custom domain alike) atomically with respect to
// concurrent reads.
//
// # School switching
//
// A request may act in a tenant other than the one its host resolved to
// by naming a switch target. The middleware validates an active
// membership for the target, re-resolves, and replaces (never merges)
// the active resolution; on any failure the request is rejected and the
// original resolution remains in force.
package tenant
