package tenant

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
)

// Default request headers consulted by the middleware.
const (
	// DefaultSwitchHeader names the school-switch target tenant id.
	DefaultSwitchHeader = "X-School-Switch"
	// DefaultOverrideHeader carries the development tenant override for
	// localhost and bare-IP hosts.
	DefaultOverrideHeader = "X-Dev-Tenant"
	// DefaultPlatformAdminRole is the session role allowed on
	// platform-admin routes.
	DefaultPlatformAdminRole = "platform_admin"
)

// ErrorHandler converts a middleware rejection into an HTTP response.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// IsolationFunc writes the resolved tenant id into the storage layer's
// isolation parameter. The middleware invokes it exactly once per
// tenant-scoped request, whether or not the route issues queries.
type IsolationFunc func(ctx context.Context, tenantID string) (context.Context, error)

// moduleRule maps one path prefix to the module it requires.
type moduleRule struct {
	prefix string
	module string
}

type config struct {
	publicPrefixes []string
	adminPrefixes  []string
	adminRole      string
	moduleRules    []moduleRule
	switchHeader   string
	overrideHeader string
	isolate        IsolationFunc
	errorHandler   ErrorHandler
	logger         *slog.Logger
}

// Option configures the middleware.
type Option func(*config)

// WithPublicPrefixes marks path prefixes that skip tenant resolution
// entirely (health checks, anonymous onboarding reads).
func WithPublicPrefixes(prefixes ...string) Option {
	return func(c *config) {
		c.publicPrefixes = append(c.publicPrefixes, prefixes...)
	}
}

// WithPlatformAdminPrefixes marks path prefixes that skip per-tenant
// resolution but require the platform admin role.
func WithPlatformAdminPrefixes(prefixes ...string) Option {
	return func(c *config) {
		c.adminPrefixes = append(c.adminPrefixes, prefixes...)
	}
}

// WithPlatformAdminRole overrides the role name accepted on
// platform-admin routes.
func WithPlatformAdminRole(role string) Option {
	return func(c *config) {
		if role != "" {
			c.adminRole = role
		}
	}
}

// WithModuleMap installs the static path-prefix to required-module
// table used for entitlement checks. Longer prefixes win; unmapped
// paths always pass.
func WithModuleMap(modules map[string]string) Option {
	return func(c *config) {
		for prefix, module := range modules {
			if prefix == "" || module == "" {
				continue
			}
			c.moduleRules = append(c.moduleRules, moduleRule{prefix: prefix, module: module})
		}
		sort.Slice(c.moduleRules, func(i, j int) bool {
			return len(c.moduleRules[i].prefix) > len(c.moduleRules[j].prefix)
		})
	}
}

// WithSwitchHeader overrides the school-switch request header.
func WithSwitchHeader(name string) Option {
	return func(c *config) {
		if name != "" {
			c.switchHeader = name
		}
	}
}

// WithOverrideHeader overrides the development tenant override header.
func WithOverrideHeader(name string) Option {
	return func(c *config) {
		if name != "" {
			c.overrideHeader = name
		}
	}
}

// WithIsolation replaces the storage isolation hook. The default writes
// the tenant id into the request context, where the pg pool wrapper
// picks it up for row-level security.
func WithIsolation(fn IsolationFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.isolate = fn
		}
	}
}

// WithErrorHandler replaces the JSON rejection writer.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *config) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithLogger sets the logger for completion lines and fault reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

type routeClass int

const (
	routeTenantScoped routeClass = iota
	routePublic
	routePlatformAdmin
)

// classifyRoute picks the route class by path prefix. Tenant-scoped is
// the default: a route must opt out of resolution, never into it.
func (c *config) classifyRoute(path string) routeClass {
	for _, prefix := range c.publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return routePublic
		}
	}
	for _, prefix := range c.adminPrefixes {
		if strings.HasPrefix(path, prefix) {
			return routePlatformAdmin
		}
	}
	return routeTenantScoped
}

// moduleForPath returns the module required by the longest matching
// prefix rule.
func (c *config) moduleForPath(path string) (string, bool) {
	for _, rule := range c.moduleRules {
		if strings.HasPrefix(path, rule.prefix) {
			return rule.module, true
		}
	}
	return "", false
}
