package tenant

import (
	"context"
	"log/slog"

	"github.com/oneclass-zw/platform/pkg/identity"
)

// Context is the per-request composite built by the middleware and
// discarded when the response completes. Exactly one resolution is
// active per request; a school switch replaces it, never merges.
type Context struct {
	Resolution *Resolution
	Session    *identity.SessionDescriptor
	RequestID  string

	// IsSwitch marks a request acting in a tenant other than the one the
	// host resolved to. OriginTenantID then holds the host's tenant.
	IsSwitch       bool
	OriginTenantID string
}

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// WithContext attaches the request tenant context.
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext retrieves the request tenant context, if present.
func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(*Context)
	return tc, ok && tc != nil
}

// MustFromContext retrieves the request tenant context and panics when it
// is absent. A tenant-scoped route that dispatched without a context is a
// wiring bug, not a runtime condition, so failing loudly is correct.
func MustFromContext(ctx context.Context) *Context {
	tc, ok := FromContext(ctx)
	if !ok {
		panic(ErrNoContext)
	}
	return tc
}

// IDFromContext returns the active tenant id without exposing the full
// context. Returns false on public and platform-admin requests.
func IDFromContext(ctx context.Context) (string, bool) {
	tc, ok := FromContext(ctx)
	if !ok || tc.Resolution == nil {
		return "", false
	}
	return tc.Resolution.ID, true
}

// SessionFromContext returns the verified session, if any. An absent
// session is a normal outcome on anonymous requests.
func SessionFromContext(ctx context.Context) (*identity.SessionDescriptor, bool) {
	tc, ok := FromContext(ctx)
	if !ok || tc.Session == nil {
		return nil, false
	}
	return tc.Session, true
}

// LoggerExtractor enriches log records with the active tenant id.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := IDFromContext(ctx); ok {
			return slog.String("tenant_id", id), true
		}
		return slog.Attr{}, false
	}
}
