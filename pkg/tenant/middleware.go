package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/oneclass-zw/platform/pkg/identity"
	"github.com/oneclass-zw/platform/pkg/requestid"
)

// Response headers written for resolved requests.
const (
	HeaderTenantID       = "X-Tenant-Id"
	HeaderTenantName     = "X-Tenant-Name"
	HeaderTenantTier     = "X-Tenant-Tier"
	HeaderTenantPattern  = "X-Tenant-Pattern"
	HeaderSchoolSwitch   = "X-School-Switch"
	HeaderOriginalSchool = "X-Original-School"
)

// isolationKey carries the tenant id consumed by the storage layer's
// row-level-security scoping.
type isolationKey struct{}

// WithIsolatedTenant writes the isolation parameter into the context.
// This is the default IsolationFunc target; storage adapters read it
// back via IsolatedTenantID.
func WithIsolatedTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, isolationKey{}, tenantID)
}

// IsolatedTenantID returns the tenant id previously written by the
// middleware's isolation step.
func IsolatedTenantID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(isolationKey{}).(string)
	return id, ok && id != ""
}

// Middleware orchestrates tenant resolution for every request: it
// classifies the route, resolves the tenant, applies school switches,
// configures storage isolation, enforces entitlements, decorates the
// response and emits one completion log line. Rejections become
// structured JSON at this boundary and never reach business handlers.
func Middleware(resolver *Resolver, extractor *identity.Extractor, opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		adminRole:      DefaultPlatformAdminRole,
		switchHeader:   DefaultSwitchHeader,
		overrideHeader: DefaultOverrideHeader,
		isolate: func(ctx context.Context, tenantID string) (context.Context, error) {
			return WithIsolatedTenant(ctx, tenantID), nil
		},
		errorHandler: WriteError,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Public routes serve anonymously regardless of whatever
			// credential the request happens to carry.
			route := cfg.classifyRoute(r.URL.Path)
			if route == routePublic {
				next.ServeHTTP(w, r)
				return
			}

			session, err := extractSession(extractor, r)
			if err != nil {
				cfg.errorHandler(w, r, err)
				return
			}

			if route == routePlatformAdmin {
				if session == nil || session.Role != cfg.adminRole {
					cfg.errorHandler(w, r, ErrPlatformAdminRequired)
					return
				}
				ctx := WithContext(r.Context(), &Context{
					Session:   session,
					RequestID: requestid.FromContext(r.Context()),
				})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			cfg.serveTenantScoped(w, r, resolver, session, start, next)
		})
	}
}

// serveTenantScoped drives the tenant-scoped path: resolve, switch,
// isolate, check entitlement, dispatch, log.
func (cfg *config) serveTenantScoped(w http.ResponseWriter, r *http.Request, resolver *Resolver, session *identity.SessionDescriptor, start time.Time, next http.Handler) {
	ctx := r.Context()

	res, err := resolver.Resolve(ctx, r.Host, r.Header.Get(cfg.overrideHeader), false)
	if err != nil {
		cfg.reject(w, r, err)
		return
	}
	if !res.Active {
		cfg.reject(w, r, ErrTenantInactive)
		return
	}

	tc := &Context{
		Resolution: res,
		Session:    session,
		RequestID:  requestid.FromContext(ctx),
	}

	// A switch target matching the resolved tenant is a no-op, not a switch.
	if target := r.Header.Get(cfg.switchHeader); target != "" && target != res.ID {
		switched, err := cfg.applySwitch(ctx, resolver, session, target)
		if err != nil {
			// The original resolution stays untouched; there is no
			// silent fallback to the host's tenant.
			cfg.reject(w, r, err)
			return
		}
		tc.OriginTenantID = res.ID
		tc.IsSwitch = true
		tc.Resolution = switched
	}

	ctx, err = cfg.isolate(ctx, tc.Resolution.ID)
	if err != nil {
		cfg.reject(w, r, errors.Join(ErrResolutionUnavailable, err))
		return
	}

	if module, mapped := cfg.moduleForPath(r.URL.Path); mapped && !tc.Resolution.HasModule(module) {
		cfg.reject(w, r, NewModuleError(module, tc.Resolution))
		return
	}

	decorate(w.Header(), tc)
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	next.ServeHTTP(rec, r.WithContext(WithContext(ctx, tc)))

	cfg.logger.InfoContext(ctx, "request completed",
		slog.String("route", r.URL.Path),
		slog.String("tenant_id", tc.Resolution.ID),
		slog.String("pattern", string(tc.Resolution.Pattern)),
		slog.Int("status", rec.status),
		slog.Duration("duration", time.Since(start)),
	)
}

// applySwitch validates an active membership for the target tenant and
// re-resolves for it. The caller only replaces the active resolution on
// success.
func (cfg *config) applySwitch(ctx context.Context, resolver *Resolver, session *identity.SessionDescriptor, target string) (*Resolution, error) {
	if session == nil {
		return nil, ErrCrossTenantDenied
	}
	if _, ok := session.ActiveMembership(target); !ok {
		return nil, ErrCrossTenantDenied
	}

	switched, err := resolver.ResolveByID(ctx, target)
	if err != nil {
		return nil, err
	}
	if !switched.Active {
		return nil, ErrTenantInactive
	}
	return switched, nil
}

// reject logs resolver faults before writing the response. Faults carry
// host and request-id context in the log but never leak internals to
// the client.
func (cfg *config) reject(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrResolutionUnavailable) {
		cfg.logger.ErrorContext(r.Context(), "tenant resolution failed",
			slog.String("host", r.Host),
			slog.String("route", r.URL.Path),
			slog.Any("error", err),
		)
	}
	cfg.errorHandler(w, r, err)
}

func extractSession(extractor *identity.Extractor, r *http.Request) (*identity.SessionDescriptor, error) {
	if extractor == nil {
		return nil, nil
	}
	return extractor.Extract(r)
}

func decorate(h http.Header, tc *Context) {
	h.Set(HeaderTenantID, tc.Resolution.ID)
	h.Set(HeaderTenantName, tc.Resolution.Name)
	h.Set(HeaderTenantTier, tc.Resolution.Tier)
	h.Set(HeaderTenantPattern, string(tc.Resolution.Pattern))
	if tc.IsSwitch {
		h.Set(HeaderSchoolSwitch, tc.Resolution.ID)
		h.Set(HeaderOriginalSchool, tc.OriginTenantID)
	}
}

// errorResponse is the JSON body written for every rejection.
type errorResponse struct {
	Error          string   `json:"error"`
	Message        string   `json:"message"`
	RequestID      string   `json:"request_id,omitempty"`
	Module         string   `json:"module,omitempty"`
	Tier           string   `json:"tier,omitempty"`
	EnabledModules []string `json:"enabled_modules,omitempty"`
}

// WriteError is the default ErrorHandler. It maps the rejection taxonomy
// to status codes and machine-readable codes, attaching the correlation
// id to every outcome and the entitlement payload to module rejections.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{RequestID: requestid.FromContext(r.Context())}
	status := http.StatusInternalServerError
	resp.Error = "internal_error"
	resp.Message = "internal server error"

	var moduleErr *ModuleError
	switch {
	case errors.As(err, &moduleErr):
		status = http.StatusForbidden
		resp.Error = "module_not_available"
		resp.Message = moduleErr.Error()
		resp.Module = moduleErr.Module
		resp.Tier = moduleErr.Tier
		resp.EnabledModules = moduleErr.Enabled
	case errors.Is(err, ErrInvalidHost):
		status = http.StatusBadRequest
		resp.Error = "invalid_host"
		resp.Message = "request host cannot be mapped to a tenant"
	case errors.Is(err, ErrTenantNotFound):
		status = http.StatusNotFound
		resp.Error = "tenant_not_found"
		resp.Message = "no tenant matches the request host"
	case errors.Is(err, ErrTenantInactive):
		status = http.StatusForbidden
		resp.Error = "tenant_inactive"
		resp.Message = "tenant is not active"
	case errors.Is(err, ErrCrossTenantDenied):
		status = http.StatusForbidden
		resp.Error = "cross_tenant_access_denied"
		resp.Message = "no active membership in the target tenant"
	case errors.Is(err, ErrPlatformAdminRequired):
		status = http.StatusForbidden
		resp.Error = "platform_admin_required"
		resp.Message = "platform admin role required"
	case errors.Is(err, ErrResolutionUnavailable):
		status = http.StatusServiceUnavailable
		resp.Error = "tenant_resolution_unavailable"
		resp.Message = "tenant resolution is temporarily unavailable"
	case errors.Is(err, identity.ErrInvalidCredential):
		status = http.StatusUnauthorized
		resp.Error = "invalid_credentials"
		resp.Message = "credential failed verification"
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// statusRecorder captures the status code for the completion log line.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
