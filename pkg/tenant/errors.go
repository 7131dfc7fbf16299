package tenant

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHost is returned when a request host cannot be classified
	// into any addressing pattern. Classification failure is terminal and
	// never falls back to a default tenant.
	ErrInvalidHost = errors.New("invalid host")

	// ErrTenantNotFound is returned when no directory entry matches the
	// extracted tenant key.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantInactive is returned when the tenant exists but is disabled.
	ErrTenantInactive = errors.New("tenant is inactive")

	// ErrCrossTenantDenied is returned when a session attempts to switch
	// to a tenant it holds no active membership in.
	ErrCrossTenantDenied = errors.New("cross tenant access denied")

	// ErrPlatformAdminRequired is returned when a platform-admin route is
	// hit by a session lacking the platform admin role.
	ErrPlatformAdminRequired = errors.New("platform admin role required")

	// ErrModuleNotAvailable is the sentinel matched by ModuleError via
	// errors.Is. Use NewModuleError to construct rejections that carry
	// the tenant's tier and enabled-module list.
	ErrModuleNotAvailable = errors.New("module not available")

	// ErrResolutionUnavailable is returned when the directory lookup
	// times out or fails. It is deliberately distinct from
	// ErrTenantNotFound so an outage is never masked as missing data.
	ErrResolutionUnavailable = errors.New("tenant resolution unavailable")

	// ErrNoContext is returned when a tenant context is demanded on a
	// request that never went through the middleware. This is a wiring
	// bug, not a runtime condition.
	ErrNoContext = errors.New("no tenant context in request")
)

// ModuleError rejects a request whose path maps to a module outside the
// tenant's entitlement. It carries the current tier and the full
// enabled-module list so clients can render upgrade prompts.
type ModuleError struct {
	Module  string   `json:"module"`
	Tier    string   `json:"tier"`
	Enabled []string `json:"enabled_modules"`
}

// NewModuleError builds a ModuleError for the given module and resolution.
func NewModuleError(module string, res *Resolution) *ModuleError {
	return &ModuleError{Module: module, Tier: res.Tier, Enabled: res.Modules}
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %q not available on tier %q", e.Module, e.Tier)
}

// Is lets errors.Is(err, ErrModuleNotAvailable) match ModuleError values.
func (e *ModuleError) Is(target error) bool {
	return target == ErrModuleNotAvailable
}
