package tenant

import (
	"context"
	"slices"
	"time"
)

// Pattern identifies how a request host addressed a tenant.
type Pattern string

const (
	// PatternSubdomain addresses a tenant via the leftmost label under
	// the platform's reserved base domain (e.g. "acme.oneclass.ac.zw").
	PatternSubdomain Pattern = "subdomain"
	// PatternCustomDomain addresses a tenant via a domain the tenant owns.
	PatternCustomDomain Pattern = "custom_domain"
	// PatternLocalhostDev addresses a tenant via localhost plus a
	// development override header.
	PatternLocalhostDev Pattern = "localhost_dev"
	// PatternIPAccess addresses a tenant via a bare IP plus an override header.
	PatternIPAccess Pattern = "ip_access"
	// PatternSchoolSwitch marks a resolution produced by a school switch,
	// where the tenant was addressed by id rather than by the request host.
	PatternSchoolSwitch Pattern = "school_switch"
)

// Tenant is a directory entry for one customer organization.
type Tenant struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Subdomain    string    `json:"subdomain"`
	CustomDomain string    `json:"custom_domain,omitempty"`
	Tier         string    `json:"tier"`
	Modules      []string  `json:"enabled_modules"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// HasModule reports whether the tenant's subscription enables the module.
// The module list is authoritative; the tier string is display metadata only.
func (t *Tenant) HasModule(name string) bool {
	return slices.Contains(t.Modules, name)
}

// Resolution is the immutable result of mapping a request host to a tenant.
type Resolution struct {
	Tenant
	Pattern    Pattern   `json:"pattern"`
	ResolvedAt time.Time `json:"resolved_at"`
	CacheKey   string    `json:"cache_key"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Directory is the read-only tenant lookup consumed by the resolver.
// Absence of a tenant is a normal outcome and is signalled with
// ErrTenantNotFound; any other error is treated as a storage fault.
type Directory interface {
	FindBySubdomain(ctx context.Context, subdomain string) (*Tenant, error)
	FindByCustomDomain(ctx context.Context, domain string) (*Tenant, error)
	FindByID(ctx context.Context, id string) (*Tenant, error)
}
