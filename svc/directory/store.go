// Package directory implements the tenant directory over PostgreSQL.
// The directory is platform-level data: its queries run unscoped and it
// is read-only from the resolution core's point of view.
package directory

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oneclass-zw/platform/pkg/identity"
	"github.com/oneclass-zw/platform/pkg/pg"
	"github.com/oneclass-zw/platform/pkg/tenant"
)

const tenantColumns = `id, name, subdomain, coalesce(custom_domain, ''), tier, enabled_modules, active, created_at`

// Store is a pgx-backed tenant.Directory plus membership enumeration.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store over the platform pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FindBySubdomain implements tenant.Directory.
func (s *Store) FindBySubdomain(ctx context.Context, subdomain string) (*tenant.Tenant, error) {
	return s.findOne(ctx, `select `+tenantColumns+` from tenants where subdomain = $1`, subdomain)
}

// FindByCustomDomain implements tenant.Directory.
func (s *Store) FindByCustomDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	return s.findOne(ctx, `select `+tenantColumns+` from tenants where custom_domain = $1`, domain)
}

// FindByID implements tenant.Directory.
func (s *Store) FindByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.findOne(ctx, `select `+tenantColumns+` from tenants where id = $1`, id)
}

func (s *Store) findOne(ctx context.Context, query, arg string) (*tenant.Tenant, error) {
	var t tenant.Tenant
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&t.ID, &t.Name, &t.Subdomain, &t.CustomDomain,
		&t.Tier, &t.Modules, &t.Active, &t.CreatedAt,
	)
	if err != nil {
		if pg.IsNotFound(err) {
			return nil, tenant.ErrTenantNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListMemberships enumerates a user's tenant memberships, for auth
// services assembling session claims.
func (s *Store) ListMemberships(ctx context.Context, userID string) ([]identity.Membership, error) {
	rows, err := s.pool.Query(ctx,
		`select tenant_id, role, status from tenant_memberships where user_id = $1 order by tenant_id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []identity.Membership
	for rows.Next() {
		var m identity.Membership
		if err := rows.Scan(&m.TenantID, &m.Role, &m.Status); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return memberships, nil
}

// SetActive flips a tenant's activity flag. Admin tooling must follow a
// successful call with a cache invalidation for the tenant.
func (s *Store) SetActive(ctx context.Context, tenantID string, active bool) error {
	tag, err := s.pool.Exec(ctx, `update tenants set active = $2 where id = $1`, tenantID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

var _ tenant.Directory = (*Store)(nil)
