package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oneclass-zw/platform/pkg/tenant"
)

// isolationParameter is the session setting consumed by row-level
// security policies, e.g.
//
//	create policy tenant_isolation on students
//	    using (tenant_id = current_setting('app.tenant_id'));
const isolationParameter = "app.tenant_id"

// ScopedPool hands out connections whose RLS parameter is set to the
// tenant the middleware isolated the request to. Business queries go
// through Acquire; directory lookups, which are platform-level, use the
// underlying pool directly.
type ScopedPool struct {
	pool *pgxpool.Pool
}

// NewScopedPool wraps a pool with tenant scoping.
func NewScopedPool(pool *pgxpool.Pool) *ScopedPool {
	return &ScopedPool{pool: pool}
}

// Acquire returns a connection scoped to the request's tenant. It fails
// with ErrNoTenantScope when the context carries no isolation parameter,
// which on a tenant-scoped route means the middleware was bypassed.
func (p *ScopedPool) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	tenantID, ok := tenant.IsolatedTenantID(ctx)
	if !ok {
		return nil, ErrNoTenantScope
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "select set_config($1, $2, false)", isolationParameter, tenantID); err != nil {
		conn.Release()
		return nil, errors.Join(ErrConnect, err)
	}
	return conn, nil
}

// releaseConn is the subset of *pgx.Conn needed to clear session state.
type releaseConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// clearIsolation resets the isolation parameter as a connection returns
// to the pool. set_config installs a session-lifetime setting, so
// without the reset the next acquirer of the same physical connection
// would inherit the previous request's tenant scope. Returning false
// destroys the connection; a conn whose state cannot be cleared must
// not be reused.
func clearIsolation(conn releaseConn) bool {
	_, err := conn.Exec(context.Background(), "reset "+isolationParameter)
	return err == nil
}

// Pool exposes the unscoped pool for platform-level queries.
func (p *ScopedPool) Pool() *pgxpool.Pool {
	return p.pool
}

// Close closes the underlying pool.
func (p *ScopedPool) Close() {
	p.pool.Close()
}
