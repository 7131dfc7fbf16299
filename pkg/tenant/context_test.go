package tenant_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneclass-zw/platform/pkg/identity"
	"github.com/oneclass-zw/platform/pkg/tenant"
)

func TestContextAccessors(t *testing.T) {
	t.Parallel()

	t.Run("round trips the request context", func(t *testing.T) {
		t.Parallel()

		tc := &tenant.Context{
			Resolution: testResolution("T1", "greenfield."+baseDomain),
			Session:    &identity.SessionDescriptor{UserID: "u1", Role: "teacher"},
			RequestID:  "req-1",
		}
		ctx := tenant.WithContext(context.Background(), tc)

		got, ok := tenant.FromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, tc, got)

		id, ok := tenant.IDFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, "T1", id)

		session, ok := tenant.SessionFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, "u1", session.UserID)
	})

	t.Run("reports absence", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()

		_, ok := tenant.FromContext(ctx)
		assert.False(t, ok)
		_, ok = tenant.IDFromContext(ctx)
		assert.False(t, ok)
		_, ok = tenant.SessionFromContext(ctx)
		assert.False(t, ok)
	})

	t.Run("must accessor panics when absent", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			tenant.MustFromContext(context.Background())
		})
	})

	t.Run("logger extractor emits tenant id", func(t *testing.T) {
		t.Parallel()

		ctx := tenant.WithContext(context.Background(), &tenant.Context{
			Resolution: testResolution("T1", "greenfield."+baseDomain),
		})

		attr, ok := tenant.LoggerExtractor()(ctx)
		require.True(t, ok)
		assert.Equal(t, "tenant_id", attr.Key)
		assert.Equal(t, "T1", attr.Value.String())
	})
}

func TestIsolationContext(t *testing.T) {
	t.Parallel()

	ctx := tenant.WithIsolatedTenant(context.Background(), "T1")
	id, ok := tenant.IsolatedTenantID(ctx)
	require.True(t, ok)
	assert.Equal(t, "T1", id)

	_, ok = tenant.IsolatedTenantID(context.Background())
	assert.False(t, ok)
}
