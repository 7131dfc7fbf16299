package tenant_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneclass-zw/platform/pkg/tenant"
)

func newRedisCache(t *testing.T) (tenant.Cache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return tenant.NewRedisCache(client, "tenant", nil), srv
}

func TestRedisCache(t *testing.T) {
	t.Parallel()

	t.Run("round trips resolutions", func(t *testing.T) {
		t.Parallel()

		cache, _ := newRedisCache(t)
		ctx := context.Background()

		res := testResolution("t1", "t1.oneclass.ac.zw")
		cache.Set(ctx, "t1.oneclass.ac.zw", res, time.Hour)

		got, ok := cache.Get(ctx, "t1.oneclass.ac.zw")
		require.True(t, ok)
		assert.Equal(t, res.ID, got.ID)
		assert.Equal(t, res.Pattern, got.Pattern)
		assert.Equal(t, res.Modules, got.Modules)
	})

	t.Run("expires entries by TTL", func(t *testing.T) {
		t.Parallel()

		cache, srv := newRedisCache(t)
		ctx := context.Background()

		cache.Set(ctx, "t1.oneclass.ac.zw", testResolution("t1", "t1.oneclass.ac.zw"), time.Minute)
		srv.FastForward(2 * time.Minute)

		_, ok := cache.Get(ctx, "t1.oneclass.ac.zw")
		assert.False(t, ok)
	})

	t.Run("deletes every key for a tenant", func(t *testing.T) {
		t.Parallel()

		cache, _ := newRedisCache(t)
		ctx := context.Background()

		cache.Set(ctx, "t1.oneclass.ac.zw", testResolution("t1", "t1.oneclass.ac.zw"), time.Hour)
		cache.Set(ctx, "www.school-one.org", testResolution("t1", "www.school-one.org"), time.Hour)
		cache.Set(ctx, "t2.oneclass.ac.zw", testResolution("t2", "t2.oneclass.ac.zw"), time.Hour)

		cache.DeleteByTenant(ctx, "t1")

		_, ok := cache.Get(ctx, "t1.oneclass.ac.zw")
		assert.False(t, ok)
		_, ok = cache.Get(ctx, "www.school-one.org")
		assert.False(t, ok)
		_, ok = cache.Get(ctx, "t2.oneclass.ac.zw")
		assert.True(t, ok)
	})

	t.Run("survives a down redis", func(t *testing.T) {
		t.Parallel()

		cache, srv := newRedisCache(t)
		ctx := context.Background()
		srv.Close()

		cache.Set(ctx, "t1.oneclass.ac.zw", testResolution("t1", "t1.oneclass.ac.zw"), time.Hour)
		_, ok := cache.Get(ctx, "t1.oneclass.ac.zw")
		assert.False(t, ok, "a broken cache degrades to a miss")
	})
}
