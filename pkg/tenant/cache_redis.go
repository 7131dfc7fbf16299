package tenant

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache stores resolutions in Redis so multiple instances share one
// cache. Each resolution is a JSON value with a Redis-side TTL; a
// per-tenant set tracks every host key mapping to the tenant so
// DeleteByTenant can drop subdomain and custom-domain entries together.
//
// Cache failures are swallowed after logging: a broken cache degrades to
// directory lookups, it never fails a request.
type redisCache struct {
	client redis.UniversalClient
	prefix string
	log    *slog.Logger
}

// NewRedisCache creates a Redis-backed resolution cache. prefix namespaces
// the keys (defaults to "tenant"). The logger may be nil.
func NewRedisCache(client redis.UniversalClient, prefix string, log *slog.Logger) Cache {
	if prefix == "" {
		prefix = "tenant"
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &redisCache{client: client, prefix: prefix, log: log}
}

func (c *redisCache) resolutionKey(key string) string {
	return c.prefix + ":res:" + key
}

func (c *redisCache) tenantSetKey(tenantID string) string {
	return c.prefix + ":keys:" + tenantID
}

func (c *redisCache) Get(ctx context.Context, key string) (*Resolution, bool) {
	raw, err := c.client.Get(ctx, c.resolutionKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WarnContext(ctx, "resolution cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var res Resolution
	if err := json.Unmarshal(raw, &res); err != nil {
		c.log.WarnContext(ctx, "resolution cache entry corrupt", "key", key, "error", err)
		_ = c.client.Del(ctx, c.resolutionKey(key)).Err()
		return nil, false
	}
	return &res, true
}

func (c *redisCache) Set(ctx context.Context, key string, res *Resolution, ttl time.Duration) {
	if res == nil || ttl <= 0 {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		c.log.WarnContext(ctx, "resolution cache encode failed", "key", key, "error", err)
		return
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.resolutionKey(key), raw, ttl)
	pipe.SAdd(ctx, c.tenantSetKey(res.ID), key)
	// Keep the tenant index alive at least as long as its newest entry.
	pipe.Expire(ctx, c.tenantSetKey(res.ID), ttl+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.WarnContext(ctx, "resolution cache write failed", "key", key, "error", err)
	}
}

func (c *redisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.resolutionKey(key)).Err(); err != nil {
		c.log.WarnContext(ctx, "resolution cache delete failed", "key", key, "error", err)
	}
}

func (c *redisCache) DeleteByTenant(ctx context.Context, tenantID string) {
	setKey := c.tenantSetKey(tenantID)
	keys, err := c.client.SMembers(ctx, setKey).Result()
	if err != nil {
		c.log.WarnContext(ctx, "resolution cache tenant index read failed", "tenant_id", tenantID, "error", err)
		return
	}
	targets := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		targets = append(targets, c.resolutionKey(k))
	}
	targets = append(targets, setKey)
	if err := c.client.Del(ctx, targets...).Err(); err != nil {
		c.log.WarnContext(ctx, "resolution cache tenant invalidation failed", "tenant_id", tenantID, "error", err)
	}
}

func (c *redisCache) Close() error {
	return nil
}
