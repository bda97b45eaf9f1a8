package upstream

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dvimperial/tracking_service/pkg/logger"
)

// responseCache keeps raw upstream response bodies in Redis so repeated
// listing fetches within the TTL skip the backend. A nil redis client
// disables caching entirely; cache failures are logged and otherwise
// ignored, the upstream call proceeds.
type responseCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

func newResponseCache(rdb *redis.Client, ttl time.Duration, log *logger.Logger) *responseCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &responseCache{rdb: rdb, ttl: ttl, log: log}
}

func (c *responseCache) get(ctx context.Context, key string) ([]byte, bool) {
	if c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Warnf("redis get %s", key)
		}
		return nil, false
	}
	return raw, true
}

func (c *responseCache) set(ctx context.Context, key string, raw []byte) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warnf("redis set %s", key)
	}
}

func (c *responseCache) drop(ctx context.Context, key string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		c.log.WithError(err).Warnf("redis del %s", key)
	}
}
