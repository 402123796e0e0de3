package sessioncache

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/internal/model"
)

const redisKeyPrefix = "authgate:session:"

// RedisCache is the shared-cache variant for multi-instance AuthGate
// deployments. A connection failure or decode error degrades to a miss
// rather than propagating, per spec.md §4.4: "a connection failure to
// the remote cache degrades to miss."
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps an already-configured redis.Client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, cookieValue string) (model.Session, bool) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+cookieValue).Result()
	if errors.Is(err, redis.Nil) {
		return model.Session{}, false
	}
	if err != nil {
		logging.CtxWarn(ctx).Err(err).Msg("session cache: redis get failed, treating as miss")
		return model.Session{}, false
	}

	var session model.Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		logging.CtxWarn(ctx).Err(err).Msg("session cache: failed to decode cached session, treating as miss")
		return model.Session{}, false
	}
	return session, true
}

func (c *RedisCache) Set(ctx context.Context, cookieValue string, session model.Session, ttl time.Duration) {
	data, err := json.Marshal(session)
	if err != nil {
		logging.CtxWarn(ctx).Err(err).Msg("session cache: failed to encode session, skipping cache write")
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+cookieValue, data, ttl).Err(); err != nil {
		logging.CtxWarn(ctx).Err(err).Msg("session cache: redis set failed")
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
