package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/experiences/internal/metrics"
)

// Redis stores JSON-encoded values in Redis so that several service
// instances share one cache.
type Redis[V any] struct {
	client *redis.Client
	name   string
	logger *zap.Logger
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// NewRedis wraps an existing client. name labels metrics and log lines.
func NewRedis[V any](client *redis.Client, name string, logger *zap.Logger) *Redis[V] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis[V]{client: client, name: name, logger: logger}
}

// Get decodes the stored value. Redis or decode errors count as a miss.
func (c *Redis[V]) Get(ctx context.Context, key Key) (V, bool) {
	var zero V
	data, err := c.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.IncCacheAccess(c.name, "miss")
		return zero, false
	}
	if err != nil {
		c.logger.Warn("cache.redis.get_failed",
			zap.String("cache", c.name),
			zap.String("key", key.String()),
			zap.Error(err))
		metrics.IncCacheAccess(c.name, "error")
		return zero, false
	}

	var v V
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("cache.redis.decode_failed",
			zap.String("cache", c.name),
			zap.String("key", key.String()),
			zap.Error(err))
		metrics.IncCacheAccess(c.name, "error")
		return zero, false
	}
	metrics.IncCacheAccess(c.name, "hit")
	return v, true
}

// Put stores the JSON encoding of value with the given TTL.
func (c *Redis[V]) Put(ctx context.Context, key Key, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache.redis.encode_failed",
			zap.String("cache", c.name),
			zap.String("key", key.String()),
			zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		c.logger.Warn("cache.redis.set_failed",
			zap.String("cache", c.name),
			zap.String("key", key.String()),
			zap.Error(err))
	}
}

// Delete removes a single entry.
func (c *Redis[V]) Delete(ctx context.Context, key Key) {
	if err := c.client.Del(ctx, key.String()).Err(); err != nil {
		c.logger.Warn("cache.redis.del_failed",
			zap.String("cache", c.name),
			zap.String("key", key.String()),
			zap.Error(err))
	}
}
