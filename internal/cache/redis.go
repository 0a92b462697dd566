package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cinevault/backend/internal/config"
)

var (
	// ErrCacheMiss indicates the key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheDisabled indicates no cache backend is configured.
	ErrCacheDisabled = errors.New("cache disabled")
)

// RedisCache stores opaque byte values in Redis. A disabled cache answers every
// lookup with ErrCacheDisabled and drops writes.
type RedisCache struct {
	client  *redis.Client
	enabled bool
	prefix  string
}

// NewRedisCache connects to Redis when cfg.Enabled is set and verifies the
// connection with a PING.
func NewRedisCache(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*RedisCache, error) {
	if !cfg.Enabled {
		logger.Info("redis cache disabled")
		return &RedisCache{prefix: "cinevault:"}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info("redis cache connected", "addr", cfg.Addr, "db", cfg.DB)
	return &RedisCache{client: client, enabled: true, prefix: "cinevault:"}, nil
}

// IsEnabled reports whether the cache talks to Redis.
func (c *RedisCache) IsEnabled() bool {
	return c != nil && c.enabled
}

// Get returns the value stored under key.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if !c.IsEnabled() {
		return nil, ErrCacheDisabled
	}
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set stores value under key for ttl.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.IsEnabled() {
		return nil
	}
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if !c.IsEnabled() {
		return nil
	}
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	if !c.IsEnabled() || c.client == nil {
		return nil
	}
	return c.client.Close()
}
