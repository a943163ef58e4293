package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/craftshop/backend/internal/domain/integration"
)

// RedisCache implements the integration cache on Redis. This is suitable for
// distributed deployments where multiple instances share sync state.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisCache creates a Redis-backed cache and verifies connectivity.
func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client, keyPrefix: "marketplace:"}, nil
}

// NewRedisCacheWithClient creates a cache with an existing Redis client.
// This is useful for testing or when sharing a client across components.
func NewRedisCacheWithClient(client *redis.Client, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "marketplace:"
	}
	return &RedisCache{client: client, keyPrefix: keyPrefix}
}

// Get returns the cached value or ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key integration.CacheKey) ([]byte, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, integration.ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get: %w", err)
	}
	return data, nil
}

// Set stores value under key with the given TTL.
func (c *RedisCache) Set(ctx context.Context, key integration.CacheKey, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.keyPrefix+key.String(), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Invalidate removes key. Removing an absent key is not an error.
func (c *RedisCache) Invalidate(ctx context.Context, key integration.CacheKey) error {
	if err := c.client.Del(ctx, c.keyPrefix+key.String()).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ensure RedisCache implements the cache port.
var _ integration.Cache = (*RedisCache)(nil)
