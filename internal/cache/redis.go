package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// bulkLoadBatch bounds the argument count of one SADD during BulkLoad.
const bulkLoadBatch = 1000

// RedisCache keeps the existing-id set in a Redis SET so it is visible
// across worker processes.
type RedisCache struct {
	rdb    *redis.Client
	key    string
	logger *zap.Logger
}

// RedisConfig locates the backing Redis instance.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewRedisCache connects and pings. An unreachable Redis fails the
// whole worker here, before any crawling: proceeding with an empty
// cache would silently re-ingest the entire registry.
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis cache key is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close() //nolint:errcheck
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}

	return &RedisCache{
		rdb:    rdb,
		key:    cfg.Key,
		logger: logger.Named("cache"),
	}, nil
}

// Contains reports membership via SISMEMBER.
func (c *RedisCache) Contains(ctx context.Context, id string) (bool, error) {
	ok, err := c.rdb.SIsMember(ctx, c.key, id).Result()
	if err != nil {
		return false, fmt.Errorf("sismember %s: %w", c.key, err)
	}
	return ok, nil
}

// Add inserts one id via SADD.
func (c *RedisCache) Add(ctx context.Context, id string) error {
	if err := c.rdb.SAdd(ctx, c.key, id).Err(); err != nil {
		return fmt.Errorf("sadd %s: %w", c.key, err)
	}
	return nil
}

// BulkLoad clears the set and reloads it in batches.
func (c *RedisCache) BulkLoad(ctx context.Context, ids []string) error {
	if err := c.rdb.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", c.key, err)
	}
	for start := 0; start < len(ids); start += bulkLoadBatch {
		end := min(start+bulkLoadBatch, len(ids))
		batch := make([]any, 0, end-start)
		for _, id := range ids[start:end] {
			batch = append(batch, id)
		}
		if err := c.rdb.SAdd(ctx, c.key, batch...).Err(); err != nil {
			return fmt.Errorf("sadd %s: %w", c.key, err)
		}
	}
	c.logger.Info("existence cache loaded", zap.Int("ids", len(ids)))
	return nil
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}
