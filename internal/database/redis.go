package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/demandcast/demandcast/internal/config"
	"github.com/demandcast/demandcast/internal/timeseries"
)

type RedisClient struct {
	Client *redis.Client
}

func NewRedisConnection(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logrus.Info("Successfully connected to Redis")

	return &RedisClient{Client: rdb}, nil
}

func (r *RedisClient) Close() {
	if r.Client != nil {
		r.Client.Close()
		logrus.Info("Redis connection closed")
	}
}

func (r *RedisClient) HealthCheck(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// SeriesCache caches harmonized years as JSON so the series API avoids a
// Postgres round trip for recently served (entity, quantity, year) keys.
type SeriesCache struct {
	client *RedisClient
	ttl    time.Duration
}

// NewSeriesCache creates a cache with the given entry lifetime.
func NewSeriesCache(client *RedisClient, ttl time.Duration) *SeriesCache {
	return &SeriesCache{client: client, ttl: ttl}
}

func seriesCacheKey(entityCode, quantity string, year int) string {
	return fmt.Sprintf("series:%s:%s:%d", entityCode, quantity, year)
}

// Get returns the cached rows for a key, or (nil, false) on a miss. A
// corrupt entry is treated as a miss and evicted.
func (c *SeriesCache) Get(ctx context.Context, entityCode, quantity string, year int) ([]timeseries.FrameRow, bool, error) {
	key := seriesCacheKey(entityCode, quantity, year)
	payload, err := c.client.Client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read series cache: %w", err)
	}

	var rows []timeseries.FrameRow
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		logrus.WithField("key", key).Warn("Evicting corrupt series cache entry")
		c.client.Client.Del(ctx, key)
		return nil, false, nil
	}
	return rows, true, nil
}

// Set stores the rows for a key with the cache TTL.
func (c *SeriesCache) Set(ctx context.Context, entityCode, quantity string, year int, rows []timeseries.FrameRow) error {
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("failed to encode series for caching: %w", err)
	}
	key := seriesCacheKey(entityCode, quantity, year)
	if err := c.client.Client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write series cache: %w", err)
	}
	return nil
}

// Invalidate drops a cached year, called after a retrieval run rewrites
// it.
func (c *SeriesCache) Invalidate(ctx context.Context, entityCode, quantity string, year int) error {
	return c.client.Client.Del(ctx, seriesCacheKey(entityCode, quantity, year)).Err()
}
