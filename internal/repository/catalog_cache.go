package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

// CatalogCache caches advisory catalog reads (open classes per student) in
// Redis. A nil client disables caching; failures degrade to a miss.
type CatalogCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewCatalogCache constructs a catalog cache.
func NewCatalogCache(client *redis.Client, logger *zap.Logger) *CatalogCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogCache{client: client, logger: logger}
}

// OpenClassesKey builds the cache key for a student's open-classes listing.
func OpenClassesKey(studentID string) string {
	return fmt.Sprintf("catalog:open:%s", studentID)
}

// Get retrieves and unmarshals the cached value into the destination.
func (c *CatalogCache) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		// Corrupt payloads degrade to a miss so the caller refetches.
		c.logger.Warn("dropping unreadable cache entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key).Err()
		return appErrors.ErrCacheMiss
	}

	return nil
}

// Set marshals the provided value and stores it with the given TTL.
func (c *CatalogCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	return nil
}

// Invalidate drops all open-classes listings. Called after class writes and
// accepted transitions; the listing is advisory so a stale read only costs
// the student a rejected submit.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}

	iter := c.client.Scan(ctx, 0, "catalog:open:*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := c.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", key, err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan catalog keys: %w", err)
	}

	return nil
}
