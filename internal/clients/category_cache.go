package clients

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"storefront-admin-service/internal/models"
)

const categoryCachePrefix = "storefront-admin:categories:"

// CachedCategories serves a tenant's category list from Redis when possible
type CachedCategories struct {
	source CategoryLister
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Entry
}

// NewCachedCategories wraps source with a Redis cache. Without a client or
// with a non-positive ttl the source is returned as is.
func NewCachedCategories(source CategoryLister, client *redis.Client, ttl time.Duration, logger *logrus.Entry) CategoryLister {
	if client == nil || ttl <= 0 {
		return source
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CachedCategories{
		source: source,
		redis:  client,
		ttl:    ttl,
		logger: logger.WithField("component", "category_cache"),
	}
}

func categoryCacheKey(ctx context.Context) string {
	creds, _ := CredentialsFromContext(ctx)
	return categoryCachePrefix + creds.TenantID
}

// ListCategories returns the cached list, falling back to the source on a
// miss or any Redis failure
func (c *CachedCategories) ListCategories(ctx context.Context) ([]models.Category, error) {
	cacheKey := categoryCacheKey(ctx)

	val, err := c.redis.Get(ctx, cacheKey).Result()
	switch {
	case err == nil:
		var categories []models.Category
		if jsonErr := json.Unmarshal([]byte(val), &categories); jsonErr == nil {
			return categories, nil
		}
		c.logger.WithField("key", cacheKey).Warn("discarding unreadable category cache entry")
	case !errors.Is(err, redis.Nil):
		c.logger.WithError(err).Warn("category cache unavailable")
	}

	categories, err := c.source.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(categories); err == nil {
		if err := c.redis.Set(ctx, cacheKey, data, c.ttl).Err(); err != nil {
			c.logger.WithError(err).Debug("failed to cache categories")
		}
	}
	return categories, nil
}

// Invalidate drops the cached list of the tenant in ctx
func (c *CachedCategories) Invalidate(ctx context.Context) error {
	return c.redis.Del(ctx, categoryCacheKey(ctx)).Err()
}
