package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/nitro-storefront/internal/pricing"
)

const cacheKeyPrefix = "pricing:catalog:"

// Cache keeps decoded server catalogs in Redis so replicas skip re-reading and
// re-validating catalog files.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache. A nil client yields a cache that always misses.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

type cachedCatalog struct {
	Catalog pricing.Catalog `json:"catalog"`
	Source  pricing.Source  `json:"source"`
}

// Get returns the cached catalog for currency and whether it was present.
func (c *Cache) Get(ctx context.Context, currency string) (pricing.Catalog, bool, error) {
	if c == nil || c.client == nil {
		return pricing.Catalog{}, false, nil
	}
	data, err := c.client.Get(ctx, cacheKey(currency)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return pricing.Catalog{}, false, nil
		}
		return pricing.Catalog{}, false, err
	}
	var entry cachedCatalog
	if err := json.Unmarshal(data, &entry); err != nil {
		return pricing.Catalog{}, false, err
	}
	entry.Catalog.Source = entry.Source
	return entry.Catalog, true, nil
}

// Set stores cat under its currency with the configured TTL.
func (c *Cache) Set(ctx context.Context, cat pricing.Catalog) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(cachedCatalog{Catalog: cat, Source: cat.Source})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(cat.Currency), data, c.ttl).Err()
}

// Invalidate drops the cached catalog for currency.
func (c *Cache) Invalidate(ctx context.Context, currency string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, cacheKey(currency)).Err()
}

func cacheKey(currency string) string {
	return cacheKeyPrefix + pricing.NormalizeCurrency(currency)
}
