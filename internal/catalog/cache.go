package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// ProductCache is a read-through cache in front of product lookups. It is
// optional: the handler runs without one when REDIS_ADDR is not configured.
// Cache failures degrade to a database read, never to a request failure.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

func cacheKey(id string) string {
	return "product:" + id
}

// Get returns nil, nil on a miss.
func (c *ProductCache) Get(ctx context.Context, id string) (*domain.Product, error) {
	data, err := c.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	p := &domain.Product{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (c *ProductCache) Set(ctx context.Context, p *domain.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(p.ID), data, c.ttl).Err()
}

func (c *ProductCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, cacheKey(id)).Err()
}
