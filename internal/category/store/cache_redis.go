package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"accounting/internal/category/models"
	"accounting/pkg/domain"
)

const (
	categoryKeyPrefix   = "accounting:category:"
	generationKeyPrefix = "accounting:category-generation:"

	// generationTTL only needs to outlive a single read-through fill.
	generationTTL = 24 * time.Hour
)

// RedisCache is a read-through cache of single categories. Entries expire
// after the configured TTL and are deleted whenever a category changes.
// Each key has a generation counter that invalidation advances; Fill is a
// WATCH/MULTI transaction on it.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type cachedCategory struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// NewRedisCache constructs a category cache. A non-positive ttl means entries
// never expire on their own.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns ErrNotFound on a cache miss.
func (c *RedisCache) Get(ctx context.Context, key domain.CategoryKey) (*models.Category, error) {
	raw, err := c.client.Get(ctx, categoryKeyPrefix+key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cached category: %w", err)
	}

	var cached cachedCategory
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("decode cached category: %w", err)
	}
	return &models.Category{Key: domain.CategoryKey(cached.Key), Name: cached.Name}, nil
}

// Generation returns the current fill generation of key, 0 if it was never
// invalidated.
func (c *RedisCache) Generation(ctx context.Context, key domain.CategoryKey) (int64, error) {
	n, err := c.client.Get(ctx, generationKeyPrefix+key.String()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read category cache generation: %w", err)
	}
	return n, nil
}

// Fill stores category unless its key was invalidated after generation was
// read. It reports whether the entry was written.
func (c *RedisCache) Fill(ctx context.Context, category *models.Category, generation int64) (bool, error) {
	raw, err := json.Marshal(cachedCategory{Key: category.Key.String(), Name: category.Name})
	if err != nil {
		return false, fmt.Errorf("encode cached category: %w", err)
	}
	ttl := c.ttl
	if ttl < 0 {
		ttl = 0
	}
	genKey := generationKeyPrefix + category.Key.String()

	stored := false
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, categoryKeyPrefix+category.Key.String(), raw, ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		// Invalidated between WATCH and EXEC.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fill category cache: %w", err)
	}
	return stored, nil
}

// Invalidate drops the given keys and advances their generations in one
// MULTI/EXEC round trip.
func (c *RedisCache) Invalidate(ctx context.Context, keys ...domain.CategoryKey) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			genKey := generationKeyPrefix + k.String()
			pipe.Del(ctx, categoryKeyPrefix+k.String())
			pipe.Incr(ctx, genKey)
			pipe.Expire(ctx, genKey, generationTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate cached categories: %w", err)
	}
	return nil
}
