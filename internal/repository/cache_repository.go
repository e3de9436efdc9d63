package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// CacheRepository is a small JSON cache in front of the reading store.
type CacheRepository interface {
	// GetJSON decodes the value at key into dest. found is false on a miss.
	GetJSON(ctx context.Context, key string, dest interface{}) (found bool, err error)
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Increment(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
	Enabled() bool
}

type cacheRepository struct {
	client *redis.Client
}

func NewCacheRepository(client *redis.Client) CacheRepository {
	return &cacheRepository{client: client}
}

func (r *cacheRepository) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return true, nil
}

func (r *cacheRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return r.client.Set(ctx, key, jsonData, expiration).Err()
}

// Get returns "" for a missing key.
func (r *cacheRepository) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (r *cacheRepository) Increment(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

func (r *cacheRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *cacheRepository) Enabled() bool { return true }

// NewNoopCache returns a cache that never stores anything. Used when Redis is disabled.
func NewNoopCache() CacheRepository {
	return noopCache{}
}

type noopCache struct{}

func (noopCache) GetJSON(context.Context, string, interface{}) (bool, error) { return false, nil }
func (noopCache) SetJSON(context.Context, string, interface{}, time.Duration) error {
	return nil
}
func (noopCache) Get(context.Context, string) (string, error) { return "", nil }
func (noopCache) Increment(context.Context, string) (int64, error) { return 0, nil }
func (noopCache) Ping(context.Context) error { return nil }
func (noopCache) Enabled() bool { return false }
