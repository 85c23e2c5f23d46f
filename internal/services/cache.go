package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrCacheDisabled is returned by Ping when Redis was unreachable at startup.
var ErrCacheDisabled = errors.New("cache is disabled")

// CacheService backs user lookups and the session denylist. Implementations
// must degrade to misses when the backend is down.
type CacheService interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Ping(ctx context.Context) error
	IsEnabled() bool
}

type RedisCache struct {
	client  *redis.Client
	enabled bool
	log     logrus.FieldLogger
}

// NewRedisCache connects to Redis. If the first ping fails the cache stays
// disabled for the life of the process and every read is a miss.
func NewRedisCache(addr, password string, db int, log logrus.FieldLogger) *RedisCache {
	cache := &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     password,
			DB:           db,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 5,
		}),
		log: log.WithFields(logrus.Fields{"component": "cache", "addr": addr}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := cache.client.Ping(ctx).Err(); err != nil {
		cache.log.Warnf("Redis unavailable, running without user cache or session revocation: %v", err)
		return cache
	}

	cache.enabled = true
	cache.log.Info("Redis cache connected")
	return cache
}

// NewDisabledCache returns a cache that misses on every read and drops writes.
func NewDisabledCache(log logrus.FieldLogger) *RedisCache {
	return &RedisCache{log: log.WithField("component", "cache")}
}

func (r *RedisCache) IsEnabled() bool {
	return r.enabled
}

// Set stores value as JSON. Writes to a disabled cache are dropped.
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !r.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return r.fail("marshal", key, err)
	}
	if err := r.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return r.fail("set", key, err)
	}
	return nil
}

// Get decodes the cached JSON into dest. A miss (or a disabled cache)
// returns redis.Nil.
func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if !r.enabled {
		return redis.Nil
	}

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return redis.Nil
	}
	if err != nil {
		return r.fail("get", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return r.fail("unmarshal", key, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if !r.enabled {
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return r.fail("delete", key, err)
	}
	return nil
}

func (r *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	if !r.enabled {
		return false, nil
	}
	count, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, r.fail("exists", key, err)
	}
	return count > 0, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	if !r.enabled {
		return ErrCacheDisabled
	}
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *RedisCache) fail(op, key string, err error) error {
	r.log.WithField("key", key).Errorf("Cache %s error: %v", op, err)
	return fmt.Errorf("cache %s %s: %w", op, key, err)
}
