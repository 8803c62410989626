package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces cache entries within a shared Redis.
const redisKeyPrefix = "accracast:eta:"

// RedisCache implements Cache on Redis, letting several service
// instances share one prediction cache. Entries expire after the
// configured TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and returns a cache with the given
// TTL (0 uses a default of 30 minutes).
func NewRedisCache(addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

// Get returns the cached prediction for key.
func (r *RedisCache) Get(ctx context.Context, key string) (Prediction, bool, error) {
	if key == "" {
		return Prediction{}, false, errors.New("cache key cannot be empty")
	}

	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Prediction{}, false, nil
		}
		return Prediction{}, false, fmt.Errorf("failed to get prediction from redis: %w", err)
	}

	var p Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return Prediction{}, false, fmt.Errorf("failed to unmarshal prediction: %w", err)
	}
	return p, true, nil
}

// Put stores a prediction under key with the cache TTL.
func (r *RedisCache) Put(ctx context.Context, key string, p Prediction) error {
	if key == "" {
		return errors.New("cache key cannot be empty")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal prediction: %w", err)
	}

	if err := r.client.Set(ctx, redisKeyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store prediction in redis: %w", err)
	}
	return nil
}

// Ping checks the Redis connection health.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (r *RedisCache) Close() error {
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	if err != nil && err.Error() == "redis: client is closed" {
		return nil
	}
	return err
}
