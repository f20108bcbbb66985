// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every Redis key written by litfinder.
const DefaultNamespace = "litfinder:"

const scanBatch = 100

// Redis is a Backend on a Redis server. Keys are stored under a namespace
// so one server can be shared with other applications.
type Redis struct {
	client    *redis.Client
	namespace string
}

// NewRedis connects to the server at url (redis://host:port/db) and pings
// it once.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisFromClient(client, DefaultNamespace), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, namespace string) *Redis {
	return &Redis{client: client, namespace: namespace}
}

func (r *Redis) key(k string) string { return r.namespace + k }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set stores value with SETEX semantics. A non-positive ttl stores without
// expiry.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return n > 0, nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear deletes every key under prefix. The SCAN completes before any key
// is deleted, since deleting mid-iteration can make the cursor skip keys.
func (r *Redis) Clear(ctx context.Context, prefix string) (int, error) {
	var (
		cursor uint64
		keys   []string
	)
	pattern := r.key(prefix) + "*"
	for {
		batch, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}

	deleted := 0
	for len(keys) > 0 {
		n := min(scanBatch, len(keys))
		removed, err := r.client.Del(ctx, keys[:n]...).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		deleted += int(removed)
		keys = keys[n:]
	}
	return deleted, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
