package readcache

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 200

// RedisBackend shares cached listings between server processes. Expiry is
// delegated to Redis, so Sweep has nothing to do.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend creates a backend storing keys under prefix
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{
		client: client,
		prefix: prefix,
	}
}

// NewRedisBackendFromURL parses a redis:// URL and verifies the connection
func NewRedisBackendFromURL(ctx context.Context, url, prefix string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisBackend(client, prefix), nil
}

// Close releases the underlying client
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// Get reads a key; a missing key is reported as not found
func (b *RedisBackend) Get(ctx context.Context, key string, now time.Time) (*Entry, bool, error) {
	data, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return &Entry{Key: key, Value: data, StoredAt: now}, true, nil
}

// Set writes the value with a TTL derived from the entry
func (b *RedisBackend) Set(ctx context.Context, entry *Entry) error {
	ttl := entry.ExpiresAt.Sub(entry.StoredAt)
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, b.prefix+entry.Key, entry.Value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", entry.Key, err)
	}
	return nil
}

// DeleteMatching scans the prefix and deletes keys whose unprefixed name matches pattern
func (b *RedisBackend) DeleteMatching(ctx context.Context, pattern *regexp.Regexp) (int, error) {
	var cursor uint64
	removed := 0

	for {
		keys, next, err := b.client.Scan(ctx, cursor, b.prefix+"*", scanBatchSize).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan: %w", err)
		}

		var doomed []string
		for _, k := range keys {
			if pattern.MatchString(strings.TrimPrefix(k, b.prefix)) {
				doomed = append(doomed, k)
			}
		}
		if len(doomed) > 0 {
			n, err := b.client.Del(ctx, doomed...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis del: %w", err)
			}
			removed += int(n)
		}

		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// Sweep is a no-op: Redis expires keys itself
func (b *RedisBackend) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
