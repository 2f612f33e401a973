package readcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrEmptyKey is returned when GetOrFetch is called without a key
	ErrEmptyKey = errors.New("cache key cannot be empty")
	// ErrInvalidTTL is returned when the TTL is not positive
	ErrInvalidTTL = errors.New("cache ttl must be positive")
)

// Entry is a single cached value. Value holds the JSON encoding of whatever
// the fetch function returned.
type Entry struct {
	StoredAt  time.Time
	ExpiresAt time.Time
	Key       string
	Value     []byte
}

// Backend stores cache entries. Implementations must treat an entry as absent
// once now is no longer before ExpiresAt.
type Backend interface {
	// Get returns the entry for key if present and unexpired at now.
	Get(ctx context.Context, key string, now time.Time) (*Entry, bool, error)

	// Set stores or replaces an entry.
	Set(ctx context.Context, entry *Entry) error

	// DeleteMatching removes every key matched by pattern and reports how many were removed.
	DeleteMatching(ctx context.Context, pattern *regexp.Regexp) (int, error)

	// Sweep drops entries that expired at or before now.
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Cache is a read-through cache for idempotent, slow-changing list reads.
// Rapidly toggled values such as like counts must not be stored here.
type Cache struct {
	backend Backend
	now     func() time.Time
	logger  *slog.Logger
	group   singleflight.Group
}

// Option configures a Cache
type Option func(*Cache)

// WithClock overrides the time source (used by tests)
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger sets the logger used for backend warnings
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a cache over the given backend
func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the cached value for key when present and fresh. Otherwise
// it calls fetch, stores the result with expiresAt = now + ttl and returns it.
// Concurrent misses on the same key share one fetch. Fetch errors are returned
// and never cached.
func GetOrFetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if key == "" {
		return zero, ErrEmptyKey
	}
	if ttl <= 0 {
		return zero, ErrInvalidTTL
	}

	if data, ok := c.lookup(ctx, key); ok {
		var out T
		err := json.Unmarshal(data, &out)
		if err == nil {
			return out, nil
		}
		c.logger.Warn("[READ-CACHE] dropping undecodable entry", "key", key, "error", err)
	}

	shared, err, _ := c.group.Do(key, func() (interface{}, error) {
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode cache value for %s: %w", key, err)
		}

		now := c.now()
		entry := &Entry{
			Key:       key,
			Value:     data,
			StoredAt:  now,
			ExpiresAt: now.Add(ttl),
		}
		if setErr := c.backend.Set(ctx, entry); setErr != nil {
			// Serve the fresh value anyway; the next read will refetch.
			c.logger.Warn("[READ-CACHE] failed to store entry", "key", key, "error", setErr)
		}
		return data, nil
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(shared.([]byte), &out); err != nil {
		return zero, fmt.Errorf("failed to decode cache value for %s: %w", key, err)
	}
	return out, nil
}

func (c *Cache) lookup(ctx context.Context, key string) ([]byte, bool) {
	entry, ok, err := c.backend.Get(ctx, key, c.now())
	if err != nil {
		c.logger.Warn("[READ-CACHE] backend read failed, fetching", "key", key, "error", err)
		return nil, false
	}
	if !ok || entry == nil {
		return nil, false
	}
	return entry.Value, true
}

// InvalidatePattern drops every key matched by pattern, e.g. all paginated
// listings after the underlying rows changed.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern *regexp.Regexp) (int, error) {
	if pattern == nil {
		return 0, nil
	}
	removed, err := c.backend.DeleteMatching(ctx, pattern)
	if err != nil {
		return removed, fmt.Errorf("failed to invalidate %q: %w", pattern.String(), err)
	}
	c.logger.Debug("read cache invalidated", "pattern", pattern.String(), "removed", removed)
	return removed, nil
}

// Sweep removes expired entries once
func (c *Cache) Sweep(ctx context.Context) (int, error) {
	return c.backend.Sweep(ctx, c.now())
}

// StartSweeper removes expired entries every interval until ctx is cancelled.
// Reads already check expiry, so this only bounds memory.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := c.Sweep(ctx)
				if err != nil {
					c.logger.Warn("[READ-CACHE] sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					c.logger.Debug("read cache swept", "removed", removed)
				}
			}
		}
	}()
}
