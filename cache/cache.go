package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/kengibson1111/go-gw2-story-progress/internal"
)

// DefaultTTL is the validity window of every cache entry
const DefaultTTL = time.Hour

// Store is the key/value persistence collaborator behind a Cache.
// Implementations live in the internal package: memory, Redis and SQLite.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// HealthChecker is implemented by stores that can report on their backend
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Entry is a cached value together with the time it was stored
type Entry struct {
	Data      json.RawMessage
	Timestamp time.Time
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces the wall clock, letting tests simulate expiry
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTTL overrides DefaultTTL
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets the logger used for non-fatal store failures
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Cache is a best-effort TTL cache of JSON-serializable values.
// Expiry is lazy: entries are checked on read and an expired entry is deleted then.
// Writes replace whole entries; concurrent writers to one key resolve last-writer-wins.
type Cache struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// New creates a Cache over store; a nil store means an in-memory one
func New(store Store, opts ...Option) *Cache {
	if store == nil {
		store = internal.NewMemoryStore()
	}

	c := &Cache{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured validity window
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Lookup returns the raw entry for key when present and not expired.
// Read failures and corrupt entries count as misses.
func (c *Cache) Lookup(ctx context.Context, key string) (Entry, bool) {
	if key == "" {
		return Entry{}, false
	}

	storeKey := internal.StoreKey(key)
	raw, ok, err := c.store.Get(ctx, storeKey)
	if err != nil {
		c.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}

	data, ts, err := internal.DecodeEntry(key, raw)
	if err != nil {
		c.logger.Warn("discarding corrupt cache entry", zap.String("key", key), zap.Error(err))
		c.remove(ctx, storeKey)
		return Entry{}, false
	}

	if c.now().Sub(ts) > c.ttl {
		c.remove(ctx, storeKey)
		return Entry{}, false
	}

	return Entry{Data: data, Timestamp: ts}, true
}

// Get decodes the cached value for key into dst.
// It reports false when the key is absent, expired or cannot be decoded into dst.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if key == "" {
		return false, internal.NewKeyInvalidError(key, "cache key cannot be empty")
	}
	if dst == nil {
		return false, internal.NewValidationError("destination cannot be nil", nil)
	}

	entry, ok := c.Lookup(ctx, key)
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(entry.Data, dst); err != nil {
		c.logger.Warn("cached value does not match requested type", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

// Set stores value under key with the current time.
// A failing store write is logged and otherwise ignored.
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if key == "" {
		return internal.NewKeyInvalidError(key, "cache key cannot be empty")
	}

	raw, err := internal.EncodeEntry(key, value, c.now())
	if err != nil {
		return err
	}

	if err := c.store.Set(ctx, internal.StoreKey(key), raw); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// Invalidate removes key
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if key == "" {
		return internal.NewKeyInvalidError(key, "cache key cannot be empty")
	}
	return c.store.Delete(ctx, internal.StoreKey(key))
}

// InvalidateAll removes every entry written by any Cache sharing the store
func (c *Cache) InvalidateAll(ctx context.Context) error {
	return c.store.DeletePrefix(ctx, internal.CachePrefix)
}

// Health checks the store's backend. Stores without a backend to check are always healthy.
func (c *Cache) Health(ctx context.Context) error {
	checker, ok := c.store.(HealthChecker)
	if !ok {
		return nil
	}
	return checker.Health(ctx)
}

// InvalidatePrefix removes every entry whose key starts with prefix
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	if prefix == "" || prefix == "/" {
		return internal.NewValidationError("invalidation prefix cannot be empty", nil)
	}
	return c.store.DeletePrefix(ctx, internal.StoreKey(prefix))
}

func (c *Cache) remove(ctx context.Context, storeKey string) {
	if err := c.store.Delete(ctx, storeKey); err != nil {
		c.logger.Debug("cache delete failed", zap.String("key", storeKey), zap.Error(err))
	}
}

// Cached returns the cached value for key when present, not expired and forceRefresh is false.
// Otherwise it runs compute, stores the result and returns it. A failing compute leaves
// any existing entry untouched. Cached does not suppress duplicate concurrent computes.
func Cached[T any](ctx context.Context, c *Cache, key string, compute func(context.Context) (T, error), forceRefresh bool) (T, error) {
	var zero T

	if !forceRefresh {
		var value T
		ok, err := c.Get(ctx, key, &value)
		if err != nil {
			return zero, err
		}
		if ok {
			return value, nil
		}
	}

	value, err := compute(ctx)
	if err != nil {
		return zero, err
	}

	if err := c.Set(ctx, key, value); err != nil {
		c.logger.Warn("computed value not cached", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}
