package internal

import (
	"context"
	"fmt"
)

// Store is a byte oriented key/value backend for cache entries
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// OpenStore builds the backend selected by config.CacheBackend
func OpenStore(ctx context.Context, config *Config) (Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.CacheBackend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStoreFromConfig(ctx, config.Redis)
	case BackendSQLite:
		return OpenSQLiteStore(config.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", config.CacheBackend)
	}
}
