package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists cache entries in Redis through the retrying client
type RedisStore struct {
	client    RedisClientInterface
	validator *InputValidator
}

// NewRedisStore wraps an existing client
func NewRedisStore(client RedisClientInterface) *RedisStore {
	return &RedisStore{
		client:    client,
		validator: NewInputValidator(),
	}
}

// NewRedisStoreFromConfig creates the client and checks the connection
func NewRedisStoreFromConfig(ctx context.Context, config *RedisConfig) (*RedisStore, error) {
	client, err := NewRedisClient(config)
	if err != nil {
		return nil, err
	}

	if err := client.HealthWithRetry(ctx); err != nil {
		_ = client.Close()
		return nil, NewConnectionError("failed to reach redis", err)
	}

	return NewRedisStore(client), nil
}

// Get fetches the raw entry bytes for key
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.GetWithRetry(ctx, key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, s.classify(key, "get", err)
	}
	return []byte(value), true, nil
}

// Set stores the entry with the configured server side expiry
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	ttl := s.client.Config().DefaultTTL
	if err := s.client.SetWithRetry(ctx, key, value, ttl); err != nil {
		return s.classify(key, "set", err)
	}
	return nil
}

// Delete removes key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.DelWithRetry(ctx, key); err != nil {
		return s.classify(key, "delete", err)
	}
	return nil
}

// DeletePrefix scans for every key under prefix and deletes them in batches
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) error {
	if err := s.validator.ValidatePrefix(prefix); err != nil {
		return err
	}

	keys, err := s.client.ScanWithRetry(ctx, escapeGlob(prefix)+"*")
	if err != nil {
		return s.classify(prefix, "scan", err)
	}

	const batchSize = 100
	for start := 0; start < len(keys); start += batchSize {
		end := min(start+batchSize, len(keys))
		if err := s.client.DelWithRetry(ctx, keys[start:end]...); err != nil {
			return s.classify(prefix, "delete", err)
		}
	}
	return nil
}

// Health checks the Redis connection
func (s *RedisStore) Health(ctx context.Context) error {
	if err := s.client.HealthWithRetry(ctx); err != nil {
		return NewConnectionError("redis health check failed", err)
	}
	return nil
}

// Close closes the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) classify(key, operation string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewTimeoutError(key, fmt.Sprintf("redis %s timed out", operation), err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return NewConnectionError(fmt.Sprintf("redis %s failed for '%s'", operation, key), err)
	}
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
