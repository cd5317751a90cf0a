package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kengibson1111/go-gw2-story-progress/internal"
)

func main() {
	fmt.Println("=== Redis Store Retry Example ===")
	fmt.Println("This example shows how retry settings shape the Redis cache store")
	fmt.Println()

	for i, config := range createRetryConfigurations() {
		fmt.Printf("=== Configuration %d: %s ===\n", i+1, config.name)
		fmt.Printf("Max Attempts: %d\n", config.redis.RetryConfig.MaxAttempts)
		fmt.Printf("Initial Delay: %v\n", config.redis.RetryConfig.InitialDelay)
		fmt.Printf("Max Delay: %v\n", config.redis.RetryConfig.MaxDelay)
		fmt.Printf("Multiplier: %.1f\n", config.redis.RetryConfig.Multiplier)
		fmt.Printf("Jitter: %t\n", config.redis.RetryConfig.Jitter)
		fmt.Println()

		demonstrateRetryBehavior(config.redis, config.name)
		fmt.Println()
	}

	fmt.Println("=== Retry Example Complete ===")
}

type retryConfig struct {
	name  string
	redis *internal.RedisConfig
}

func createRetryConfigurations() []retryConfig {
	conservative := internal.DefaultRedisConfig()
	conservative.RetryConfig = &internal.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		RetryableOps: []string{"ping", "get", "set", "del", "scan"},
	}

	aggressive := internal.DefaultRedisConfig()
	aggressive.RetryConfig = &internal.RetryConfig{
		MaxAttempts:  7,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   1.5,
		Jitter:       true,
		RetryableOps: []string{"ping", "get", "set", "del", "scan"},
	}

	// an unreachable server makes every attempt fail and the backoff visible
	unreachable := internal.DefaultRedisConfig()
	unreachable.RedisAddr = "127.0.0.1:1"
	unreachable.DialTimeout = 200 * time.Millisecond
	unreachable.RetryConfig = &internal.RetryConfig{
		MaxAttempts:  4,
		InitialDelay: 25 * time.Millisecond,
		MaxDelay:     500 * time.Millisecond,
		Multiplier:   2.5,
		RetryableOps: []string{"ping", "get", "set"},
	}

	return []retryConfig{
		{"Conservative Retry", conservative},
		{"Aggressive Retry", aggressive},
		{"Unreachable Server", unreachable},
	}
}

func demonstrateRetryBehavior(config *internal.RedisConfig, name string) {
	client, err := internal.NewRedisClient(config)
	if err != nil {
		log.Printf("Failed to create client for %s: %v", name, err)
		return
	}
	store := internal.NewRedisStore(client)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Println("1. Health check with retry...")
	start := time.Now()
	if err := store.Health(ctx); err != nil {
		fmt.Printf("✗ Health check failed: %v (took %v)\n", err, time.Since(start))
		fmt.Printf("  connection error: %t, timeout: %t\n", internal.IsConnectionError(err), internal.IsTimeoutError(err))
		demonstrateRetryDelays(config.RetryConfig)
		return
	}
	fmt.Printf("✓ Health check succeeded (took %v)\n", time.Since(start))

	fmt.Println("2. Writing and reading a cache entry...")
	key := internal.StoreKey(fmt.Sprintf("/gw2/examples/retry/%d", time.Now().UnixNano()))
	raw, err := internal.EncodeEntry(key, []int{1, 2, 3}, time.Now())
	if err != nil {
		log.Printf("encode: %v", err)
		return
	}

	start = time.Now()
	if err := store.Set(ctx, key, raw); err != nil {
		fmt.Printf("✗ SET failed: %v (took %v)\n", err, time.Since(start))
		return
	}
	fmt.Printf("✓ SET succeeded (took %v)\n", time.Since(start))

	value, ok, err := store.Get(ctx, key)
	switch {
	case err != nil:
		fmt.Printf("✗ GET failed: %v\n", err)
	case !ok:
		fmt.Println("✗ GET missed a key that was just written")
	default:
		data, ts, _ := internal.DecodeEntry(key, value)
		fmt.Printf("✓ GET returned %s written at %s\n", data, ts.Format(time.RFC3339))
	}

	_ = store.Delete(ctx, key)

	fmt.Println("3. Retry delay schedule...")
	demonstrateRetryDelays(config.RetryConfig)
}

func demonstrateRetryDelays(retryConfig *internal.RetryConfig) {
	fmt.Println("Calculated retry delays for failed attempts (without jitter):")

	delay := float64(retryConfig.InitialDelay)
	for attempt := 1; attempt < retryConfig.MaxAttempts; attempt++ {
		if delay > float64(retryConfig.MaxDelay) {
			delay = float64(retryConfig.MaxDelay)
		}
		fmt.Printf("  Before attempt %d: %v\n", attempt+1, time.Duration(delay))
		delay *= retryConfig.Multiplier
	}
}
