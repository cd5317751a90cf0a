package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kengibson1111/go-gw2-story-progress/internal"
)

func main() {
	fmt.Println("=== Redis Cache Store Example ===")

	// Configuration comes from GW2_REDIS_* variables, falling back to localhost
	config := internal.DefaultRedisConfig()
	if err := internal.ParseEnv(config); err != nil {
		log.Fatalf("Failed to read Redis configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := internal.NewRedisStoreFromConfig(ctx, config)
	if err != nil {
		log.Fatalf("Failed to connect to Redis at %s: %v", config.RedisAddr, err)
	}
	defer store.Close()

	fmt.Printf("✓ Connected to Redis at %s (db %d)\n", config.RedisAddr, config.RedisDB)

	keys := internal.NewKeyGenerator()
	token := "EXAMPLE-TOKEN-0000"

	entries := map[string]any{
		keys.CharactersKey(token):              []string{"Zoja", "Aerin"},
		keys.QuestToStoryMapKey():              map[int]int{1: 100, 2: 100},
		keys.CharacterQuestsKey(token, "Zoja"): []int{1, 2},
	}

	fmt.Println("\n1. Storing entries...")
	for key, value := range entries {
		if err := keys.ValidateKey(key); err != nil {
			log.Fatalf("Generated an invalid key %q: %v", key, err)
		}
		raw, err := internal.EncodeEntry(key, value, time.Now())
		if err != nil {
			log.Fatalf("Failed to encode %s: %v", key, err)
		}
		if err := store.Set(ctx, internal.StoreKey(key), raw); err != nil {
			log.Fatalf("Failed to store %s: %v", key, err)
		}
		fmt.Printf("   stored %s\n", key)
	}

	fmt.Println("\n2. Reading entries back...")
	for key := range entries {
		raw, ok, err := store.Get(ctx, internal.StoreKey(key))
		if err != nil || !ok {
			fmt.Printf("   ✗ %s: found=%t err=%v\n", key, ok, err)
			continue
		}
		data, ts, err := internal.DecodeEntry(key, raw)
		if err != nil {
			fmt.Printf("   ✗ %s: %v\n", key, err)
			continue
		}
		fmt.Printf("   %s = %s (age %v)\n", key, data, time.Since(ts).Round(time.Millisecond))
	}

	fmt.Println("\n3. Removing the entries of one API key...")
	prefix := internal.StoreKey("/gw2/tokens/" + internal.TokenFingerprint(token) + "/")
	if err := store.DeletePrefix(ctx, prefix); err != nil {
		log.Fatalf("Failed to delete prefix: %v", err)
	}
	_, ok, _ := store.Get(ctx, internal.StoreKey(keys.CharactersKey(token)))
	fmt.Printf("   characters entry present after delete: %t\n", ok)
	_, ok, _ = store.Get(ctx, internal.StoreKey(keys.QuestToStoryMapKey()))
	fmt.Printf("   quest map entry present after delete: %t\n", ok)

	fmt.Println("\n4. Invalid input is rejected before reaching Redis...")
	err = store.DeletePrefix(ctx, "")
	var cacheErr *internal.Error
	if errors.As(err, &cacheErr) {
		fmt.Printf("   %s error: %v\n", cacheErr.Type, cacheErr)
	}

	if err := store.DeletePrefix(ctx, internal.CachePrefix); err != nil {
		log.Printf("Cleanup failed: %v", err)
	}
	fmt.Println("\n=== Redis Cache Store Example Complete ===")
}
