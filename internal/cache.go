package internal

import (
	"encoding/json"
	"fmt"
	"time"
)

// CachePrefix namespaces every cache entry in the backing store
const CachePrefix = "gw2_cache_"

// storedEntry is the persisted envelope: the JSON value plus its creation time in unix milliseconds
type storedEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// EncodeEntry serializes a cache value together with its creation time
func EncodeEntry(key string, value any, created time.Time) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, NewSerializationError(key, "failed to marshal cache value", err)
	}

	out, err := json.Marshal(storedEntry{Data: data, Timestamp: created.UnixMilli()})
	if err != nil {
		return nil, NewSerializationError(key, "failed to marshal cache entry", err)
	}
	return out, nil
}

// DecodeEntry parses an envelope written by EncodeEntry
func DecodeEntry(key string, raw []byte) (json.RawMessage, time.Time, error) {
	var entry storedEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, time.Time{}, NewSerializationError(key, "failed to unmarshal cache entry", err)
	}

	if len(entry.Data) == 0 {
		return nil, time.Time{}, NewSerializationError(key, "cache entry has no data", nil)
	}

	if entry.Timestamp <= 0 {
		return nil, time.Time{}, NewSerializationError(key, fmt.Sprintf("cache entry has invalid timestamp %d", entry.Timestamp), nil)
	}

	return entry.Data, time.UnixMilli(entry.Timestamp), nil
}

// StoreKey maps a logical cache key to its namespaced store key
func StoreKey(key string) string {
	return CachePrefix + key
}
