package cache

import (
	"time"

	"github.com/cyverse/lazyload-common/types"
)

// CacheEntry is a cache entry (e.g., a loaded module)
type CacheEntry interface {
	GetKey() string
	GetValue() interface{}
	GetPriority() types.Priority
	GetStoredTime() time.Time
	GetLoadDuration() time.Duration
	GetExpireTime() time.Time // zero for no expiry

	IsExpired(now time.Time) bool
}

// CacheStore is a cache management object
type CacheStore interface {
	Release()

	GetMaxEntries() int
	GetTTL() time.Duration

	GetTotalEntries() int
	GetEvictedEntries() int64

	DeleteAllEntries()

	GetEntryKeys() []string

	// PutEntry stores a value, overwriting an existing entry.
	// ttl 0 uses the store's ttl, negative ttl never expires.
	PutEntry(key string, value interface{}, loadDuration time.Duration, priority types.Priority, ttl time.Duration) CacheEntry
	HasEntry(key string) bool
	GetEntry(key string) CacheEntry
	GetEntryWithMaxAge(key string, maxAge time.Duration) CacheEntry
	DeleteEntry(key string)
}
