package cache

import (
	"sync"
	"time"

	"github.com/cyverse/lazyload-common/types"
	"github.com/cyverse/lazyload-common/utils"
	lrucache "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

const (
	// DefaultMaxEntries is the default max number of entries
	DefaultMaxEntries int = 50
	// DefaultEvictionRatio is the fraction of entries removed when the store overflows
	DefaultEvictionRatio float64 = 0.25
	// DefaultTTL is the default time-to-live of an entry
	DefaultTTL time.Duration = 24 * time.Hour
)

// RAMCacheEntry implements CacheEntry
type RAMCacheEntry struct {
	key          string
	value        interface{}
	priority     types.Priority
	storedTime   time.Time
	loadDuration time.Duration
	expireTime   time.Time
}

// NewRAMCacheEntry creates a new RAMCacheEntry
func NewRAMCacheEntry(key string, value interface{}, loadDuration time.Duration, priority types.Priority, ttl time.Duration) *RAMCacheEntry {
	now := time.Now()

	expireTime := time.Time{}
	if ttl > 0 {
		expireTime = now.Add(ttl)
	}

	return &RAMCacheEntry{
		key:          key,
		value:        value,
		priority:     priority.OrDefault(),
		storedTime:   now,
		loadDuration: loadDuration,
		expireTime:   expireTime,
	}
}

// GetKey returns key of the entry
func (entry *RAMCacheEntry) GetKey() string {
	return entry.key
}

// GetValue returns the loaded resource
func (entry *RAMCacheEntry) GetValue() interface{} {
	return entry.value
}

// GetPriority returns the priority the entry was loaded at
func (entry *RAMCacheEntry) GetPriority() types.Priority {
	return entry.priority
}

// GetStoredTime returns insertion time of the entry
func (entry *RAMCacheEntry) GetStoredTime() time.Time {
	return entry.storedTime
}

// GetLoadDuration returns time taken to produce the value
func (entry *RAMCacheEntry) GetLoadDuration() time.Duration {
	return entry.loadDuration
}

// GetExpireTime returns expiry time of the entry
func (entry *RAMCacheEntry) GetExpireTime() time.Time {
	return entry.expireTime
}

// IsExpired checks if the entry is expired at the given time
func (entry *RAMCacheEntry) IsExpired(now time.Time) bool {
	if entry.expireTime.IsZero() {
		return false
	}
	return !now.Before(entry.expireTime)
}

// RAMCacheStore implements CacheStore
// entries are kept in insertion order, overwrite moves the entry to the newest position
type RAMCacheStore struct {
	maxEntries     int
	evictionRatio  float64
	ttl            time.Duration
	evictedEntries int64
	cache          *lrucache.Cache
	mutex          sync.Mutex
}

// NewRAMCacheStore creates a new RAMCacheStore
func NewRAMCacheStore(maxEntries int, evictionRatio float64, ttl time.Duration) (CacheStore, error) {
	if maxEntries <= 0 {
		return nil, xerrors.Errorf("max entries must be positive, got %d", maxEntries)
	}

	if evictionRatio <= 0 || evictionRatio > 1 {
		return nil, xerrors.Errorf("eviction ratio must be in (0, 1], got %f", evictionRatio)
	}

	// one spare slot, overflow is handled by batch eviction
	lruCache, err := lrucache.New(maxEntries + 1)
	if err != nil {
		return nil, xerrors.Errorf("failed to create LRU cache: %w", err)
	}

	return &RAMCacheStore{
		maxEntries:     maxEntries,
		evictionRatio:  evictionRatio,
		ttl:            ttl,
		evictedEntries: 0,
		cache:          lruCache,
		mutex:          sync.Mutex{},
	}, nil
}

// NewDefaultRAMCacheStore creates a new RAMCacheStore with default settings
func NewDefaultRAMCacheStore() CacheStore {
	store, _ := NewRAMCacheStore(DefaultMaxEntries, DefaultEvictionRatio, DefaultTTL)
	return store
}

// Release releases resources
func (store *RAMCacheStore) Release() {
	store.DeleteAllEntries()
}

// GetMaxEntries returns max number of entries
func (store *RAMCacheStore) GetMaxEntries() int {
	return store.maxEntries
}

// GetTTL returns default time-to-live of entries
func (store *RAMCacheStore) GetTTL() time.Duration {
	return store.ttl
}

// GetTotalEntries returns total number of entries in cache
func (store *RAMCacheStore) GetTotalEntries() int {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return store.cache.Len()
}

// GetEvictedEntries returns the number of entries evicted by count pressure
func (store *RAMCacheStore) GetEvictedEntries() int64 {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return store.evictedEntries
}

// DeleteAllEntries deletes all entries
func (store *RAMCacheStore) DeleteAllEntries() {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.cache.Purge()
}

// GetEntryKeys returns all entry keys, oldest first
func (store *RAMCacheStore) GetEntryKeys() []string {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	keys := []string{}
	for _, key := range store.cache.Keys() {
		if strkey, ok := key.(string); ok {
			keys = append(keys, strkey)
		}
	}
	return keys
}

// PutEntry stores a value and evicts the oldest entries when over capacity
func (store *RAMCacheStore) PutEntry(key string, value interface{}, loadDuration time.Duration, priority types.Priority, ttl time.Duration) CacheEntry {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"struct":   "RAMCacheStore",
		"function": "PutEntry",
	})

	defer utils.StackTraceFromPanic(logger)

	if ttl == 0 {
		ttl = store.ttl
	}

	entry := NewRAMCacheEntry(key, value, loadDuration, priority, ttl)

	store.mutex.Lock()
	defer store.mutex.Unlock()

	// remove first so the overwritten entry takes the newest position
	store.cache.Remove(key)
	store.cache.Add(key, entry)

	if store.cache.Len() > store.maxEntries {
		evicted := store.evictOldest()
		logger.Debugf("evicted %d oldest entries, %d entries left", evicted, store.cache.Len())
	}

	return entry
}

// HasEntry checks if a fresh entry for the given key is present
func (store *RAMCacheStore) HasEntry(key string) bool {
	return store.GetEntry(key) != nil
}

// GetEntry returns an entry with the given key, nil if absent or expired
func (store *RAMCacheStore) GetEntry(key string) CacheEntry {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	entry := store.peek(key)
	if entry == nil {
		return nil
	}

	if entry.IsExpired(time.Now()) {
		store.cache.Remove(key)
		return nil
	}

	return entry
}

// GetEntryWithMaxAge returns an entry stored within maxAge, nil otherwise.
// An entry older than maxAge is left in place since other callers may accept it.
func (store *RAMCacheStore) GetEntryWithMaxAge(key string, maxAge time.Duration) CacheEntry {
	entry := store.GetEntry(key)
	if entry == nil {
		return nil
	}

	if maxAge > 0 && time.Since(entry.GetStoredTime()) > maxAge {
		return nil
	}

	return entry
}

// DeleteEntry deletes an entry with the given key
func (store *RAMCacheStore) DeleteEntry(key string) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.cache.Remove(key)
}

func (store *RAMCacheStore) peek(key string) *RAMCacheEntry {
	if entry, ok := store.cache.Peek(key); ok {
		if cacheEntry, ok := entry.(*RAMCacheEntry); ok {
			return cacheEntry
		}
	}
	return nil
}

// evictOldest removes the oldest fraction of entries, must be called with lock held
func (store *RAMCacheStore) evictOldest() int {
	toEvict := int(float64(store.cache.Len()) * store.evictionRatio)
	if toEvict < 1 {
		toEvict = 1
	}

	evicted := 0
	for evicted < toEvict {
		_, _, ok := store.cache.RemoveOldest()
		if !ok {
			break
		}
		evicted++
	}

	store.evictedEntries += int64(evicted)
	return evicted
}
