package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/cyverse/lazyload-common/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRAMCacheStore(t *testing.T) {
	t.Run("test InvalidArguments", testInvalidArguments)
	t.Run("test PutAndGet", testPutAndGet)
	t.Run("test Overwrite", testOverwrite)
	t.Run("test Eviction", testEviction)
	t.Run("test EvictionKeepsNewest", testEvictionKeepsNewest)
	t.Run("test TTL", testTTL)
	t.Run("test MaxAge", testMaxAge)
	t.Run("test DeleteAndClear", testDeleteAndClear)
}

func testInvalidArguments(t *testing.T) {
	_, err := NewRAMCacheStore(0, DefaultEvictionRatio, DefaultTTL)
	assert.Error(t, err)

	_, err = NewRAMCacheStore(10, 0, DefaultTTL)
	assert.Error(t, err)

	_, err = NewRAMCacheStore(10, 1.5, DefaultTTL)
	assert.Error(t, err)
}

func testPutAndGet(t *testing.T) {
	store := NewDefaultRAMCacheStore()
	defer store.Release()

	assert.Nil(t, store.GetEntry("mod-a"))
	assert.False(t, store.HasEntry("mod-a"))

	store.PutEntry("mod-a", "value-a", 200*time.Millisecond, types.PriorityHigh, 0)

	entry := store.GetEntry("mod-a")
	require.NotNil(t, entry)
	assert.Equal(t, "mod-a", entry.GetKey())
	assert.Equal(t, "value-a", entry.GetValue())
	assert.Equal(t, types.PriorityHigh, entry.GetPriority())
	assert.Equal(t, 200*time.Millisecond, entry.GetLoadDuration())
	assert.False(t, entry.GetExpireTime().IsZero())
	assert.Equal(t, 1, store.GetTotalEntries())

	// unknown priority is stored as medium
	store.PutEntry("mod-b", "value-b", 0, types.Priority("bogus"), 0)
	assert.Equal(t, types.PriorityMedium, store.GetEntry("mod-b").GetPriority())
}

func testOverwrite(t *testing.T) {
	store := NewDefaultRAMCacheStore()
	defer store.Release()

	store.PutEntry("mod-a", "v1", 0, types.PriorityLow, 0)
	store.PutEntry("mod-b", "v1", 0, types.PriorityLow, 0)
	store.PutEntry("mod-a", "v2", 0, types.PriorityHigh, 0)

	assert.Equal(t, 2, store.GetTotalEntries())

	entry := store.GetEntry("mod-a")
	require.NotNil(t, entry)
	assert.Equal(t, "v2", entry.GetValue())
	assert.Equal(t, types.PriorityHigh, entry.GetPriority())

	// overwritten entry becomes the newest
	assert.Equal(t, []string{"mod-b", "mod-a"}, store.GetEntryKeys())
}

func testEviction(t *testing.T) {
	store := NewDefaultRAMCacheStore()
	defer store.Release()

	maxEntries := store.GetMaxEntries()
	for i := 0; i <= maxEntries; i++ {
		store.PutEntry(fmt.Sprintf("mod-%d", i), i, 0, types.PriorityMedium, 0)
	}

	assert.Less(t, store.GetTotalEntries(), maxEntries+1)
	// 25% of 51 entries
	assert.Equal(t, maxEntries+1-12, store.GetTotalEntries())
	assert.Equal(t, int64(12), store.GetEvictedEntries())

	assert.Nil(t, store.GetEntry("mod-0"))
	assert.Nil(t, store.GetEntry("mod-11"))
	assert.NotNil(t, store.GetEntry("mod-12"))
	assert.NotNil(t, store.GetEntry(fmt.Sprintf("mod-%d", maxEntries)))
}

func testEvictionKeepsNewest(t *testing.T) {
	store, err := NewRAMCacheStore(2, DefaultEvictionRatio, DefaultTTL)
	require.NoError(t, err)
	defer store.Release()

	store.PutEntry("a", 1, 0, types.PriorityMedium, 0)
	store.PutEntry("b", 2, 0, types.PriorityMedium, 0)
	store.PutEntry("c", 3, 0, types.PriorityMedium, 0)

	// at least one entry is evicted even when the fraction rounds down to zero
	assert.Equal(t, 2, store.GetTotalEntries())
	assert.Nil(t, store.GetEntry("a"))
	assert.Equal(t, []string{"b", "c"}, store.GetEntryKeys())
}

func testTTL(t *testing.T) {
	store, err := NewRAMCacheStore(10, DefaultEvictionRatio, 30*time.Millisecond)
	require.NoError(t, err)
	defer store.Release()

	store.PutEntry("short", 1, 0, types.PriorityMedium, 0)
	store.PutEntry("forever", 2, 0, types.PriorityMedium, -1)
	store.PutEntry("long", 3, 0, types.PriorityMedium, time.Hour)

	assert.True(t, store.GetEntry("forever").GetExpireTime().IsZero())
	assert.NotNil(t, store.GetEntry("short"))

	time.Sleep(50 * time.Millisecond)

	assert.Nil(t, store.GetEntry("short"))
	assert.NotNil(t, store.GetEntry("forever"))
	assert.NotNil(t, store.GetEntry("long"))

	// expired entry is dropped on read
	assert.Equal(t, 2, store.GetTotalEntries())
}

func testMaxAge(t *testing.T) {
	store := NewDefaultRAMCacheStore()
	defer store.Release()

	store.PutEntry("mod-a", 1, 0, types.PriorityMedium, 0)
	time.Sleep(20 * time.Millisecond)

	assert.Nil(t, store.GetEntryWithMaxAge("mod-a", 5*time.Millisecond))
	assert.NotNil(t, store.GetEntryWithMaxAge("mod-a", time.Minute))
	assert.NotNil(t, store.GetEntry("mod-a"))
}

func testDeleteAndClear(t *testing.T) {
	store := NewDefaultRAMCacheStore()
	defer store.Release()

	store.PutEntry("mod-a", 1, 0, types.PriorityMedium, 0)
	store.PutEntry("mod-b", 2, 0, types.PriorityMedium, 0)

	store.DeleteEntry("mod-a")
	assert.Nil(t, store.GetEntry("mod-a"))
	assert.Equal(t, 1, store.GetTotalEntries())

	store.DeleteAllEntries()
	assert.Equal(t, 0, store.GetTotalEntries())
	assert.Empty(t, store.GetEntryKeys())
}
