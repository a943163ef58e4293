package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftshop/backend/internal/domain/integration"
)

func testKey(id string) integration.CacheKey {
	return integration.CacheKey{Platform: integration.PlatformEtsy, Resource: "orders", ID: id}
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, testKey("42"), []byte(`[1,2,3]`), time.Minute))

	got, err := c.Get(ctx, testKey("42"))
	require.NoError(t, err)
	assert.Equal(t, []byte(`[1,2,3]`), got)
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	_, err := c.Get(context.Background(), testKey("absent"))
	assert.ErrorIs(t, err, integration.ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	current := time.Now()
	c.now = func() time.Time { return current }

	require.NoError(t, c.Set(ctx, testKey("42"), []byte("v"), 15*time.Minute))

	current = current.Add(14 * time.Minute)
	_, err := c.Get(ctx, testKey("42"))
	assert.NoError(t, err)

	// Past the TTL the entry reports absent even before the reaper runs.
	current = current.Add(2 * time.Minute)
	_, err = c.Get(ctx, testKey("42"))
	assert.ErrorIs(t, err, integration.ErrCacheMiss)
}

func TestMemoryCache_Invalidate(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, testKey("42"), []byte("v"), time.Minute))
	require.NoError(t, c.Invalidate(ctx, testKey("42")))

	_, err := c.Get(ctx, testKey("42"))
	assert.ErrorIs(t, err, integration.ErrCacheMiss)

	// Absent keys invalidate without error.
	assert.NoError(t, c.Invalidate(ctx, testKey("absent")))
}

func TestMemoryCache_ValueCopied(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	value := []byte("original")
	require.NoError(t, c.Set(ctx, testKey("42"), value, time.Minute))
	value[0] = 'X'

	got, err := c.Get(ctx, testKey("42"))
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	// Mutating the returned slice does not corrupt the stored entry.
	got[0] = 'Y'
	again, err := c.Get(ctx, testKey("42"))
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestMemoryCache_Reap(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ctx := context.Background()

	current := time.Now()
	c.now = func() time.Time { return current }

	require.NoError(t, c.Set(ctx, testKey("stale"), []byte("v"), time.Minute))
	require.NoError(t, c.Set(ctx, testKey("fresh"), []byte("v"), time.Hour))

	current = current.Add(30 * time.Minute)
	c.reap()

	c.mu.RLock()
	defer c.mu.RUnlock()
	assert.Len(t, c.entries, 1)
	_, ok := c.entries[testKey("fresh").String()]
	assert.True(t, ok)
}

func TestMemoryCache_CloseIdempotent(t *testing.T) {
	c := NewMemoryCache()
	c.Close()
	c.Close()
}
