package jwks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cacheContract runs the behaviour every Cache implementation must share.
func cacheContract(t *testing.T, cache Cache, expire func(d time.Duration)) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok, "a missing key is a miss")

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))
	value, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), value)

	require.NoError(t, cache.Delete(ctx, "k"))
	_, ok, err = cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "a deleted key is a miss")

	require.NoError(t, cache.Set(ctx, "short", []byte("v"), time.Minute))
	expire(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok, "an expired key is a miss")
}

func TestMemoryCache(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cache := NewMemoryCache()
	cache.now = clock.Now

	cacheContract(t, cache, clock.Advance)
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := NewRedisCache(client, "test:")
	cacheContract(t, cache, mr.FastForward)

	t.Run("it namespaces keys with the prefix", func(t *testing.T) {
		require.NoError(t, cache.Set(context.Background(), "k", []byte("v"), time.Minute))
		assert.True(t, mr.Exists("test:k"))
		assert.False(t, mr.Exists("k"))
	})
}
