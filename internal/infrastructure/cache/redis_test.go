package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopagent/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCacheWithClient(client), mr
}

func TestRedisCache_SetAndGet(t *testing.T) {
	cache, _ := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", `{"title":"Laptop"}`, time.Minute))

	got, err := cache.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Laptop"}`, got)
}

func TestRedisCache_GetMissing(t *testing.T) {
	cache, _ := newTestRedisCache(t)

	_, err := cache.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisCache_Expiration(t *testing.T) {
	cache, mr := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "short-lived", "value", time.Second))

	mr.FastForward(2 * time.Second)

	_, err := cache.Get(ctx, "short-lived")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisCache_Delete(t *testing.T) {
	cache, _ := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, cache.Delete(ctx, "key"))

	_, err := cache.Get(ctx, "key")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
}

func TestRedisCache_Incr(t *testing.T) {
	cache, mr := newTestRedisCache(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := cache.Incr(ctx, "attempts", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// TTL is set on first increment only
	ttl := mr.TTL("attempts")
	assert.Equal(t, time.Minute, ttl)
}

func TestRedisCache_IncrResetsAfterExpiry(t *testing.T) {
	cache, mr := newTestRedisCache(t)
	ctx := context.Background()

	_, err := cache.Incr(ctx, "attempts", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	got, err := cache.Incr(ctx, "attempts", time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}
