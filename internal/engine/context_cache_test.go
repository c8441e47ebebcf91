package engine

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salonhq/booking-assistant/internal/bookings"
)

func newTestCache(t *testing.T) (*ContextCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewContextCache(client, time.Hour), mr
}

func TestContextCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	fields := bookings.Fields{
		ClientName:         "Anna",
		Phone:              "+491701234567",
		ServiceDescription: "haircut",
	}
	require.NoError(t, cache.Save(ctx, "conv-1", fields))

	got, err := cache.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, fields, got)
}

func TestContextCacheMissReturnsZero(t *testing.T) {
	cache, _ := newTestCache(t)

	got, err := cache.Load(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Equal(t, bookings.Fields{}, got)
}

func TestContextCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, "conv-1", bookings.Fields{ClientName: "Anna"}))
	require.NoError(t, cache.Invalidate(ctx, "conv-1"))

	got, err := cache.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, bookings.Fields{}, got)
}

func TestContextCacheEntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Save(ctx, "conv-1", bookings.Fields{ClientName: "Anna"}))
	mr.FastForward(2 * time.Hour)

	got, err := cache.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, bookings.Fields{}, got)
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *ContextCache
	ctx := context.Background()

	got, err := cache.Load(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, bookings.Fields{}, got)
	assert.NoError(t, cache.Save(ctx, "conv-1", bookings.Fields{}))
	assert.NoError(t, cache.Invalidate(ctx, "conv-1"))
}
