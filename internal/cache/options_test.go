package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func setupOptionsCache(t *testing.T) *OptionsCache {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewOptionsCache(NewRedisKVStore(client))
}

func TestOptionsCache_SetGet(t *testing.T) {
	c := setupOptionsCache(t)
	ctx := context.Background()

	want := map[string]string{"MultiBioDataSupport": "0:1:1:0:0:0:0:1:1:1"}
	require.NoError(t, c.Set(ctx, "A01", want))

	got, ok := c.Get(ctx, "A01")
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestOptionsCache_Miss(t *testing.T) {
	c := setupOptionsCache(t)
	_, ok := c.Get(context.Background(), "unknown")
	require.False(t, ok)
}

func TestOptionsCache_Invalidate(t *testing.T) {
	c := setupOptionsCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "A01", map[string]string{"x": "1"}))
	require.NoError(t, c.Invalidate(ctx, "A01"))

	_, ok := c.Get(ctx, "A01")
	require.False(t, ok)
}
