package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(context.Background(), RedisConfig{Addr: mr.Addr(), Prefix: "booking:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedis(t)

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "day:room-1", []byte(`[1,2]`), 30*time.Second))
	assert.True(t, mr.Exists("booking:day:room-1"))

	value, ok, err := store.Get(ctx, "day:room-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[1,2]`, string(value))

	mr.FastForward(31 * time.Second)
	_, ok, err = store.Get(ctx, "day:room-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, store.Delete(ctx, "k", "other"))
	assert.False(t, mr.Exists("booking:k"))
	require.NoError(t, store.Delete(ctx))
}

func TestRedisStoreIncrWithExpire(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedis(t)

	for want := int64(1); want <= 3; want++ {
		got, err := store.IncrWithExpire(ctx, "rl:ip", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, time.Minute, mr.TTL("booking:rl:ip"))

	mr.FastForward(time.Minute)
	got, err := store.IncrWithExpire(ctx, "rl:ip", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got)
}

func TestNewRedisStoreFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), RedisConfig{Addr: addr})
	assert.Error(t, err)
}
