package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefs struct {
	Email     bool   `json:"email"`
	Threshold string `json:"threshold"`
}

func newMemory(t *testing.T, opts ...MemoryOption) *MemoryCache {
	t.Helper()
	mc := NewMemoryCache(opts...)
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func TestMemoryCache_StructRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := newMemory(t)

	require.NoError(t, mc.Set(ctx, "prefs:42", prefs{Email: true, Threshold: "high"}, 0))

	var got prefs
	require.NoError(t, mc.Get(ctx, "prefs:42", &got))
	assert.Equal(t, prefs{Email: true, Threshold: "high"}, got)

	var raw string
	require.NoError(t, mc.Set(ctx, "plain", "v", 0))
	require.NoError(t, mc.Get(ctx, "plain", &raw))
	assert.Equal(t, "v", raw)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &raw), ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc := newMemory(t)

	require.NoError(t, mc.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var v string
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_IncrementAndMGet(t *testing.T) {
	ctx := context.Background()
	mc := newMemory(t)

	for i := 0; i < 3; i++ {
		_, err := mc.Increment(ctx, "ignored:42:stock_alert")
		require.NoError(t, err)
	}
	n, err := mc.Increment(ctx, "ignored:42:stock_alert")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	got, err := mc.MGet(ctx, "ignored:42:stock_alert", "ignored:42:claim_rate")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ignored:42:stock_alert": "4"}, got)

	require.NoError(t, mc.Set(ctx, "text", "abc", 0))
	_, err = mc.Increment(ctx, "text")
	assert.Error(t, err)
}

func TestMemoryCache_PrependRange(t *testing.T) {
	ctx := context.Background()
	mc := newMemory(t)

	require.NoError(t, mc.Prepend(ctx, "idx", 3, "a", "b"))
	require.NoError(t, mc.Prepend(ctx, "idx", 3, "c", "d"))

	all, err := mc.Range(ctx, "idx", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b"}, all)

	head, err := mc.Range(ctx, "idx", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, head)
}

func TestMemoryCache_LockAndEviction(t *testing.T) {
	ctx := context.Background()
	mc := newMemory(t, WithMemoryMaxSize(2))

	ok, err := mc.TryLock(ctx, "sync:42", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = mc.TryLock(ctx, "sync:42", time.Minute)
	assert.False(t, ok)
	require.NoError(t, mc.Unlock(ctx, "sync:42"))
	ok, _ = mc.TryLock(ctx, "sync:42", time.Minute)
	assert.True(t, ok)

	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	time.Sleep(time.Millisecond)
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	found, _ := mc.Exists(ctx, "sync:42")
	assert.False(t, found, "least recently used key is evicted")
}

func TestMGetTyped(t *testing.T) {
	ctx := context.Background()
	mc := newMemory(t)
	require.NoError(t, mc.Set(ctx, "p1", prefs{Threshold: "all"}, 0))
	require.NoError(t, mc.Set(ctx, "bad", "not json", 0))

	got, err := MGetTyped[prefs](ctx, mc, "p1", "bad", "none")
	require.NoError(t, err)
	assert.Equal(t, map[string]prefs{"p1": {Threshold: "all"}}, got)
}
