package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayeredCache_ReadThrough(t *testing.T) {
	ctx := context.Background()
	near, far := newMemory(t), newMemory(t)
	lc := NewLayeredCache(near, far, time.Minute)

	require.NoError(t, far.Set(ctx, "resp:history:42:7", prefs{Email: true, Threshold: "high"}, time.Hour))

	var got prefs
	require.NoError(t, lc.Get(ctx, "resp:history:42:7", &got))
	assert.Equal(t, "high", got.Threshold)

	// served from the near tier once the far copy is gone
	require.NoError(t, far.Delete(ctx, "resp:history:42:7"))
	got = prefs{}
	require.NoError(t, lc.Get(ctx, "resp:history:42:7", &got))
	assert.True(t, got.Email)

	var s string
	require.NoError(t, far.Set(ctx, "plain", "v", 0))
	require.NoError(t, lc.Get(ctx, "plain", &s))
	assert.Equal(t, "v", s)
	require.NoError(t, lc.Get(ctx, "plain", &s))
	assert.Equal(t, "v", s, "raw strings survive the near tier")
}

func TestLayeredCache_WriteThroughAndDelete(t *testing.T) {
	ctx := context.Background()
	near, far := newMemory(t), newMemory(t)
	lc := NewLayeredCache(near, far, time.Minute)

	require.NoError(t, lc.Set(ctx, "k", "v", 0))
	ok, err := near.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lc.Delete(ctx, "k"))
	var v string
	assert.ErrorIs(t, lc.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestLayeredCache_NearExpiryIsCapped(t *testing.T) {
	lc := NewLayeredCache(nil, nil, time.Second)
	assert.Equal(t, time.Second, lc.nearExpiry(0))
	assert.Equal(t, time.Second, lc.nearExpiry(time.Hour))
	assert.Equal(t, 10*time.Millisecond, lc.nearExpiry(10*time.Millisecond))
}

func TestLayeredCache_CountersAndLocksUseFarTier(t *testing.T) {
	ctx := context.Background()
	near, far := newMemory(t), newMemory(t)
	lc := NewLayeredCache(near, far, time.Minute)

	n, err := lc.Increment(ctx, "ignored:42:low_stock")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := lc.TryLock(ctx, "lock:sync:42", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = far.TryLock(ctx, "lock:sync:42", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock lives in the far tier")

	ok, err = near.Exists(ctx, "ignored:42:low_stock")
	require.NoError(t, err)
	assert.False(t, ok)
}
