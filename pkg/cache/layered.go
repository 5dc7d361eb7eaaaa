package cache

import (
	"context"
	"time"
)

// LayeredCache puts a short-lived near tier (usually a MemoryCache) in front of a shared far tier.
// Plain keys are read through the near tier and written through to both. Counters, lists and
// locks only make sense in one place and go straight to the far tier.
type LayeredCache struct {
	near    Service
	far     Service
	nearTTL time.Duration
}

var _ Service = (*LayeredCache)(nil)

// NewLayeredCache caps every near entry at nearTTL so other instances' writes show up within it.
func NewLayeredCache(near, far Service, nearTTL time.Duration) *LayeredCache {
	if nearTTL <= 0 {
		nearTTL = 5 * time.Second
	}
	return &LayeredCache{near: near, far: far, nearTTL: nearTTL}
}

func (lc *LayeredCache) nearExpiry(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.nearTTL {
		return expiration
	}
	return lc.nearTTL
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.far.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.near.Set(ctx, key, value, lc.nearExpiry(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.near.Get(ctx, key, dest); err == nil {
		return nil
	}
	var raw []byte
	if err := lc.far.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = lc.near.Set(ctx, key, raw, lc.nearTTL)
	return unmarshalValue(raw, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.near.Delete(ctx, keys...)
	return lc.far.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.far.Exists(ctx, keys...)
}

func (lc *LayeredCache) Increment(ctx context.Context, key string) (int64, error) {
	return lc.far.Increment(ctx, key)
}

func (lc *LayeredCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	if err := lc.far.MSet(ctx, values, expiration); err != nil {
		return err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	return lc.near.Delete(ctx, keys...)
}

func (lc *LayeredCache) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	return lc.far.MGet(ctx, keys...)
}

func (lc *LayeredCache) Prepend(ctx context.Context, key string, maxLen int, values ...string) error {
	return lc.far.Prepend(ctx, key, maxLen, values...)
}

func (lc *LayeredCache) Range(ctx context.Context, key string, limit int) ([]string, error) {
	return lc.far.Range(ctx, key, limit)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.far.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.far.Unlock(ctx, key)
}

func (lc *LayeredCache) Ping(ctx context.Context) error {
	return lc.far.Ping(ctx)
}

// Close closes the near tier only. The far tier is shared and closed by its owner.
func (lc *LayeredCache) Close() error {
	return lc.near.Close()
}
