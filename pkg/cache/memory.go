package cache

import (
	"container/list"
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	key      string
	value    []byte
	expireAt time.Time // zero never expires
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// MemoryCache implements Service in process. Plain keys are evicted least
// recently used first once maxSize is reached; lists are never evicted.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List // front is most recently used
	lists   map[string][]string
	maxSize int

	done      chan struct{}
	closeOnce sync.Once
}

var _ Service = (*MemoryCache)(nil)

// NewMemoryCache creates an in-memory cache and starts its expiry sweeper.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &memoryConfig{maxSize: 10000, cleanupInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		lists:   make(map[string][]string),
		maxSize: cfg.maxSize,
		done:    make(chan struct{}),
	}
	go mc.sweep(cfg.cleanupInterval)
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	mc.store(key, data, expiration)
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	e := mc.live(key, time.Now())
	var data []byte
	if e != nil {
		data = e.value
	}
	mc.mu.Unlock()

	if e == nil {
		return ErrCacheMiss
	}
	return unmarshalValue(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		mc.remove(key)
		delete(mc.lists, key)
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	for _, key := range keys {
		if mc.live(key, now) != nil {
			return true, nil
		}
		if _, ok := mc.lists[key]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	e := mc.live(key, time.Now())
	if e == nil {
		mc.store(key, []byte("1"), 0)
		return 1, nil
	}
	n, err := strconv.ParseInt(string(e.value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value at %s is not an integer", key)
	}
	n++
	e.value = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (mc *MemoryCache) MSet(_ context.Context, values map[string]interface{}, expiration time.Duration) error {
	encoded := make(map[string][]byte, len(values))
	for k, v := range values {
		data, err := marshalValue(v)
		if err != nil {
			return err
		}
		encoded[k] = data
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for k, data := range encoded {
		mc.store(k, data, expiration)
	}
	return nil
}

func (mc *MemoryCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if e := mc.live(key, now); e != nil {
			out[key] = string(e.value)
		}
	}
	return out, nil
}

func (mc *MemoryCache) Prepend(_ context.Context, key string, maxLen int, values ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	cur := mc.lists[key]
	next := make([]string, 0, len(cur)+len(values))
	// same order as LPUSH: the last value ends up first
	for i := len(values) - 1; i >= 0; i-- {
		next = append(next, values[i])
	}
	next = append(next, cur...)
	if maxLen > 0 && len(next) > maxLen {
		next = next[:maxLen]
	}
	mc.lists[key] = next
	return nil
}

func (mc *MemoryCache) Range(_ context.Context, key string, limit int) ([]string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	cur := mc.lists[key]
	if limit > 0 && len(cur) > limit {
		cur = cur[:limit]
	}
	return append([]string(nil), cur...), nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.live(key, time.Now()) != nil {
		return false, nil
	}
	mc.store(key, []byte("locked"), ttl)
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

func (mc *MemoryCache) Ping(context.Context) error { return nil }

// Close stops the sweeper.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() { close(mc.done) })
	return nil
}

// live returns the unexpired entry for key and marks it recently used.
// Expired entries are dropped. mu must be held.
func (mc *MemoryCache) live(key string, now time.Time) *memoryEntry {
	el, ok := mc.entries[key]
	if !ok {
		return nil
	}
	e := el.Value.(*memoryEntry)
	if e.expired(now) {
		mc.remove(key)
		return nil
	}
	mc.lru.MoveToFront(el)
	return e
}

// store writes key, evicting from the back of the LRU list when full. mu must be held.
func (mc *MemoryCache) store(key string, data []byte, expiration time.Duration) {
	var expireAt time.Time
	if expiration > 0 {
		expireAt = time.Now().Add(expiration)
	}
	if el, ok := mc.entries[key]; ok {
		e := el.Value.(*memoryEntry)
		e.value, e.expireAt = data, expireAt
		mc.lru.MoveToFront(el)
		return
	}
	for mc.maxSize > 0 && len(mc.entries) >= mc.maxSize {
		mc.remove(mc.lru.Back().Value.(*memoryEntry).key)
	}
	mc.entries[key] = mc.lru.PushFront(&memoryEntry{key: key, value: data, expireAt: expireAt})
}

func (mc *MemoryCache) remove(key string) {
	if el, ok := mc.entries[key]; ok {
		mc.lru.Remove(el)
		delete(mc.entries, key)
	}
}

func (mc *MemoryCache) sweep(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-mc.done:
			return
		case now := <-t.C:
			mc.mu.Lock()
			for key, el := range mc.entries {
				if el.Value.(*memoryEntry).expired(now) {
					mc.remove(key)
				}
			}
			mc.mu.Unlock()
		}
	}
}
