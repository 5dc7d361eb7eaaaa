package cache

import (
	"context"
	"errors"
	"time"

	"SellerGuard/internal/service/metrics"
	pkgcache "SellerGuard/pkg/cache"
)

// ResponseCache keeps rendered API payloads in the shared cache under their own namespace.
// Entries are never invalidated, so readers may see data up to ttl old.
type ResponseCache struct {
	svc pkgcache.Service
	ns  string
}

func NewResponseCache(svc pkgcache.Service, namespace string) *ResponseCache {
	return &ResponseCache{svc: svc, ns: namespace}
}

// Load decodes the entry for key into dest. A miss is (false, nil).
// endpoint labels the hit/miss counter.
func (c *ResponseCache) Load(ctx context.Context, endpoint, key string, dest interface{}) (bool, error) {
	err := c.svc.Get(ctx, pkgcache.Key(c.ns, key), dest)
	switch {
	case err == nil:
		metrics.CacheResults.WithLabelValues(endpoint, "hit").Inc()
		return true, nil
	case errors.Is(err, pkgcache.ErrCacheMiss):
		metrics.CacheResults.WithLabelValues(endpoint, "miss").Inc()
		return false, nil
	default:
		metrics.CacheResults.WithLabelValues(endpoint, "error").Inc()
		return false, err
	}
}

func (c *ResponseCache) Store(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	return c.svc.Set(ctx, pkgcache.Key(c.ns, key), v, ttl)
}
