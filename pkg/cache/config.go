package cache

import "time"

// RedisConfig is the connection and keyspace setup of a RedisCache.
// Zero fields fall back to the defaults below.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	PoolTimeout  time.Duration
	DialTimeout  time.Duration
	Prefix       string
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns <= 0 {
		c.MinIdleConns = c.PoolSize / 4
	}
	if c.PoolTimeout <= 0 {
		c.PoolTimeout = 5 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	return c
}

// MemoryOption configures Memory cache.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	maxSize         int
	cleanupInterval time.Duration
}

// WithMemoryMaxSize caps the number of plain keys; the least recently used is evicted first.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *memoryConfig) { c.maxSize = size }
}

// WithMemoryCleanup sets how often expired keys are swept.
func WithMemoryCleanup(interval time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if interval > 0 {
			c.cleanupInterval = interval
		}
	}
}
