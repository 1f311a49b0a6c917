package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements an in-process cache with TTL support. It is the
// fallback when no Redis server is configured and only helps when several
// packages of one run, or several scheduled runs, share an archive.
type MemoryCache struct {
	mu     sync.Mutex
	data   map[string]cacheItem
	config Config
	now    func() time.Time
}

type cacheItem struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates a memory cache with the given configuration
func NewMemoryCache(config Config) *MemoryCache {
	return &MemoryCache{
		data:   make(map[string]cacheItem),
		config: config,
		now:    time.Now,
	}
}

// Get retrieves a value from the cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	fullKey := m.config.Prefix + key
	item, ok := m.data[fullKey]
	if !ok {
		return nil, ErrCacheMiss{Key: key}
	}

	if !item.expiration.IsZero() && m.now().After(item.expiration) {
		delete(m.data, fullKey)
		return nil, ErrCacheMiss{Key: key}
	}

	return item.value, nil
}

// Set stores a value in the cache with a TTL
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	item := cacheItem{value: value}
	if ttl > 0 {
		item.expiration = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.data[m.config.Prefix+key] = item
	m.mu.Unlock()
	return nil
}

// Delete removes a value from the cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.data, m.config.Prefix+key)
	m.mu.Unlock()
	return nil
}

// Close drops all entries
func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.data = make(map[string]cacheItem)
	m.mu.Unlock()
	return nil
}
