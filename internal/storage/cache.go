package storage

import (
	"context"
	"sync"
	"time"

	"tokenwarden/internal/clock"
	"tokenwarden/pkg/oauth"
)

type cacheItem[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

func (i cacheItem[V]) expired(now time.Time) bool {
	return i.ttl > 0 && now.Sub(i.storedAt) > i.ttl
}

// Cache is an in-memory key/value cache with per-entry TTL. Expired entries
// are evicted lazily when accessed; there is no background sweep.
type Cache[V any] struct {
	mu    sync.Mutex
	items map[string]cacheItem[V]
	clock clock.Clock
}

// NewCache creates an empty cache. A nil clock uses the system time.
func NewCache[V any](c clock.Clock) *Cache[V] {
	if c == nil {
		c = clock.Real{}
	}
	return &Cache[V]{
		items: make(map[string]cacheItem[V]),
		clock: c,
	}
}

// Get returns the value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if item.expired(c.clock.Now()) {
		delete(c.items, key)
		var zero V
		return zero, false
	}
	return item.value, true
}

// Set stores value under key. ttl <= 0 means the entry never expires.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cacheItem[V]{value: value, storedAt: c.clock.Now(), ttl: ttl}
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]cacheItem[V])
}

// CachedAdapter is a read-through cache in front of a slower Adapter.
//
// The TTL bounds how stale a cached copy of the stored record may be; it
// says nothing about whether the token inside is still valid. Writes and
// removals go to the backing adapter first and then update the cache.
type CachedAdapter struct {
	inner Adapter
	cache *Cache[*oauth.TokenRecord]
	ttl   time.Duration
}

// NewCachedAdapter wraps inner with a cache whose entries live for ttl.
func NewCachedAdapter(inner Adapter, ttl time.Duration, c clock.Clock) *CachedAdapter {
	return &CachedAdapter{
		inner: inner,
		cache: NewCache[*oauth.TokenRecord](c),
		ttl:   ttl,
	}
}

// Get serves from cache when possible. Absent records are not cached.
func (a *CachedAdapter) Get(ctx context.Context, key string) (*oauth.TokenRecord, error) {
	if record, ok := a.cache.Get(key); ok {
		return cloneRecord(record), nil
	}

	record, err := a.inner.Get(ctx, key)
	if err != nil || record == nil {
		return record, err
	}

	a.cache.Set(key, cloneRecord(record), a.ttl)
	return record, nil
}

// Set writes through to the backing adapter.
func (a *CachedAdapter) Set(ctx context.Context, key string, record *oauth.TokenRecord) error {
	if err := a.inner.Set(ctx, key, record); err != nil {
		a.cache.Delete(key)
		return err
	}
	a.cache.Set(key, cloneRecord(record), a.ttl)
	return nil
}

// Remove deletes from the backing adapter and the cache.
func (a *CachedAdapter) Remove(ctx context.Context, key string) error {
	a.cache.Delete(key)
	return a.inner.Remove(ctx, key)
}

// Close drops every cached record and closes the backing adapter if it
// holds resources.
func (a *CachedAdapter) Close() error {
	a.cache.Clear()
	if closer, ok := a.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
