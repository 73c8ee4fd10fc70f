// Package cache decorates a collection with an expiring read cache. Point
// reads are served from memory; every mutation invalidates its key.
package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"smpd/internal/storage"
)

const (
	DefaultExpiration      = 60 * time.Second
	DefaultCleanupInterval = 5 * time.Minute
)

// Collection caches Get and Contains of the wrapped collection. The lock
// orders cache fills after any concurrent mutation of the same collection,
// so a fill can never resurrect a value a writer just replaced.
type Collection[V storage.Record[V]] struct {
	storage.Collection[V]
	mu    sync.RWMutex
	cache *gocache.Cache
}

func New[V storage.Record[V]](inner storage.Collection[V], expiration time.Duration) *Collection[V] {
	if expiration <= 0 {
		expiration = DefaultExpiration
	}
	return &Collection[V]{
		Collection: inner,
		cache:      gocache.New(expiration, DefaultCleanupInterval),
	}
}

func (c *Collection[V]) Get(ctx context.Context, key string) (V, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if cached, ok := c.cache.Get(key); ok {
		if v, ok := cached.(V); ok {
			return v.Clone(), nil
		}
	}
	v, err := c.Collection.Get(ctx, key)
	if err != nil {
		return v, err
	}
	c.cache.SetDefault(key, v.Clone())
	return v, nil
}

func (c *Collection[V]) Contains(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	_, ok := c.cache.Get(key)
	c.mu.RUnlock()
	if ok {
		return true, nil
	}
	return c.Collection.Contains(ctx, key)
}

func (c *Collection[V]) Create(ctx context.Context, v V) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Delete(v.StorageKey())
	return c.Collection.Create(ctx, v)
}

func (c *Collection[V]) Update(ctx context.Context, v V) (storage.Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Delete(v.StorageKey())
	return c.Collection.Update(ctx, v)
}

func (c *Collection[V]) Delete(ctx context.Context, key string) (storage.Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Delete(key)
	return c.Collection.Delete(ctx, key)
}

// Flush drops every cached entry.
func (c *Collection[V]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Flush()
}

// Len reports the number of cached entries, expired ones included.
func (c *Collection[V]) Len() int {
	return c.cache.ItemCount()
}
