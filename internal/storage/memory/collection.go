// Package memory is the in-process storage backend. Its collections are also
// the building block of the file backend, which persists every commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"smpd/internal/storage"
	"smpd/pkg/platform/sentinel"
)

// CommitFunc receives the full, key-ordered contents of a collection after a
// mutation and before the mutation is released to readers. A non-nil error
// reverts the mutation.
type CommitFunc[V any] func(snapshot []V) error

// Collection is an RWMutex-guarded map of clones.
type Collection[V storage.Record[V]] struct {
	mu     sync.RWMutex
	items  map[string]V
	commit CommitFunc[V]
}

// Option configures a Collection.
type Option[V storage.Record[V]] func(*Collection[V])

// WithCommit installs a commit hook.
func WithCommit[V storage.Record[V]](fn CommitFunc[V]) Option[V] {
	return func(c *Collection[V]) { c.commit = fn }
}

// WithItems preloads the collection without running the commit hook.
func WithItems[V storage.Record[V]](items []V) Option[V] {
	return func(c *Collection[V]) {
		for _, v := range items {
			c.items[v.StorageKey()] = v.Clone()
		}
	}
}

func NewCollection[V storage.Record[V]](opts ...Option[V]) *Collection[V] {
	c := &Collection[V]{items: make(map[string]V)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collection[V]) Create(_ context.Context, v V) (V, error) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	key := v.StorageKey()
	if _, ok := c.items[key]; ok {
		return zero, fmt.Errorf("key %q: %w", key, sentinel.ErrConflict)
	}
	stored := v.Clone()
	c.items[key] = stored
	if err := c.flush(); err != nil {
		delete(c.items, key)
		return zero, err
	}
	return stored.Clone(), nil
}

func (c *Collection[V]) Update(_ context.Context, v V) (storage.Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := v.StorageKey()
	prev, ok := c.items[key]
	if !ok {
		return storage.NotFound, nil
	}
	if prev.Equal(v) {
		return storage.Unchanged, nil
	}
	c.items[key] = v.Clone()
	if err := c.flush(); err != nil {
		c.items[key] = prev
		return storage.Unchanged, err
	}
	return storage.Changed, nil
}

func (c *Collection[V]) Delete(_ context.Context, key string) (storage.Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.items[key]
	if !ok {
		return storage.Unchanged, nil
	}
	delete(c.items, key)
	if err := c.flush(); err != nil {
		c.items[key] = prev
		return storage.Unchanged, err
	}
	return storage.Changed, nil
}

func (c *Collection[V]) Get(_ context.Context, key string) (V, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.items[key]; ok {
		return v.Clone(), nil
	}
	var zero V
	return zero, fmt.Errorf("key %q: %w", key, sentinel.ErrNotFound)
}

func (c *Collection[V]) List(_ context.Context) ([]V, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot(func(V) bool { return true }), nil
}

func (c *Collection[V]) Contains(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[key]
	return ok, nil
}

func (c *Collection[V]) Count(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items), nil
}

// snapshot requires c.mu to be held.
func (c *Collection[V]) snapshot(keep func(V) bool) []V {
	keys := make([]string, 0, len(c.items))
	for k, v := range c.items {
		if keep(v) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.items[k].Clone())
	}
	return out
}

func (c *Collection[V]) flush() error {
	if c.commit == nil {
		return nil
	}
	return c.commit(c.snapshot(func(V) bool { return true }))
}

// ScopedCollection adds service-group scoped listing.
type ScopedCollection[V storage.ScopedRecord[V]] struct {
	*Collection[V]
}

func NewScopedCollection[V storage.ScopedRecord[V]](opts ...Option[V]) *ScopedCollection[V] {
	return &ScopedCollection[V]{Collection: NewCollection[V](opts...)}
}

func (c *ScopedCollection[V]) ListByScope(_ context.Context, scopeKey string) ([]V, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot(func(v V) bool { return v.ScopeKey() == scopeKey }), nil
}
