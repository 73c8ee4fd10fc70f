// Package redis is the document-store backend. Each collection is one hash of
// JSON documents; scoped collections keep one index set per service group.
// Mutations run as WATCH/MULTI transactions so the document and its index
// entry become visible together.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"smpd/internal/storage"
	"smpd/pkg/platform/sentinel"
)

var opDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "smpd_redis_store_op_duration_ms",
	Help:    "Latency of redis storage operations in milliseconds",
	Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
}, []string{"collection", "op"})

// maxTxRetries bounds optimistic-lock retries of one mutation.
const maxTxRetries = 8

// Collection stores records of one type in one hash.
type Collection[V storage.Record[V]] struct {
	client *redis.Client
	name   string
	hash   string
	prefix string
}

func NewCollection[V storage.Record[V]](client *redis.Client, prefix, name string) *Collection[V] {
	return &Collection[V]{client: client, name: name, hash: prefix + name, prefix: prefix}
}

func (c *Collection[V]) indexKey(scope string) string {
	return c.prefix + c.name + ":scope:" + scope
}

func scopeOf[V any](v V) string {
	if scoped, ok := any(v).(interface{ ScopeKey() string }); ok {
		return scoped.ScopeKey()
	}
	return ""
}

func (c *Collection[V]) observe(op string) func() {
	start := time.Now()
	return func() {
		opDurationMs.WithLabelValues(c.name, op).Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}
}

// watch runs fn as an optimistic transaction on the collection hash.
func (c *Collection[V]) watch(ctx context.Context, fn func(tx *redis.Tx) error) error {
	for range maxTxRetries {
		err := c.client.Watch(ctx, fn, c.hash)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("%s: too much contention: %w", c.name, sentinel.ErrUnavailable)
}

func (c *Collection[V]) Create(ctx context.Context, v V) (V, error) {
	defer c.observe("create")()
	var zero V
	doc, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", c.name, err)
	}
	key, scope := v.StorageKey(), scopeOf(v)
	err = c.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, c.hash, key).Result()
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%s key %q: %w", c.name, key, sentinel.ErrConflict)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, c.hash, key, doc)
			if scope != "" {
				pipe.SAdd(ctx, c.indexKey(scope), key)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return zero, err
	}
	return v.Clone(), nil
}

func (c *Collection[V]) Update(ctx context.Context, v V) (storage.Change, error) {
	defer c.observe("update")()
	doc, err := json.Marshal(v)
	if err != nil {
		return storage.Unchanged, fmt.Errorf("encode %s: %w", c.name, err)
	}
	key, scope := v.StorageKey(), scopeOf(v)
	change := storage.Unchanged
	err = c.watch(ctx, func(tx *redis.Tx) error {
		change = storage.Unchanged
		raw, err := tx.HGet(ctx, c.hash, key).Bytes()
		if errors.Is(err, redis.Nil) {
			change = storage.NotFound
			return nil
		}
		if err != nil {
			return err
		}
		current, err := c.decode(raw)
		if err != nil {
			return err
		}
		if current.Equal(v) {
			return nil
		}
		oldScope := scopeOf(current)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, c.hash, key, doc)
			if oldScope != scope {
				if oldScope != "" {
					pipe.SRem(ctx, c.indexKey(oldScope), key)
				}
				if scope != "" {
					pipe.SAdd(ctx, c.indexKey(scope), key)
				}
			}
			return nil
		})
		if err == nil {
			change = storage.Changed
		}
		return err
	})
	if err != nil {
		return storage.Unchanged, err
	}
	return change, nil
}

func (c *Collection[V]) Delete(ctx context.Context, key string) (storage.Change, error) {
	defer c.observe("delete")()
	change := storage.Unchanged
	err := c.watch(ctx, func(tx *redis.Tx) error {
		change = storage.Unchanged
		raw, err := tx.HGet(ctx, c.hash, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		current, err := c.decode(raw)
		if err != nil {
			return err
		}
		scope := scopeOf(current)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, c.hash, key)
			if scope != "" {
				pipe.SRem(ctx, c.indexKey(scope), key)
			}
			return nil
		})
		if err == nil {
			change = storage.Changed
		}
		return err
	})
	if err != nil {
		return storage.Unchanged, err
	}
	return change, nil
}

func (c *Collection[V]) Get(ctx context.Context, key string) (V, error) {
	defer c.observe("get")()
	var zero V
	raw, err := c.client.HGet(ctx, c.hash, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, fmt.Errorf("%s key %q: %w", c.name, key, sentinel.ErrNotFound)
	}
	if err != nil {
		return zero, fmt.Errorf("get %s: %w", c.name, err)
	}
	return c.decode(raw)
}

func (c *Collection[V]) List(ctx context.Context) ([]V, error) {
	defer c.observe("list")()
	docs, err := c.client.HVals(ctx, c.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.name, err)
	}
	return c.decodeAll(docs)
}

func (c *Collection[V]) Contains(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.HExists(ctx, c.hash, key).Result()
	if err != nil {
		return false, fmt.Errorf("contains %s: %w", c.name, err)
	}
	return ok, nil
}

func (c *Collection[V]) Count(ctx context.Context) (int, error) {
	n, err := c.client.HLen(ctx, c.hash).Result()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return int(n), nil
}

func (c *Collection[V]) decode(raw []byte) (V, error) {
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w: %v", c.name, sentinel.ErrInvalidState, err)
	}
	return v, nil
}

func (c *Collection[V]) decodeAll(docs []string) ([]V, error) {
	out := make([]V, 0, len(docs))
	for _, doc := range docs {
		v, err := c.decode([]byte(doc))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StorageKey() < out[j].StorageKey() })
	return out, nil
}

// ScopedCollection resolves scoped listings through the index sets.
type ScopedCollection[V storage.ScopedRecord[V]] struct {
	*Collection[V]
}

func NewScopedCollection[V storage.ScopedRecord[V]](client *redis.Client, prefix, name string) *ScopedCollection[V] {
	return &ScopedCollection[V]{Collection: NewCollection[V](client, prefix, name)}
}

func (c *ScopedCollection[V]) ListByScope(ctx context.Context, scopeKey string) ([]V, error) {
	defer c.observe("list_by_scope")()
	keys, err := c.client.SMembers(ctx, c.indexKey(scopeKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s by scope: %w", c.name, err)
	}
	if len(keys) == 0 {
		return []V{}, nil
	}
	values, err := c.client.HMGet(ctx, c.hash, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s by scope: %w", c.name, err)
	}
	docs := make([]string, 0, len(values))
	for _, v := range values {
		// a nil entry is an index member whose delete raced this read
		if s, ok := v.(string); ok {
			docs = append(docs, s)
		}
	}
	return c.decodeAll(docs)
}
