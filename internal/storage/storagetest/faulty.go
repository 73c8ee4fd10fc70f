package storagetest

import (
	"context"
	"sync"

	"smpd/internal/storage"
)

// Op names a collection operation for fault injection.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpGet    Op = "get"
	OpList   Op = "list"
)

// Faults holds the injected failures of one wrapped collection.
type Faults struct {
	mu    sync.Mutex
	fail  map[Op]error
	calls map[Op]int
}

// Fail makes every further call of op return err until Clear.
func (f *Faults) Fail(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail == nil {
		f.fail = make(map[Op]error)
	}
	f.fail[op] = err
}

// Clear removes all injected failures.
func (f *Faults) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = nil
}

// Calls reports how often op was invoked, including failed calls.
func (f *Faults) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faults) check(op Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[Op]int)
	}
	f.calls[op]++
	return f.fail[op]
}

// Faulty wraps a collection and fails the operations named in Faults.
type Faulty[V storage.Record[V]] struct {
	Faults
	Inner storage.Collection[V]
}

func NewFaulty[V storage.Record[V]](inner storage.Collection[V]) *Faulty[V] {
	return &Faulty[V]{Inner: inner}
}

func (f *Faulty[V]) Create(ctx context.Context, v V) (V, error) {
	if err := f.check(OpCreate); err != nil {
		var zero V
		return zero, err
	}
	return f.Inner.Create(ctx, v)
}

func (f *Faulty[V]) Update(ctx context.Context, v V) (storage.Change, error) {
	if err := f.check(OpUpdate); err != nil {
		return storage.Unchanged, err
	}
	return f.Inner.Update(ctx, v)
}

func (f *Faulty[V]) Delete(ctx context.Context, key string) (storage.Change, error) {
	if err := f.check(OpDelete); err != nil {
		return storage.Unchanged, err
	}
	return f.Inner.Delete(ctx, key)
}

func (f *Faulty[V]) Get(ctx context.Context, key string) (V, error) {
	if err := f.check(OpGet); err != nil {
		var zero V
		return zero, err
	}
	return f.Inner.Get(ctx, key)
}

func (f *Faulty[V]) List(ctx context.Context) ([]V, error) {
	if err := f.check(OpList); err != nil {
		return nil, err
	}
	return f.Inner.List(ctx)
}

func (f *Faulty[V]) Contains(ctx context.Context, key string) (bool, error) {
	return f.Inner.Contains(ctx, key)
}

func (f *Faulty[V]) Count(ctx context.Context) (int, error) {
	return f.Inner.Count(ctx)
}

// FaultyScoped is Faulty for service-group scoped collections.
type FaultyScoped[V storage.ScopedRecord[V]] struct {
	*Faulty[V]
	scoped storage.ScopedCollection[V]
}

func NewFaultyScoped[V storage.ScopedRecord[V]](inner storage.ScopedCollection[V]) *FaultyScoped[V] {
	return &FaultyScoped[V]{Faulty: NewFaulty[V](inner), scoped: inner}
}

func (f *FaultyScoped[V]) ListByScope(ctx context.Context, scopeKey string) ([]V, error) {
	if err := f.check(OpList); err != nil {
		return nil, err
	}
	return f.scoped.ListByScope(ctx, scopeKey)
}
