// Package storage defines the contract every backend technology implements:
// one collection per record type with create / update / delete / read
// semantics shared by all of them.
package storage

import (
	"context"
	"errors"

	"smpd/internal/domain"
)

// Change is the outcome of a mutation. NotFound is a normal outcome of
// Update and is never reported as an error.
type Change int

const (
	Unchanged Change = iota
	Changed
	NotFound
)

func (c Change) String() string {
	switch c {
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// IsChanged reports whether the mutation altered stored state.
func (c Change) IsChanged() bool { return c == Changed }

// Record is implemented by every stored value type.
type Record[V any] interface {
	StorageKey() string
	Clone() V
	Equal(V) bool
}

// ScopedRecord belongs to a service group.
type ScopedRecord[V any] interface {
	Record[V]
	ScopeKey() string
}

// Collection is the per-record-type store. Reads return clones; mutations
// become visible to readers only once fully committed.
type Collection[V Record[V]] interface {
	// Create fails with sentinel.ErrConflict if the key exists.
	Create(ctx context.Context, v V) (V, error)
	// Update replaces the record with the same key. It reports NotFound when
	// no such record exists and Unchanged when the stored value is equal.
	Update(ctx context.Context, v V) (Change, error)
	// Delete reports Unchanged for a missing key.
	Delete(ctx context.Context, key string) (Change, error)
	// Get fails with sentinel.ErrNotFound for a missing key.
	Get(ctx context.Context, key string) (V, error)
	// List returns all records ordered by key.
	List(ctx context.Context) ([]V, error)
	Contains(ctx context.Context, key string) (bool, error)
	Count(ctx context.Context) (int, error)
}

// ScopedCollection additionally lists the records of one service group.
type ScopedCollection[V ScopedRecord[V]] interface {
	Collection[V]
	ListByScope(ctx context.Context, scopeKey string) ([]V, error)
}

type (
	ServiceGroupStore       = Collection[domain.ServiceGroup]
	RedirectStore           = ScopedCollection[domain.Redirect]
	ServiceInformationStore = ScopedCollection[domain.ServiceInformation]
	TransportProfileStore   = Collection[domain.TransportProfile]
	SMLInfoStore            = Collection[domain.SMLInfo]
	SettingsStore           = Collection[domain.Settings]
)

// Backend bundles the stores of one technology.
type Backend struct {
	Kind               Kind
	ServiceGroups      ServiceGroupStore
	Redirects          RedirectStore
	ServiceInformation ServiceInformationStore
	TransportProfiles  TransportProfileStore
	SMLInfos           SMLInfoStore
	Settings           SettingsStore

	closers []func() error
}

// OnClose registers fn to run when the backend is closed. Closers run in
// reverse registration order.
func (b *Backend) OnClose(fn func() error) {
	b.closers = append(b.closers, fn)
}

// Close releases the backend's connections.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
