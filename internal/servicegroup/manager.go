// Package servicegroup is the local manager of service group records. It
// never talks to the SML; registration and cascade deletion live in the
// participant package, which drives this manager.
package servicegroup

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"smpd/internal/domain"
	"smpd/internal/identifier"
	"smpd/internal/storage"
	dErrors "smpd/pkg/domain-errors"
	"smpd/pkg/platform/sentinel"
)

// ErrStoreRequired is returned by New without a store.
var ErrStoreRequired = errors.New("service group store is required")

// Manager guards the service group store with one reader/writer lock.
type Manager struct {
	mu         sync.RWMutex
	store      storage.ServiceGroupStore
	normalizer *identifier.Normalizer
	logger     *slog.Logger
}

type Option func(m *Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func New(store storage.ServiceGroupStore, normalizer *identifier.Normalizer, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if normalizer == nil {
		normalizer = identifier.NewNormalizer()
	}
	m := &Manager{store: store, normalizer: normalizer, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Key derives the service group key of p.
func (m *Manager) Key(p identifier.Participant) string {
	return m.normalizer.ParticipantKey(p)
}

// Build returns the record a participant would be stored as.
func (m *Manager) Build(p identifier.Participant, ownerID, extension string) domain.ServiceGroup {
	return domain.ServiceGroup{
		Key:         m.normalizer.ParticipantKey(p),
		Participant: m.normalizer.Participant(p),
		OwnerID:     ownerID,
		Extension:   extension,
	}
}

func (m *Manager) Get(ctx context.Context, key string) (domain.ServiceGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sg, err := m.store.Get(ctx, key)
	if err != nil {
		return domain.ServiceGroup{}, storage.DomainError(err, "service group not found")
	}
	return sg, nil
}

func (m *Manager) GetByParticipant(ctx context.Context, p identifier.Participant) (domain.ServiceGroup, error) {
	return m.Get(ctx, m.Key(p))
}

func (m *Manager) Contains(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ok, err := m.store.Contains(ctx, key)
	if err != nil {
		return false, storage.DomainError(err, "failed to look up service group")
	}
	return ok, nil
}

func (m *Manager) List(ctx context.Context) ([]domain.ServiceGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	groups, err := m.store.List(ctx)
	if err != nil {
		return nil, storage.DomainError(err, "failed to list service groups")
	}
	return groups, nil
}

// ListOfOwner returns the service groups managed by ownerID.
func (m *Manager) ListOfOwner(ctx context.Context, ownerID string) ([]domain.ServiceGroup, error) {
	groups, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ServiceGroup, 0, len(groups))
	for _, sg := range groups {
		if sg.OwnerID == ownerID {
			out = append(out, sg)
		}
	}
	return out, nil
}

func (m *Manager) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, err := m.store.Count(ctx)
	if err != nil {
		return 0, storage.DomainError(err, "failed to count service groups")
	}
	return n, nil
}

// Create inserts sg. The key must be the one derived from its participant.
func (m *Manager) Create(ctx context.Context, sg domain.ServiceGroup) (domain.ServiceGroup, error) {
	if sg.Key != m.Key(sg.Participant) {
		return domain.ServiceGroup{}, dErrors.New(dErrors.CodeValidation, "service group key does not match its participant")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, err := m.store.Create(ctx, sg)
	if err != nil {
		return domain.ServiceGroup{}, storage.DomainError(err, "failed to create service group")
	}
	m.logger.DebugContext(ctx, "service group stored", "service_group_key", sg.Key)
	return stored, nil
}

// Update replaces owner and extension. The participant is immutable.
func (m *Manager) Update(ctx context.Context, sg domain.ServiceGroup) (storage.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, err := m.store.Get(ctx, sg.Key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return storage.NotFound, nil
		}
		return storage.Unchanged, storage.DomainError(err, "failed to load service group")
	}
	next := current
	next.OwnerID = sg.OwnerID
	next.Extension = sg.Extension
	change, err := m.store.Update(ctx, next)
	if err != nil {
		return storage.Unchanged, storage.DomainError(err, "failed to update service group")
	}
	return change, nil
}

// Delete removes the record only. Dependents are the caller's concern.
func (m *Manager) Delete(ctx context.Context, key string) (storage.Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	change, err := m.store.Delete(ctx, key)
	if err != nil {
		return storage.Unchanged, storage.DomainError(err, "failed to delete service group")
	}
	return change, nil
}

// Restore puts sg back if it is missing. It is used by compensation only.
func (m *Manager) Restore(ctx context.Context, sg domain.ServiceGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok, err := m.store.Contains(ctx, sg.Key)
	if err != nil {
		return storage.DomainError(err, "failed to look up service group")
	}
	if ok {
		return nil
	}
	if _, err := m.store.Create(ctx, sg); err != nil {
		return storage.DomainError(err, "failed to restore service group")
	}
	return nil
}
