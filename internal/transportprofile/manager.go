// Package transportprofile manages the registered transport profiles.
package transportprofile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"smpd/internal/domain"
	"smpd/internal/storage"
	dErrors "smpd/pkg/domain-errors"
)

var ErrStoreRequired = errors.New("transport profile store is required")

// UsageChecker reports whether endpoints still reference a profile.
type UsageChecker interface {
	ContainsTransportProfile(ctx context.Context, transportProfileID string) (bool, error)
}

type Manager struct {
	mu     sync.RWMutex
	store  storage.TransportProfileStore
	usage  UsageChecker
	logger *slog.Logger
}

type Option func(m *Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithUsageChecker makes Delete refuse profiles that are still in use.
func WithUsageChecker(u UsageChecker) Option {
	return func(m *Manager) { m.usage = u }
}

func New(store storage.TransportProfileStore, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	m := &Manager{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func validate(tp domain.TransportProfile) error {
	if strings.TrimSpace(tp.ID) == "" {
		return dErrors.New(dErrors.CodeValidation, "transport profile id is required")
	}
	if strings.TrimSpace(tp.Name) == "" {
		return dErrors.New(dErrors.CodeValidation, "transport profile name is required")
	}
	return nil
}

func (m *Manager) Create(ctx context.Context, tp domain.TransportProfile) (domain.TransportProfile, error) {
	if err := validate(tp); err != nil {
		return domain.TransportProfile{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, err := m.store.Create(ctx, tp)
	if err != nil {
		return domain.TransportProfile{}, storage.DomainError(err, "failed to create transport profile")
	}
	m.logger.InfoContext(ctx, "transport profile created", "transport_profile_id", tp.ID)
	return stored, nil
}

// Update changes name and deprecation. NotFound is a normal outcome.
func (m *Manager) Update(ctx context.Context, tp domain.TransportProfile) (storage.Change, error) {
	if err := validate(tp); err != nil {
		return storage.Unchanged, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	change, err := m.store.Update(ctx, tp)
	if err != nil {
		return storage.Unchanged, storage.DomainError(err, "failed to update transport profile")
	}
	if change.IsChanged() {
		m.logger.InfoContext(ctx, "transport profile updated", "transport_profile_id", tp.ID, "deprecated", tp.Deprecated)
	}
	return change, nil
}

// Delete removes a profile. With a usage checker installed, profiles still
// referenced by an endpoint are refused with a conflict.
func (m *Manager) Delete(ctx context.Context, id string) (storage.Change, error) {
	if m.usage != nil {
		inUse, err := m.usage.ContainsTransportProfile(ctx, id)
		if err != nil {
			return storage.Unchanged, err
		}
		if inUse {
			return storage.Unchanged, dErrors.Newf(dErrors.CodeConflict, "transport profile %q is in use", id)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	change, err := m.store.Delete(ctx, id)
	if err != nil {
		return storage.Unchanged, storage.DomainError(err, "failed to delete transport profile")
	}
	if change.IsChanged() {
		m.logger.InfoContext(ctx, "transport profile deleted", "transport_profile_id", id)
	}
	return change, nil
}

func (m *Manager) Get(ctx context.Context, id string) (domain.TransportProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tp, err := m.store.Get(ctx, id)
	if err != nil {
		return domain.TransportProfile{}, storage.DomainError(err, "transport profile not found")
	}
	return tp, nil
}

func (m *Manager) List(ctx context.Context) ([]domain.TransportProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out, err := m.store.List(ctx)
	if err != nil {
		return nil, storage.DomainError(err, "failed to list transport profiles")
	}
	return out, nil
}

func (m *Manager) Contains(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ok, err := m.store.Contains(ctx, id)
	if err != nil {
		return false, storage.DomainError(err, "failed to look up transport profile")
	}
	return ok, nil
}

func (m *Manager) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, err := m.store.Count(ctx)
	if err != nil {
		return 0, storage.DomainError(err, "failed to count transport profiles")
	}
	return n, nil
}
