// Package smlinfo manages the known SML deployments. The active one is
// chosen by ID in the runtime settings.
package smlinfo

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"smpd/internal/domain"
	"smpd/internal/storage"
	dErrors "smpd/pkg/domain-errors"
)

var ErrStoreRequired = errors.New("sml info store is required")

// ActiveSource reports the SML info ID the runtime settings select.
type ActiveSource interface {
	ActiveSMLInfoID(ctx context.Context) (string, error)
}

// ActiveSourceFunc adapts a function to ActiveSource.
type ActiveSourceFunc func(ctx context.Context) (string, error)

func (f ActiveSourceFunc) ActiveSMLInfoID(ctx context.Context) (string, error) { return f(ctx) }

type Manager struct {
	mu     sync.RWMutex
	store  storage.SMLInfoStore
	active ActiveSource
	logger *slog.Logger
}

type Option func(m *Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithActiveSource makes Delete refuse the SML info currently selected in
// the settings.
func WithActiveSource(a ActiveSource) Option {
	return func(m *Manager) { m.active = a }
}

func New(store storage.SMLInfoStore, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	m := &Manager{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

func validate(info domain.SMLInfo) error {
	if strings.TrimSpace(info.ID) == "" {
		return dErrors.New(dErrors.CodeValidation, "sml info id is required")
	}
	if strings.TrimSpace(info.DNSZone) == "" {
		return dErrors.New(dErrors.CodeValidation, "sml dns zone is required")
	}
	u, err := url.Parse(info.ManagementServiceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return dErrors.New(dErrors.CodeValidation, "sml management service url must be an absolute http(s) url")
	}
	return nil
}

func (m *Manager) Create(ctx context.Context, info domain.SMLInfo) (domain.SMLInfo, error) {
	if err := validate(info); err != nil {
		return domain.SMLInfo{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, err := m.store.Create(ctx, info)
	if err != nil {
		return domain.SMLInfo{}, storage.DomainError(err, "failed to create sml info")
	}
	m.logger.InfoContext(ctx, "sml info created", "sml_info_id", info.ID, "dns_zone", info.DNSZone)
	return stored, nil
}

func (m *Manager) Update(ctx context.Context, info domain.SMLInfo) (storage.Change, error) {
	if err := validate(info); err != nil {
		return storage.Unchanged, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	change, err := m.store.Update(ctx, info)
	if err != nil {
		return storage.Unchanged, storage.DomainError(err, "failed to update sml info")
	}
	if change.IsChanged() {
		m.logger.InfoContext(ctx, "sml info updated", "sml_info_id", info.ID)
	}
	return change, nil
}

// Delete removes an SML info. With an active source installed, the one the
// settings select is refused with a conflict. The check runs outside the
// lock because settings validation reads this manager.
func (m *Manager) Delete(ctx context.Context, id string) (storage.Change, error) {
	if m.active != nil {
		activeID, err := m.active.ActiveSMLInfoID(ctx)
		if err != nil {
			return storage.Unchanged, err
		}
		if activeID != "" && activeID == id {
			return storage.Unchanged, dErrors.Newf(dErrors.CodeConflict, "sml info %q is selected in the settings and cannot be deleted", id)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	change, err := m.store.Delete(ctx, id)
	if err != nil {
		return storage.Unchanged, storage.DomainError(err, "failed to delete sml info")
	}
	if change.IsChanged() {
		m.logger.InfoContext(ctx, "sml info deleted", "sml_info_id", id)
	}
	return change, nil
}

func (m *Manager) Get(ctx context.Context, id string) (domain.SMLInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, err := m.store.Get(ctx, id)
	if err != nil {
		return domain.SMLInfo{}, storage.DomainError(err, "sml info not found")
	}
	return info, nil
}

func (m *Manager) Contains(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ok, err := m.store.Contains(ctx, id)
	if err != nil {
		return false, storage.DomainError(err, "failed to look up sml info")
	}
	return ok, nil
}

func (m *Manager) List(ctx context.Context) ([]domain.SMLInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out, err := m.store.List(ctx)
	if err != nil {
		return nil, storage.DomainError(err, "failed to list sml infos")
	}
	return out, nil
}

func (m *Manager) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, err := m.store.Count(ctx)
	if err != nil {
		return 0, storage.DomainError(err, "failed to count sml infos")
	}
	return n, nil
}
