// Package settings owns the persisted runtime settings: the SML and
// directory integration switches consulted on every registry operation.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"smpd/internal/domain"
	"smpd/internal/notify"
	"smpd/internal/storage"
	dErrors "smpd/pkg/domain-errors"
	"smpd/pkg/platform/sentinel"
)

var ErrStoreRequired = errors.New("settings store is required")

// SMLInfos resolves SML info IDs.
type SMLInfos interface {
	Contains(ctx context.Context, id string) (bool, error)
	Get(ctx context.Context, id string) (domain.SMLInfo, error)
}

// Defaults are the values a fresh store starts with.
func Defaults() domain.Settings {
	return domain.Settings{
		RESTWritableAPIDisabled:        false,
		DirectoryIntegrationEnabled:    true,
		DirectoryIntegrationRequired:   true,
		DirectoryIntegrationAutoUpdate: true,
		DirectoryHostName:              "https://directory.peppol.eu",
		SMLEnabled:                     false,
		SMLRequired:                    true,
	}
}

type Manager struct {
	mu     sync.RWMutex
	store  storage.SettingsStore
	smls   SMLInfos
	bus    *notify.Bus
	logger *slog.Logger
}

type Option func(m *Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithBus(bus *notify.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithSMLInfos makes Update reject unknown SML info IDs and lets
// ActiveSMLInfo resolve the selected one.
func WithSMLInfos(smls SMLInfos) Option {
	return func(m *Manager) { m.smls = smls }
}

// New loads the settings record, creating it from initial on first start.
// The SML info ID is never seeded from static configuration: an operator
// picks it at runtime before enabling SML sync.
func New(ctx context.Context, store storage.SettingsStore, initial domain.Settings, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	m := &Manager{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(m)
	}

	_, err := store.Get(ctx, domain.SettingsKey)
	switch {
	case err == nil:
		return m, nil
	case errors.Is(err, sentinel.ErrNotFound):
		initial.SMLInfoID = ""
		initial.SMLEnabled = false
		if _, err := store.Create(ctx, initial); err != nil && !errors.Is(err, sentinel.ErrConflict) {
			return nil, storage.DomainError(err, "failed to initialize settings")
		}
		m.logger.InfoContext(ctx, "runtime settings initialized from configuration defaults")
		return m, nil
	default:
		return nil, storage.DomainError(err, "failed to load settings")
	}
}

func (m *Manager) Get(ctx context.Context) (domain.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, err := m.store.Get(ctx, domain.SettingsKey)
	if err != nil {
		return domain.Settings{}, storage.DomainError(err, "failed to load settings")
	}
	return s, nil
}

func (m *Manager) validate(ctx context.Context, s domain.Settings) error {
	if s.SMLEnabled && strings.TrimSpace(s.SMLInfoID) == "" {
		return dErrors.New(dErrors.CodeValidation, "an sml info must be selected before enabling sml sync")
	}
	if s.DirectoryIntegrationEnabled && strings.TrimSpace(s.DirectoryHostName) == "" {
		return dErrors.New(dErrors.CodeValidation, "directory host name is required when directory integration is enabled")
	}
	if s.SMLInfoID != "" && m.smls != nil {
		ok, err := m.smls.Contains(ctx, s.SMLInfoID)
		if err != nil {
			return err
		}
		if !ok {
			return dErrors.Newf(dErrors.CodeValidation, "unknown sml info %q", s.SMLInfoID)
		}
	}
	return nil
}

// Update replaces every field. Identical values are Unchanged and publish
// nothing.
func (m *Manager) Update(ctx context.Context, s domain.Settings) (storage.Change, error) {
	if err := m.validate(ctx, s); err != nil {
		return storage.Unchanged, err
	}

	m.mu.Lock()
	change, err := m.store.Update(ctx, s)
	if err == nil && change == storage.NotFound {
		_, err = m.store.Create(ctx, s)
		change = storage.Changed
	}
	m.mu.Unlock()
	if err != nil {
		return storage.Unchanged, storage.DomainError(err, "failed to update settings")
	}
	if change.IsChanged() {
		m.logger.InfoContext(ctx, "runtime settings changed",
			"sml_enabled", s.SMLEnabled,
			"sml_required", s.SMLRequired,
			"sml_info_id", s.SMLInfoID,
		)
		m.bus.Publish(ctx, notify.SettingsEvent(s))
	}
	return change, nil
}

// IsSyncEnabled reports whether participant operations go to the SML.
func (m *Manager) IsSyncEnabled(ctx context.Context) (bool, error) {
	s, err := m.Get(ctx)
	return s.SMLEnabled, err
}

// IsSyncRequired reports whether SML sync is expected for this server.
func (m *Manager) IsSyncRequired(ctx context.Context) (bool, error) {
	s, err := m.Get(ctx)
	return s.SMLRequired, err
}

// ActiveSMLInfoID returns the selected SML info, possibly empty.
func (m *Manager) ActiveSMLInfoID(ctx context.Context) (string, error) {
	s, err := m.Get(ctx)
	return s.SMLInfoID, err
}

// ActiveSMLInfo resolves the selected SML info. ok is false when none is
// selected.
func (m *Manager) ActiveSMLInfo(ctx context.Context) (info domain.SMLInfo, ok bool, err error) {
	id, err := m.ActiveSMLInfoID(ctx)
	if err != nil || id == "" {
		return domain.SMLInfo{}, false, err
	}
	if m.smls == nil {
		return domain.SMLInfo{}, false, dErrors.New(dErrors.CodeInternal, "settings manager has no sml info source")
	}
	info, err = m.smls.Get(ctx, id)
	if err != nil {
		return domain.SMLInfo{}, false, err
	}
	return info, true, nil
}
