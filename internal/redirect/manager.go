// Package redirect manages redirects: per document type pointers from one of
// our participants to the server that actually serves that document type.
package redirect

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"smpd/internal/domain"
	"smpd/internal/identifier"
	"smpd/internal/notify"
	"smpd/internal/platform/metrics"
	"smpd/internal/storage"
	dErrors "smpd/pkg/domain-errors"
	"smpd/pkg/platform/sentinel"
)

var (
	ErrStoreRequired               = errors.New("redirect store is required")
	ErrServiceGroupManagerRequired = errors.New("redirect manager needs the service group manager to be constructed first")
)

// ServiceGroups resolves service group references.
type ServiceGroups interface {
	Contains(ctx context.Context, key string) (bool, error)
}

// Manager owns the redirect store.
type Manager struct {
	mu         sync.RWMutex
	store      storage.RedirectStore
	groups     ServiceGroups
	normalizer *identifier.Normalizer
	bus        *notify.Bus
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(m *Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func WithBus(bus *notify.Bus) Option {
	return func(m *Manager) { m.bus = bus }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// New builds the manager and checks every persisted redirect against groups.
// Orphans are logged and counted; they do not fail startup.
func New(ctx context.Context, store storage.RedirectStore, groups ServiceGroups, normalizer *identifier.Normalizer, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if groups == nil {
		return nil, ErrServiceGroupManagerRequired
	}
	if normalizer == nil {
		normalizer = identifier.NewNormalizer()
	}
	m := &Manager{store: store, groups: groups, normalizer: normalizer, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.validateReferences(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) validateReferences(ctx context.Context) error {
	all, err := m.store.List(ctx)
	if err != nil {
		return storage.DomainError(err, "failed to load redirects")
	}
	orphans := 0
	for _, r := range all {
		ok, err := m.groups.Contains(ctx, r.ServiceGroupKey)
		if err != nil {
			return err
		}
		if !ok {
			orphans++
			m.logger.WarnContext(ctx, "redirect references a missing service group",
				"service_group_key", r.ServiceGroupKey,
				"document_type", r.DocumentType.String(),
			)
		}
	}
	m.metrics.AddOrphanRecords("redirects", orphans)
	return nil
}

func (m *Manager) key(serviceGroupKey string, doc identifier.DocumentType) string {
	return domain.DependentKey(serviceGroupKey, m.normalizer.DocumentTypeKey(doc))
}

// CreateOrUpdate stores r, replacing any redirect for the same service group
// and document type. The existing record keeps its ID.
func (m *Manager) CreateOrUpdate(ctx context.Context, r domain.Redirect) (domain.Redirect, storage.Change, error) {
	if strings.TrimSpace(r.TargetHref) == "" {
		return domain.Redirect{}, storage.Unchanged, dErrors.New(dErrors.CodeValidation, "redirect target href is required")
	}
	if err := identifier.ValidateDocumentType(r.DocumentType); err != nil {
		return domain.Redirect{}, storage.Unchanged, err
	}
	ok, err := m.groups.Contains(ctx, r.ServiceGroupKey)
	if err != nil {
		return domain.Redirect{}, storage.Unchanged, err
	}
	if !ok {
		return domain.Redirect{}, storage.Unchanged, dErrors.New(dErrors.CodeNotFound, "service group not found")
	}
	r.DocumentType = m.normalizer.DocumentType(r.DocumentType)
	r.DocumentTypeKey = m.normalizer.DocumentTypeKey(r.DocumentType)

	stored, change, event, err := m.upsert(ctx, r)
	if err != nil {
		return domain.Redirect{}, storage.Unchanged, err
	}
	if change.IsChanged() {
		m.bus.Publish(ctx, notify.RedirectEvent(event, stored))
	}
	return stored, change, nil
}

func (m *Manager) upsert(ctx context.Context, r domain.Redirect) (domain.Redirect, storage.Change, notify.EventType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.store.Get(ctx, r.StorageKey())
	switch {
	case err == nil:
		r.ID = existing.ID
		change, err := m.store.Update(ctx, r)
		if err != nil {
			return domain.Redirect{}, storage.Unchanged, "", storage.DomainError(err, "failed to update redirect")
		}
		return r, change, notify.RedirectUpdated, nil
	case errors.Is(err, sentinel.ErrNotFound):
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		stored, err := m.store.Create(ctx, r)
		if err != nil {
			return domain.Redirect{}, storage.Unchanged, "", storage.DomainError(err, "failed to create redirect")
		}
		return stored, storage.Changed, notify.RedirectCreated, nil
	default:
		return domain.Redirect{}, storage.Unchanged, "", storage.DomainError(err, "failed to load redirect")
	}
}

func (m *Manager) Get(ctx context.Context, serviceGroupKey string, doc identifier.DocumentType) (domain.Redirect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, err := m.store.Get(ctx, m.key(serviceGroupKey, doc))
	if err != nil {
		return domain.Redirect{}, storage.DomainError(err, "redirect not found")
	}
	return r, nil
}

func (m *Manager) GetAllOfServiceGroup(ctx context.Context, serviceGroupKey string) ([]domain.Redirect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out, err := m.store.ListByScope(ctx, serviceGroupKey)
	if err != nil {
		return nil, storage.DomainError(err, "failed to list redirects")
	}
	return out, nil
}

func (m *Manager) List(ctx context.Context) ([]domain.Redirect, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out, err := m.store.List(ctx)
	if err != nil {
		return nil, storage.DomainError(err, "failed to list redirects")
	}
	return out, nil
}

func (m *Manager) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, err := m.store.Count(ctx)
	if err != nil {
		return 0, storage.DomainError(err, "failed to count redirects")
	}
	return n, nil
}

// Delete removes one redirect. A missing redirect is Unchanged.
func (m *Manager) Delete(ctx context.Context, serviceGroupKey string, doc identifier.DocumentType) (storage.Change, error) {
	m.mu.Lock()
	r, err := m.store.Get(ctx, m.key(serviceGroupKey, doc))
	if errors.Is(err, sentinel.ErrNotFound) {
		m.mu.Unlock()
		return storage.Unchanged, nil
	}
	if err != nil {
		m.mu.Unlock()
		return storage.Unchanged, storage.DomainError(err, "failed to load redirect")
	}
	change, err := m.store.Delete(ctx, r.StorageKey())
	m.mu.Unlock()
	if err != nil {
		return storage.Unchanged, storage.DomainError(err, "failed to delete redirect")
	}
	if change.IsChanged() {
		m.bus.Publish(ctx, notify.RedirectEvent(notify.RedirectDeleted, r))
	}
	return change, nil
}

// DeleteAllOfServiceGroup removes every redirect of the service group and
// reports how many were removed.
func (m *Manager) DeleteAllOfServiceGroup(ctx context.Context, serviceGroupKey string) (int, error) {
	m.mu.Lock()
	all, err := m.store.ListByScope(ctx, serviceGroupKey)
	if err != nil {
		m.mu.Unlock()
		return 0, storage.DomainError(err, "failed to list redirects")
	}
	removed, err := m.removeLocked(ctx, all)
	m.mu.Unlock()
	for _, r := range removed {
		m.bus.Publish(ctx, notify.RedirectEvent(notify.RedirectDeleted, r))
	}
	return len(removed), err
}

// Remove deletes the given redirects without publishing. It stops at the
// first failure and returns what it removed so far.
func (m *Manager) Remove(ctx context.Context, redirects []domain.Redirect) ([]domain.Redirect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(ctx, redirects)
}

func (m *Manager) removeLocked(ctx context.Context, redirects []domain.Redirect) ([]domain.Redirect, error) {
	removed := make([]domain.Redirect, 0, len(redirects))
	for _, r := range redirects {
		change, err := m.store.Delete(ctx, r.StorageKey())
		if err != nil {
			return removed, storage.DomainError(err, "failed to delete redirect")
		}
		if change.IsChanged() {
			removed = append(removed, r)
		}
	}
	return removed, nil
}

// Restore re-creates every missing redirect of the snapshot. It keeps going
// past individual failures and reports all of them.
func (m *Manager) Restore(ctx context.Context, snapshot []domain.Redirect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, r := range snapshot {
		if _, err := m.store.Create(ctx, r); err != nil && !errors.Is(err, sentinel.ErrConflict) {
			errs = append(errs, storage.DomainError(err, "failed to restore redirect "+r.StorageKey()))
		}
	}
	return errors.Join(errs...)
}
