// Package serviceinfo manages the processes and endpoints a participant
// publishes per document type. Submissions are merged into existing state.
package serviceinfo

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
	ErrStoreRequired               = errors.New("service information store is required")
	ErrServiceGroupManagerRequired = errors.New("service information manager needs the service group manager to be constructed first")
)

// ServiceGroups resolves service group references.
type ServiceGroups interface {
	Contains(ctx context.Context, key string) (bool, error)
}

type Manager struct {
	mu         sync.RWMutex
	store      storage.ServiceInformationStore
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

// New builds the manager and checks every persisted record against groups.
func New(ctx context.Context, store storage.ServiceInformationStore, groups ServiceGroups, normalizer *identifier.Normalizer, opts ...Option) (*Manager, error) {
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

	all, err := m.store.List(ctx)
	if err != nil {
		return nil, storage.DomainError(err, "failed to load service information")
	}
	orphans := 0
	for _, si := range all {
		ok, err := groups.Contains(ctx, si.ServiceGroupKey)
		if err != nil {
			return nil, err
		}
		if !ok {
			orphans++
			m.logger.WarnContext(ctx, "service information references a missing service group",
				"service_group_key", si.ServiceGroupKey,
				"document_type", si.DocumentType.String(),
			)
		}
	}
	m.metrics.AddOrphanRecords("service_information", orphans)
	return m, nil
}

func (m *Manager) processKey(p identifier.Process) string {
	return m.normalizer.ProcessKey(p)
}

func (m *Manager) key(serviceGroupKey string, doc identifier.DocumentType) string {
	return domain.DependentKey(serviceGroupKey, m.normalizer.DocumentTypeKey(doc))
}

func validate(si domain.ServiceInformation) error {
	if err := identifier.ValidateDocumentType(si.DocumentType); err != nil {
		return err
	}
	if len(si.Processes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "service information needs at least one process")
	}
	for _, p := range si.Processes {
		if err := identifier.ValidateProcess(p.ID); err != nil {
			return err
		}
		for _, e := range p.Endpoints {
			if strings.TrimSpace(e.TransportProfile) == "" {
				return dErrors.New(dErrors.CodeValidation, "endpoint transport profile is required")
			}
			if strings.TrimSpace(e.EndpointReference) == "" {
				return dErrors.New(dErrors.CodeValidation, "endpoint reference is required")
			}
		}
	}
	return nil
}

func (m *Manager) normalize(si domain.ServiceInformation) domain.ServiceInformation {
	si = si.Clone()
	si.DocumentType = m.normalizer.DocumentType(si.DocumentType)
	si.DocumentTypeKey = m.normalizer.DocumentTypeKey(si.DocumentType)
	for i := range si.Processes {
		si.Processes[i].ID = m.normalizer.Process(si.Processes[i].ID)
	}
	return si
}

// Merge folds si into the stored record for the same service group and
// document type, creating it when there is none. Submitting the same
// content twice is Unchanged the second time.
func (m *Manager) Merge(ctx context.Context, si domain.ServiceInformation) (domain.ServiceInformation, storage.Change, error) {
	if err := validate(si); err != nil {
		return domain.ServiceInformation{}, storage.Unchanged, err
	}
	ok, err := m.groups.Contains(ctx, si.ServiceGroupKey)
	if err != nil {
		return domain.ServiceInformation{}, storage.Unchanged, err
	}
	if !ok {
		return domain.ServiceInformation{}, storage.Unchanged, dErrors.New(dErrors.CodeNotFound, "service group not found")
	}
	si = m.normalize(si)

	stored, change, event, err := m.merge(ctx, si)
	if err != nil {
		return domain.ServiceInformation{}, storage.Unchanged, err
	}
	if change.IsChanged() {
		m.bus.Publish(ctx, notify.ServiceInformationEvent(event, stored))
	}
	return stored, change, nil
}

func (m *Manager) merge(ctx context.Context, si domain.ServiceInformation) (domain.ServiceInformation, storage.Change, notify.EventType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.store.Get(ctx, si.StorageKey())
	switch {
	case err == nil:
		merged := Merge(existing, si, m.processKey)
		change, err := m.store.Update(ctx, merged)
		if err != nil {
			return domain.ServiceInformation{}, storage.Unchanged, "", storage.DomainError(err, "failed to update service information")
		}
		return merged, change, notify.ServiceInformationUpdated, nil
	case errors.Is(err, sentinel.ErrNotFound):
		// merging into an empty record folds duplicates within the submission
		fresh := domain.ServiceInformation{
			ID:              si.ID,
			ServiceGroupKey: si.ServiceGroupKey,
			DocumentType:    si.DocumentType,
			DocumentTypeKey: si.DocumentTypeKey,
		}
		if fresh.ID == "" {
			fresh.ID = uuid.NewString()
		}
		merged := Merge(fresh, si, m.processKey)
		stored, err := m.store.Create(ctx, merged)
		if err != nil {
			return domain.ServiceInformation{}, storage.Unchanged, "", storage.DomainError(err, "failed to create service information")
		}
		return stored, storage.Changed, notify.ServiceInformationCreated, nil
	default:
		return domain.ServiceInformation{}, storage.Unchanged, "", storage.DomainError(err, "failed to load service information")
	}
}

func (m *Manager) Get(ctx context.Context, serviceGroupKey string, doc identifier.DocumentType) (domain.ServiceInformation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	si, err := m.store.Get(ctx, m.key(serviceGroupKey, doc))
	if err != nil {
		return domain.ServiceInformation{}, storage.DomainError(err, "service information not found")
	}
	return si, nil
}

func (m *Manager) GetAllOfServiceGroup(ctx context.Context, serviceGroupKey string) ([]domain.ServiceInformation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out, err := m.store.ListByScope(ctx, serviceGroupKey)
	if err != nil {
		return nil, storage.DomainError(err, "failed to list service information")
	}
	return out, nil
}

func (m *Manager) List(ctx context.Context) ([]domain.ServiceInformation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out, err := m.store.List(ctx)
	if err != nil {
		return nil, storage.DomainError(err, "failed to list service information")
	}
	return out, nil
}

func (m *Manager) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, err := m.store.Count(ctx)
	if err != nil {
		return 0, storage.DomainError(err, "failed to count service information")
	}
	return n, nil
}

// CountEndpoints sums the endpoints of every stored record.
func (m *Manager) CountEndpoints(ctx context.Context) (int, error) {
	all, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, si := range all {
		n += si.EndpointCount()
	}
	return n, nil
}

// ContainsTransportProfile reports whether any endpoint uses the profile.
func (m *Manager) ContainsTransportProfile(ctx context.Context, transportProfileID string) (bool, error) {
	all, err := m.List(ctx)
	if err != nil {
		return false, err
	}
	for _, si := range all {
		if si.UsesTransportProfile(transportProfileID) {
			return true, nil
		}
	}
	return false, nil
}

// Delete removes the record for one document type.
func (m *Manager) Delete(ctx context.Context, serviceGroupKey string, doc identifier.DocumentType) (storage.Change, error) {
	m.mu.Lock()
	si, err := m.store.Get(ctx, m.key(serviceGroupKey, doc))
	if errors.Is(err, sentinel.ErrNotFound) {
		m.mu.Unlock()
		return storage.Unchanged, nil
	}
	if err != nil {
		m.mu.Unlock()
		return storage.Unchanged, storage.DomainError(err, "failed to load service information")
	}
	change, err := m.store.Delete(ctx, si.StorageKey())
	m.mu.Unlock()
	if err != nil {
		return storage.Unchanged, storage.DomainError(err, "failed to delete service information")
	}
	if change.IsChanged() {
		m.bus.Publish(ctx, notify.ServiceInformationEvent(notify.ServiceInformationDeleted, si))
	}
	return change, nil
}

// DeleteProcess removes one process. Removing the last process removes the
// whole record.
func (m *Manager) DeleteProcess(ctx context.Context, serviceGroupKey string, doc identifier.DocumentType, process identifier.Process) (storage.Change, error) {
	m.mu.Lock()
	si, err := m.store.Get(ctx, m.key(serviceGroupKey, doc))
	if errors.Is(err, sentinel.ErrNotFound) {
		m.mu.Unlock()
		return storage.Unchanged, nil
	}
	if err != nil {
		m.mu.Unlock()
		return storage.Unchanged, storage.DomainError(err, "failed to load service information")
	}

	target := m.processKey(process)
	kept := make([]domain.Process, 0, len(si.Processes))
	for _, p := range si.Processes {
		if m.processKey(p.ID) != target {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(si.Processes) {
		m.mu.Unlock()
		return storage.Unchanged, nil
	}

	event := notify.ServiceInformationUpdated
	var change storage.Change
	if len(kept) == 0 {
		event = notify.ServiceInformationDeleted
		change, err = m.store.Delete(ctx, si.StorageKey())
	} else {
		si.Processes = kept
		change, err = m.store.Update(ctx, si)
	}
	m.mu.Unlock()
	if err != nil {
		return storage.Unchanged, storage.DomainError(err, "failed to delete process")
	}
	if change.IsChanged() {
		m.bus.Publish(ctx, notify.ServiceInformationEvent(event, si))
	}
	return change, nil
}

// DeleteAllOfServiceGroup removes every record of the service group.
func (m *Manager) DeleteAllOfServiceGroup(ctx context.Context, serviceGroupKey string) (int, error) {
	m.mu.Lock()
	all, err := m.store.ListByScope(ctx, serviceGroupKey)
	if err != nil {
		m.mu.Unlock()
		return 0, storage.DomainError(err, "failed to list service information")
	}
	removed, err := m.removeLocked(ctx, all)
	m.mu.Unlock()
	for _, si := range removed {
		m.bus.Publish(ctx, notify.ServiceInformationEvent(notify.ServiceInformationDeleted, si))
	}
	return len(removed), err
}

// Remove deletes the given records without publishing. It stops at the first
// failure and returns what it removed so far.
func (m *Manager) Remove(ctx context.Context, infos []domain.ServiceInformation) ([]domain.ServiceInformation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(ctx, infos)
}

func (m *Manager) removeLocked(ctx context.Context, infos []domain.ServiceInformation) ([]domain.ServiceInformation, error) {
	removed := make([]domain.ServiceInformation, 0, len(infos))
	for _, si := range infos {
		change, err := m.store.Delete(ctx, si.StorageKey())
		if err != nil {
			return removed, storage.DomainError(err, "failed to delete service information")
		}
		if change.IsChanged() {
			removed = append(removed, si)
		}
	}
	return removed, nil
}

// Restore re-creates every missing record of the snapshot, past failures.
func (m *Manager) Restore(ctx context.Context, snapshot []domain.ServiceInformation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, si := range snapshot {
		if _, err := m.store.Create(ctx, si); err != nil && !errors.Is(err, sentinel.ErrConflict) {
			errs = append(errs, storage.DomainError(err, "failed to restore service information "+si.StorageKey()))
		}
	}
	return errors.Join(errs...)
}
