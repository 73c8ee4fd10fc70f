// Package participant is the registry entry point for participants. It keeps
// the SML and the local store in step: the SML is changed first, the local
// write follows, and a failed local write is compensated at the SML.
package participant

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"smpd/internal/domain"
	"smpd/internal/identifier"
	"smpd/internal/notify"
	"smpd/internal/platform/metrics"
	"smpd/internal/smlhook"
	"smpd/internal/storage"
	dErrors "smpd/pkg/domain-errors"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

var ErrDependenciesRequired = errors.New("participant service needs the service group, redirect and service information managers and a hook selector")

// ServiceGroups is the local service group manager.
type ServiceGroups interface {
	Key(p identifier.Participant) string
	Build(p identifier.Participant, ownerID, extension string) domain.ServiceGroup
	Get(ctx context.Context, key string) (domain.ServiceGroup, error)
	Create(ctx context.Context, sg domain.ServiceGroup) (domain.ServiceGroup, error)
	Update(ctx context.Context, sg domain.ServiceGroup) (storage.Change, error)
	Delete(ctx context.Context, key string) (storage.Change, error)
	Restore(ctx context.Context, sg domain.ServiceGroup) error
}

// Redirects is the part of the redirect manager the cascade needs.
type Redirects interface {
	GetAllOfServiceGroup(ctx context.Context, serviceGroupKey string) ([]domain.Redirect, error)
	Remove(ctx context.Context, redirects []domain.Redirect) ([]domain.Redirect, error)
	Restore(ctx context.Context, snapshot []domain.Redirect) error
}

// ServiceInformation is the part of the service information manager the
// cascade needs.
type ServiceInformation interface {
	GetAllOfServiceGroup(ctx context.Context, serviceGroupKey string) ([]domain.ServiceInformation, error)
	Remove(ctx context.Context, infos []domain.ServiceInformation) ([]domain.ServiceInformation, error)
	Restore(ctx context.Context, snapshot []domain.ServiceInformation) error
}

// HookSelector yields the hook to use for one operation.
type HookSelector interface {
	Select(ctx context.Context) (smlhook.Hook, error)
}

type staticHook struct{ hook smlhook.Hook }

func (s staticHook) Select(context.Context) (smlhook.Hook, error) { return s.hook, nil }

// StaticHook always selects h.
func StaticHook(h smlhook.Hook) HookSelector {
	return staticHook{hook: h}
}

// Service creates, updates and deletes participants.
type Service struct {
	groups    ServiceGroups
	redirects Redirects
	infos     ServiceInformation
	hooks     HookSelector
	bus       *notify.Bus
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithBus(bus *notify.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(groups ServiceGroups, redirects Redirects, infos ServiceInformation, hooks HookSelector, opts ...Option) (*Service, error) {
	if groups == nil || redirects == nil || infos == nil || hooks == nil {
		return nil, ErrDependenciesRequired
	}
	s := &Service{
		groups:    groups,
		redirects: redirects,
		infos:     infos,
		hooks:     hooks,
		logger:    slog.New(slog.DiscardHandler),
		tracer:    otel.Tracer("smpd/participant"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) startSpan(ctx context.Context, op string, p identifier.Participant) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "participant."+op, trace.WithAttributes(
		attribute.String("participant.id", p.String()),
	))
}

func (s *Service) finish(span trace.Span, op string, start time.Time, change storage.Change, err error) {
	outcome := change.String()
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	span.SetAttributes(attribute.String("participant.outcome", outcome))
	span.End()
	s.metrics.ObserveParticipantOperation(op, outcome, start)
}

// Create registers p for ownerID. A participant that already exists is
// updated instead, provided ownerID owns it; that path never calls the SML.
func (s *Service) Create(ctx context.Context, p identifier.Participant, ownerID, extension string) (sg domain.ServiceGroup, change storage.Change, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, opCreate, p)
	defer func() { s.finish(span, opCreate, start, change, err) }()

	if err := identifier.ValidateParticipant(p); err != nil {
		return domain.ServiceGroup{}, storage.Unchanged, err
	}
	if ownerID == "" {
		return domain.ServiceGroup{}, storage.Unchanged, dErrors.New(dErrors.CodeValidation, "owner is required")
	}

	candidate := s.groups.Build(p, ownerID, extension)
	existing, err := s.groups.Get(ctx, candidate.Key)
	switch {
	case err == nil:
		return s.updateExisting(ctx, existing, ownerID, extension)
	case !dErrors.HasCode(err, dErrors.CodeNotFound):
		return domain.ServiceGroup{}, storage.Unchanged, err
	}

	hook, err := s.hooks.Select(ctx)
	if err != nil {
		return domain.ServiceGroup{}, storage.Unchanged, err
	}
	if err := hook.CreateParticipant(ctx, candidate.Participant); err != nil {
		return domain.ServiceGroup{}, storage.Unchanged, err
	}

	stored, err := s.groups.Create(ctx, candidate)
	if err != nil {
		return domain.ServiceGroup{}, storage.Unchanged, s.compensateCreate(ctx, hook, candidate, err)
	}

	s.logger.InfoContext(ctx, "participant created",
		"service_group_key", stored.Key,
		"participant", stored.Participant.String(),
		"owner_id", stored.OwnerID,
	)
	s.bus.Publish(ctx, notify.ServiceGroupEvent(notify.ServiceGroupCreated, stored))
	return stored, storage.Changed, nil
}

func (s *Service) updateExisting(ctx context.Context, existing domain.ServiceGroup, ownerID, extension string) (domain.ServiceGroup, storage.Change, error) {
	if existing.OwnerID != ownerID {
		return domain.ServiceGroup{}, storage.Unchanged, dErrors.Newf(dErrors.CodeUnauthorized,
			"service group %q is owned by another user", existing.Key)
	}
	next := existing
	next.Extension = extension
	change, err := s.update(ctx, next)
	if err != nil {
		return domain.ServiceGroup{}, storage.Unchanged, err
	}
	return next, change, nil
}

func (s *Service) compensateCreate(ctx context.Context, hook smlhook.Hook, sg domain.ServiceGroup, cause error) error {
	s.metrics.IncrementCompensationRuns(opCreate)
	opErr := &OperationError{Op: opCreate, ServiceGroupKey: sg.Key, Err: cause}
	if undoErr := hook.UndoCreateParticipant(ctx, sg.Participant); undoErr != nil {
		opErr.ReconcileRequired = true
		opErr.CompensationErrors = []error{undoErr}
		s.metrics.IncrementCompensationFailures(opCreate)
		s.logger.ErrorContext(ctx, "participant registered in sml but not stored locally",
			"service_group_key", sg.Key,
			"participant", sg.Participant.String(),
			"reconcile_required", true,
			"failed_step", "undo_create",
			"error", cause,
			"compensation_error", undoErr,
		)
		return opErr
	}
	s.logger.WarnContext(ctx, "participant creation rolled back",
		"service_group_key", sg.Key,
		"error", cause,
	)
	return opErr
}

// Update changes owner and extension of an existing participant. It is local
// only.
func (s *Service) Update(ctx context.Context, p identifier.Participant, ownerID, extension string) (change storage.Change, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, opUpdate, p)
	defer func() { s.finish(span, opUpdate, start, change, err) }()

	if ownerID == "" {
		return storage.Unchanged, dErrors.New(dErrors.CodeValidation, "owner is required")
	}
	return s.update(ctx, s.groups.Build(p, ownerID, extension))
}

func (s *Service) update(ctx context.Context, sg domain.ServiceGroup) (storage.Change, error) {
	change, err := s.groups.Update(ctx, sg)
	if err != nil {
		return storage.Unchanged, err
	}
	switch change {
	case storage.NotFound:
		return storage.NotFound, notFound(sg.Key)
	case storage.Changed:
		s.logger.InfoContext(ctx, "participant updated", "service_group_key", sg.Key, "owner_id", sg.OwnerID)
		s.bus.Publish(ctx, notify.ServiceGroupEvent(notify.ServiceGroupUpdated, sg))
	}
	return change, nil
}

// Get returns the service group of p.
func (s *Service) Get(ctx context.Context, p identifier.Participant) (domain.ServiceGroup, error) {
	return s.groups.Get(ctx, s.groups.Key(p))
}

// snapshot is the dependent state of one service group, captured before the
// cascade so it can be put back.
type snapshot struct {
	group     domain.ServiceGroup
	redirects []domain.Redirect
	infos     []domain.ServiceInformation
}

// Delete unregisters p from the SML and removes its service group together
// with every redirect and service information. A missing participant is a
// NotFound error; losing a race against another delete is Unchanged.
func (s *Service) Delete(ctx context.Context, p identifier.Participant) (change storage.Change, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, opDelete, p)
	defer func() { s.finish(span, opDelete, start, change, err) }()

	key := s.groups.Key(p)
	sg, err := s.groups.Get(ctx, key)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return storage.NotFound, notFound(key)
		}
		return storage.Unchanged, err
	}

	hook, err := s.hooks.Select(ctx)
	if err != nil {
		return storage.Unchanged, err
	}
	if err := hook.DeleteParticipant(ctx, sg.Participant); err != nil {
		return storage.Unchanged, err
	}

	snap := snapshot{group: sg}
	if snap.redirects, err = s.redirects.GetAllOfServiceGroup(ctx, key); err != nil {
		return storage.Unchanged, s.compensateDelete(ctx, hook, snap, "snapshot_redirects", err)
	}
	if snap.infos, err = s.infos.GetAllOfServiceGroup(ctx, key); err != nil {
		return storage.Unchanged, s.compensateDelete(ctx, hook, snap, "snapshot_service_information", err)
	}

	change, err = s.groups.Delete(ctx, key)
	if err != nil {
		return storage.Unchanged, s.compensateDelete(ctx, hook, snap, "delete_service_group", err)
	}
	if change == storage.Unchanged {
		// Someone else deleted it between Get and Delete.
		if undoErr := hook.UndoDeleteParticipant(ctx, sg.Participant); undoErr != nil {
			s.logger.ErrorContext(ctx, "sml registration could not be restored after a concurrent delete",
				"service_group_key", key,
				"reconcile_required", true,
				"failed_step", "undo_delete",
				"error", undoErr,
			)
			s.metrics.IncrementCompensationFailures(opDelete)
		}
		return storage.Unchanged, nil
	}

	removedRedirects, err := s.redirects.Remove(ctx, snap.redirects)
	if err != nil {
		return storage.Unchanged, s.compensateDelete(ctx, hook, snap, "delete_redirects", err)
	}
	removedInfos, err := s.infos.Remove(ctx, snap.infos)
	if err != nil {
		return storage.Unchanged, s.compensateDelete(ctx, hook, snap, "delete_service_information", err)
	}

	s.logger.InfoContext(ctx, "participant deleted",
		"service_group_key", key,
		"participant", sg.Participant.String(),
		"redirects_removed", len(removedRedirects),
		"service_information_removed", len(removedInfos),
	)
	for _, r := range removedRedirects {
		s.bus.Publish(ctx, notify.RedirectEvent(notify.RedirectDeleted, r))
	}
	for _, si := range removedInfos {
		s.bus.Publish(ctx, notify.ServiceInformationEvent(notify.ServiceInformationDeleted, si))
	}
	s.bus.Publish(ctx, notify.ServiceGroupEvent(notify.ServiceGroupDeleted, sg))
	return storage.Changed, nil
}

// compensateDelete puts the snapshot back and re-registers the participant at
// the SML. Every step runs even when an earlier one fails.
func (s *Service) compensateDelete(ctx context.Context, hook smlhook.Hook, snap snapshot, step string, cause error) error {
	s.metrics.IncrementCompensationRuns(opDelete)
	opErr := &OperationError{Op: opDelete, ServiceGroupKey: snap.group.Key, Err: cause}

	if err := s.groups.Restore(ctx, snap.group); err != nil {
		opErr.CompensationErrors = append(opErr.CompensationErrors, err)
	}
	if err := s.redirects.Restore(ctx, snap.redirects); err != nil {
		opErr.CompensationErrors = append(opErr.CompensationErrors, err)
	}
	if err := s.infos.Restore(ctx, snap.infos); err != nil {
		opErr.CompensationErrors = append(opErr.CompensationErrors, err)
	}
	if err := hook.UndoDeleteParticipant(ctx, snap.group.Participant); err != nil {
		opErr.CompensationErrors = append(opErr.CompensationErrors, err)
	}

	if len(opErr.CompensationErrors) > 0 {
		opErr.ReconcileRequired = true
		s.metrics.IncrementCompensationFailures(opDelete)
		s.logger.ErrorContext(ctx, "participant delete could not be fully rolled back",
			"service_group_key", snap.group.Key,
			"reconcile_required", true,
			"failed_step", step,
			"error", cause,
			"compensation_error", errors.Join(opErr.CompensationErrors...),
		)
		return opErr
	}
	s.logger.WarnContext(ctx, "participant delete rolled back",
		"service_group_key", snap.group.Key,
		"failed_step", step,
		"error", cause,
	)
	return opErr
}
