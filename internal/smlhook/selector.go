package smlhook

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"smpd/internal/domain"
	"smpd/internal/notify"
	"smpd/internal/platform/metrics"
	dErrors "smpd/pkg/domain-errors"
)

var ErrSettingsRequired = errors.New("hook selector needs the settings and sml info managers")

// SettingsSource reads the current runtime settings.
type SettingsSource interface {
	Get(ctx context.Context) (domain.Settings, error)
}

// SMLInfoSource resolves an SML info by ID.
type SMLInfoSource interface {
	Get(ctx context.Context, id string) (domain.SMLInfo, error)
}

// Selector picks the hook for each registry operation from the settings in
// force at that moment. Live hooks are reused while the selected SML info is
// unchanged.
type Selector struct {
	settings SettingsSource
	smls     SMLInfoSource
	cfg      Config
	keys     KeyManager
	liveOpts []LiveOption
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu         sync.Mutex
	cachedInfo domain.SMLInfo
	cached     *Live
	lastLive   bool
}

type SelectorOption func(*Selector)

func WithKeyManager(keys KeyManager) SelectorOption {
	return func(s *Selector) { s.keys = keys }
}

func WithLogger(logger *slog.Logger) SelectorOption {
	return func(s *Selector) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) SelectorOption {
	return func(s *Selector) { s.metrics = m }
}

// WithLiveOptions is applied to every live hook the selector builds.
func WithLiveOptions(opts ...LiveOption) SelectorOption {
	return func(s *Selector) { s.liveOpts = append(s.liveOpts, opts...) }
}

func NewSelector(settings SettingsSource, smls SMLInfoSource, cfg Config, opts ...SelectorOption) (*Selector, error) {
	if settings == nil || smls == nil {
		return nil, ErrSettingsRequired
	}
	s := &Selector{
		settings: settings,
		smls:     smls,
		cfg:      cfg,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Select returns Noop while SML sync is disabled, otherwise a live hook for
// the active SML info.
func (s *Selector) Select(ctx context.Context) (Hook, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.SMLEnabled {
		return Noop{}, nil
	}
	if settings.SMLInfoID == "" {
		return nil, dErrors.New(dErrors.CodeDirectory, "sml sync is enabled but no sml info is selected")
	}
	info, err := s.smls.Get(ctx, settings.SMLInfoID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDirectory, "active sml info cannot be resolved")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && s.cachedInfo == info {
		return s.cached, nil
	}
	opts := append([]LiveOption{WithLiveLogger(s.logger), WithLiveMetrics(s.metrics)}, s.liveOpts...)
	live, err := NewLive(info, s.cfg, s.keys, opts...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDirectory, "failed to build sml client")
	}
	s.cached, s.cachedInfo = live, info
	s.logger.InfoContext(ctx, "sml client configured", "sml_info_id", info.ID, "endpoint", live.endpoint)
	return live, nil
}

// Listener reacts to settings changes: it logs hook switches and keeps the
// sync gauge current.
func (s *Selector) Listener() notify.Handler {
	return notify.Listener{
		OnSettingsChanged: func(ctx context.Context, settings domain.Settings) error {
			s.Observe(ctx, settings)
			return nil
		},
	}.Handler()
}

// Observe records the hook mode implied by settings.
func (s *Selector) Observe(ctx context.Context, settings domain.Settings) {
	s.mu.Lock()
	switched := s.lastLive != settings.SMLEnabled
	s.lastLive = settings.SMLEnabled
	s.mu.Unlock()

	s.metrics.SetSMLSyncActive(settings.SMLEnabled)
	if switched {
		if settings.SMLEnabled {
			s.logger.InfoContext(ctx, "sml sync enabled, participant changes go to the sml", "sml_info_id", settings.SMLInfoID)
		} else {
			s.logger.InfoContext(ctx, "sml sync disabled, participant changes stay local")
		}
	}
	if settings.SMLRequired && !settings.SMLEnabled {
		s.logger.WarnContext(ctx, "sml sync is required but disabled; participants will not be resolvable network wide")
	}
}
