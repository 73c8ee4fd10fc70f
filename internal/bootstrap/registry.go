// Package bootstrap selects the storage backend and wires the managers on top
// of it in their fixed construction order.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"smpd/internal/identifier"
	"smpd/internal/notify"
	"smpd/internal/participant"
	"smpd/internal/platform/config"
	"smpd/internal/platform/metrics"
	"smpd/internal/redirect"
	"smpd/internal/servicegroup"
	"smpd/internal/serviceinfo"
	"smpd/internal/settings"
	"smpd/internal/smlhook"
	"smpd/internal/smlinfo"
	"smpd/internal/storage"
	"smpd/internal/transportprofile"
)

// ErrRegistryInUse is returned when a provider is bound after the registry
// has been handed out.
var ErrRegistryInUse = errors.New("manager registry is already in use; the provider cannot be replaced")

// Registry holds every manager of one backend. It is built once and shared
// read-only.
type Registry struct {
	Backend            *storage.Backend
	Normalizer         *identifier.Normalizer
	Bus                *notify.Bus
	ServiceGroups      *servicegroup.Manager
	Redirects          *redirect.Manager
	ServiceInformation *serviceinfo.Manager
	TransportProfiles  *transportprofile.Manager
	SMLInfos           *smlinfo.Manager
	Settings           *settings.Manager
	Hooks              *smlhook.Selector
	Participants       *participant.Service
}

// Close releases the backend.
func (r *Registry) Close() error {
	return r.Backend.Close()
}

// Deps are the collaborators shared by all managers.
type Deps struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Bus     *notify.Bus
	// Keys overrides the file based key manager of the SML client.
	Keys smlhook.KeyManager
	// LiveOptions are passed to every live SML hook.
	LiveOptions []smlhook.LiveOption
}

func normalizerOf(cfg config.Identifiers) *identifier.Normalizer {
	return identifier.NewNormalizer(
		identifier.WithCaseInsensitiveParticipantSchemes(cfg.ParticipantSchemes...),
		identifier.WithCaseInsensitiveDocumentTypeSchemes(cfg.DocumentTypeSchemes...),
		identifier.WithCaseInsensitiveProcessSchemes(cfg.ProcessSchemes...),
	)
}

// Build constructs the managers over b. Service groups come first because the
// redirect and service information managers validate their persisted records
// against them while loading.
func Build(ctx context.Context, b *storage.Backend, deps Deps) (*Registry, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	bus := deps.Bus
	if bus == nil {
		bus = notify.NewBus(notify.WithLogger(logger), notify.WithMetrics(deps.Metrics))
	}
	norm := normalizerOf(deps.Config.Identifiers)
	r := &Registry{Backend: b, Normalizer: norm, Bus: bus}

	var err error
	r.ServiceGroups, err = servicegroup.New(b.ServiceGroups, norm, servicegroup.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := redirect.New(gctx, b.Redirects, r.ServiceGroups, norm,
			redirect.WithLogger(logger), redirect.WithBus(bus), redirect.WithMetrics(deps.Metrics))
		r.Redirects = m
		return err
	})
	g.Go(func() error {
		m, err := serviceinfo.New(gctx, b.ServiceInformation, r.ServiceGroups, norm,
			serviceinfo.WithLogger(logger), serviceinfo.WithBus(bus), serviceinfo.WithMetrics(deps.Metrics))
		r.ServiceInformation = m
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dependent managers: %w", err)
	}

	if r.TransportProfiles, err = transportprofile.New(b.TransportProfiles,
		transportprofile.WithUsageChecker(r.ServiceInformation),
		transportprofile.WithLogger(logger),
	); err != nil {
		return nil, err
	}
	// The settings manager is built after this one and validates against it,
	// so the active ID is looked up through the registry at call time.
	active := smlinfo.ActiveSourceFunc(func(ctx context.Context) (string, error) {
		return r.Settings.ActiveSMLInfoID(ctx)
	})
	if r.SMLInfos, err = smlinfo.New(b.SMLInfos, smlinfo.WithActiveSource(active), smlinfo.WithLogger(logger)); err != nil {
		return nil, err
	}
	r.Settings, err = settings.New(ctx, b.Settings, deps.Config.InitialSettings(),
		settings.WithLogger(logger), settings.WithBus(bus), settings.WithSMLInfos(r.SMLInfos))
	if err != nil {
		return nil, err
	}

	keys := deps.Keys
	if keys == nil {
		keys = smlhook.FileKeyManager{
			CertFile: deps.Config.SML.CertFile,
			KeyFile:  deps.Config.SML.KeyFile,
			CAFile:   deps.Config.SML.CAFile,
		}
	}
	r.Hooks, err = smlhook.NewSelector(r.Settings, r.SMLInfos,
		smlhook.Config{
			SMPID:          deps.Config.SML.SMPID,
			ConnectTimeout: deps.Config.SML.ConnectTimeout,
			RequestTimeout: deps.Config.SML.RequestTimeout,
		},
		smlhook.WithKeyManager(keys),
		smlhook.WithLogger(logger),
		smlhook.WithMetrics(deps.Metrics),
		smlhook.WithLiveOptions(deps.LiveOptions...),
	)
	if err != nil {
		return nil, err
	}
	bus.Subscribe("sml-hook-selector", r.Hooks.Listener())
	current, err := r.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	r.Hooks.Observe(ctx, current)

	r.Participants, err = participant.New(r.ServiceGroups, r.Redirects, r.ServiceInformation, r.Hooks,
		participant.WithLogger(logger), participant.WithBus(bus), participant.WithMetrics(deps.Metrics))
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Provider builds a registry on demand.
type Provider func(ctx context.Context) (*Registry, error)

// Container hands out one registry per process. The provider can be swapped
// until the registry is first requested.
type Container struct {
	mu       sync.Mutex
	provider Provider
	registry *Registry
}

func NewContainer(p Provider) *Container {
	return &Container{provider: p}
}

// SetProvider replaces the provider. It fails once Registry has been called.
func (c *Container) SetProvider(p Provider) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registry != nil {
		return ErrRegistryInUse
	}
	c.provider = p
	return nil
}

// Registry builds the registry on first use and returns the same one after.
func (c *Container) Registry(ctx context.Context) (*Registry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registry != nil {
		return c.registry, nil
	}
	if c.provider == nil {
		return nil, errors.New("no manager provider configured")
	}
	r, err := c.provider(ctx)
	if err != nil {
		return nil, err
	}
	c.registry = r
	return r, nil
}

// Close releases the registry if one was built.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registry == nil {
		return nil
	}
	return c.registry.Close()
}
