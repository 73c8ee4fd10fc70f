// Package httptransport serves the operational endpoints of the daemon:
// liveness, readiness, metrics and a status summary. The publishing REST API
// is a separate concern and is not mounted here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"smpd/internal/domain"
	dErrors "smpd/pkg/domain-errors"
	"smpd/pkg/platform/httputil"
)

// Counter reports the number of records of one entity.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// SettingsReader returns the current runtime settings.
type SettingsReader interface {
	Get(ctx context.Context) (domain.Settings, error)
}

// HealthChecker is an optional dependency polled by /readyz.
type HealthChecker interface {
	Healthy() bool
}

// Handler serves the ops endpoints.
type Handler struct {
	backend  string
	counters map[string]Counter
	settings SettingsReader
	checks   map[string]HealthChecker
	metrics  http.Handler
	logger   *slog.Logger
	timeout  time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithCounter adds an entity to the counts of /status.
func WithCounter(name string, c Counter) Option {
	return func(h *Handler) { h.counters[name] = c }
}

// WithHealthCheck adds a named dependency to /readyz.
func WithHealthCheck(name string, c HealthChecker) Option {
	return func(h *Handler) { h.checks[name] = c }
}

// WithMetricsHandler mounts the prometheus handler on /metrics.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// New builds the handler. backend is the configured storage kind.
func New(backend string, settings SettingsReader, opts ...Option) *Handler {
	h := &Handler{
		backend:  backend,
		counters: map[string]Counter{},
		settings: settings,
		checks:   map[string]HealthChecker{},
		logger:   slog.New(slog.DiscardHandler),
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register mounts the ops endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	r.Get("/readyz", h.HandleReady)
	r.Get("/status", h.HandleStatus)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
}

// NewRouter builds a chi router with the ops endpoints mounted.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	h.Register(r)
	return r
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady handles GET /readyz. The daemon is ready when the settings can
// be read from storage and every registered dependency reports healthy.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	failing := map[string]string{}
	if _, err := h.settings.Get(ctx); err != nil {
		h.logger.WarnContext(ctx, "readiness storage probe failed", "error", err)
		failing["storage"] = err.Error()
	}
	for name, c := range h.checks {
		if !c.Healthy() {
			failing[name] = "unhealthy"
		}
	}
	if len(failing) > 0 {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":  "unavailable",
			"failing": failing,
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Backend     string         `json:"backend"`
	Counts      map[string]int `json:"counts"`
	SMLEnabled  bool           `json:"sml_enabled"`
	SMLRequired bool           `json:"sml_required"`
	SMLInfoID   string         `json:"sml_info_id,omitempty"`
}

// HandleStatus handles GET /status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, err := h.settings.Get(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "status: read settings", "error", err)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBackend, "read settings"))
		return
	}
	resp := StatusResponse{
		Backend:     h.backend,
		Counts:      make(map[string]int, len(h.counters)),
		SMLEnabled:  s.SMLEnabled,
		SMLRequired: s.SMLRequired,
		SMLInfoID:   s.SMLInfoID,
	}
	for name, c := range h.counters {
		n, err := c.Count(ctx)
		if err != nil {
			h.logger.ErrorContext(ctx, "status: count records", "entity", name, "error", err)
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBackend, "count "+name))
			return
		}
		resp.Counts[name] = n
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
