package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the registration engine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ParticipantOperations *prometheus.CounterVec
	ParticipantDuration   *prometheus.HistogramVec
	HookCalls             *prometheus.CounterVec
	HookDuration          *prometheus.HistogramVec
	CompensationRuns      *prometheus.CounterVec
	CompensationFailures  *prometheus.CounterVec
	NotificationFailures  *prometheus.CounterVec
	OrphanRecords         *prometheus.CounterVec
	SMLSyncActive         prometheus.Gauge
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ParticipantOperations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "smpd_participant_operations_total",
			Help: "Participant create/update/delete operations by outcome",
		}, []string{"op", "outcome"}),
		ParticipantDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smpd_participant_operation_duration_seconds",
			Help:    "Duration of participant operations including the SML round trip",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		HookCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "smpd_sml_hook_calls_total",
			Help: "SML hook calls by operation and outcome",
		}, []string{"op", "outcome"}),
		HookDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "smpd_sml_hook_duration_seconds",
			Help:    "Latency of SML hook calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),
		CompensationRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "smpd_compensation_runs_total",
			Help: "Compensation sequences started after a failed participant operation",
		}, []string{"op"}),
		CompensationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "smpd_compensation_failures_total",
			Help: "Compensation sequences that could not fully restore state and need manual reconciliation",
		}, []string{"op"}),
		NotificationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "smpd_notification_failures_total",
			Help: "Change notification subscribers that returned an error or panicked",
		}, []string{"subscriber", "event"}),
		OrphanRecords: f.NewCounterVec(prometheus.CounterOpts{
			Name: "smpd_orphan_records_total",
			Help: "Persisted records referencing a missing service group, found while loading",
		}, []string{"collection"}),
		SMLSyncActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "smpd_sml_sync_active",
			Help: "1 when participant operations are synchronized with the SML",
		}),
	}
}

// ObserveParticipantOperation records one participant operation outcome.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveParticipantOperation(op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.ParticipantOperations.WithLabelValues(op, outcome).Inc()
	m.ParticipantDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ObserveHookCall records one SML hook call.
func (m *Metrics) ObserveHookCall(op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.HookCalls.WithLabelValues(op, outcome).Inc()
	m.HookDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementCompensationRuns(op string) {
	if m == nil {
		return
	}
	m.CompensationRuns.WithLabelValues(op).Inc()
}

func (m *Metrics) IncrementCompensationFailures(op string) {
	if m == nil {
		return
	}
	m.CompensationFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) IncrementNotificationFailures(subscriber, event string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(subscriber, event).Inc()
}

func (m *Metrics) AddOrphanRecords(collection string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.OrphanRecords.WithLabelValues(collection).Add(float64(n))
}

// SetSMLSyncActive flips the sync gauge.
func (m *Metrics) SetSMLSyncActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.SMLSyncActive.Set(1)
		return
	}
	m.SMLSyncActive.Set(0)
}
