// Package metrics provides Prometheus metrics for the race simulator.
// A nil *Manager is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DNF causes
const (
	CauseAccident = "accident"
	CauseFailure  = "failure"
	CauseFixture  = "fixture"
)

// Pit stop triggers
const (
	TriggerScheduled = "scheduled"
	TriggerSafetyCar = "safety_car"
)

// Manager manages all Prometheus metrics of the simulator.
type Manager struct {
	namespace       string
	subsystem       string
	durationBuckets []float64
	registry        *prometheus.Registry

	racesSimulated    prometheus.Counter
	raceDuration      prometheus.Histogram
	dnfs              *prometheus.CounterVec
	safetyCars        prometheus.Counter
	pitStops          *prometheus.CounterVec
	pitLookupFailures prometheus.Counter
	driversDropped    prometheus.Counter
	modelCache        *prometheus.CounterVec
	modelFitFailures  *prometheus.CounterVec
	batchTrials       prometheus.Counter
	batchesByStatus   *prometheus.CounterVec
}

// NewManager creates a new metrics manager. Without WithRegistry it
// registers on a fresh registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "racesim",
		durationBuckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1},
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.racesSimulated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "races_simulated_total",
		Help:      "Total number of completed race simulations",
	})

	m.raceDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "race_duration_seconds",
		Help:      "Wall-clock time spent simulating one race",
		Buckets:   m.durationBuckets,
	})

	m.dnfs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dnfs_total",
		Help:      "Scheduled retirements by cause",
	}, []string{"cause"})

	m.safetyCars = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "safety_car_deployments_total",
		Help:      "Safety car deployments triggered by retirements",
	})

	m.pitStops = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pit_stops_total",
		Help:      "Pit stops taken by trigger",
	}, []string{"trigger"})

	m.pitLookupFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pit_lookup_failures_total",
		Help:      "Pit stops skipped because no pit duration could be sampled",
	})

	m.driversDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "drivers_dropped_total",
		Help:      "Grid entrants dropped because the driver row is missing",
	})

	m.modelCache = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "model_cache_lookups_total",
		Help:      "Fitted model cache lookups by kind and result",
	}, []string{"kind", "result"})

	m.modelFitFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "model_fit_failures_total",
		Help:      "Model fits that fell back to a default model, by kind",
	}, []string{"kind"})

	m.batchTrials = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batch_trials_total",
		Help:      "Monte Carlo trials completed",
	})

	m.batchesByStatus = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "batches_total",
		Help:      "Monte Carlo batches by terminal status",
	}, []string{"status"})
}

// Gatherer exposes the registry for the /metrics handler
func (m *Manager) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// RecordRace records one completed race simulation
func (m *Manager) RecordRace(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.racesSimulated.Inc()
	m.raceDuration.Observe(elapsed.Seconds())
}

// RecordDNF records a scheduled retirement
func (m *Manager) RecordDNF(cause string) {
	if m == nil {
		return
	}
	m.dnfs.WithLabelValues(cause).Inc()
}

// RecordSafetyCar records a safety car deployment
func (m *Manager) RecordSafetyCar() {
	if m == nil {
		return
	}
	m.safetyCars.Inc()
}

// RecordPitStop records a pit stop taken
func (m *Manager) RecordPitStop(trigger string) {
	if m == nil {
		return
	}
	m.pitStops.WithLabelValues(trigger).Inc()
}

// RecordPitLookupFailure records a pit stop skipped on a data lookup failure
func (m *Manager) RecordPitLookupFailure() {
	if m == nil {
		return
	}
	m.pitLookupFailures.Inc()
}

// RecordDriverDropped records a grid entrant without a driver row
func (m *Manager) RecordDriverDropped() {
	if m == nil {
		return
	}
	m.driversDropped.Inc()
}

// RecordCacheLookup records a fitted model cache hit or miss
func (m *Manager) RecordCacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.modelCache.WithLabelValues(kind, result).Inc()
}

// RecordModelFitFailure records a fit that fell back to a default model
func (m *Manager) RecordModelFitFailure(kind string) {
	if m == nil {
		return
	}
	m.modelFitFailures.WithLabelValues(kind).Inc()
}

// RecordTrial records one finished Monte Carlo trial
func (m *Manager) RecordTrial() {
	if m == nil {
		return
	}
	m.batchTrials.Inc()
}

// RecordBatch records a batch reaching a terminal status
func (m *Manager) RecordBatch(status string) {
	if m == nil {
		return
	}
	m.batchesByStatus.WithLabelValues(status).Inc()
}
