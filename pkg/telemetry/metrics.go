package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus hooks.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "filament").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for evaluation duration in seconds.
	// Default: evaluationBuckets.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus hooks.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the evaluation duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// evaluationBuckets cover the microsecond-to-millisecond range a computed
// read function usually lands in; prometheus.DefBuckets starts far too high.
var evaluationBuckets = []float64{
	0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1, 1,
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "filament",
		Buckets:   evaluationBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics implements filament.Hooks backed by Prometheus collectors.
//
// Metrics collected:
//   - filament_evaluations_total: counter of computed evaluations
//   - filament_evaluation_duration_seconds: histogram of evaluation duration
//   - filament_notifications_total: counter of notifications by event
//   - filament_notified_subscribers_total: counter of callbacks invoked, by event
//   - filament_flushes_total: counter of task queue flushes
//   - filament_flush_tasks_total: counter of tasks executed by flushes
//   - filament_flush_groups: histogram of groups per flush
//   - filament_array_diffs_total: counter of structural diffs computed
//   - filament_array_diff_records: histogram of records per diff
type Metrics struct {
	evaluations        prometheus.Counter
	evaluationDuration prometheus.Histogram
	notifications      *prometheus.CounterVec
	notified           *prometheus.CounterVec
	flushes            prometheus.Counter
	flushTasks         prometheus.Counter
	flushGroups        prometheus.Histogram
	arrayDiffs         prometheus.Counter
	arrayDiffRecords   prometheus.Histogram
}

// NewMetrics registers the collectors and returns the hooks. Registering two
// instances with the same namespace/subsystem on the same registry fails the
// way duplicate Prometheus registrations always do; use WithRegistry or
// WithSubsystem to keep multiple runtimes apart.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		evaluations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "evaluations_total",
			Help:        "Total number of computed evaluations",
			ConstLabels: config.ConstLabels,
		}),

		evaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "evaluation_duration_seconds",
			Help:        "Computed evaluation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of notifications delivered, by event",
			ConstLabels: config.ConstLabels,
		}, []string{"event"}),

		notified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notified_subscribers_total",
			Help:        "Total number of subscriber callbacks invoked, by event",
			ConstLabels: config.ConstLabels,
		}, []string{"event"}),

		flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total number of task queue flushes",
			ConstLabels: config.ConstLabels,
		}),

		flushTasks: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_tasks_total",
			Help:        "Total number of tasks executed by flushes",
			ConstLabels: config.ConstLabels,
		}),

		flushGroups: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_groups",
			Help:        "Task groups processed per flush",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 5, 10, 50, 100, 1000, 5000},
		}),

		arrayDiffs: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "array_diffs_total",
			Help:        "Total number of structural array diffs computed",
			ConstLabels: config.ConstLabels,
		}),

		arrayDiffRecords: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "array_diff_records",
			Help:        "Edit records produced per structural array diff",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 5, 10, 50, 100, 1000},
		}),
	}
}

// ComputedEvaluated implements filament.Hooks.
func (m *Metrics) ComputedEvaluated(d time.Duration) {
	m.evaluations.Inc()
	m.evaluationDuration.Observe(d.Seconds())
}

// NotificationDelivered implements filament.Hooks.
func (m *Metrics) NotificationDelivered(event string, subscribers int) {
	m.notifications.WithLabelValues(event).Inc()
	m.notified.WithLabelValues(event).Add(float64(subscribers))
}

// FlushCompleted implements filament.Hooks.
func (m *Metrics) FlushCompleted(tasks, groups int) {
	m.flushes.Inc()
	m.flushTasks.Add(float64(tasks))
	m.flushGroups.Observe(float64(groups))
}

// ArrayDiffed implements filament.Hooks.
func (m *Metrics) ArrayDiffed(records int) {
	m.arrayDiffs.Inc()
	m.arrayDiffRecords.Observe(float64(records))
}
