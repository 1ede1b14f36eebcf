package telemetry

import (
	stderrors "errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/hooks/internal/errors"
	"github.com/vango-dev/hooks/pkg/hooks"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "hooks").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for commit pass duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus observer.
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

// WithBuckets sets the histogram buckets.
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

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "hooks",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a hooks.Observer that records Prometheus metrics.
type Metrics struct {
	renders        *prometheus.CounterVec
	effects        *prometheus.CounterVec
	cleanups       *prometheus.CounterVec
	failures       *prometheus.CounterVec
	stateWrites    prometheus.Counter
	staleWrites    prometheus.Counter
	commitDuration prometheus.Histogram
	instances      prometheus.Gauge

	mu   sync.Mutex
	live map[uint64]bool
}

// NewMetrics creates the metrics and registers them with the configured
// registry. Registering twice with the same registry panics, as with any
// promauto collector.
//
// Metrics collected:
//   - hooks_renders_total: render passes by result (committed, aborted)
//   - hooks_effects_total: effect body invocations
//   - hooks_cleanups_total: cleanup invocations
//   - hooks_failures_total: effect, cleanup and render failures by kind and code
//   - hooks_state_writes_total: state writes that changed a value
//   - hooks_stale_writes_total: writes and declarations against torn-down instances
//   - hooks_commit_duration_seconds: duration of commit passes
//   - hooks_instances: live instances that have emitted at least one event
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		renders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "renders_total",
			Help:        "Total number of render passes by result",
			ConstLabels: config.ConstLabels,
		}, []string{"component", "result"}),

		effects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "effects_total",
			Help:        "Total number of effect body invocations",
			ConstLabels: config.ConstLabels,
		}, []string{"component"}),

		cleanups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cleanups_total",
			Help:        "Total number of effect cleanup invocations",
			ConstLabels: config.ConstLabels,
		}, []string{"component"}),

		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "failures_total",
			Help:        "Total number of recovered failures by kind and error code",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "code"}),

		stateWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "state_writes_total",
			Help:        "Total number of state writes that changed a value",
			ConstLabels: config.ConstLabels,
		}),

		staleWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "stale_writes_total",
			Help:        "Total number of writes against torn-down instances",
			ConstLabels: config.ConstLabels,
		}),

		commitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "commit_duration_seconds",
			Help:        "Commit pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		instances: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "instances",
			Help:        "Number of live component instances",
			ConstLabels: config.ConstLabels,
		}),

		live: make(map[uint64]bool),
	}
}

// Observe implements hooks.Observer.
func (m *Metrics) Observe(e hooks.Event) {
	m.track(e)

	switch e.Kind {
	case hooks.EventRenderCommitted:
		m.renders.WithLabelValues(e.Name, "committed").Inc()
	case hooks.EventRenderAborted:
		m.renders.WithLabelValues(e.Name, "aborted").Inc()
		m.failures.WithLabelValues("render", errorCode(e.Err)).Inc()
	case hooks.EventCommitFinished:
		m.commitDuration.Observe(e.Duration.Seconds())
	case hooks.EventEffectRun:
		m.effects.WithLabelValues(e.Name).Inc()
	case hooks.EventCleanupRun:
		m.cleanups.WithLabelValues(e.Name).Inc()
	case hooks.EventEffectFailed:
		m.failures.WithLabelValues("effect", errorCode(e.Err)).Inc()
	case hooks.EventCleanupFailed:
		m.failures.WithLabelValues("cleanup", errorCode(e.Err)).Inc()
	case hooks.EventStateChanged:
		m.stateWrites.Inc()
	case hooks.EventStaleWrite:
		m.staleWrites.Inc()
	}
}

// track maintains the live instance gauge.
func (m *Metrics) track(e hooks.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case e.Kind == hooks.EventTeardown:
		if m.live[e.Instance] {
			delete(m.live, e.Instance)
			m.instances.Dec()
		}
	case e.Kind == hooks.EventStaleWrite:
	case !m.live[e.Instance]:
		m.live[e.Instance] = true
		m.instances.Inc()
	}
}

// errorCode returns the hooks error code of err, or "unknown".
func errorCode(err error) string {
	var herr *errors.HookError
	if stderrors.As(err, &herr) && herr.Code != "" {
		return herr.Code
	}
	return "unknown"
}
