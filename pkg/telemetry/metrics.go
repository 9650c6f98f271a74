package telemetry

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for the bootstrap coordinator.
type Metrics struct {
	config MetricsConfig

	// Lifecycle metrics
	phase             prometheus.Gauge
	initializations   *prometheus.CounterVec
	deinitializations prometheus.Counter
	droppedRequests   *prometheus.CounterVec

	// Resource metrics
	resolutionFailures *prometheus.CounterVec
	activationDuration *prometheus.HistogramVec
	liveInstances      prometheus.Gauge

	// Host metrics
	hostEvents *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return NopMetrics(), nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		phase: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "boot_phase",
				Help:      "Current lifecycle phase (0=uninitialized, 1=initializing, 2=initialized, 3=deinitializing)",
			},
		),
		initializations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "boot_initializations_total",
				Help:      "Total number of completed initialization flows",
			},
			[]string{"mode"},
		),
		deinitializations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "boot_deinitializations_total",
				Help:      "Total number of completed de-initialization flows",
			},
		),
		droppedRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "boot_dropped_requests_total",
				Help:      "Lifecycle requests dropped because the phase did not allow them",
			},
			[]string{"op"},
		),
		resolutionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "boot_resolution_failures_total",
				Help:      "Boot resources that could not be resolved",
			},
			[]string{"key"},
		),
		activationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "boot_activation_duration_seconds",
				Help:      "Time spent instantiating a boot resource",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"key", "mode"},
		),
		liveInstances: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "boot_live_instances",
				Help:      "Number of instances currently owned by active boot resources",
			},
		),
		hostEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "boot_host_events_total",
				Help:      "Host events handled by the synchronizer",
			},
			[]string{"event", "action"},
		),
	}

	registry.MustRegister(
		m.phase,
		m.initializations,
		m.deinitializations,
		m.droppedRequests,
		m.resolutionFailures,
		m.activationDuration,
		m.liveInstances,
		m.hostEvents,
	)

	return m, nil
}

// NopMetrics returns a metrics instance that records nothing.
func NopMetrics() *Metrics {
	return &Metrics{}
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Lifecycle Metrics

// SetPhase records the ordinal of the current lifecycle phase.
func (m *Metrics) SetPhase(ordinal float64) {
	if m.phase == nil {
		return
	}
	m.phase.Set(ordinal)
}

// RecordInitialization records a completed initialization flow.
func (m *Metrics) RecordInitialization(mode string, _ time.Duration) {
	if m.initializations == nil {
		return
	}
	m.initializations.WithLabelValues(mode).Inc()
}

// RecordDeinitialization records a completed de-initialization flow.
func (m *Metrics) RecordDeinitialization(_ time.Duration) {
	if m.deinitializations == nil {
		return
	}
	m.deinitializations.Inc()
}

// RecordDroppedRequest records a lifecycle request that was ignored.
func (m *Metrics) RecordDroppedRequest(op string) {
	if m.droppedRequests == nil {
		return
	}
	m.droppedRequests.WithLabelValues(op).Inc()
}

// Resource Metrics

// RecordResolutionFailure records a boot resource that failed to resolve.
func (m *Metrics) RecordResolutionFailure(key string) {
	if m.resolutionFailures == nil {
		return
	}
	m.resolutionFailures.WithLabelValues(key).Inc()
}

// RecordActivation records how long a boot resource took to instantiate.
func (m *Metrics) RecordActivation(key, mode string, duration time.Duration) {
	if m.activationDuration == nil {
		return
	}
	m.activationDuration.WithLabelValues(key, mode).Observe(duration.Seconds())
}

// SetLiveInstances sets the number of live instances.
func (m *Metrics) SetLiveInstances(count float64) {
	if m.liveInstances == nil {
		return
	}
	m.liveInstances.Set(count)
}

// Host Metrics

// RecordHostEvent records a host event and the action it produced.
func (m *Metrics) RecordHostEvent(event, action string) {
	if m.hostEvents == nil {
		return
	}
	m.hostEvents.WithLabelValues(event, action).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
// The returned server can be shut down by the caller; it is nil when metrics are disabled.
func (m *Metrics) StartMetricsServer() (*http.Server, error) {
	if !m.config.Enabled || m.registry == nil {
		return nil, nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("address", m.config.ListenAddress).Msg("metrics server failed")
		}
	}()

	return server, nil
}
