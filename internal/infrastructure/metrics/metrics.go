package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/semmidev/keepsake/internal/domain"
)

const namespace = "keepsake"

type Metrics struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	artifactBytes prometheus.Histogram
	scheduleTicks *prometheus.CounterVec
	schedules     prometheus.Gauge
}

// New registers the collectors on a dedicated registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Backup operations by operation and result",
		}, []string{"operation", "result"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Backup operation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"operation"}),

		artifactBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_size_bytes",
			Help:      "Size of compressed artifacts",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 12),
		}),

		scheduleTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_ticks_total",
			Help:      "Scheduled backup runs by result",
		}, []string{"result"}),

		schedules: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "schedules_registered",
			Help:      "Schedules currently registered",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Result labels an outcome: "ok", or the lower-cased error kind.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	kind := domain.KindOf(err)
	if kind == "" {
		return "error"
	}
	return strings.TrimSuffix(strings.ToLower(string(kind)), "_error")
}

func (m *Metrics) ObserveOperation(operation string, err error, elapsed time.Duration) {
	m.operations.WithLabelValues(operation, Result(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveArtifact(size int64) {
	m.artifactBytes.Observe(float64(size))
}

func (m *Metrics) ObserveTick(err error) {
	m.scheduleTicks.WithLabelValues(Result(err)).Inc()
}

func (m *Metrics) SetSchedules(n int) {
	m.schedules.Set(float64(n))
}
