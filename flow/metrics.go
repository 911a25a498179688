package flow

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRecorder observes event executions.
type MetricsRecorder interface {
	RecordDuration(event string, duration time.Duration)
	RecordError(event, code string)
	RecordSuccess(event string)
}

// Metrics is the Prometheus backed MetricsRecorder.
type Metrics struct {
	Executions *prometheus.CounterVec
	Failures   *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics registers execution metrics with reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casework_event_executions_total",
			Help: "Committed event executions by event",
		}, []string{"event"}),
		Failures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casework_event_failures_total",
			Help: "Rejected event executions by event and error code",
		}, []string{"event", "code"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casework_event_duration_seconds",
			Help:    "Duration of event executions",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"event"}),
	}
}

func (m *Metrics) RecordDuration(event string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Duration.WithLabelValues(event).Observe(duration.Seconds())
}

func (m *Metrics) RecordError(event, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.Failures.WithLabelValues(event, code).Inc()
}

func (m *Metrics) RecordSuccess(event string) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(event).Inc()
}
