package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/frievoe97/stackup/spec"
)

// Metrics holds the Prometheus instrumentation for orchestration runs.
// All methods are safe on a nil receiver, so callers that don't care about
// metrics simply leave Orchestrator.Metrics unset.
type Metrics struct {
	serviceOutcomes *prometheus.CounterVec
	probeFailures   *prometheus.CounterVec
	upDuration      *prometheus.HistogramVec
}

// NewMetrics creates and registers the orchestration metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		serviceOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stackup",
			Name:      "service_outcomes_total",
			Help:      "Terminal service states per orchestration run.",
		}, []string{"stack", "status"}),
		probeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stackup",
			Name:      "probe_failures_total",
			Help:      "Failed health-check attempts.",
		}, []string{"stack", "service"}),
		upDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stackup",
			Name:      "up_duration_seconds",
			Help:      "Wall-clock duration of Up runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stack", "outcome"}),
	}
	reg.MustRegister(m.serviceOutcomes, m.probeFailures, m.upDuration)
	return m
}

func (m *Metrics) serviceFinished(stack string, status spec.Status) {
	if m == nil {
		return
	}
	m.serviceOutcomes.WithLabelValues(stack, string(status)).Inc()
}

func (m *Metrics) probeFailed(stack, service string) {
	if m == nil {
		return
	}
	m.probeFailures.WithLabelValues(stack, service).Inc()
}

func (m *Metrics) observeUp(res Result, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "failing"
	if res.OK {
		outcome = "up"
	}
	m.upDuration.WithLabelValues(res.Stack, outcome).Observe(d.Seconds())
}
