package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	Validations  *prometheus.CounterVec
	Duration     prometheus.Histogram
	RosterSize   prometheus.Gauge
	RosterLoads  *prometheus.CounterVec
	QueueFailure prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "totpattend",
			Name:      "validations_total",
			Help:      "Attendance validation requests by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "totpattend",
			Name:      "validation_duration_seconds",
			Help:      "Time spent validating a token, store round trips included.",
			Buckets:   prometheus.DefBuckets,
		}),
		RosterSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "totpattend",
			Name:      "roster_entries",
			Help:      "Entries in the last roster snapshot used for matching.",
		}),
		RosterLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "totpattend",
			Name:      "roster_loads_total",
			Help:      "Roster lookups by cache result.",
		}, []string{"result"}),
		QueueFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "totpattend",
			Name:      "event_publish_failures_total",
			Help:      "Attendance events that could not be queued.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Validations, m.Duration, m.RosterSize, m.RosterLoads, m.QueueFailure)
	}
	return m
}

// ObserveValidation records one validation outcome and its latency.
func (m *Metrics) ObserveValidation(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Validations.WithLabelValues(outcome).Inc()
	m.Duration.Observe(d.Seconds())
}

// ObserveRoster records a roster lookup.
func (m *Metrics) ObserveRoster(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.RosterLoads.WithLabelValues("hit").Inc()
	} else {
		m.RosterLoads.WithLabelValues("miss").Inc()
	}
}
