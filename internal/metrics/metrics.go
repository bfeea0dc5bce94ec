// Package metrics holds the prometheus collectors of the terminal.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics.
type Metrics struct {
	Commands       *prometheus.CounterVec
	CommandLatency *prometheus.HistogramVec
	Finalized      prometheus.Counter
	Cancelled      prometheus.Counter
	Sessions       prometheus.Gauge
}

// New registers the collectors on reg. A nil reg registers nowhere.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Terminal commands executed, by command kind and outcome.",
		}, []string{"kind", "outcome"}),
		CommandLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time taken to execute a terminal command.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		Finalized: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pnrs_finalized_total",
			Help:      "PNRs committed with ET or ER.",
		}),
		Cancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pnrs_cancelled_total",
			Help:      "Stored PNRs cancelled with XI.",
		}),
		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Open terminal sessions.",
		}),
	}
}

// ObserveCommand counts one command and records its latency.
func (m *Metrics) ObserveCommand(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(kind, outcome).Inc()
	m.CommandLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveEvent counts a PNR lifecycle event.
func (m *Metrics) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	switch eventType {
	case "finalized":
		m.Finalized.Inc()
	case "cancelled":
		m.Cancelled.Inc()
	}
}
