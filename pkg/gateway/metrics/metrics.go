// Package metrics exposes Prometheus metrics for the gateway.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionsStarted prometheus.Counter
	TurnsAppended   *prometheus.CounterVec
	Faults          *prometheus.CounterVec
	ClonesStarted   prometheus.Counter
	ClonesCompleted prometheus.Counter
	SynthesisTime   prometheus.Histogram
}

// New creates and registers the gateway metrics on reg. Pass nil to use the
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "replitone_active_sessions",
			Help: "Current number of live chat sessions",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "replitone_sessions_started_total",
			Help: "Total number of chat sessions started",
		}),
		TurnsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "replitone_turns_total",
			Help: "Total number of transcript turns appended",
		}, []string{"role"}),
		Faults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "replitone_faults_total",
			Help: "Total number of degraded capability failures",
		}, []string{"kind"}),
		ClonesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "replitone_clones_started_total",
			Help: "Total number of voice clone requests",
		}),
		ClonesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "replitone_clones_completed_total",
			Help: "Total number of completed voice clones",
		}),
		SynthesisTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "replitone_synthesis_duration_seconds",
			Help:    "Time spent rendering assistant speech",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}
}

// SessionOpened records a new live session.
func (m *Metrics) SessionOpened() {
	m.SessionsStarted.Inc()
	m.ActiveSessions.Inc()
}

// SessionClosed records a finished live session.
func (m *Metrics) SessionClosed() {
	m.ActiveSessions.Dec()
}

// TurnAppended records one appended turn.
func (m *Metrics) TurnAppended(role string) {
	m.TurnsAppended.WithLabelValues(role).Inc()
}

// FaultReported records one degraded failure.
func (m *Metrics) FaultReported(kind string) {
	m.Faults.WithLabelValues(kind).Inc()
}

// SynthesisObserved records the duration of one completed speech render.
func (m *Metrics) SynthesisObserved(d time.Duration) {
	m.SynthesisTime.Observe(d.Seconds())
}
