// Package metrics records ledger call outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder receives one observation per public ledger call.
type Recorder interface {
	ObserveCall(call, outcome string, elapsed time.Duration)
	ObserveStagingConflict(collection string)
}

// Noop discards observations.
type Noop struct{}

func (Noop) ObserveCall(string, string, time.Duration) {}
func (Noop) ObserveStagingConflict(string)             {}

// Prometheus exports observations as Prometheus collectors.
type Prometheus struct {
	calls     *prometheus.CounterVec
	durations *prometheus.HistogramVec
	conflicts *prometheus.CounterVec
}

// NewPrometheus registers the ledger collectors on reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_calls_total",
			Help: "Ledger calls by call name and outcome code.",
		}, []string{"call", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_call_duration_seconds",
			Help:    "Ledger call latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"call"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_staging_conflicts_total",
			Help: "Staging rows that could not be opened because another process holds the object.",
		}, []string{"collection"}),
	}
	for _, c := range []prometheus.Collector{p.calls, p.durations, p.conflicts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveCall(call, outcome string, elapsed time.Duration) {
	p.calls.WithLabelValues(call, outcome).Inc()
	p.durations.WithLabelValues(call).Observe(elapsed.Seconds())
}

func (p *Prometheus) ObserveStagingConflict(collection string) {
	p.conflicts.WithLabelValues(collection).Inc()
}
