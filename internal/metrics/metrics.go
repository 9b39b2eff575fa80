// Package metrics holds the Prometheus collectors shared by the sync engine
// components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "offsync"

// Replay attempt outcomes.
const (
	OutcomeSuccess        = "success"
	OutcomeClientError    = "client_error"
	OutcomeServerError    = "server_error"
	OutcomeTransportError = "transport_error"
	OutcomeInvalidRequest = "invalid_request"
)

// Terminal discard reasons.
const (
	ReasonRetryCeiling   = "retry_ceiling"
	ReasonClientError    = "client_error"
	ReasonInvalidRequest = "invalid_request"
)

// Metrics is the set of collectors. A Metrics built with a nil registerer
// works normally but is not exported anywhere.
type Metrics struct {
	QueueDepth        prometheus.Gauge
	Enqueued          prometheus.Counter
	ReplayPasses      prometheus.Counter
	ReplayAttempts    *prometheus.CounterVec
	ReplayDiscarded   *prometheus.CounterVec
	CacheSwept        prometheus.Counter
	SweepErrors       prometheus.Counter
	WakeRegistrations *prometheus.CounterVec
}

// New creates the collectors and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of mutations waiting in the request queue.",
		}),
		Enqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueued_total",
			Help:      "Mutations stored for later replay.",
		}),
		ReplayPasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_passes_total",
			Help:      "Completed replay passes.",
		}),
		ReplayAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_attempts_total",
			Help:      "Replayed requests by outcome.",
		}, []string{"outcome"}),
		ReplayDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_discarded_total",
			Help:      "Requests dropped from the queue without confirmed success.",
		}, []string{"reason"}),
		CacheSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_swept_total",
			Help:      "Expired cache rows deleted by the sweeper.",
		}),
		SweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_sweep_errors_total",
			Help:      "Failed sweeper runs.",
		}),
		WakeRegistrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wake_registrations_total",
			Help:      "Background wake registrations by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.QueueDepth,
			m.Enqueued,
			m.ReplayPasses,
			m.ReplayAttempts,
			m.ReplayDiscarded,
			m.CacheSwept,
			m.SweepErrors,
			m.WakeRegistrations,
		)
	}
	return m
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
