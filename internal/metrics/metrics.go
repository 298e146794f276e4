// Package metrics exports Prometheus metrics for the call engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "intercom"

// Collector holds the call engine's Prometheus instruments.
type Collector struct {
	CallsStarted        prometheus.Counter
	CallsAnswered       prometheus.Counter
	CallsEnded          prometheus.Counter
	NegotiationFailures prometheus.Counter
	SignalingRetries    prometheus.Counter
	CallState           prometheus.Gauge
}

// New registers the collectors on reg and returns them. Pass a fresh
// registry in tests to avoid duplicate registration.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		CallsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_started_total",
			Help:      "Outgoing call attempts initiated locally.",
		}),
		CallsAnswered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_answered_total",
			Help:      "Incoming calls answered locally.",
		}),
		CallsEnded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_ended_total",
			Help:      "Calls torn down for any reason.",
		}),
		NegotiationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "negotiation_failures_total",
			Help:      "Failed media acquisitions and rejected descriptions.",
		}),
		SignalingRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signaling_retries_total",
			Help:      "Outbound publishes that needed a retry.",
		}),
		CallState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "call_state",
			Help:      "Current call state (0=idle 1=incoming 2=outgoing 3=connected).",
		}),
	}
}
