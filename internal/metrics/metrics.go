// Package metrics exposes the daemon's control and session counters to
// Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autonomyd"

type Metrics struct {
	registry *prometheus.Registry

	ControlTransitions *prometheus.CounterVec
	Sessions           *prometheus.CounterVec
	SessionErrors      *prometheus.CounterVec
	TriggerEvents      *prometheus.CounterVec
	Armed              prometheus.Gauge
	SupervisionDay     prometheus.Gauge
}

// New registers every collector on a private registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ControlTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_transitions_total",
			Help:      "Behavior control handovers, by the authority that took control.",
		}, []string{"authority"}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Supervised sessions, by how they ended.",
		}, []string{"outcome"}),
		SessionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_errors_total",
			Help:      "Session failures, by error kind.",
		}, []string{"kind"}),
		TriggerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_events_total",
			Help:      "Wake-word events received, by kind and whether the state machine acted on them.",
		}, []string{"kind", "accepted"}),
		Armed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "armed",
			Help:      "1 while a wake-word cue or command is in progress.",
		}),
		SupervisionDay: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "supervision_day",
			Help:      "1 when the last calendar check required supervision.",
		}),
	}

	m.registry.MustRegister(
		m.ControlTransitions,
		m.Sessions,
		m.SessionErrors,
		m.TriggerEvents,
		m.Armed,
		m.SupervisionDay,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
