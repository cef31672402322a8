// Package metrics exposes flow engine counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"survey-flow-service/internal/domain"
	"survey-flow-service/internal/flow"
)

// Metrics implements flow.Observer.
type Metrics struct {
	Transitions *prometheus.CounterVec
	Anomalies   *prometheus.CounterVec
	Validations *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg (skipped when reg is nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "survey_flow",
				Subsystem: "engine",
				Name:      "transitions_total",
				Help:      "Response state transitions by event and resulting status",
			},
			[]string{"event", "status"},
		),
		Anomalies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "survey_flow",
				Subsystem: "engine",
				Name:      "anomalies_total",
				Help:      "Traversals force-completed by the runtime guards",
			},
			[]string{"kind"},
		),
		Validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "survey_flow",
				Subsystem: "validator",
				Name:      "runs_total",
				Help:      "Graph validations by result (valid, invalid)",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Transitions, m.Anomalies, m.Validations)
	}
	return m
}

func (m *Metrics) ObserveTransition(event string, status domain.ResponseStatus) {
	m.Transitions.WithLabelValues(event, string(status)).Inc()
}

func (m *Metrics) ObserveAnomaly(kind flow.Anomaly) {
	m.Anomalies.WithLabelValues(string(kind)).Inc()
}

// ObserveValidation matches app.WithValidationHook.
func (m *Metrics) ObserveValidation(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.Validations.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
