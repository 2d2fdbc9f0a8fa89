// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/michalfoune/rizma-heygen/internal/interview"
)

const namespace = "interview_engine"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsCreated   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsActive    prometheus.Gauge

	// Turn metrics
	TurnsTotal *prometheus.CounterVec

	// Phase metrics
	PhaseTransitions *prometheus.CounterVec

	// Evaluation metrics
	EvaluationScore   prometheus.Histogram
	EvaluationsPassed prometheus.Counter
	EvaluationsFailed prometheus.Counter

	// WebSocket metrics
	WSConnectionsActive prometheus.Gauge
	WSMessagesReceived  *prometheus.CounterVec
	WSMessagesSent      *prometheus.CounterVec
	WSReconnects        prometheus.Counter

	// Transcript aggregation metrics
	UtterancesFinalized prometheus.Counter
	UtterancesDiscarded *prometheus.CounterVec
}

// Default is the global metrics instance registered on the default
// Prometheus registerer.
var Default = New(prometheus.DefaultRegisterer)

// New creates and registers all metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of interview sessions created",
		}),
		SessionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of interview sessions that reached COMPLETED",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently in progress",
		}),
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total transcript turns recorded, by speaker",
		}, []string{"speaker"}),
		PhaseTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Total phase transitions, by target phase and trigger",
		}, []string{"to", "trigger"}),
		EvaluationScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_score",
			Help:      "Distribution of final interview scores",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		EvaluationsPassed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_passed_total",
			Help:      "Total evaluations above the passing threshold",
		}),
		EvaluationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_failed_total",
			Help:      "Total evaluations below the passing threshold",
		}),
		WSConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections_active",
			Help:      "Number of open WebSocket connections",
		}),
		WSMessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_received_total",
			Help:      "Total WebSocket messages received, by type",
		}, []string{"type"}),
		WSMessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_sent_total",
			Help:      "Total WebSocket messages sent, by type",
		}, []string{"type"}),
		WSReconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_reconnects_total",
			Help:      "Total WebSocket reconnection attempts",
		}),
		UtterancesFinalized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_finalized_total",
			Help:      "Total finalized utterances emitted by the aggregator",
		}),
		UtterancesDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_discarded_total",
			Help:      "Total recognition events and utterances discarded before finalization, by reason",
		}, []string{"reason"}),
	}
}

// OnTurn implements the orchestrator observer hook.
func (m *Metrics) OnTurn(_ string, t interview.Turn) {
	m.TurnsTotal.WithLabelValues(string(t.Speaker)).Inc()
}

// OnPhaseChange implements the orchestrator observer hook.
func (m *Metrics) OnPhaseChange(ch interview.PhaseChange) {
	trigger := "manual"
	if ch.Auto {
		trigger = "auto"
	}
	m.PhaseTransitions.WithLabelValues(string(ch.To), trigger).Inc()
	if ch.To == interview.PhaseCompleted {
		m.SessionsCompleted.Inc()
		m.SessionsActive.Dec()
	}
}

// OnUtteranceFinalized implements the aggregator's finalize callback.
func (m *Metrics) OnUtteranceFinalized() {
	m.UtterancesFinalized.Inc()
}

// OnUtteranceDiscarded implements the aggregator's discard callback.
func (m *Metrics) OnUtteranceDiscarded(reason string) {
	m.UtterancesDiscarded.WithLabelValues(reason).Inc()
}

// RecordEvaluation records a final score.
func (m *Metrics) RecordEvaluation(score int, passed bool) {
	m.EvaluationScore.Observe(float64(score))
	if passed {
		m.EvaluationsPassed.Inc()
	} else {
		m.EvaluationsFailed.Inc()
	}
}
