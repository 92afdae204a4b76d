// Package metrics provides prometheus collectors for the analytics engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names
const (
	MetricQuizEventsTotal          = "learnstats_quiz_events_total"
	MetricIdempotentReplaysTotal   = "learnstats_idempotent_replays_total"
	MetricActiveDayTransitions     = "learnstats_active_day_transitions_total"
	MetricMaintenanceRunsTotal     = "learnstats_maintenance_runs_total"
	MetricMaintenanceDaysTotal     = "learnstats_maintenance_days_reconciled_total"
	MetricMaintenanceDurationHisto = "learnstats_maintenance_duration_seconds"
)

// Quiz event labels
const (
	EventStarted   = "started"
	EventAnswered  = "answered"
	EventCompleted = "completed"
	EventExited    = "exited"
)

// Replay labels
const (
	OperationAnswer   = "answer"
	OperationComplete = "complete"
	OperationExit     = "exit"
)

// Metrics holds the engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	quizEvents       *prometheus.CounterVec
	replays          *prometheus.CounterVec
	transitions      prometheus.Counter
	maintenanceRuns  *prometheus.CounterVec
	daysReconciled   prometheus.Counter
	maintenanceTimer prometheus.Histogram
}

// NewMetrics creates the collectors without registering them
func NewMetrics() *Metrics {
	return &Metrics{
		quizEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricQuizEventsTotal,
				Help: "Quiz lifecycle events applied, by event",
			},
			[]string{"event"},
		),
		replays: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricIdempotentReplaysTotal,
				Help: "Duplicate requests answered from stored state, by operation",
			},
			[]string{"operation"},
		),
		transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricActiveDayTransitions,
			Help: "User days that turned active",
		}),
		maintenanceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricMaintenanceRunsTotal,
				Help: "Maintenance passes by outcome",
			},
			[]string{"outcome"},
		),
		daysReconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricMaintenanceDaysTotal,
			Help: "Days whose retention was recomputed by maintenance",
		}),
		maintenanceTimer: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricMaintenanceDurationHisto,
			Help:    "Duration of maintenance passes that reconciled at least one day",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

// Register registers all collectors with reg
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns every collector
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.quizEvents,
		m.replays,
		m.transitions,
		m.maintenanceRuns,
		m.daysReconciled,
		m.maintenanceTimer,
	}
}

func (m *Metrics) QuizEvent(event string) {
	if m == nil {
		return
	}
	m.quizEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) Replay(operation string) {
	if m == nil {
		return
	}
	m.replays.WithLabelValues(operation).Inc()
}

func (m *Metrics) ActiveDayTransition() {
	if m == nil {
		return
	}
	m.transitions.Inc()
}

// MaintenanceRun records one pass. Duration is only observed for passes
// that did work.
func (m *Metrics) MaintenanceRun(outcome string, days int, took time.Duration) {
	if m == nil {
		return
	}
	m.maintenanceRuns.WithLabelValues(outcome).Inc()
	if days > 0 {
		m.daysReconciled.Add(float64(days))
		m.maintenanceTimer.Observe(took.Seconds())
	}
}
