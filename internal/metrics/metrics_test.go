package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	assert.Error(t, NewMetrics().Register(reg), "duplicate registration must fail")
}

func TestRecording(t *testing.T) {
	m := NewMetrics()

	m.QuizEvent(EventStarted)
	m.QuizEvent(EventStarted)
	m.Replay(OperationAnswer)
	m.ActiveDayTransition()
	m.MaintenanceRun("reconciled", 3, 20*time.Millisecond)
	m.MaintenanceRun("up_to_date", 0, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.quizEvents.WithLabelValues(EventStarted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replays.WithLabelValues(OperationAnswer)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.maintenanceRuns.WithLabelValues("up_to_date")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.daysReconciled))
	assert.Equal(t, 1, testutil.CollectAndCount(m.maintenanceTimer))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.QuizEvent(EventCompleted)
		m.Replay(OperationExit)
		m.ActiveDayTransition()
		m.MaintenanceRun("reconciled", 1, time.Second)
	})
}
