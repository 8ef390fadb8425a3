package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Counters(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()

	m.ActionRecorded("workouts")
	m.ActionRecorded("workouts")
	m.PushFinished("workouts", ResultSynced, 20*time.Millisecond)
	m.PushFinished("workouts", ResultFailed, time.Second)
	m.PushFinished("workouts", ResultSkipped, 0)
	m.RetryScheduled("workouts")
	m.LocalStoreFailure()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CounterActions.WithLabelValues("workouts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterPushes.WithLabelValues("workouts", ResultSynced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterPushes.WithLabelValues("workouts", ResultFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterRetries.WithLabelValues("workouts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterLocalFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GaugeSessions))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.ActionRecorded("x")
		m.PushFinished("x", ResultSynced, time.Second)
		m.RetryScheduled("x")
		m.LocalStoreFailure()
		m.SessionOpened()
		m.SessionClosed()
	})
}
