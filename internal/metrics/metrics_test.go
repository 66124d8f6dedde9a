package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.WatcherCycle("ok", 7)
	m.WatcherCycle("aborted", 0)
	m.Notification("started", "delivered")
	m.QueryResponse("ok")
	m.QueryFinished("completed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.watcherCycles.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.watcherCycles.WithLabelValues("aborted")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.activeWatchers))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("started", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queryResponses.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queriesFinished.WithLabelValues("completed")))
}

func TestMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.WatcherCycle("ok", 1)
		m.Notification("ended", "failed")
		m.QueryResponse("error")
		m.QueryFinished("timed_out")
	})
}
