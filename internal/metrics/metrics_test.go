package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveQuantum(10)
	m.RunFinished("completed")
	m.SessionOpened()
	m.SessionClosed()
	m.AcquisitionFailed()
	m.AcquisitionCancelled()
	m.RejectInput()
	m.StaleCallback()
	m.Discarded(3)
	m.ConnectionOpened()
	m.ConnectionClosed()
}

func TestCollectorsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveQuantum(1000)
	m.ObserveQuantum(12)
	m.RunFinished("completed")
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.RejectInput()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Quanta))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Acquisitions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InputRejected))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
