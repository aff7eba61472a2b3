package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	require.NoError(t, m.Register(reg))

	m.ObserveSweep(StatusSuccess, 0.2)
	m.AddSweepTransitions("close_expired", 3)
	m.AddSweepTransitions("close_expired", 0)
	m.IncPayment("trip", "completed")
	m.IncTripFormed("capacity")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepRuns.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweepTransitions.WithLabelValues("close_expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.payments.WithLabelValues("trip", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tripsFormed.WithLabelValues("capacity")))
}

func TestDoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, NewMetrics().Register(reg))
	assert.Error(t, NewMetrics().Register(reg))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSweep(StatusFailure, 1)
		m.AddSweepTransitions("x", 1)
		m.IncPayment("plan", "failed")
		m.IncRefund("expired")
		m.IncTripFormed("deadline")
		m.IncGatewayFailure("session")
	})
}
