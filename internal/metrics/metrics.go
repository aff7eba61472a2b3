// Package metrics holds the Prometheus collectors for the funnel, the payment
// ledger and the sweep job.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricSweepRunsTotal        = "tripmate_sweep_runs_total"
	MetricSweepDuration         = "tripmate_sweep_duration_seconds"
	MetricSweepTransitionsTotal = "tripmate_sweep_transitions_total"
	MetricPaymentsTotal         = "tripmate_payments_total"
	MetricRefundsTotal          = "tripmate_refunds_total"
	MetricTripsFormedTotal      = "tripmate_trips_formed_total"
	MetricGatewayFailuresTotal  = "tripmate_gateway_failures_total"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	sweepRuns        *prometheus.CounterVec
	sweepDuration    prometheus.Histogram
	sweepTransitions *prometheus.CounterVec
	payments         *prometheus.CounterVec
	refunds          *prometheus.CounterVec
	tripsFormed      *prometheus.CounterVec
	gatewayFailures  *prometheus.CounterVec
}

// NewMetrics creates the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSweepRunsTotal,
			Help: "Total number of sweep runs by status",
		}, []string{"status"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricSweepDuration,
			Help:    "Duration of sweep runs in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		sweepTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSweepTransitionsTotal,
			Help: "Rows transitioned by the sweep, by step",
		}, []string{"step"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricPaymentsTotal,
			Help: "Payment ledger transitions by context and status",
		}, []string{"context", "status"}),
		refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRefundsTotal,
			Help: "Refund requests by outcome",
		}, []string{"outcome"}),
		tripsFormed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricTripsFormedTotal,
			Help: "Organized trips materialized by trigger",
		}, []string{"trigger"}),
		gatewayFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricGatewayFailuresTotal,
			Help: "Gateway calls that degraded to FAILED, by operation",
		}, []string{"operation"}),
	}
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.sweepRuns,
		m.sweepDuration,
		m.sweepTransitions,
		m.payments,
		m.refunds,
		m.tripsFormed,
		m.gatewayFailures,
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveSweep(status string, seconds float64) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(status).Inc()
	m.sweepDuration.Observe(seconds)
}

func (m *Metrics) AddSweepTransitions(step string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepTransitions.WithLabelValues(step).Add(float64(n))
}

// IncPayment counts a ledger transition; paymentContext is "plan" or "trip".
func (m *Metrics) IncPayment(paymentContext, status string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(paymentContext, status).Inc()
}

func (m *Metrics) IncRefund(outcome string) {
	if m == nil {
		return
	}
	m.refunds.WithLabelValues(outcome).Inc()
}

// IncTripFormed counts materialized trips; trigger is "capacity" or "deadline".
func (m *Metrics) IncTripFormed(trigger string) {
	if m == nil {
		return
	}
	m.tripsFormed.WithLabelValues(trigger).Inc()
}

func (m *Metrics) IncGatewayFailure(operation string) {
	if m == nil {
		return
	}
	m.gatewayFailures.WithLabelValues(operation).Inc()
}
