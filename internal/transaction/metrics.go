// internal/transaction/metrics.go
package transaction

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects pipeline counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	builds        *prometheus.CounterVec
	buildDuration prometheus.Histogram
	computeUnits  prometheus.Histogram
	priorityFee   prometheus.Histogram
	pollOutcomes  *prometheus.CounterVec
	pollAttempts  prometheus.Histogram
	sendRetries   prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solana_txprep_builds_total",
			Help: "Total number of transaction builds by result",
		}, []string{"result"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "solana_txprep_build_duration_seconds",
			Help:    "Transaction build duration in seconds",
			Buckets: prometheus.LinearBuckets(0, 0.1, 10),
		}),
		computeUnits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "solana_txprep_compute_units",
			Help:    "Compute unit limits requested by built transactions",
			Buckets: prometheus.ExponentialBuckets(1_000, 2, 11),
		}),
		priorityFee: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "solana_txprep_priority_fee_micro_lamports",
			Help:    "Priority fees set on built transactions",
			Buckets: prometheus.ExponentialBuckets(10_000, 2, 12),
		}),
		pollOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solana_txprep_poll_outcomes_total",
			Help: "Confirmation polling outcomes by final state",
		}, []string{"state"}),
		pollAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "solana_txprep_poll_attempts",
			Help:    "Status queries made per confirmation poll",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		sendRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solana_txprep_send_retries_total",
			Help: "Total number of retried send attempts",
		}),
	}

	reg.MustRegister(
		m.builds,
		m.buildDuration,
		m.computeUnits,
		m.priorityFee,
		m.pollOutcomes,
		m.pollAttempts,
		m.sendRetries,
	)
	return m
}

func (m *Metrics) trackBuild(start time.Time, err error) {
	if m == nil {
		return
	}
	m.buildDuration.Observe(time.Since(start).Seconds())
	m.builds.WithLabelValues(buildResult(err)).Inc()
}

func (m *Metrics) observeComputeUnits(units uint32) {
	if m == nil {
		return
	}
	m.computeUnits.Observe(float64(units))
}

func (m *Metrics) observePriorityFee(fee uint64) {
	if m == nil {
		return
	}
	m.priorityFee.Observe(float64(fee))
}

func (m *Metrics) trackPoll(out Outcome) {
	if m == nil {
		return
	}
	m.pollOutcomes.WithLabelValues(string(out.State)).Inc()
	m.pollAttempts.Observe(float64(out.Attempts))
}

func (m *Metrics) incSendRetries() {
	if m == nil {
		return
	}
	m.sendRetries.Inc()
}

func buildResult(err error) string {
	switch err.(type) {
	case nil:
		return "success"
	case *ValidationError:
		return "invalid"
	case *SimulationError:
		return "simulation_failed"
	case *FeeEstimationError:
		return "fee_failed"
	default:
		return "error"
	}
}
