package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// dispatchDuration tracks end-to-end dispatch duration in seconds.
	// Labels: action, model, outcome
	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_dispatch_duration_seconds",
			Help:    "Dispatch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action", "model", "outcome"},
	)

	// dispatchTotal tracks total dispatched requests.
	// Labels: action, model, outcome
	dispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_dispatch_total",
			Help: "Total number of dispatched requests",
		},
		[]string{"action", "model", "outcome"},
	)

	// dispatchInFlight tracks requests currently being processed.
	dispatchInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_dispatch_in_flight",
			Help: "Current number of requests being processed",
		},
	)

	// transactionsTotal tracks transaction outcomes.
	// Labels: outcome (committed|aborted)
	transactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_transactions_total",
			Help: "Total number of coordinated transactions",
		},
		[]string{"outcome"},
	)
)

// RecordDispatch records one dispatched request.
func RecordDispatch(action, model, outcome string, duration time.Duration) {
	dispatchDuration.WithLabelValues(action, model, outcome).Observe(duration.Seconds())
	dispatchTotal.WithLabelValues(action, model, outcome).Inc()
}

// RecordTransaction records a committed or aborted transaction.
func RecordTransaction(outcome string) {
	transactionsTotal.WithLabelValues(outcome).Inc()
}

// IncrementInFlight increments the in-flight dispatch gauge.
func IncrementInFlight() {
	dispatchInFlight.Inc()
}

// DecrementInFlight decrements the in-flight dispatch gauge.
func DecrementInFlight() {
	dispatchInFlight.Dec()
}
