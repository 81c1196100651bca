package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the storefront collectors.
	Registry = prometheus.NewRegistry()

	checkoutOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "checkout",
			Name:      "outcomes_total",
			Help:      "Terminal outcomes of checkout attempts.",
		},
		[]string{"outcome"},
	)

	checkoutStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "checkout",
			Name:      "step_duration_seconds",
			Help:      "Duration of network-bound checkout steps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"step"},
	)

	ledgerPersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "ledger",
			Name:      "persist_failures_total",
			Help:      "Ledger writes that failed and were dropped.",
		},
	)

	reconciliationDiscrepancies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "reconciliation",
			Name:      "discrepancies_total",
			Help:      "Committed orders whose payment verification was not confirmed.",
		},
		[]string{"verification"},
	)
)

func init() {
	Registry.MustRegister(
		checkoutOutcomes,
		checkoutStepDuration,
		ledgerPersistFailures,
		reconciliationDiscrepancies,
	)
}

func RecordCheckoutOutcome(outcome string) {
	checkoutOutcomes.WithLabelValues(outcome).Inc()
}

func ObserveCheckoutStep(step string, seconds float64) {
	checkoutStepDuration.WithLabelValues(step).Observe(seconds)
}

func RecordLedgerPersistFailure() {
	ledgerPersistFailures.Inc()
}

func RecordDiscrepancy(verification string) {
	reconciliationDiscrepancies.WithLabelValues(verification).Inc()
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
