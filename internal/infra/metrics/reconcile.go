package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconcileAttempts,
		reconcileDuration,
		verificationErrors,
		persistFailures,
	)
}

var (
	// source: webhook|sweeper|recheck|admin|query
	// outcome: already_terminal|confirmed|unconfirmed|error
	reconcileAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_attempts_total",
			Help: "Reconcile calls by calling path and outcome.",
		},
		[]string{"source", "outcome"},
	)

	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Duration of reconcile calls in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"outcome"},
	)

	verificationErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_verification_errors_total",
			Help: "Provider queries that failed (timeout, transport, malformed session).",
		},
	)

	// A persist failure after a confirmed decision risks a paid purchase
	// never being credited; alert on this.
	persistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_persist_failures_total",
			Help: "Store writes that failed after a confirmed transition decision.",
		},
	)
)

func IncReconcile(source, outcome string) {
	reconcileAttempts.WithLabelValues(norm(source), norm(outcome)).Inc()
}

func ObserveReconcile(outcome string, seconds float64) {
	reconcileDuration.WithLabelValues(norm(outcome)).Observe(seconds)
}

func IncVerificationError() { verificationErrors.Inc() }

func IncPersistFailure() { persistFailures.Inc() }
