package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		sweeperRuns,
		sweeperExamined,
		sweeperErrors,
	)
}

var (
	sweeperRuns = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeper_runs_total",
			Help: "Completed sweep passes.",
		},
	)

	sweeperExamined = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeper_purchases_examined_total",
			Help: "Pending purchases examined across all sweeps.",
		},
	)

	sweeperErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeper_purchase_errors_total",
			Help: "Per-purchase failures during sweeps (the sweep itself continues).",
		},
	)
)

func IncSweeperRun() { sweeperRuns.Inc() }

func AddSweeperExamined(n int) { sweeperExamined.Add(float64(n)) }

func IncSweeperPurchaseError() { sweeperErrors.Inc() }
