package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		purchasesTotal,
		purchaseRevenueTotal,
	)
}

var (
	purchasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_total",
			Help: "Purchases by status (pending/succeeded/failed).",
		},
		[]string{"status"},
	)

	purchaseRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_revenue_total",
			Help: "The total monetary value of succeeded purchases, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func IncPurchase(status string) {
	purchasesTotal.WithLabelValues(norm(status)).Inc()
}

func AddPurchaseRevenue(currency string, amount int64) {
	purchaseRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}
