package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ecommerce_search",
			Name:      "search_requests_total",
			Help:      "Total number of search requests",
		},
		[]string{"status"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ecommerce_search",
			Name:      "search_duration_seconds",
			Help:      "Search request duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	SyncProductsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ecommerce_search",
			Name:      "sync_products_indexed_total",
			Help:      "Total products indexed by catalog sync",
		},
	)

	SyncErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ecommerce_search",
			Name:      "sync_errors_total",
			Help:      "Total indexing errors during catalog sync",
		},
	)
)

var registered bool

// Register registers Prometheus metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SyncProductsIndexed)
	prometheus.MustRegister(SyncErrorsTotal)
	registered = true
}
