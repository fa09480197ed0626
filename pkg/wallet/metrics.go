package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// PositionsFetchedTotal counts positions returned by the Data API.
	PositionsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_wallet_positions_fetched_total",
		Help: "Total number of positions fetched from the Data API",
	})

	// FetchErrorsTotal tracks the number of failed position fetches.
	FetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_wallet_fetch_errors_total",
		Help: "Total number of failed position fetches",
	})

	// FetchDuration tracks the time taken to fetch all pages of a wallet.
	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_wallet_fetch_duration_seconds",
		Help:    "Time taken to fetch wallet positions (seconds)",
		Buckets: prometheus.DefBuckets,
	})
)
