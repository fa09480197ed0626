package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// MarketFetchDuration tracks Gamma API latency per lookup kind (slug, condition).
	MarketFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polymarket_markets_fetch_duration_seconds",
		Help:    "Duration of market lookups against the Gamma API",
		Buckets: prometheus.DefBuckets,
	}, []string{"lookup"})

	// MarketFetchErrorsTotal tracks failed lookups, excluding not-found.
	MarketFetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_markets_fetch_errors_total",
		Help: "Total number of market lookup errors",
	}, []string{"lookup"})

	// MarketCacheHitsTotal tracks cache hits for market snapshots.
	MarketCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_markets_cache_hits_total",
		Help: "Total number of market snapshot cache hits",
	})

	// MarketCacheMissesTotal tracks cache misses for market snapshots.
	MarketCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_markets_cache_misses_total",
		Help: "Total number of market snapshot cache misses",
	})
)
