package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// IndexSetDerivedTotal counts batches whose index sets came from token ids.
	IndexSetDerivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_chain_index_set_derived_total",
		Help: "Total number of batches with index sets derived from token ids",
	})

	// IndexSetFallbackTotal counts batches that fell back to 1<<outcomeIndex.
	IndexSetFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_chain_index_set_fallback_total",
		Help: "Total number of batches using outcome-index index sets",
	})
)
