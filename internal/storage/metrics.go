package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// TokenStateWritesTotal counts upserted token states by redeem status.
	TokenStateWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_storage_token_state_writes_total",
		Help: "Total number of token state upserts",
	}, []string{"status"})

	// StorageErrorsTotal counts failed storage operations.
	StorageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_storage_errors_total",
		Help: "Total number of failed storage operations",
	}, []string{"op"})
)
