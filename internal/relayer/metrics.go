package relayer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SubmissionsTotal counts transactions accepted by the relayer.
	SubmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_relayer_submissions_total",
		Help: "Total number of transactions accepted by the relayer",
	})

	// SubmitErrorsTotal counts failed submissions, including nonce and signing failures.
	SubmitErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_relayer_submit_errors_total",
		Help: "Total number of failed relayer submissions",
	})

	// SubmitDuration tracks end-to-end submission latency.
	SubmitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_relayer_submit_duration_seconds",
		Help:    "Duration of relayer submissions (nonce, sign, submit)",
		Buckets: prometheus.DefBuckets,
	})
)
