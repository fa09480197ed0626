package redemption

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// TokensClassifiedTotal counts classified tokens by verdict.
	TokensClassifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_redemption_tokens_classified_total",
			Help: "Total number of tokens classified, by verdict",
		},
		[]string{"verdict"},
	)

	// SkipWriteErrorsTotal counts skipped verdicts that could not be persisted.
	SkipWriteErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_redemption_skip_write_errors_total",
		Help: "Total number of skipped token states that failed to persist",
	})

	// BatchesSubmittedTotal counts submitted redemption batches.
	BatchesSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_redemption_batches_submitted_total",
			Help: "Total number of redemption batches submitted",
		},
		[]string{"path", "phase"},
	)

	// BatchesHeldTotal counts batches not submitted because they were not ready.
	BatchesHeldTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_redemption_batches_held_total",
			Help: "Total number of batches held back, by reason",
		},
		[]string{"reason"},
	)

	// BatchFailuresTotal counts batches whose submission failed.
	BatchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_redemption_batch_failures_total",
			Help: "Total number of failed redemption batches",
		},
		[]string{"phase"},
	)

	// VerificationsTotal counts receipt verifications by outcome.
	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_redemption_verifications_total",
			Help: "Total number of token verifications, by outcome",
		},
		[]string{"outcome"},
	)

	// ManualReviewTotal counts tokens still held after the retry phase.
	ManualReviewTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_redemption_manual_review_total",
		Help: "Total number of tokens flagged for manual review",
	})

	// CycleDurationSeconds tracks the duration of one wallet cycle.
	CycleDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_redemption_cycle_duration_seconds",
		Help:    "Duration of a wallet redemption cycle",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
	})

	// CyclesTotal counts wallet cycles by result.
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_redemption_cycles_total",
			Help: "Total number of wallet cycles, by result",
		},
		[]string{"result"},
	)
)
