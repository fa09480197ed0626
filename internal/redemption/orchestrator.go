package redemption

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/internal/chain"
	"github.com/mselser95/polymarket-redeemer/internal/relayer"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

const (
	phaseFirst = "first"
	phaseRetry = "retry"
)

// Submission is a batch accepted by the relayer.
type Submission struct {
	ConditionID string
	TxHash      string
	Path        types.RedemptionPath
	Tokens      []types.Position
}

// BatchFailure is a batch that could not be submitted.
type BatchFailure struct {
	ConditionID string
	Err         error
}

// SubmitResult summarises one submission phase.
type SubmitResult struct {
	Submitted []Submission
	Failures  []BatchFailure

	// NotReady lists conditions with no token flagged redeemable.
	NotReady []string

	// Unsettled lists conditions whose market has no price at exactly 1.0.
	Unsettled []string

	// DryRun lists conditions that would have been submitted.
	DryRun []string

	// Dropped holds adapter tokens with an outcome index other than 0 or 1.
	Dropped []types.Position
}

// OrchestratorConfig holds orchestrator configuration.
type OrchestratorConfig struct {
	// Markets must bypass any cache: the price gate needs a fresh snapshot.
	Markets MarketSource
	Encoder *chain.Encoder
	Relayer Relayer
	DryRun  bool
	Logger  *zap.Logger
}

// Orchestrator submits one redemption transaction per condition batch.
type Orchestrator struct {
	markets MarketSource
	encoder *chain.Encoder
	relayer Relayer
	dryRun  bool
	logger  *zap.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg *OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		markets: cfg.Markets,
		encoder: cfg.Encoder,
		relayer: cfg.Relayer,
		dryRun:  cfg.DryRun,
		logger:  cfg.Logger,
	}
}

// Redeem runs the first submission phase. A batch is submitted only when
// one of its tokens is flagged redeemable and a fresh market snapshot shows
// an outcome priced at exactly 1.0. Every accepted token gets a verification
// task in group. Failures are scoped to their batch.
func (o *Orchestrator) Redeem(ctx context.Context, batches []*types.RedemptionBatch, group *VerificationGroup) *SubmitResult {
	result := &SubmitResult{}

	for _, batch := range batches {
		if ctx.Err() != nil {
			result.Failures = append(result.Failures, BatchFailure{ConditionID: batch.ConditionID, Err: ctx.Err()})
			continue
		}

		if !batch.Redeemable {
			result.NotReady = append(result.NotReady, batch.ConditionID)
			BatchesHeldTotal.WithLabelValues("not-redeemable").Inc()
			o.logger.Debug("batch-not-redeemable",
				zap.String("condition-id", batch.ConditionID),
				zap.Int("tokens", len(batch.Tokens)))
			continue
		}

		market, err := o.markets.FetchMarket(ctx, batch.ConditionID, batch.Slug)
		if err != nil {
			o.fail(result, batch, phaseFirst, fmt.Errorf("fetch market: %w", err))
			continue
		}

		if !market.HasWinningPrice() {
			result.Unsettled = append(result.Unsettled, batch.ConditionID)
			BatchesHeldTotal.WithLabelValues("not-settled-on-chain").Inc()
			o.logger.Info("batch-not-settled-on-chain",
				zap.String("condition-id", batch.ConditionID),
				zap.Strings("outcome-prices", market.OutcomePrices))
			continue
		}

		o.submit(ctx, batch, market.ParentCollectionID, phaseFirst, group, result)
	}

	return result
}

// Retry submits batches without the redeemable and price gates. The market
// is still fetched for its parent collection id; a failed fetch falls back
// to the zero collection.
func (o *Orchestrator) Retry(ctx context.Context, batches []*types.RedemptionBatch, group *VerificationGroup) *SubmitResult {
	result := &SubmitResult{}

	for _, batch := range batches {
		if ctx.Err() != nil {
			result.Failures = append(result.Failures, BatchFailure{ConditionID: batch.ConditionID, Err: ctx.Err()})
			continue
		}

		parent := ""
		market, err := o.markets.FetchMarket(ctx, batch.ConditionID, batch.Slug)
		if err != nil {
			o.logger.Warn("retry-market-lookup-failed",
				zap.String("condition-id", batch.ConditionID),
				zap.Error(err))
		} else {
			parent = market.ParentCollectionID
		}

		o.submit(ctx, batch, parent, phaseRetry, group, result)
	}

	return result
}

func (o *Orchestrator) submit(
	ctx context.Context,
	batch *types.RedemptionBatch,
	parent string,
	phase string,
	group *VerificationGroup,
	result *SubmitResult,
) {
	call, dropped, err := o.encoder.BuildCall(batch, parent)
	for _, tok := range dropped {
		o.logger.Warn("adapter-token-dropped",
			zap.String("condition-id", batch.ConditionID),
			zap.String("token-id", tok.TokenID),
			zap.Int("outcome-index", tok.OutcomeIndex))
	}
	result.Dropped = append(result.Dropped, dropped...)
	if err != nil {
		o.fail(result, batch, phase, fmt.Errorf("encode %s redeem: %w", batch.Path, err))
		return
	}

	if o.dryRun {
		result.DryRun = append(result.DryRun, batch.ConditionID)
		o.logger.Info("dry-run-redemption",
			zap.String("phase", phase),
			zap.String("condition-id", batch.ConditionID),
			zap.String("path", string(batch.Path)),
			zap.String("to", call.To.Hex()),
			zap.String("data", hexutil.Encode(call.Data)),
			zap.Int("tokens", len(batch.Tokens)))
		return
	}

	txHash, err := o.relayer.Execute(ctx, []relayer.Call{call})
	if err != nil {
		o.fail(result, batch, phase, fmt.Errorf("submit %s redeem: %w", batch.Path, err))
		return
	}

	BatchesSubmittedTotal.WithLabelValues(string(batch.Path), phase).Inc()

	o.logger.Info("redemption-submitted",
		zap.String("phase", phase),
		zap.String("condition-id", batch.ConditionID),
		zap.String("path", string(batch.Path)),
		zap.String("tx-hash", txHash),
		zap.Int("tokens", len(batch.Tokens)))

	result.Submitted = append(result.Submitted, Submission{
		ConditionID: batch.ConditionID,
		TxHash:      txHash,
		Path:        batch.Path,
		Tokens:      batch.Tokens,
	})

	if group == nil {
		return
	}
	for _, tok := range batch.Tokens {
		group.Spawn(txHash, tok, batch.Path)
	}
}

func (o *Orchestrator) fail(result *SubmitResult, batch *types.RedemptionBatch, phase string, err error) {
	BatchFailuresTotal.WithLabelValues(phase).Inc()
	o.logger.Error("redemption-batch-failed",
		zap.String("phase", phase),
		zap.String("condition-id", batch.ConditionID),
		zap.String("path", string(batch.Path)),
		zap.Error(err))
	result.Failures = append(result.Failures, BatchFailure{ConditionID: batch.ConditionID, Err: err})
}
