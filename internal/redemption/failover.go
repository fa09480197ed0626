package redemption

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

// DefaultSettleDelay is how long the position API is given to catch up
// after a submission.
const DefaultSettleDelay = 15 * time.Second

// FailoverResult is the outcome of the retry and reconciliation phases.
type FailoverResult struct {
	Retry         *SubmitResult
	Verifications []VerificationResult

	// ManualReview holds attempted tokens still held after the retry.
	ManualReview []types.Position

	// Unreconciled holds attempted tokens whose state could not be checked
	// because the position fetch failed. A later cycle picks them up.
	Unreconciled []types.Position
}

// FailoverConfig holds failover configuration.
type FailoverConfig struct {
	Positions    PositionSource
	Orchestrator *Orchestrator
	SettleDelay  time.Duration
	Logger       *zap.Logger
}

// Failover retries still-held tokens once on the alternate path and
// reports what remains.
type Failover struct {
	positions    PositionSource
	orchestrator *Orchestrator
	settleDelay  time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	logger       *zap.Logger
}

// NewFailover creates a failover controller.
func NewFailover(cfg *FailoverConfig) *Failover {
	delay := cfg.SettleDelay
	if delay < 0 {
		delay = DefaultSettleDelay
	}
	return &Failover{
		positions:    cfg.Positions,
		orchestrator: cfg.Orchestrator,
		settleDelay:  delay,
		sleep:        sleepContext,
		logger:       cfg.Logger,
	}
}

// Run reconciles attempted submissions for the wallet at address. Tokens
// still present after SettleDelay are regrouped per condition on the
// flipped path and submitted once more with verification tasks in group.
// After another SettleDelay the still-present ones are reported for manual
// review.
func (f *Failover) Run(
	ctx context.Context,
	address string,
	attempted []Submission,
	group *VerificationGroup,
) (*FailoverResult, error) {
	result := &FailoverResult{}

	tokens := attemptedTokens(attempted)
	if len(tokens) == 0 {
		return result, nil
	}

	remaining, err := f.stillHeld(ctx, address, tokens)
	if err != nil {
		result.Unreconciled = tokens
		return result, err
	}

	if len(remaining) == 0 {
		f.logger.Info("all-redemptions-reconciled", zap.Int("tokens", len(tokens)))
		return result, nil
	}

	batches := retryBatches(attempted, remaining)
	f.logger.Info("retrying-on-alternate-path",
		zap.Int("tokens", len(remaining)),
		zap.Int("batches", len(batches)))

	result.Retry = f.orchestrator.Retry(ctx, batches, group)
	if group != nil {
		result.Verifications = group.Wait()
	}

	final, err := f.stillHeld(ctx, address, remaining)
	if err != nil {
		result.Unreconciled = remaining
		return result, err
	}

	result.ManualReview = final
	if len(final) > 0 {
		ManualReviewTotal.Add(float64(len(final)))
		for _, tok := range final {
			f.logger.Warn("token-needs-manual-review",
				zap.String("token-id", tok.TokenID),
				zap.String("condition-id", tok.ConditionID),
				zap.String("title", tok.Title))
		}
	}

	return result, nil
}

// stillHeld waits SettleDelay, refetches positions and returns the live
// entries of the want tokens that are still listed. Fields missing from the
// live entry are taken from want.
func (f *Failover) stillHeld(ctx context.Context, address string, want []types.Position) ([]types.Position, error) {
	err := f.sleep(ctx, f.settleDelay)
	if err != nil {
		return nil, fmt.Errorf("settle delay: %w", err)
	}

	live, err := f.positions.FetchPositions(ctx, address)
	if err != nil {
		f.logger.Warn("reconciliation-fetch-failed",
			zap.Int("tokens", len(want)),
			zap.Error(err))
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	held := make(map[string]types.Position, len(live))
	for _, p := range live {
		held[p.TokenID] = p
	}

	out := make([]types.Position, 0)
	for _, tok := range want {
		p, ok := held[tok.TokenID]
		if !ok {
			continue
		}
		out = append(out, mergeLive(p, tok))
	}
	return out, nil
}

func mergeLive(live, attempted types.Position) types.Position {
	if live.ConditionID == "" {
		live.ConditionID = attempted.ConditionID
	}
	if live.OutcomeIndex < 0 {
		live.OutcomeIndex = attempted.OutcomeIndex
	}
	if live.Title == "" {
		live.Title = attempted.Title
	}
	if live.Slug == "" {
		live.Slug = attempted.Slug
	}
	return live
}

func attemptedTokens(attempted []Submission) []types.Position {
	seen := make(map[string]struct{})
	out := make([]types.Position, 0)
	for _, sub := range attempted {
		for _, tok := range sub.Tokens {
			if _, ok := seen[tok.TokenID]; ok {
				continue
			}
			seen[tok.TokenID] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}

// retryBatches groups remaining tokens by condition, each on the opposite
// path of its first submission.
func retryBatches(attempted []Submission, remaining []types.Position) []*types.RedemptionBatch {
	paths := make(map[string]types.RedemptionPath, len(attempted))
	for _, sub := range attempted {
		paths[sub.ConditionID] = sub.Path
	}

	index := make(map[string]*types.RedemptionBatch)
	batches := make([]*types.RedemptionBatch, 0)
	for _, tok := range remaining {
		batch, ok := index[tok.ConditionID]
		if !ok {
			path, known := paths[tok.ConditionID]
			if !known {
				path = types.PathCTF
			}
			batch = &types.RedemptionBatch{
				ConditionID: tok.ConditionID,
				Path:        path.Flip(),
				Title:       tok.Title,
				Slug:        tok.Slug,
			}
			index[tok.ConditionID] = batch
			batches = append(batches, batch)
		}
		batch.Add(tok)
	}
	return batches
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
