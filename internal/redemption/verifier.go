package redemption

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/internal/chain"
	"github.com/mselser95/polymarket-redeemer/internal/storage"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

// VerifyOutcome is the receipt verdict for one submitted token.
type VerifyOutcome string

const (
	OutcomeConfirmed VerifyOutcome = "confirmed"
	OutcomeReverted  VerifyOutcome = "reverted"
	OutcomePending   VerifyOutcome = "pending"
)

const (
	DefaultReceiptTimeout      = 30 * time.Second
	DefaultReceiptPollInterval = 2 * time.Second
)

// Verifier polls receipts until a verdict or the timeout.
type Verifier struct {
	receipts ReceiptSource
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

// NewVerifier creates a verifier. Non-positive durations fall back to the defaults.
func NewVerifier(receipts ReceiptSource, timeout, interval time.Duration, logger *zap.Logger) *Verifier {
	if timeout <= 0 {
		timeout = DefaultReceiptTimeout
	}
	if interval <= 0 {
		interval = DefaultReceiptPollInterval
	}
	return &Verifier{
		receipts: receipts,
		timeout:  timeout,
		interval: interval,
		logger:   logger,
	}
}

// Verify waits for the receipt of txHash. A receipt with status 1 is
// confirmed and any other status reverted. No receipt before the timeout,
// or an RPC error other than not-found, yields pending.
func (v *Verifier) Verify(ctx context.Context, txHash string, token types.Position) VerifyOutcome {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		receipt, err := v.receipts.Receipt(ctx, txHash)
		switch {
		case err == nil:
			if receipt.Succeeded() {
				return OutcomeConfirmed
			}
			v.logger.Warn("redemption-reverted",
				zap.String("tx-hash", txHash),
				zap.String("token-id", token.TokenID),
				zap.Uint64("status", receipt.Status))
			return OutcomeReverted

		case errors.Is(err, chain.ErrReceiptNotFound):
			// not mined yet

		default:
			if ctx.Err() == nil {
				v.logger.Warn("receipt-lookup-failed",
					zap.String("tx-hash", txHash),
					zap.String("token-id", token.TokenID),
					zap.Error(err))
			}
			return OutcomePending
		}

		select {
		case <-ctx.Done():
			return OutcomePending
		case <-ticker.C:
		}
	}
}

// VerificationResult is the outcome of one verification task.
type VerificationResult struct {
	TxHash  string
	Token   types.Position
	Path    types.RedemptionPath
	Outcome VerifyOutcome
}

// VerificationGroupConfig holds verification group configuration.
type VerificationGroupConfig struct {
	Verifier *Verifier
	WalletID string

	// Storage receives a success/failed row per decided token when
	// RecordRedemptions is set.
	Storage           storage.Storage
	RecordRedemptions bool

	// WinningOutcomes supplies the winner recorded with each row.
	WinningOutcomes map[string]int

	Logger *zap.Logger
}

// VerificationGroup runs one verification goroutine per submitted token.
// Wait is the barrier between submission and reconciliation.
type VerificationGroup struct {
	cfg     VerificationGroupConfig
	ctx     context.Context
	wg      sync.WaitGroup
	mu      sync.Mutex
	results []VerificationResult
	now     func() time.Time
}

// NewVerificationGroup creates a group whose tasks run under ctx.
func NewVerificationGroup(ctx context.Context, cfg *VerificationGroupConfig) *VerificationGroup {
	return &VerificationGroup{
		cfg: *cfg,
		ctx: ctx,
		now: time.Now,
	}
}

// Spawn starts verifying token against txHash.
func (g *VerificationGroup) Spawn(txHash string, token types.Position, path types.RedemptionPath) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		outcome := g.cfg.Verifier.Verify(g.ctx, txHash, token)
		VerificationsTotal.WithLabelValues(string(outcome)).Inc()

		g.record(txHash, token, outcome)

		g.mu.Lock()
		g.results = append(g.results, VerificationResult{
			TxHash:  txHash,
			Token:   token,
			Path:    path,
			Outcome: outcome,
		})
		g.mu.Unlock()
	}()
}

// Wait blocks until every spawned task finished and returns their results.
func (g *VerificationGroup) Wait() []VerificationResult {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]VerificationResult, len(g.results))
	copy(out, g.results)
	return out
}

func (g *VerificationGroup) record(txHash string, token types.Position, outcome VerifyOutcome) {
	if !g.cfg.RecordRedemptions || g.cfg.Storage == nil || outcome == OutcomePending {
		return
	}

	now := g.now().UTC()
	state := &types.TokenState{
		WalletID:         g.cfg.WalletID,
		TokenID:          token.TokenID,
		ConditionID:      token.ConditionID,
		OutcomeIndex:     token.OutcomeIndex,
		MarketTitle:      token.Title,
		PredictionResult: types.PredictionSuccess,
		RedeemStatus:     types.RedeemFailed,
		RedeemTxHash:     txHash,
		CheckedAt:        now,
	}
	if winning, ok := g.cfg.WinningOutcomes[token.ConditionID]; ok {
		state.WinningOutcomeIndex = &winning
	}
	if outcome == OutcomeConfirmed {
		state.RedeemStatus = types.RedeemSuccess
		state.RedeemedAt = &now
	}

	err := g.cfg.Storage.UpsertTokenState(g.ctx, state)
	if err != nil {
		g.cfg.Logger.Error("redemption-record-failed",
			zap.String("token-id", token.TokenID),
			zap.String("tx-hash", txHash),
			zap.Error(err))
	}
}
