package redemption

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/internal/chain"
	"github.com/mselser95/polymarket-redeemer/internal/settlement"
	"github.com/mselser95/polymarket-redeemer/internal/storage"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

// Wallet identifies the wallet a cycle runs for.
type Wallet struct {
	ID      string
	Address string // proxy address holding the positions
}

// CycleReport summarises one wallet cycle.
type CycleReport struct {
	CycleID  string
	WalletID string
	Address  string

	Positions      int
	Classification *Classification
	First          *SubmitResult
	Verifications  []VerificationResult
	Failover       *FailoverResult

	StartedAt time.Time
	Duration  time.Duration
}

// Confirmed counts confirmed verifications across both phases.
func (r *CycleReport) Confirmed() int {
	n := 0
	for _, v := range r.allVerifications() {
		if v.Outcome == OutcomeConfirmed {
			n++
		}
	}
	return n
}

// ManualReview returns tokens still held after the retry phase.
func (r *CycleReport) ManualReview() []types.Position {
	if r.Failover == nil {
		return nil
	}
	return r.Failover.ManualReview
}

// Unreconciled returns tokens whose reconciliation fetch failed.
func (r *CycleReport) Unreconciled() []types.Position {
	if r.Failover == nil {
		return nil
	}
	return r.Failover.Unreconciled
}

func (r *CycleReport) allVerifications() []VerificationResult {
	out := append([]VerificationResult{}, r.Verifications...)
	if r.Failover != nil {
		out = append(out, r.Failover.Verifications...)
	}
	return out
}

// EngineConfig holds the collaborators shared by every wallet cycle.
type EngineConfig struct {
	Positions PositionSource

	// ClassifyMarkets may be cached; SubmitMarkets must not be.
	ClassifyMarkets MarketSource
	SubmitMarkets   MarketSource

	Receipts ReceiptSource
	Encoder  *chain.Encoder
	Storage  storage.Storage
	Resolver *settlement.Resolver

	MarketFetchConcurrency int
	ReceiptTimeout         time.Duration
	ReceiptPollInterval    time.Duration
	SettleDelay            time.Duration
	RecordRedemptions      bool
	DryRun                 bool

	Logger *zap.Logger
}

// Engine runs redemption cycles.
type Engine struct {
	cfg        EngineConfig
	classifier *Classifier
	verifier   *Verifier
	logger     *zap.Logger
}

// NewEngine creates an engine.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	if cfg.Positions == nil {
		return nil, fmt.Errorf("position source is required")
	}
	if cfg.ClassifyMarkets == nil || cfg.SubmitMarkets == nil {
		return nil, fmt.Errorf("market sources are required")
	}
	if cfg.Receipts == nil {
		return nil, fmt.Errorf("receipt source is required")
	}
	if cfg.Encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}

	return &Engine{
		cfg: *cfg,
		classifier: NewClassifier(&ClassifierConfig{
			Markets:     cfg.ClassifyMarkets,
			Resolver:    cfg.Resolver,
			Storage:     cfg.Storage,
			Concurrency: cfg.MarketFetchConcurrency,
			Logger:      cfg.Logger,
		}),
		verifier: NewVerifier(cfg.Receipts, cfg.ReceiptTimeout, cfg.ReceiptPollInterval, cfg.Logger),
		logger:   cfg.Logger,
	}, nil
}

// RunWallet runs one full cycle for wallet, submitting through rel.
// Batch failures are reported in the CycleReport; an error means the cycle
// could not classify at all.
func (e *Engine) RunWallet(ctx context.Context, wallet Wallet, rel Relayer) (*CycleReport, error) {
	report := &CycleReport{
		CycleID:   uuid.NewString(),
		WalletID:  wallet.ID,
		Address:   wallet.Address,
		StartedAt: time.Now(),
	}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
		CycleDurationSeconds.Observe(report.Duration.Seconds())
	}()

	logger := e.logger.With(
		zap.String("wallet", wallet.ID),
		zap.String("cycle-id", report.CycleID))

	logger.Info("wallet-cycle-starting", zap.String("address", wallet.Address))

	prior, err := e.cfg.Storage.SkippedTokens(ctx, wallet.ID)
	if err != nil {
		logger.Warn("skipped-tokens-unavailable", zap.Error(err))
		prior = map[string]struct{}{}
	}

	positions, err := e.cfg.Positions.FetchPositions(ctx, wallet.Address)
	if err != nil {
		CyclesTotal.WithLabelValues("error").Inc()
		return report, fmt.Errorf("fetch positions: %w", err)
	}
	report.Positions = len(positions)

	classification, err := e.classifier.Classify(ctx, wallet.ID, positions, prior)
	if err != nil {
		CyclesTotal.WithLabelValues("error").Inc()
		return report, fmt.Errorf("classify positions: %w", err)
	}
	report.Classification = classification

	if len(classification.ToSettle) == 0 {
		logger.Info("nothing-to-redeem")
		CyclesTotal.WithLabelValues("idle").Inc()
		return report, nil
	}

	orchestrator := NewOrchestrator(&OrchestratorConfig{
		Markets: e.cfg.SubmitMarkets,
		Encoder: e.cfg.Encoder,
		Relayer: rel,
		DryRun:  e.cfg.DryRun,
		Logger:  logger,
	})

	batches := types.GroupByCondition(classification.ToSettle, types.PathCTF)

	group := e.newGroup(ctx, wallet.ID, classification, logger)
	report.First = orchestrator.Redeem(ctx, batches, group)
	report.Verifications = group.Wait()

	if len(report.First.Submitted) > 0 {
		failover := NewFailover(&FailoverConfig{
			Positions:    e.cfg.Positions,
			Orchestrator: orchestrator,
			SettleDelay:  e.cfg.SettleDelay,
			Logger:       logger,
		})

		retryGroup := e.newGroup(ctx, wallet.ID, classification, logger)
		report.Failover, err = failover.Run(ctx, wallet.Address, report.First.Submitted, retryGroup)
		if err != nil {
			logger.Warn("reconciliation-incomplete",
				zap.Int("unreconciled", len(report.Unreconciled())),
				zap.Error(err))
		}
	}

	CyclesTotal.WithLabelValues("ok").Inc()

	logger.Info("wallet-cycle-complete",
		zap.Int("positions", report.Positions),
		zap.Int("batches", len(batches)),
		zap.Int("submitted", len(report.First.Submitted)),
		zap.Int("failed", len(report.First.Failures)),
		zap.Int("not-ready", len(report.First.NotReady)),
		zap.Int("unsettled", len(report.First.Unsettled)),
		zap.Int("confirmed", report.Confirmed()),
		zap.Int("manual-review", len(report.ManualReview())),
		zap.Int("unreconciled", len(report.Unreconciled())))

	return report, nil
}

func (e *Engine) newGroup(ctx context.Context, walletID string, c *Classification, logger *zap.Logger) *VerificationGroup {
	return NewVerificationGroup(ctx, &VerificationGroupConfig{
		Verifier:          e.verifier,
		WalletID:          walletID,
		Storage:           e.cfg.Storage,
		RecordRedemptions: e.cfg.RecordRedemptions,
		WinningOutcomes:   c.WinningOutcomes,
		Logger:            logger,
	})
}
