package redemption

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mselser95/polymarket-redeemer/internal/settlement"
	"github.com/mselser95/polymarket-redeemer/internal/storage"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

// DefaultMarketFetchConcurrency bounds concurrent market lookups.
const DefaultMarketFetchConcurrency = 5

// Classification is the per-cycle verdict over a wallet's positions.
type Classification struct {
	// ToSettle holds the distinct tokens to attempt: winners plus every
	// token whose verdict is deferred. Order follows first appearance.
	ToSettle []types.Position

	// NewlySkipped holds the losing tokens written off this cycle.
	NewlySkipped []types.TokenState

	// WinningOutcomes maps condition id to the resolved winner.
	WinningOutcomes map[string]int

	Winners      int
	Unsettled    int
	Undetermined int
	Unknown      int
	Unindexed    int
	PriorSkipped int
}

// ClassifierConfig holds classifier configuration.
type ClassifierConfig struct {
	Markets     MarketSource
	Resolver    *settlement.Resolver
	Storage     storage.Storage
	Concurrency int
	Logger      *zap.Logger
}

// Classifier sorts positions into winners, losers and deferred tokens.
type Classifier struct {
	markets     MarketSource
	resolver    *settlement.Resolver
	storage     storage.Storage
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

// NewClassifier creates a classifier.
func NewClassifier(cfg *ClassifierConfig) *Classifier {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultMarketFetchConcurrency
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = settlement.New()
	}
	return &Classifier{
		markets:     cfg.Markets,
		resolver:    resolver,
		storage:     cfg.Storage,
		concurrency: concurrency,
		now:         time.Now,
		logger:      cfg.Logger,
	}
}

// Classify evaluates positions for walletID. Tokens in priorSkipped are
// dropped without a lookup. Losers are persisted as skipped; a failed write
// is logged and does not abort classification.
func (c *Classifier) Classify(
	ctx context.Context,
	walletID string,
	positions []types.Position,
	priorSkipped map[string]struct{},
) (*Classification, error) {
	result := &Classification{WinningOutcomes: make(map[string]int)}

	tokens := distinctTokens(positions)
	candidates := make([]types.Position, 0, len(tokens))
	for _, tok := range tokens {
		if _, skipped := priorSkipped[tok.TokenID]; skipped {
			result.PriorSkipped++
			continue
		}
		candidates = append(candidates, tok)
	}

	markets, err := c.fetchMarkets(ctx, candidates)
	if err != nil {
		return nil, err
	}

	resolutions := make(map[string]settlement.Resolution, len(markets))
	for conditionID, market := range markets {
		resolutions[conditionID] = c.resolver.Resolve(market)
	}

	checkedAt := c.now().UTC()

	for _, tok := range candidates {
		market, found := markets[tok.ConditionID]
		if !found {
			result.Unknown++
			result.ToSettle = append(result.ToSettle, tok)
			TokensClassifiedTotal.WithLabelValues("unknown-market").Inc()
			continue
		}

		res := resolutions[tok.ConditionID]

		switch {
		case !res.Settled:
			result.Unsettled++
			result.ToSettle = append(result.ToSettle, tok)
			TokensClassifiedTotal.WithLabelValues("not-settled").Inc()
			c.logger.Debug("market-not-settled",
				zap.String("token-id", tok.TokenID),
				zap.String("condition-id", tok.ConditionID))

		case !res.HasWinner:
			result.Undetermined++
			result.ToSettle = append(result.ToSettle, tok)
			TokensClassifiedTotal.WithLabelValues("winner-undetermined").Inc()
			c.logger.Info("winner-undetermined",
				zap.String("token-id", tok.TokenID),
				zap.String("condition-id", tok.ConditionID),
				zap.String("market", marketTitle(tok, market)))

		case tok.OutcomeIndex < 0:
			result.Unindexed++
			result.WinningOutcomes[tok.ConditionID] = res.WinningOutcome
			result.ToSettle = append(result.ToSettle, tok)
			TokensClassifiedTotal.WithLabelValues("outcome-unknown").Inc()
			c.logger.Warn("token-outcome-index-unknown",
				zap.String("token-id", tok.TokenID),
				zap.String("condition-id", tok.ConditionID))

		case tok.OutcomeIndex != res.WinningOutcome:
			winning := res.WinningOutcome
			result.WinningOutcomes[tok.ConditionID] = winning
			result.NewlySkipped = append(result.NewlySkipped, types.TokenState{
				WalletID:            walletID,
				TokenID:             tok.TokenID,
				ConditionID:         tok.ConditionID,
				OutcomeIndex:        tok.OutcomeIndex,
				WinningOutcomeIndex: &winning,
				MarketTitle:         marketTitle(tok, market),
				PredictionResult:    types.PredictionFailed,
				RedeemStatus:        types.RedeemSkipped,
				CheckedAt:           checkedAt,
			})
			TokensClassifiedTotal.WithLabelValues("lost").Inc()

		default:
			result.Winners++
			result.WinningOutcomes[tok.ConditionID] = res.WinningOutcome
			result.ToSettle = append(result.ToSettle, tok)
			TokensClassifiedTotal.WithLabelValues("won").Inc()
		}
	}

	c.persistSkipped(ctx, result.NewlySkipped)

	c.logger.Info("positions-classified",
		zap.Int("tokens", len(tokens)),
		zap.Int("prior-skipped", result.PriorSkipped),
		zap.Int("to-settle", len(result.ToSettle)),
		zap.Int("winners", result.Winners),
		zap.Int("newly-skipped", len(result.NewlySkipped)),
		zap.Int("unsettled", result.Unsettled),
		zap.Int("undetermined", result.Undetermined),
		zap.Int("unknown", result.Unknown))

	return result, nil
}

// fetchMarkets looks up each distinct condition once. A failed lookup leaves
// the condition out of the returned map.
func (c *Classifier) fetchMarkets(ctx context.Context, tokens []types.Position) (map[string]*types.Market, error) {
	slugs := make(map[string]string)
	for _, tok := range tokens {
		if tok.ConditionID == "" {
			continue
		}
		if _, ok := slugs[tok.ConditionID]; !ok || slugs[tok.ConditionID] == "" {
			slugs[tok.ConditionID] = tok.Slug
		}
	}

	var mu sync.Mutex
	markets := make(map[string]*types.Market, len(slugs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for conditionID, slug := range slugs {
		g.Go(func() error {
			market, err := c.markets.FetchMarket(gctx, conditionID, slug)
			if err != nil {
				c.logger.Warn("market-lookup-failed",
					zap.String("condition-id", conditionID),
					zap.String("slug", slug),
					zap.Error(err))
				return nil
			}

			mu.Lock()
			markets[conditionID] = market
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}

	return markets, nil
}

func (c *Classifier) persistSkipped(ctx context.Context, states []types.TokenState) {
	if c.storage == nil {
		return
	}
	for i := range states {
		err := c.storage.UpsertTokenState(ctx, &states[i])
		if err != nil {
			SkipWriteErrorsTotal.Inc()
			c.logger.Error("skipped-token-write-failed",
				zap.String("token-id", states[i].TokenID),
				zap.Error(err))
		}
	}
}

// distinctTokens keys positions by token id. Positions without a token or
// condition id are dropped. The last occurrence wins and order follows first
// appearance.
func distinctTokens(positions []types.Position) []types.Position {
	index := make(map[string]int, len(positions))
	out := make([]types.Position, 0, len(positions))
	for _, p := range positions {
		if strings.TrimSpace(p.TokenID) == "" || strings.TrimSpace(p.ConditionID) == "" {
			continue
		}
		if i, ok := index[p.TokenID]; ok {
			out[i] = p
			continue
		}
		index[p.TokenID] = len(out)
		out = append(out, p)
	}
	return out
}

func marketTitle(tok types.Position, market *types.Market) string {
	if market != nil && market.Question != "" {
		return market.Question
	}
	return tok.Title
}
