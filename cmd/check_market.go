package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/internal/markets"
	"github.com/mselser95/polymarket-redeemer/internal/settlement"
	"github.com/mselser95/polymarket-redeemer/pkg/config"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var checkMarketCmd = &cobra.Command{
	Use:   "check-market",
	Short: "Show the settlement verdict for one market",
	Long: `Fetches a market from the Gamma API and prints whether it counts as settled,
which outcome won and whether an outcome already trades at exactly 1.0.

Example:
  redeemer check-market --condition 0xabc...
  redeemer check-market --slug will-it-rain-tomorrow`,
	RunE: runCheckMarket,
}

var (
	checkConditionID string
	checkSlug        string
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(checkMarketCmd)
	checkMarketCmd.Flags().StringVar(&checkConditionID, "condition", "", "Market condition id")
	checkMarketCmd.Flags().StringVar(&checkSlug, "slug", "", "Market slug (tried first when set)")
}

func runCheckMarket(cmd *cobra.Command, args []string) error {
	if checkConditionID == "" && checkSlug == "" {
		return fmt.Errorf("--condition or --slug is required")
	}

	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLoggerWithLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	client := markets.NewClient(cfg.GammaAPIURL, logger)
	return checkMarket(ctx, client, checkConditionID, checkSlug, cmd.OutOrStdout(), logger)
}

// checkMarket fetches one market and prints its verdict. A slug alone is
// enough; the condition id is then taken from the slug result.
func checkMarket(
	ctx context.Context,
	fetcher markets.Fetcher,
	conditionID, slug string,
	w io.Writer,
	logger *zap.Logger,
) error {
	market, err := fetcher.FetchMarket(ctx, conditionID, slug)
	if err != nil {
		logger.Error("market-lookup-failed",
			zap.String("condition-id", conditionID),
			zap.String("slug", slug),
			zap.Error(err))
		return fmt.Errorf("fetch market: %w", err)
	}

	printMarketVerdict(w, market, settlement.New().Resolve(market))
	return nil
}

func printMarketVerdict(w io.Writer, market *types.Market, res settlement.Resolution) {
	fmt.Fprintf(w, "Market:        %s\n", market.Question)
	fmt.Fprintf(w, "Condition:     %s\n", market.ConditionID)
	fmt.Fprintf(w, "Slug:          %s\n", market.Slug)
	fmt.Fprintf(w, "Closed:        %t\n", market.Closed)
	fmt.Fprintf(w, "End date:      %s\n", market.EndDate)
	fmt.Fprintf(w, "Prices:        %v\n", market.OutcomePrices)
	fmt.Fprintf(w, "Settled:       %t\n", res.Settled)

	if res.HasWinner {
		fmt.Fprintf(w, "Winner:        %d\n", res.WinningOutcome)
	} else {
		fmt.Fprintf(w, "Winner:        undetermined\n")
	}

	fmt.Fprintf(w, "Redeemable:    %t\n", market.HasWinningPrice())
}
