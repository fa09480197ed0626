package cmd

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mselser95/polymarket-redeemer/internal/app"
	"github.com/mselser95/polymarket-redeemer/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Redeem settled positions for every configured wallet",
	Long: `Runs redemption cycles for every complete WALLET_<n> pair in the environment.

Each cycle:
1. Loads the wallet's positions from the Data API
2. Resolves each market and records losing tokens as skipped
3. Submits one redeem transaction per settled condition
4. Verifies receipts and retries still-held tokens on the alternate path

Requires:
- WALLET_<n>_PRIVATE_KEY and WALLET_<n>_PROXY_ADDRESS in .env
- BUILDER_POLY_API_KEY, BUILDER_POLY_API_SECRET, BUILDER_POLY_API_PASSPHRASE
  (not needed with --dry-run)

Example:
  # Preview what would be redeemed
  redeemer run --once --dry-run

  # Redeem a single wallet once
  redeemer run --once --wallet 2

  # Keep scanning every 30 minutes
  redeemer run --interval 30m`,
	RunE: runRedeemer,
}

var (
	runOnce     bool
	runDryRun   bool
	runWalletID string
	runInterval time.Duration
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runOnce, "once", false,
		"Run a single cycle over all wallets and exit")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false,
		"Classify and encode redemptions without submitting transactions")
	runCmd.Flags().StringVar(&runWalletID, "wallet", "",
		"Only process the wallet with this id (optional)")
	runCmd.Flags().DurationVar(&runInterval, "interval", 0,
		"Scan interval between cycles (default: SCAN_INTERVAL)")
}

func runRedeemer(cmd *cobra.Command, args []string) error {
	// Load .env if present
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

	opts := &app.Options{
		Once:     runOnce,
		DryRun:   runDryRun,
		WalletID: runWalletID,
		Interval: runInterval,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
