package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "redeemer",
	Short: "Polymarket position redeemer",
	Long: `Polymarket position redeemer that scans configured proxy wallets for
positions in settled markets, writes off losing tokens and redeems winning
ones through the builder relayer.

Each submission is verified against its on-chain receipt. Tokens still held
after the first attempt are retried once on the alternate redemption path.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
