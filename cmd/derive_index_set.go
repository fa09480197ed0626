package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/internal/chain"
)

//nolint:gochecknoglobals // Cobra boilerplate
var deriveIndexSetCmd = &cobra.Command{
	Use:   "derive-index-set",
	Short: "Find the index set behind an outcome token id",
	Long: `Searches the index sets of a condition for the one whose ERC-1155 position id
equals the given token id. Useful to debug adapter and CTF redemptions offline.

Example:
  redeemer derive-index-set --token 1234... --condition 0xabc...`,
	RunE: runDeriveIndexSet,
}

var (
	deriveTokenID     string
	deriveConditionID string
	deriveParent      string
	deriveCollateral  string
	deriveMaxIndex    int
)

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(deriveIndexSetCmd)
	deriveIndexSetCmd.Flags().StringVar(&deriveTokenID, "token", "", "Outcome token id (decimal)")
	deriveIndexSetCmd.Flags().StringVar(&deriveConditionID, "condition", "", "Condition id")
	deriveIndexSetCmd.Flags().StringVar(&deriveParent, "parent", "",
		"Parent collection id (default: zero collection)")
	deriveIndexSetCmd.Flags().StringVar(&deriveCollateral, "collateral",
		"0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", "Collateral token address")
	deriveIndexSetCmd.Flags().IntVar(&deriveMaxIndex, "max-index", chain.DefaultMaxIndex,
		"Largest index set to try")
}

func runDeriveIndexSet(cmd *cobra.Command, args []string) error {
	if deriveTokenID == "" || deriveConditionID == "" {
		return fmt.Errorf("--token and --condition are required")
	}
	if !common.IsHexAddress(deriveCollateral) {
		return fmt.Errorf("invalid collateral address %q", deriveCollateral)
	}

	deriver := chain.NewDeriver(common.HexToAddress(deriveCollateral), deriveMaxIndex, nil, zap.NewNop())

	idx, ok := deriver.DeriveIndexSet(deriveTokenID, deriveConditionID, deriveParent)
	if !ok {
		return fmt.Errorf("no index set in 1..%d matches token %s", deriveMaxIndex, deriveTokenID)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Index set: %d\n", idx)
	return nil
}
