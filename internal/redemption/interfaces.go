// Package redemption turns a wallet's positions into verified on-chain
// redemptions: classify, submit, verify, retry on the alternate path and
// reconcile against the live position list.
package redemption

import (
	"context"

	"github.com/mselser95/polymarket-redeemer/internal/chain"
	"github.com/mselser95/polymarket-redeemer/internal/relayer"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

// PositionSource lists the live positions of a wallet address.
type PositionSource interface {
	FetchPositions(ctx context.Context, user string) ([]types.Position, error)
}

// MarketSource looks up a market snapshot by condition id, trying slug first.
type MarketSource interface {
	FetchMarket(ctx context.Context, conditionID, slug string) (*types.Market, error)
}

// Relayer submits calls on behalf of a wallet and returns the tx hash.
type Relayer interface {
	Execute(ctx context.Context, calls []relayer.Call) (string, error)
}

// ReceiptSource reads transaction receipts.
type ReceiptSource interface {
	Receipt(ctx context.Context, txHash string) (*chain.Receipt, error)
}
