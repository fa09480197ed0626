package storage

import (
	"context"

	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

// Storage persists per-token redemption verdicts.
//
// Rows are keyed by (wallet, token, condition, outcome index). Upserts are
// idempotent, and a row whose status is skipped is never overwritten.
type Storage interface {
	// EnsureSchema creates the backing table if it does not exist yet.
	EnsureSchema(ctx context.Context) error

	// UpsertTokenState inserts or updates the row for state's key.
	UpsertTokenState(ctx context.Context, state *types.TokenState) error

	// SkippedTokens returns the token ids a wallet has already written off.
	SkippedTokens(ctx context.Context, walletID string) (map[string]struct{}, error)

	// Close closes the storage connection.
	Close() error
}
