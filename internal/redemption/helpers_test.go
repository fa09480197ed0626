package redemption

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/internal/chain"
	"github.com/mselser95/polymarket-redeemer/internal/storage"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

var testContracts = chain.Contracts{
	Collateral:     common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"),
	CTF:            common.HexToAddress("0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"),
	NegRiskAdapter: common.HexToAddress("0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296"),
}

func testEncoder() *chain.Encoder {
	return chain.NewEncoder(testContracts, chain.NewDeriver(testContracts.Collateral, chain.DefaultMaxIndex, nil, zap.NewNop()))
}

func testVerifier(receipts ReceiptSource) *Verifier {
	return NewVerifier(receipts, 60*time.Millisecond, 5*time.Millisecond, zap.NewNop())
}

// countingStorage wraps the in-memory store and counts upserts.
type countingStorage struct {
	*storage.MemoryStorage
	mu     sync.Mutex
	writes int
}

func newCountingStorage() *countingStorage {
	return &countingStorage{MemoryStorage: storage.NewMemoryStorage(zap.NewNop())}
}

func (c *countingStorage) UpsertTokenState(ctx context.Context, state *types.TokenState) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.MemoryStorage.UpsertTokenState(ctx, state)
}

func (c *countingStorage) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

func tokenIDs(ps []types.Position) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.TokenID)
	}
	return out
}

func waitGroupResults(t *testing.T, g *VerificationGroup) []VerificationResult {
	t.Helper()
	done := make(chan []VerificationResult, 1)
	go func() { done <- g.Wait() }()
	select {
	case r := <-done:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("verification group did not finish")
		return nil
	}
}
