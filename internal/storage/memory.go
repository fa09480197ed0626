package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

type recordKey struct {
	walletID     string
	tokenID      string
	conditionID  string
	outcomeIndex int
}

// MemoryStorage implements Storage in process memory. Verdicts do not
// survive a restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[recordKey]types.TokenState
	logger  *zap.Logger
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage(logger *zap.Logger) *MemoryStorage {
	logger.Info("memory-storage-initialized")
	return &MemoryStorage{
		records: make(map[recordKey]types.TokenState),
		logger:  logger,
	}
}

// EnsureSchema is a no-op.
func (m *MemoryStorage) EnsureSchema(context.Context) error {
	return nil
}

// UpsertTokenState stores a copy of state. Skipped rows are left untouched.
func (m *MemoryStorage) UpsertTokenState(_ context.Context, state *types.TokenState) error {
	key := recordKey{
		walletID:     state.WalletID,
		tokenID:      state.TokenID,
		conditionID:  state.ConditionID,
		outcomeIndex: state.OutcomeIndex,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.records[key]; ok && existing.RedeemStatus == types.RedeemSkipped {
		return nil
	}
	m.records[key] = *state

	TokenStateWritesTotal.WithLabelValues(string(state.RedeemStatus)).Inc()
	return nil
}

// SkippedTokens returns the wallet's skipped token ids.
func (m *MemoryStorage) SkippedTokens(_ context.Context, walletID string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	skipped := make(map[string]struct{})
	for key, rec := range m.records {
		if key.walletID == walletID && rec.RedeemStatus == types.RedeemSkipped {
			skipped[key.tokenID] = struct{}{}
		}
	}
	return skipped, nil
}

// Records returns a snapshot of every stored row for walletID.
func (m *MemoryStorage) Records(walletID string) []types.TokenState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.TokenState, 0)
	for key, rec := range m.records {
		if key.walletID == walletID {
			out = append(out, rec)
		}
	}
	return out
}

// Close is a no-op.
func (m *MemoryStorage) Close() error {
	m.logger.Info("closing-memory-storage")
	return nil
}
