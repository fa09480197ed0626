package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

func skippedState(walletID, tokenID string) *types.TokenState {
	winning := 1
	return &types.TokenState{
		WalletID:            walletID,
		TokenID:             tokenID,
		ConditionID:         "0xcond",
		OutcomeIndex:        0,
		WinningOutcomeIndex: &winning,
		MarketTitle:         "Will it rain?",
		PredictionResult:    types.PredictionFailed,
		RedeemStatus:        types.RedeemSkipped,
		CheckedAt:           time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newMockStorage(t *testing.T) (*PostgresStorage, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresStorage{db: db, logger: zap.NewNop()}, mock
}

func TestPostgresStorage_EnsureSchema(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS redeem_records").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_redeem_records_wallet_status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, storage.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_EnsureSchema_Error(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS redeem_records").
		WillReturnError(errors.New("permission denied"))

	err := storage.EnsureSchema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure schema")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_UpsertTokenState(t *testing.T) {
	storage, mock := newMockStorage(t)
	state := skippedState("1", "111")

	mock.ExpectExec("INSERT INTO redeem_records").
		WithArgs(
			"1",
			"111",
			"0xcond",
			0,
			int64(1),
			"Will it rain?",
			"failed",
			"skipped",
			nil, // no tx hash
			sqlmock.AnyArg(),
			nil, // never redeemed
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, storage.UpsertTokenState(context.Background(), state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_UpsertTokenState_Redeemed(t *testing.T) {
	storage, mock := newMockStorage(t)
	redeemedAt := time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)
	state := &types.TokenState{
		WalletID:         "2",
		TokenID:          "222",
		ConditionID:      "0xcond",
		OutcomeIndex:     1,
		PredictionResult: types.PredictionSuccess,
		RedeemStatus:     types.RedeemSuccess,
		RedeemTxHash:     "0xabc",
		CheckedAt:        redeemedAt,
		RedeemedAt:       &redeemedAt,
	}

	mock.ExpectExec("ON CONFLICT \\(wallet_id, token_id, condition_id, outcome_index\\) DO UPDATE").
		WithArgs("2", "222", "0xcond", 1, nil, nil, "success", "success", "0xabc",
			sqlmock.AnyArg(), redeemedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, storage.UpsertTokenState(context.Background(), state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_UpsertTokenState_Error(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectExec("INSERT INTO redeem_records").
		WillReturnError(sqlmock.ErrCancelled)

	err := storage.UpsertTokenState(context.Background(), skippedState("1", "111"))
	assert.ErrorIs(t, err, sqlmock.ErrCancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_SkippedTokens(t *testing.T) {
	storage, mock := newMockStorage(t)

	rows := sqlmock.NewRows([]string{"token_id"}).
		AddRow("111").
		AddRow("222")
	mock.ExpectQuery("SELECT DISTINCT token_id FROM redeem_records").
		WithArgs("1").
		WillReturnRows(rows)

	skipped, err := storage.SkippedTokens(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"111": {}, "222": {}}, skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_SkippedTokens_Error(t *testing.T) {
	storage, mock := newMockStorage(t)

	mock.ExpectQuery("SELECT DISTINCT token_id").
		WithArgs("1").
		WillReturnError(errors.New("connection reset"))

	_, err := storage.SkippedTokens(context.Background(), "1")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	storage := &PostgresStorage{db: db, logger: zap.NewNop()}
	mock.ExpectClose()

	assert.NoError(t, storage.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewPostgresStorage_ConnectionSuccess(t *testing.T) {
	// This test requires actual database connection, so it's skipped in unit tests
	t.Skip("Requires actual PostgreSQL database")

	storage, err := NewPostgresStorage(context.Background(), &PostgresConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "test",
		Password: "test",
		Database: "test_db",
		SSLMode:  "disable",
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	defer storage.Close()

	require.NoError(t, storage.EnsureSchema(context.Background()))
}

func TestMemoryStorage_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(zap.NewNop())

	state := &types.TokenState{
		WalletID:         "1",
		TokenID:          "111",
		ConditionID:      "0xcond",
		OutcomeIndex:     1,
		PredictionResult: types.PredictionSuccess,
		RedeemStatus:     types.RedeemFailed,
		RedeemTxHash:     "0x01",
	}
	require.NoError(t, storage.UpsertTokenState(ctx, state))
	require.NoError(t, storage.UpsertTokenState(ctx, state))

	records := storage.Records("1")
	require.Len(t, records, 1)

	// A later verdict for the same key replaces the row.
	state.RedeemStatus = types.RedeemSuccess
	state.RedeemTxHash = "0x02"
	require.NoError(t, storage.UpsertTokenState(ctx, state))

	records = storage.Records("1")
	require.Len(t, records, 1)
	assert.Equal(t, types.RedeemSuccess, records[0].RedeemStatus)
	assert.Equal(t, "0x02", records[0].RedeemTxHash)
}

func TestMemoryStorage_SkippedIsFinal(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(zap.NewNop())

	require.NoError(t, storage.UpsertTokenState(ctx, skippedState("1", "111")))

	overwrite := skippedState("1", "111")
	overwrite.RedeemStatus = types.RedeemPending
	require.NoError(t, storage.UpsertTokenState(ctx, overwrite))

	records := storage.Records("1")
	require.Len(t, records, 1)
	assert.Equal(t, types.RedeemSkipped, records[0].RedeemStatus)
}

func TestMemoryStorage_SkippedTokensPerWallet(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage(zap.NewNop())

	require.NoError(t, storage.UpsertTokenState(ctx, skippedState("1", "111")))
	require.NoError(t, storage.UpsertTokenState(ctx, skippedState("2", "222")))

	pending := skippedState("1", "333")
	pending.RedeemStatus = types.RedeemPending
	require.NoError(t, storage.UpsertTokenState(ctx, pending))

	skipped, err := storage.SkippedTokens(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"111": {}}, skipped)

	skipped, err = storage.SkippedTokens(ctx, "3")
	require.NoError(t, err)
	assert.Empty(t, skipped)

	assert.NoError(t, storage.Close())
}
