package redemption

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/internal/testutil"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

type engineFixture struct {
	positions *testutil.MockPositionSource
	markets   *testutil.MockMarketSource
	receipts  *testutil.MockReceiptSource
	relayer   *testutil.MockRelayer
	store     *countingStorage
	engine    *Engine
}

func newEngineFixture(t *testing.T, dryRun bool, positions ...testutil.PositionsResponse) *engineFixture {
	t.Helper()
	f := &engineFixture{
		positions: testutil.NewMockPositionSource(positions...),
		markets:   testutil.NewMockMarketSource(),
		receipts:  testutil.NewMockReceiptSource(),
		relayer:   testutil.NewMockRelayer(),
		store:     newCountingStorage(),
	}

	engine, err := NewEngine(&EngineConfig{
		Positions:           f.positions,
		ClassifyMarkets:     f.markets,
		SubmitMarkets:       f.markets,
		Receipts:            f.receipts,
		Encoder:             testEncoder(),
		Storage:             f.store,
		ReceiptTimeout:      60 * time.Millisecond,
		ReceiptPollInterval: 5 * time.Millisecond,
		RecordRedemptions:   true,
		DryRun:              dryRun,
		Logger:              zap.NewNop(),
	})
	require.NoError(t, err)
	f.engine = engine
	return f
}

func TestNewEngine_RequiresCollaborators(t *testing.T) {
	_, err := NewEngine(&EngineConfig{Logger: zap.NewNop()})
	assert.Error(t, err)
}

func TestRunWallet_ConfirmedRedemption(t *testing.T) {
	cond := testutil.ConditionID(1)
	win := testutil.CreateTestPosition("win", cond, 0)
	lose := testutil.CreateTestPosition("lose", cond, 1)

	f := newEngineFixture(t, false,
		testutil.PositionsResponse{Positions: []types.Position{win, lose}},
		testutil.PositionsResponse{Positions: []types.Position{lose}},
	)
	f.markets.SetMarket(testutil.CreateTestMarket(cond, 0))
	f.receipts.SetDefaultStatus(1)

	report, err := f.engine.RunWallet(context.Background(), Wallet{ID: "1", Address: "0xproxy"}, f.relayer)
	require.NoError(t, err)

	assert.NotEmpty(t, report.CycleID)
	assert.Equal(t, 2, report.Positions)
	assert.Equal(t, 1, report.Classification.Winners)
	require.Len(t, report.First.Submitted, 1)
	assert.Equal(t, 1, report.Confirmed())
	assert.Empty(t, report.ManualReview())
	assert.Nil(t, report.Failover.Retry)

	states := make(map[string]types.TokenState)
	for _, s := range f.store.Records("1") {
		states[s.TokenID] = s
	}
	assert.Equal(t, types.RedeemSkipped, states["lose"].RedeemStatus)
	assert.Equal(t, types.RedeemSuccess, states["win"].RedeemStatus)
}

func TestRunWallet_PendingReceiptTriggersFailover(t *testing.T) {
	cond := testutil.ConditionID(1)
	win := testutil.CreateTestPosition("win", cond, 0)

	f := newEngineFixture(t, false, testutil.PositionsResponse{Positions: []types.Position{win}})
	f.markets.SetMarket(testutil.CreateTestMarket(cond, 0))

	report, err := f.engine.RunWallet(context.Background(), Wallet{ID: "1", Address: "0xproxy"}, f.relayer)
	require.NoError(t, err)

	require.Len(t, report.Verifications, 1)
	assert.Equal(t, OutcomePending, report.Verifications[0].Outcome)

	calls := f.relayer.Submitted()
	require.Len(t, calls, 2)
	assert.Equal(t, testContracts.CTF, calls[0][0].To)
	assert.Equal(t, testContracts.NegRiskAdapter, calls[1][0].To)

	require.NotNil(t, report.Failover)
	assert.Equal(t, []string{"win"}, tokenIDs(report.ManualReview()))

	// Pending verdicts are never recorded.
	assert.Empty(t, f.store.Records("1"))
}

func TestRunWallet_SkippedTokensStaySkipped(t *testing.T) {
	ctx := context.Background()
	cond := testutil.ConditionID(1)
	lose := testutil.CreateTestPosition("lose", cond, 1)

	f := newEngineFixture(t, false, testutil.PositionsResponse{Positions: []types.Position{lose}})
	f.markets.SetMarket(testutil.CreateTestMarket(cond, 0))

	_, err := f.engine.RunWallet(ctx, Wallet{ID: "1", Address: "0xproxy"}, f.relayer)
	require.NoError(t, err)
	require.Equal(t, 1, f.store.Writes())

	// The market flips to favour the token; the skip still holds.
	f.markets.SetMarket(testutil.CreateTestMarket(cond, 1))

	report, err := f.engine.RunWallet(ctx, Wallet{ID: "1", Address: "0xproxy"}, f.relayer)
	require.NoError(t, err)
	assert.Empty(t, report.Classification.ToSettle)
	assert.Equal(t, 1, report.Classification.PriorSkipped)
	assert.Equal(t, 1, f.store.Writes())
	assert.Empty(t, f.relayer.Submitted())
}

func TestRunWallet_DryRun(t *testing.T) {
	cond := testutil.ConditionID(1)
	f := newEngineFixture(t, true,
		testutil.PositionsResponse{Positions: []types.Position{testutil.CreateTestPosition("win", cond, 0)}})
	f.markets.SetMarket(testutil.CreateTestMarket(cond, 0))

	report, err := f.engine.RunWallet(context.Background(), Wallet{ID: "1", Address: "0xproxy"}, f.relayer)
	require.NoError(t, err)

	assert.Equal(t, []string{cond}, report.First.DryRun)
	assert.Empty(t, f.relayer.Submitted())
	assert.Nil(t, report.Failover)
	assert.Equal(t, 1, f.positions.Calls())
}

func TestRunWallet_PositionFetchFailure(t *testing.T) {
	f := newEngineFixture(t, false, testutil.PositionsResponse{Err: errors.New("data api: 500")})

	report, err := f.engine.RunWallet(context.Background(), Wallet{ID: "1", Address: "0xproxy"}, f.relayer)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Nil(t, report.Classification)
}
