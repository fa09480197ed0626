package redemption

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/internal/testutil"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

func settledMarket(conditionID string) *types.Market {
	raw := testutil.CreateMarketJSON(conditionID, 0, time.Now().Add(-time.Hour))
	raw["outcomePrices"] = `["1.0","0.0"]`
	return testutil.DecodeMarket(raw)
}

func newTestClassifier(ms MarketSource, store *countingStorage) *Classifier {
	return NewClassifier(&ClassifierConfig{
		Markets:     ms,
		Storage:     store,
		Concurrency: 2,
		Logger:      zap.NewNop(),
	})
}

func TestClassify_WinnerIsSettled(t *testing.T) {
	cond := testutil.ConditionID(1)
	store := newCountingStorage()
	c := newTestClassifier(testutil.NewMockMarketSource(settledMarket(cond)), store)

	result, err := c.Classify(context.Background(), "1",
		[]types.Position{testutil.CreateTestPosition("win", cond, 0)}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"win"}, tokenIDs(result.ToSettle))
	assert.Equal(t, 1, result.Winners)
	assert.Empty(t, result.NewlySkipped)
	assert.Equal(t, 0, store.Writes())
	assert.Equal(t, 0, result.WinningOutcomes[cond])
}

func TestClassify_LoserIsSkipped(t *testing.T) {
	cond := testutil.ConditionID(1)
	store := newCountingStorage()
	c := newTestClassifier(testutil.NewMockMarketSource(settledMarket(cond)), store)

	result, err := c.Classify(context.Background(), "1",
		[]types.Position{testutil.CreateTestPosition("lose", cond, 1)}, nil)
	require.NoError(t, err)

	assert.Empty(t, result.ToSettle)
	require.Len(t, result.NewlySkipped, 1)

	skipped := result.NewlySkipped[0]
	assert.Equal(t, types.RedeemSkipped, skipped.RedeemStatus)
	assert.Equal(t, types.PredictionFailed, skipped.PredictionResult)
	require.NotNil(t, skipped.WinningOutcomeIndex)
	assert.Equal(t, 0, *skipped.WinningOutcomeIndex)
	assert.False(t, skipped.CheckedAt.IsZero())

	assert.Equal(t, 1, store.Writes())
	prior, err := store.SkippedTokens(context.Background(), "1")
	require.NoError(t, err)
	assert.Contains(t, prior, "lose")
}

func TestClassify_PriorSkippedNeverReturns(t *testing.T) {
	cond := testutil.ConditionID(1)
	store := newCountingStorage()
	ms := testutil.NewMockMarketSource(settledMarket(cond))
	c := newTestClassifier(ms, store)

	// Market data now says the token won; the skip is still final.
	positions := []types.Position{testutil.CreateTestPosition("lose", cond, 0)}
	prior := map[string]struct{}{"lose": {}}

	result, err := c.Classify(context.Background(), "1", positions, prior)
	require.NoError(t, err)
	assert.Empty(t, result.ToSettle)
	assert.Equal(t, 1, result.PriorSkipped)
	assert.Equal(t, 0, ms.Calls(cond))
}

func TestClassify_RerunPerformsNoNewWrites(t *testing.T) {
	ctx := context.Background()
	cond := testutil.ConditionID(1)
	store := newCountingStorage()
	c := newTestClassifier(testutil.NewMockMarketSource(settledMarket(cond)), store)

	positions := []types.Position{
		testutil.CreateTestPosition("win", cond, 0),
		testutil.CreateTestPosition("lose", cond, 1),
	}

	_, err := c.Classify(ctx, "1", positions, nil)
	require.NoError(t, err)
	require.Equal(t, 1, store.Writes())

	prior, err := store.SkippedTokens(ctx, "1")
	require.NoError(t, err)

	result, err := c.Classify(ctx, "1", positions, prior)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Writes())
	assert.Equal(t, []string{"win"}, tokenIDs(result.ToSettle))
	assert.Len(t, store.Records("1"), 1)
}

func TestClassify_DeferredVerdicts(t *testing.T) {
	open := testutil.ConditionID(1)
	undetermined := testutil.ConditionID(2)
	missing := testutil.ConditionID(3)
	failing := testutil.ConditionID(4)

	// Resolved status but no winner signal anywhere.
	raw := testutil.CreateMarketJSON(undetermined, -1, time.Now().Add(-time.Hour))
	raw["umaResolutionStatus"] = "RESOLVED"
	raw["outcomePrices"] = `["0.6","0.4"]`

	ms := testutil.NewMockMarketSource(
		testutil.CreateTestMarket(open, -1),
		testutil.DecodeMarket(raw),
	)
	ms.SetError(failing, errors.New("gateway timeout"))

	store := newCountingStorage()
	c := newTestClassifier(ms, store)

	result, err := c.Classify(context.Background(), "1", []types.Position{
		testutil.CreateTestPosition("open", open, 0),
		testutil.CreateTestPosition("undetermined", undetermined, 1),
		testutil.CreateTestPosition("missing", missing, 0),
		testutil.CreateTestPosition("failing", failing, 0),
	}, nil)
	require.NoError(t, err)

	got := tokenIDs(result.ToSettle)
	sort.Strings(got)
	assert.Equal(t, []string{"failing", "missing", "open", "undetermined"}, got)
	assert.Equal(t, 1, result.Unsettled)
	assert.Equal(t, 1, result.Undetermined)
	assert.Equal(t, 2, result.Unknown)
	assert.Empty(t, result.NewlySkipped)
	assert.Equal(t, 0, store.Writes())
}

func TestClassify_UnindexedTokenDeferred(t *testing.T) {
	cond := testutil.ConditionID(1)
	c := newTestClassifier(testutil.NewMockMarketSource(settledMarket(cond)), newCountingStorage())

	tok := testutil.CreateTestPosition("unindexed", cond, 0)
	tok.OutcomeIndex = -1

	result, err := c.Classify(context.Background(), "1", []types.Position{tok}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"unindexed"}, tokenIDs(result.ToSettle))
	assert.Equal(t, 1, result.Unindexed)
	assert.Empty(t, result.NewlySkipped)
}

func TestClassify_DistinctTokensLastWins(t *testing.T) {
	cond := testutil.ConditionID(1)
	ms := testutil.NewMockMarketSource(settledMarket(cond))
	c := newTestClassifier(ms, newCountingStorage())

	first := testutil.CreateTestPosition("dup", cond, 0)
	first.Size = 1
	last := testutil.CreateTestPosition("dup", cond, 0)
	last.Size = 7

	result, err := c.Classify(context.Background(), "1", []types.Position{first, last}, nil)
	require.NoError(t, err)
	require.Len(t, result.ToSettle, 1)
	assert.InDelta(t, 7.0, result.ToSettle[0].Size, 1e-9)

	// One lookup per condition.
	assert.Equal(t, 1, ms.Calls(cond))
}

func TestClassify_DropsPositionsWithoutCondition(t *testing.T) {
	cond := testutil.ConditionID(1)
	ms := testutil.NewMockMarketSource(settledMarket(cond))
	c := newTestClassifier(ms, newCountingStorage())

	orphan := testutil.CreateTestPosition("orphan", testutil.ConditionID(2), 0)
	orphan.ConditionID = ""
	winner := testutil.CreateTestPosition("win", cond, 0)

	result, err := c.Classify(context.Background(), "1", []types.Position{orphan, winner}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"win"}, tokenIDs(result.ToSettle))
	assert.Equal(t, 0, result.Unknown)
	assert.Equal(t, 0, ms.Calls(""))
}

type failingStore struct {
	*countingStorage
}

func (f failingStore) UpsertTokenState(context.Context, *types.TokenState) error {
	return errors.New("database unavailable")
}

func TestClassify_SkipWriteFailureDoesNotAbort(t *testing.T) {
	cond := testutil.ConditionID(1)
	c := NewClassifier(&ClassifierConfig{
		Markets: testutil.NewMockMarketSource(settledMarket(cond)),
		Storage: failingStore{newCountingStorage()},
		Logger:  zap.NewNop(),
	})

	result, err := c.Classify(context.Background(), "1", []types.Position{
		testutil.CreateTestPosition("win", cond, 0),
		testutil.CreateTestPosition("lose", cond, 1),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"win"}, tokenIDs(result.ToSettle))
	assert.Len(t, result.NewlySkipped, 1)
}

func TestClassify_CancelledContext(t *testing.T) {
	cond := testutil.ConditionID(1)
	c := newTestClassifier(testutil.NewMockMarketSource(settledMarket(cond)), newCountingStorage())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Classify(ctx, "1", []types.Position{testutil.CreateTestPosition("win", cond, 0)}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
