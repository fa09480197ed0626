package redemption

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/internal/relayer"
	"github.com/mselser95/polymarket-redeemer/internal/testutil"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

const ctfRedeemJSON = `[{"name":"redeemPositions","type":"function","inputs":[
	{"name":"collateralToken","type":"address"},
	{"name":"parentCollectionId","type":"bytes32"},
	{"name":"conditionId","type":"bytes32"},
	{"name":"indexSets","type":"uint256[]"}],"outputs":[]}]`

func newTestOrchestrator(ms MarketSource, rel Relayer, dryRun bool) *Orchestrator {
	return NewOrchestrator(&OrchestratorConfig{
		Markets: ms,
		Encoder: testEncoder(),
		Relayer: rel,
		DryRun:  dryRun,
		Logger:  zap.NewNop(),
	})
}

func batchFor(path types.RedemptionPath, tokens ...types.Position) *types.RedemptionBatch {
	batches := types.GroupByCondition(tokens, path)
	return batches[0]
}

// flakyRelayer fails the submissions whose index is listed.
type flakyRelayer struct {
	mu    sync.Mutex
	fail  map[int]bool
	calls int
}

func (f *flakyRelayer) Execute(context.Context, []relayer.Call) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if f.fail[i] {
		return "", errors.New("relayer: 503 service unavailable")
	}
	return testutil.TxHash(i), nil
}

func TestRedeem_NotRedeemableIsHeld(t *testing.T) {
	cond := testutil.ConditionID(1)
	ms := testutil.NewMockMarketSource(testutil.CreateTestMarket(cond, 0))
	rel := testutil.NewMockRelayer()

	tok := testutil.CreateTestPosition("a", cond, 0)
	tok.Redeemable = false

	result := newTestOrchestrator(ms, rel, false).Redeem(context.Background(),
		[]*types.RedemptionBatch{batchFor(types.PathCTF, tok)}, nil)

	assert.Equal(t, []string{cond}, result.NotReady)
	assert.Empty(t, result.Failures)
	assert.Empty(t, rel.Submitted())
	assert.Equal(t, 0, ms.Calls(cond))
}

func TestRedeem_PriceGate(t *testing.T) {
	cond := testutil.ConditionID(1)
	ms := testutil.NewMockMarketSource(testutil.CreateTestMarket(cond, -1))
	rel := testutil.NewMockRelayer()

	result := newTestOrchestrator(ms, rel, false).Redeem(context.Background(),
		[]*types.RedemptionBatch{batchFor(types.PathCTF, testutil.CreateTestPosition("a", cond, 0))}, nil)

	assert.Equal(t, []string{cond}, result.Unsettled)
	assert.Empty(t, result.Failures)
	assert.Empty(t, rel.Submitted())
}

func TestRedeem_MarketFetchFailureIsBatchFailure(t *testing.T) {
	bad := testutil.ConditionID(1)
	good := testutil.ConditionID(2)
	ms := testutil.NewMockMarketSource(testutil.CreateTestMarket(good, 0))
	ms.SetError(bad, errors.New("connection reset"))
	rel := testutil.NewMockRelayer()

	result := newTestOrchestrator(ms, rel, false).Redeem(context.Background(), []*types.RedemptionBatch{
		batchFor(types.PathCTF, testutil.CreateTestPosition("a", bad, 0)),
		batchFor(types.PathCTF, testutil.CreateTestPosition("b", good, 0)),
	}, nil)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, bad, result.Failures[0].ConditionID)
	require.Len(t, result.Submitted, 1)
	assert.Equal(t, good, result.Submitted[0].ConditionID)
}

func TestRedeem_SubmitFailureIsBatchScoped(t *testing.T) {
	c1, c2, c3 := testutil.ConditionID(1), testutil.ConditionID(2), testutil.ConditionID(3)
	ms := testutil.NewMockMarketSource(
		testutil.CreateTestMarket(c1, 0),
		testutil.CreateTestMarket(c2, 0),
		testutil.CreateTestMarket(c3, 0),
	)
	rel := &flakyRelayer{fail: map[int]bool{1: true}}

	result := newTestOrchestrator(ms, rel, false).Redeem(context.Background(), []*types.RedemptionBatch{
		batchFor(types.PathCTF, testutil.CreateTestPosition("a", c1, 0)),
		batchFor(types.PathCTF, testutil.CreateTestPosition("b", c2, 0)),
		batchFor(types.PathCTF, testutil.CreateTestPosition("c", c3, 0)),
	}, nil)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, c2, result.Failures[0].ConditionID)
	assert.Contains(t, result.Failures[0].Err.Error(), "submit ctf redeem")
	require.Len(t, result.Submitted, 2)
	assert.Equal(t, c1, result.Submitted[0].ConditionID)
	assert.Equal(t, c3, result.Submitted[1].ConditionID)
}

func TestRedeem_SpawnsOneVerificationPerToken(t *testing.T) {
	cond := testutil.ConditionID(1)
	ms := testutil.NewMockMarketSource(testutil.CreateTestMarket(cond, 0))
	rel := testutil.NewMockRelayer()
	receipts := testutil.NewMockReceiptSource()
	receipts.SetDefaultStatus(1)

	group := NewVerificationGroup(context.Background(), &VerificationGroupConfig{
		Verifier: testVerifier(receipts),
		WalletID: "1",
		Logger:   zap.NewNop(),
	})

	result := newTestOrchestrator(ms, rel, false).Redeem(context.Background(), []*types.RedemptionBatch{
		batchFor(types.PathCTF,
			testutil.CreateTestPosition("a", cond, 0),
			testutil.CreateTestPosition("b", cond, 1)),
	}, group)

	require.Len(t, result.Submitted, 1)
	assert.Equal(t, types.PathCTF, result.Submitted[0].Path)

	calls := rel.Submitted()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 1)
	assert.Equal(t, testContracts.CTF, calls[0][0].To)

	outcomes := waitGroupResults(t, group)
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, OutcomeConfirmed, o.Outcome)
		assert.Equal(t, result.Submitted[0].TxHash, o.TxHash)
	}
}

func TestRedeem_FallbackIndexSets(t *testing.T) {
	cond := testutil.ConditionID(1)
	ms := testutil.NewMockMarketSource(testutil.CreateTestMarket(cond, 0))
	rel := testutil.NewMockRelayer()

	// Token ids that no index set derives to.
	result := newTestOrchestrator(ms, rel, false).Redeem(context.Background(), []*types.RedemptionBatch{
		batchFor(types.PathCTF,
			testutil.CreateTestPosition("123", cond, 0),
			testutil.CreateTestPosition("456", cond, 1)),
	}, nil)
	require.Len(t, result.Submitted, 1)

	parsed, err := abi.JSON(strings.NewReader(ctfRedeemJSON))
	require.NoError(t, err)

	data := rel.Submitted()[0][0].Data
	args, err := parsed.Methods["redeemPositions"].Inputs.Unpack(data[4:])
	require.NoError(t, err)

	sets := args[3].([]*big.Int)
	require.Len(t, sets, 2)
	assert.Equal(t, "1", sets[0].String())
	assert.Equal(t, "2", sets[1].String())
}

func TestRedeem_DryRunSubmitsNothing(t *testing.T) {
	cond := testutil.ConditionID(1)
	ms := testutil.NewMockMarketSource(testutil.CreateTestMarket(cond, 0))
	rel := testutil.NewMockRelayer()

	result := newTestOrchestrator(ms, rel, true).Redeem(context.Background(),
		[]*types.RedemptionBatch{batchFor(types.PathCTF, testutil.CreateTestPosition("a", cond, 0))}, nil)

	assert.Equal(t, []string{cond}, result.DryRun)
	assert.Empty(t, result.Submitted)
	assert.Empty(t, rel.Submitted())
}

func TestRetry_SkipsGates(t *testing.T) {
	open := testutil.ConditionID(1)
	missing := testutil.ConditionID(2)
	ms := testutil.NewMockMarketSource(testutil.CreateTestMarket(open, -1))
	rel := testutil.NewMockRelayer()

	notRedeemable := testutil.CreateTestPosition("a", open, 0)
	notRedeemable.Redeemable = false

	result := newTestOrchestrator(ms, rel, false).Retry(context.Background(), []*types.RedemptionBatch{
		batchFor(types.PathAdapter, notRedeemable),
		batchFor(types.PathAdapter, testutil.CreateTestPosition("b", missing, 1)),
	}, nil)

	assert.Empty(t, result.Failures)
	require.Len(t, result.Submitted, 2)
	for _, calls := range rel.Submitted() {
		assert.Equal(t, testContracts.NegRiskAdapter, calls[0].To)
	}
}

func TestRedeem_AdapterDropsUnsupportedOutcome(t *testing.T) {
	cond := testutil.ConditionID(1)
	ms := testutil.NewMockMarketSource(testutil.CreateTestMarket(cond, 0))

	result := newTestOrchestrator(ms, testutil.NewMockRelayer(), false).Retry(context.Background(), []*types.RedemptionBatch{
		batchFor(types.PathAdapter,
			testutil.CreateTestPosition("a", cond, 0),
			testutil.CreateTestPosition("c", cond, 2)),
	}, nil)

	require.Len(t, result.Submitted, 1)
	assert.Equal(t, []string{"c"}, tokenIDs(result.Dropped))
}
