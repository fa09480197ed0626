package chain

import (
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/pkg/cache"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

// DefaultMaxIndex bounds the index-set search.
const DefaultMaxIndex = 64

// Derivations are pure, so cached results never go stale.
const indexSetTTL = 24 * time.Hour

// Deriver reverses a token id back to the index set it commits to.
type Deriver struct {
	collateral common.Address
	maxIndex   int
	cache      cache.Cache
	logger     *zap.Logger
}

// NewDeriver creates a deriver. A nil cache disables memoisation.
func NewDeriver(collateral common.Address, maxIndex int, c cache.Cache, logger *zap.Logger) *Deriver {
	if maxIndex <= 0 {
		maxIndex = DefaultMaxIndex
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deriver{
		collateral: collateral,
		maxIndex:   maxIndex,
		cache:      c,
		logger:     logger,
	}
}

// PositionID computes the ERC-1155 position id of (collateral, parent,
// condition, indexSet):
//
//	keccak(collateral ∥ keccak(parent ∥ condition ∥ uint256(indexSet)))
func PositionID(collateral common.Address, parent, condition common.Hash, indexSet int) *big.Int {
	idx := common.LeftPadBytes(big.NewInt(int64(indexSet)).Bytes(), 32)
	collection := crypto.Keccak256(parent.Bytes(), condition.Bytes(), idx)
	return new(big.Int).SetBytes(crypto.Keccak256(collateral.Bytes(), collection))
}

// DeriveIndexSet searches 1..maxIndex for the index set whose position id
// equals tokenID. Unparseable inputs report false.
func (d *Deriver) DeriveIndexSet(tokenID, conditionID, parentCollectionID string) (int, bool) {
	key := "indexset:" + strings.ToLower(strings.TrimSpace(conditionID)) + ":" +
		strings.ToLower(strings.TrimSpace(parentCollectionID)) + ":" + strings.TrimSpace(tokenID)

	if d.cache != nil {
		if cached, ok := d.cache.Get(key); ok {
			if idx, ok := cached.(int); ok {
				return idx, idx > 0
			}
		}
	}

	idx := d.derive(tokenID, conditionID, parentCollectionID)

	if d.cache != nil {
		d.cache.Set(key, idx, indexSetTTL)
	}

	return idx, idx > 0
}

func (d *Deriver) derive(tokenID, conditionID, parentCollectionID string) int {
	token, ok := new(big.Int).SetString(strings.TrimSpace(tokenID), 10)
	if !ok {
		return 0
	}

	condition, err := ParseConditionID(conditionID)
	if err != nil {
		return 0
	}

	parent, err := ParseCollectionID(parentCollectionID)
	if err != nil {
		return 0
	}

	for idx := 1; idx <= d.maxIndex; idx++ {
		if PositionID(d.collateral, parent, condition, idx).Cmp(token) == 0 {
			return idx
		}
	}

	return 0
}

// IndexSets returns the sorted, distinct index sets to redeem for tokens of
// one condition. Sets derived from token ids win; when none derives, each
// token's outcome index becomes 1<<outcomeIndex.
func (d *Deriver) IndexSets(tokens []types.Position, conditionID, parentCollectionID string) []*big.Int {
	derived := make(map[int]struct{})
	for _, tok := range tokens {
		if idx, ok := d.DeriveIndexSet(tok.TokenID, conditionID, parentCollectionID); ok {
			derived[idx] = struct{}{}
		}
	}

	if len(derived) > 0 {
		IndexSetDerivedTotal.Inc()
		return sortedSets(derived)
	}

	IndexSetFallbackTotal.Inc()
	d.logger.Debug("index-set-fallback",
		zap.String("condition-id", conditionID),
		zap.Int("tokens", len(tokens)))

	// 1<<i grows with i, so sorting outcome indexes sorts the sets.
	outcomes := make(map[int]struct{})
	for _, tok := range tokens {
		if tok.OutcomeIndex < 0 || tok.OutcomeIndex > 255 {
			continue
		}
		outcomes[tok.OutcomeIndex] = struct{}{}
	}

	out := make([]*big.Int, 0, len(outcomes))
	for _, i := range sortedKeys(outcomes) {
		out = append(out, new(big.Int).Lsh(big.NewInt(1), uint(i)))
	}
	return out
}

func sortedSets(sets map[int]struct{}) []*big.Int {
	keys := sortedKeys(sets)
	out := make([]*big.Int, 0, len(keys))
	for _, k := range keys {
		out = append(out, big.NewInt(int64(k)))
	}
	return out
}

func sortedKeys(m map[int]struct{}) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
