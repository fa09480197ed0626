package chain

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"

	"github.com/mselser95/polymarket-redeemer/internal/relayer"
	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

// ErrEmptyBatch is returned when a batch has nothing to encode.
var ErrEmptyBatch = errors.New("batch has no redeemable index sets")

// Encoder produces redeemPositions calldata for both redemption paths.
type Encoder struct {
	contracts Contracts
	deriver   *Deriver
}

// NewEncoder creates an encoder.
func NewEncoder(contracts Contracts, deriver *Deriver) *Encoder {
	return &Encoder{contracts: contracts, deriver: deriver}
}

// Contracts returns the configured contract addresses.
func (e *Encoder) Contracts() Contracts {
	return e.contracts
}

// EncodeCTFRedeem packs redeemPositions(collateral, parent, condition, indexSets).
// Index sets are sorted ascending and de-duplicated.
func (e *Encoder) EncodeCTFRedeem(conditionID, parentCollectionID string, indexSets []*big.Int) ([]byte, error) {
	condition, err := ParseConditionID(conditionID)
	if err != nil {
		return nil, err
	}

	parent, err := ParseCollectionID(parentCollectionID)
	if err != nil {
		return nil, err
	}

	sets := normalizeSets(indexSets)
	if len(sets) == 0 {
		return nil, ErrEmptyBatch
	}

	data, err := ctfABI.Pack("redeemPositions", e.contracts.Collateral, parent, condition, sets)
	if err != nil {
		return nil, fmt.Errorf("pack CTF redeem: %w", err)
	}
	return data, nil
}

// EncodeAdapterRedeem packs redeemPositions(condition, [yes, no]) for the
// neg-risk adapter.
func (e *Encoder) EncodeAdapterRedeem(conditionID string, amounts [2]*big.Int) ([]byte, error) {
	condition, err := ParseConditionID(conditionID)
	if err != nil {
		return nil, err
	}

	list := make([]*big.Int, 2)
	for i, a := range amounts {
		if a == nil {
			a = big.NewInt(0)
		}
		list[i] = a
	}

	data, err := adapterABI.Pack("redeemPositions", condition, list)
	if err != nil {
		return nil, fmt.Errorf("pack adapter redeem: %w", err)
	}
	return data, nil
}

// AdapterAmounts sums token sizes in micro-units per outcome: index 0 is the
// yes amount and index 1 the no amount. Tokens with any other outcome index
// are returned in dropped.
func AdapterAmounts(tokens []types.Position) (amounts [2]*big.Int, dropped []types.Position) {
	amounts = [2]*big.Int{big.NewInt(0), big.NewInt(0)}

	for _, tok := range tokens {
		if tok.OutcomeIndex != 0 && tok.OutcomeIndex != 1 {
			dropped = append(dropped, tok)
			continue
		}
		micro := math.Round(tok.Size * 1e6)
		if micro <= 0 || math.IsNaN(micro) || math.IsInf(micro, 0) {
			continue
		}
		amounts[tok.OutcomeIndex].Add(amounts[tok.OutcomeIndex], big.NewInt(int64(micro)))
	}

	return amounts, dropped
}

// BuildCall encodes batch for its path and addresses the call to the
// matching contract. Dropped adapter tokens are returned for the caller to
// report.
func (e *Encoder) BuildCall(batch *types.RedemptionBatch, parentCollectionID string) (relayer.Call, []types.Position, error) {
	if batch == nil || len(batch.Tokens) == 0 {
		return relayer.Call{}, nil, ErrEmptyBatch
	}

	switch batch.Path {
	case types.PathAdapter:
		amounts, dropped := AdapterAmounts(batch.Tokens)
		data, err := e.EncodeAdapterRedeem(batch.ConditionID, amounts)
		if err != nil {
			return relayer.Call{}, dropped, err
		}
		return relayer.Call{
			To:        e.contracts.NegRiskAdapter,
			Value:     big.NewInt(0),
			Data:      data,
			Operation: relayer.OperationCall,
		}, dropped, nil

	case types.PathCTF:
		sets := e.deriver.IndexSets(batch.Tokens, batch.ConditionID, parentCollectionID)
		data, err := e.EncodeCTFRedeem(batch.ConditionID, parentCollectionID, sets)
		if err != nil {
			return relayer.Call{}, nil, err
		}
		return relayer.Call{
			To:        e.contracts.CTF,
			Value:     big.NewInt(0),
			Data:      data,
			Operation: relayer.OperationCall,
		}, nil, nil

	default:
		return relayer.Call{}, nil, fmt.Errorf("unknown redemption path %q", batch.Path)
	}
}

func normalizeSets(in []*big.Int) []*big.Int {
	out := make([]*big.Int, 0, len(in))
	for _, s := range in {
		if s == nil || s.Sign() <= 0 {
			continue
		}
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })

	deduped := make([]*big.Int, 0, len(out))
	for _, s := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Cmp(s) == 0 {
			continue
		}
		deduped = append(deduped, s)
	}
	return deduped
}
