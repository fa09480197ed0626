// Package chain builds redemption calldata and reads transaction receipts.
package chain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const ctfABIJSON = `[
  {"inputs":[
    {"internalType":"address","name":"collateralToken","type":"address"},
    {"internalType":"bytes32","name":"parentCollectionId","type":"bytes32"},
    {"internalType":"bytes32","name":"conditionId","type":"bytes32"},
    {"internalType":"uint256[]","name":"indexSets","type":"uint256[]"}
  ],"name":"redeemPositions","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const adapterABIJSON = `[
  {"inputs":[
    {"internalType":"bytes32","name":"_conditionId","type":"bytes32"},
    {"internalType":"uint256[]","name":"_amounts","type":"uint256[]"}
  ],"name":"redeemPositions","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

//nolint:gochecknoglobals // parsed once
var (
	ctfABI     = mustParseABI(ctfABIJSON)
	adapterABI = mustParseABI(adapterABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse ABI: %v", err))
	}
	return parsed
}

// Contracts are the addresses redemption calls are sent to.
type Contracts struct {
	Collateral     common.Address
	CTF            common.Address
	NegRiskAdapter common.Address
}

// ParseConditionID parses a 0x-prefixed 32-byte condition id.
func ParseConditionID(raw string) (common.Hash, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return common.Hash{}, errors.New("empty condition id")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return common.Hash{}, fmt.Errorf("condition id missing 0x prefix: %q", s)
	}
	hexStr := s[2:]
	if len(hexStr) != 64 {
		return common.Hash{}, fmt.Errorf("condition id length %d", len(hexStr))
	}
	if _, err := hex.DecodeString(hexStr); err != nil {
		return common.Hash{}, fmt.Errorf("condition id hex: %w", err)
	}
	return common.HexToHash(s), nil
}

// ParseCollectionID parses a parent collection id. Empty means the root
// collection (all zeroes).
func ParseCollectionID(raw string) (common.Hash, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return common.Hash{}, nil
	}
	h, err := ParseConditionID(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("parent collection id: %w", err)
	}
	return h, nil
}
