// Package relayer submits Safe transactions through the Polymarket builder relayer.
package relayer

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Operation is the Safe operation type of a call.
type Operation uint8

const (
	OperationCall         Operation = 0
	OperationDelegateCall Operation = 1
)

// Call is one contract call executed by the proxy wallet.
type Call struct {
	To        common.Address
	Value     *big.Int
	Data      []byte
	Operation Operation
}

const multiSendABIJSON = `[
  {"inputs":[{"internalType":"bytes","name":"transactions","type":"bytes"}],
   "name":"multiSend","outputs":[],"stateMutability":"payable","type":"function"}
]`

//nolint:gochecknoglobals // parsed once
var multiSendABI = mustParseABI(multiSendABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse ABI: %v", err))
	}
	return parsed
}

// aggregate collapses calls into the single call the Safe executes.
// One call passes through unchanged; several become a MultiSend delegate call.
func aggregate(calls []Call, multiSend common.Address) (Call, error) {
	if len(calls) == 0 {
		return Call{}, fmt.Errorf("no calls to execute")
	}
	if len(calls) == 1 {
		return normalize(calls[0]), nil
	}

	var packed []byte
	for _, c := range calls {
		c = normalize(c)
		packed = append(packed, byte(c.Operation))
		packed = append(packed, c.To.Bytes()...)
		packed = append(packed, common.LeftPadBytes(c.Value.Bytes(), 32)...)

		length := make([]byte, 32)
		binary.BigEndian.PutUint64(length[24:], uint64(len(c.Data)))
		packed = append(packed, length...)
		packed = append(packed, c.Data...)
	}

	data, err := multiSendABI.Pack("multiSend", packed)
	if err != nil {
		return Call{}, fmt.Errorf("pack multiSend: %w", err)
	}

	return Call{
		To:        multiSend,
		Value:     big.NewInt(0),
		Data:      data,
		Operation: OperationDelegateCall,
	}, nil
}

func normalize(c Call) Call {
	if c.Value == nil {
		c.Value = big.NewInt(0)
	}
	return c
}
