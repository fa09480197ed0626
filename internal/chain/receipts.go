package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrReceiptNotFound means the transaction is not mined yet (or unknown).
var ErrReceiptNotFound = errors.New("receipt not found")

// Receipt is the part of a transaction receipt redemption cares about.
type Receipt struct {
	TxHash      string
	Status      uint64
	BlockNumber uint64
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == gethtypes.ReceiptStatusSuccessful
}

type receiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// ReceiptSource reads receipts from a JSON-RPC node.
type ReceiptSource struct {
	fetcher receiptFetcher
	close   func()
}

// DialReceiptSource connects to rpcURL.
func DialReceiptSource(ctx context.Context, rpcURL string) (*ReceiptSource, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	return &ReceiptSource{fetcher: client, close: client.Close}, nil
}

// Receipt fetches the receipt of txHash. A transaction without a receipt
// yields ErrReceiptNotFound.
func (s *ReceiptSource) Receipt(ctx context.Context, txHash string) (*Receipt, error) {
	hashStr := strings.TrimSpace(txHash)
	if len(hashStr) != 66 || !strings.HasPrefix(hashStr, "0x") {
		return nil, fmt.Errorf("invalid transaction hash %q", txHash)
	}
	hash := common.HexToHash(hashStr)

	receipt, err := s.fetcher.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	if receipt == nil {
		return nil, ErrReceiptNotFound
	}

	out := &Receipt{TxHash: hash.Hex(), Status: receipt.Status}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return out, nil
}

// Close releases the RPC connection.
func (s *ReceiptSource) Close() {
	if s.close != nil {
		s.close()
	}
}
