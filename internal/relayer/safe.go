package relayer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

//nolint:gochecknoglobals // EIP-712 type hashes
var (
	domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(uint256 chainId,address verifyingContract)"))
	safeTxTypeHash = crypto.Keccak256Hash([]byte(
		"SafeTx(address to,uint256 value,bytes data,uint8 operation,uint256 safeTxGas," +
			"uint256 baseGas,uint256 gasPrice,address gasToken,address refundReceiver,uint256 nonce)"))

	bytes32Type, _ = abi.NewType("bytes32", "", nil)
	uint256Type, _ = abi.NewType("uint256", "", nil)
	uint8Type, _   = abi.NewType("uint8", "", nil)
	addressType, _ = abi.NewType("address", "", nil)

	domainArgs = abi.Arguments{{Type: bytes32Type}, {Type: uint256Type}, {Type: addressType}}
	safeTxArgs = abi.Arguments{
		{Type: bytes32Type}, // typehash
		{Type: addressType}, // to
		{Type: uint256Type}, // value
		{Type: bytes32Type}, // keccak(data)
		{Type: uint8Type},   // operation
		{Type: uint256Type}, // safeTxGas
		{Type: uint256Type}, // baseGas
		{Type: uint256Type}, // gasPrice
		{Type: addressType}, // gasToken
		{Type: addressType}, // refundReceiver
		{Type: uint256Type}, // nonce
	}
)

// SafeTxHash computes the EIP-712 hash a Safe owner signs to authorise call
// at the given nonce. Gas fields are zero: the relayer pays for execution.
func SafeTxHash(chainID *big.Int, safe common.Address, call Call, nonce *big.Int) (common.Hash, error) {
	call = normalize(call)

	domain, err := domainArgs.Pack(domainTypeHash, chainID, safe)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack domain: %w", err)
	}
	domainSeparator := crypto.Keccak256Hash(domain)

	zero := big.NewInt(0)
	structData, err := safeTxArgs.Pack(
		safeTxTypeHash,
		call.To,
		call.Value,
		crypto.Keccak256Hash(call.Data),
		uint8(call.Operation),
		zero,
		zero,
		zero,
		common.Address{},
		common.Address{},
		nonce,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack safe tx: %w", err)
	}
	structHash := crypto.Keccak256Hash(structData)

	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSeparator.Bytes(), structHash.Bytes()), nil
}

// SignSafeHash signs hash as a personal message and packs r, s and v with v
// moved into the 31/32 range the Safe uses for eth_sign signatures.
func SignSafeHash(hash common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, fmt.Errorf("missing private key")
	}

	sig, err := crypto.Sign(accounts.TextHash(hash.Bytes()), key)
	if err != nil {
		return nil, fmt.Errorf("sign safe hash: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("unexpected signature length %d", len(sig))
	}

	switch v := sig[64]; v {
	case 0, 1:
		sig[64] = v + 31
	case 27, 28:
		sig[64] = v + 4
	default:
		return nil, fmt.Errorf("invalid signature v %d", v)
	}

	return sig, nil
}

// RecoverSafeSigner returns the address that produced a SignSafeHash signature.
func RecoverSafeSigner(hash common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("unexpected signature length %d", len(sig))
	}

	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] < 31 {
		return common.Address{}, fmt.Errorf("signature v %d is not an eth_sign signature", normalized[64])
	}
	normalized[64] -= 31

	pub, err := crypto.SigToPub(accounts.TextHash(hash.Bytes()), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
