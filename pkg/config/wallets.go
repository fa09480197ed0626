package config

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet is one managed wallet: the EOA key that signs relayer requests and
// the proxy (Safe) address that holds the positions.
type Wallet struct {
	ID           string
	Name         string
	PrivateKey   string
	ProxyAddress common.Address

	// Incomplete lists the missing env keys when only half of the pair is set.
	Incomplete []string
}

// Complete reports whether both halves of the wallet pair are configured.
func (w Wallet) Complete() bool {
	return len(w.Incomplete) == 0
}

// Key parses the wallet's private key.
func (w Wallet) Key() (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(w.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key for %s: %w", w.Name, err)
	}
	return key, nil
}

// LoadWallets reads WALLET_{i}_PRIVATE_KEY and WALLET_{i}_PROXY_ADDRESS for
// i in 1..max. Pairs with only one half set are returned with Incomplete
// populated so the caller can warn about them; unset pairs are omitted.
func LoadWallets(max int) []Wallet {
	wallets := make([]Wallet, 0, max)

	for i := 1; i <= max; i++ {
		keyEnv := fmt.Sprintf("WALLET_%d_PRIVATE_KEY", i)
		proxyEnv := fmt.Sprintf("WALLET_%d_PROXY_ADDRESS", i)

		privateKey := strings.TrimSpace(os.Getenv(keyEnv))
		proxy := strings.TrimSpace(os.Getenv(proxyEnv))

		if privateKey == "" && proxy == "" {
			continue
		}

		wallet := Wallet{
			ID:         strconv.Itoa(i),
			Name:       fmt.Sprintf("Wallet %d", i),
			PrivateKey: privateKey,
		}

		if privateKey == "" {
			wallet.Incomplete = append(wallet.Incomplete, keyEnv)
		}
		if proxy == "" || !common.IsHexAddress(proxy) {
			wallet.Incomplete = append(wallet.Incomplete, proxyEnv)
		} else {
			wallet.ProxyAddress = common.HexToAddress(proxy)
		}

		wallets = append(wallets, wallet)
	}

	return wallets
}

// ActiveWallets returns the wallets with both halves configured.
func (c *Config) ActiveWallets() []Wallet {
	active := make([]Wallet, 0, len(c.Wallets))
	for _, w := range c.Wallets {
		if w.Complete() {
			active = append(active, w)
		}
	}
	return active
}
