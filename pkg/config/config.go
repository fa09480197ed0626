package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	orderconfig "github.com/polymarket/go-order-utils/pkg/config"
)

const (
	defaultChainID             = 137
	defaultSafeMultisend       = "0x40A2aCCbd92BCA938b02010E17A5b8929b49130D"
	defaultMaxWallets          = 10
	defaultIndexSetSearchLimit = 64
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Upstream APIs
	DataAPIURL    string
	GammaAPIURL   string
	RelayerURL    string
	PolygonRPCURL string
	ChainID       int64

	// Builder relayer credentials
	BuilderAPIKey        string
	BuilderAPISecret     string
	BuilderAPIPassphrase string

	// Contracts
	CollateralAddress     common.Address
	CTFAddress            common.Address
	NegRiskAdapterAddress common.Address
	SafeMultisendAddress  common.Address

	// Scheduling
	ScanInterval time.Duration
	WalletDelay  time.Duration

	// Settlement & redemption
	MarketFetchConcurrency int
	MarketCacheTTL         time.Duration
	ReceiptTimeout         time.Duration
	ReceiptPollInterval    time.Duration
	SettleDelay            time.Duration
	IndexSetMaxIndex       int
	RecordRedemptions      bool

	// Wallets
	MaxWallets int
	Wallets    []Wallet

	// Storage
	StorageMode  string // "postgres" or "memory"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	chainID := getInt64OrDefault("CHAIN_ID", defaultChainID)

	contracts, err := orderconfig.GetContracts(chainID)
	if err != nil {
		return nil, fmt.Errorf("contracts for chain %d: %w", chainID, err)
	}

	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Upstream API defaults
		DataAPIURL:    getEnvOrDefault("DATA_API_URL", "https://data-api.polymarket.com"),
		GammaAPIURL:   getEnvOrDefault("GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		RelayerURL:    getEnvOrDefault("RELAYER_URL", "https://relayer-v2.polymarket.com"),
		PolygonRPCURL: getEnvOrDefault("POLYGON_RPC_URL", "https://polygon-rpc.com"),
		ChainID:       chainID,

		BuilderAPIKey:        os.Getenv("BUILDER_POLY_API_KEY"),
		BuilderAPISecret:     os.Getenv("BUILDER_POLY_API_SECRET"),
		BuilderAPIPassphrase: os.Getenv("BUILDER_POLY_API_PASSPHRASE"),

		// Contract defaults come from go-order-utils; env overrides win
		CollateralAddress:     getAddressOrDefault("COLLATERAL_ADDRESS", contracts.Collateral),
		CTFAddress:            getAddressOrDefault("CTF_ADDRESS", contracts.Conditional),
		NegRiskAdapterAddress: getAddressOrDefault("NEG_RISK_ADAPTER_ADDRESS", contracts.NegRiskAdapter),
		SafeMultisendAddress:  getAddressOrDefault("SAFE_MULTISEND_ADDRESS", common.HexToAddress(defaultSafeMultisend)),

		// Scheduling defaults
		ScanInterval: getDurationOrDefault("SCAN_INTERVAL", 1*time.Hour),
		WalletDelay:  getDurationOrDefault("WALLET_DELAY", 5*time.Second),

		// Settlement & redemption defaults
		MarketFetchConcurrency: getIntOrDefault("MARKET_FETCH_CONCURRENCY", 5),
		MarketCacheTTL:         getDurationOrDefault("MARKET_CACHE_TTL", 1*time.Minute),
		ReceiptTimeout:         getDurationOrDefault("RECEIPT_TIMEOUT", 30*time.Second),
		ReceiptPollInterval:    getDurationOrDefault("RECEIPT_POLL_INTERVAL", 2*time.Second),
		SettleDelay:            getDurationOrDefault("SETTLE_DELAY", 15*time.Second),
		IndexSetMaxIndex:       getIntOrDefault("INDEX_SET_MAX_INDEX", defaultIndexSetSearchLimit),
		RecordRedemptions:      getBoolOrDefault("RECORD_REDEMPTIONS", true),

		MaxWallets: getIntOrDefault("MAX_WALLETS", defaultMaxWallets),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "memory"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "polymarket"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "polymarket123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "polymarket_redeemer"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	cfg.Wallets = LoadWallets(cfg.MaxWallets)

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.DataAPIURL == "" {
		return fmt.Errorf("DATA_API_URL cannot be empty")
	}

	if c.GammaAPIURL == "" {
		return fmt.Errorf("GAMMA_API_URL cannot be empty")
	}

	if c.RelayerURL == "" {
		return fmt.Errorf("RELAYER_URL cannot be empty")
	}

	if c.PolygonRPCURL == "" {
		return fmt.Errorf("POLYGON_RPC_URL cannot be empty")
	}

	if c.MarketFetchConcurrency <= 0 {
		return fmt.Errorf("MARKET_FETCH_CONCURRENCY must be positive, got %d", c.MarketFetchConcurrency)
	}

	if c.IndexSetMaxIndex <= 0 || c.IndexSetMaxIndex > 256 {
		return fmt.Errorf("INDEX_SET_MAX_INDEX must be between 1 and 256, got %d", c.IndexSetMaxIndex)
	}

	if c.ReceiptPollInterval <= 0 {
		return fmt.Errorf("RECEIPT_POLL_INTERVAL must be positive, got %s", c.ReceiptPollInterval)
	}

	if c.ReceiptTimeout < c.ReceiptPollInterval {
		return fmt.Errorf("RECEIPT_TIMEOUT (%s) must not be shorter than RECEIPT_POLL_INTERVAL (%s)",
			c.ReceiptTimeout, c.ReceiptPollInterval)
	}

	if c.SettleDelay < 0 || c.WalletDelay < 0 {
		return fmt.Errorf("SETTLE_DELAY and WALLET_DELAY cannot be negative")
	}

	if c.StorageMode != "postgres" && c.StorageMode != "memory" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'memory', got %q", c.StorageMode)
	}

	return nil
}

// HasBuilderCredentials reports whether all relayer credentials are present.
func (c *Config) HasBuilderCredentials() bool {
	return c.BuilderAPIKey != "" && c.BuilderAPISecret != "" && c.BuilderAPIPassphrase != ""
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getAddressOrDefault(key string, defaultValue common.Address) common.Address {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" || !common.IsHexAddress(value) {
		return defaultValue
	}

	return common.HexToAddress(value)
}
