package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/internal/chain"
	"github.com/mselser95/polymarket-redeemer/internal/markets"
	"github.com/mselser95/polymarket-redeemer/internal/redemption"
	"github.com/mselser95/polymarket-redeemer/internal/relayer"
	"github.com/mselser95/polymarket-redeemer/internal/settlement"
	"github.com/mselser95/polymarket-redeemer/internal/storage"
	"github.com/mselser95/polymarket-redeemer/pkg/cache"
	"github.com/mselser95/polymarket-redeemer/pkg/config"
	"github.com/mselser95/polymarket-redeemer/pkg/healthprobe"
	"github.com/mselser95/polymarket-redeemer/pkg/httpserver"
	"github.com/mselser95/polymarket-redeemer/pkg/wallet"
)

const (
	marketCacheItems   = 10000
	indexSetCacheItems = 100000
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:           cfg,
		opts:          *opts,
		logger:        logger,
		healthChecker: healthprobe.New(),
		ctx:           ctx,
		cancel:        cancel,
		sleep:         sleepContext,
	}

	err := a.setup(ctx)
	if err != nil {
		a.closeResources()
		cancel()
		return nil, err
	}

	return a, nil
}

func (a *App) setup(ctx context.Context) (err error) {
	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          a.cfg.HTTPPort,
		Logger:        a.logger,
		HealthChecker: a.healthChecker,
	})

	a.marketCache, err = cache.NewRistrettoCache(cache.DefaultRistrettoConfig("markets", marketCacheItems, a.logger))
	if err != nil {
		return fmt.Errorf("setup market cache: %w", err)
	}

	a.indexCache, err = cache.NewRistrettoCache(cache.DefaultRistrettoConfig("index-sets", indexSetCacheItems, a.logger))
	if err != nil {
		return fmt.Errorf("setup index set cache: %w", err)
	}

	positions, err := wallet.NewClient(a.cfg.DataAPIURL, a.logger)
	if err != nil {
		return fmt.Errorf("setup position client: %w", err)
	}

	a.receipts, err = chain.DialReceiptSource(ctx, a.cfg.PolygonRPCURL)
	if err != nil {
		return fmt.Errorf("setup receipt source: %w", err)
	}

	a.storage, err = setupStorage(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}

	gamma := markets.NewClient(a.cfg.GammaAPIURL, a.logger)
	deriver := chain.NewDeriver(a.cfg.CollateralAddress, a.cfg.IndexSetMaxIndex, a.indexCache, a.logger)
	encoder := chain.NewEncoder(chain.Contracts{
		Collateral:     a.cfg.CollateralAddress,
		CTF:            a.cfg.CTFAddress,
		NegRiskAdapter: a.cfg.NegRiskAdapterAddress,
	}, deriver)

	a.engine, err = redemption.NewEngine(&redemption.EngineConfig{
		Positions:              positions,
		ClassifyMarkets:        markets.NewCachedClient(gamma, a.marketCache, a.cfg.MarketCacheTTL),
		SubmitMarkets:          gamma,
		Receipts:               a.receipts,
		Encoder:                encoder,
		Storage:                a.storage,
		Resolver:               settlement.New(),
		MarketFetchConcurrency: a.cfg.MarketFetchConcurrency,
		ReceiptTimeout:         a.cfg.ReceiptTimeout,
		ReceiptPollInterval:    a.cfg.ReceiptPollInterval,
		SettleDelay:            a.cfg.SettleDelay,
		RecordRedemptions:      a.cfg.RecordRedemptions,
		DryRun:                 a.opts.DryRun,
		Logger:                 a.logger,
	})
	if err != nil {
		return fmt.Errorf("setup engine: %w", err)
	}

	a.wallets, err = setupWallets(a.cfg, a.opts, a.logger)
	if err != nil {
		return fmt.Errorf("setup wallets: %w", err)
	}

	return nil
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	var store storage.Storage

	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(ctx, &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		store = pgStorage
	} else {
		logger.Warn("memory-storage-enabled",
			zap.String("detail", "skipped verdicts and redemption records are lost on restart; set STORAGE_MODE=postgres to keep them"))
		store = storage.NewMemoryStorage(logger)
	}

	err := store.EnsureSchema(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return store, nil
}

// setupWallets builds one relayer client per complete wallet. Incomplete
// pairs are reported and ignored. Without builder credentials only a
// dry run can proceed.
func setupWallets(cfg *config.Config, opts Options, logger *zap.Logger) ([]walletRunner, error) {
	for _, w := range cfg.Wallets {
		if !w.Complete() {
			logger.Warn("wallet-config-incomplete",
				zap.String("wallet", w.ID),
				zap.Strings("missing", w.Incomplete))
		}
	}

	creds := relayer.BuilderCredentials{
		Key:        cfg.BuilderAPIKey,
		Secret:     cfg.BuilderAPISecret,
		Passphrase: cfg.BuilderAPIPassphrase,
	}

	runners := make([]walletRunner, 0, len(cfg.Wallets))
	for _, w := range cfg.ActiveWallets() {
		if opts.WalletID != "" && w.ID != opts.WalletID {
			continue
		}

		key, err := w.Key()
		if err != nil {
			return nil, err
		}

		runner := walletRunner{
			wallet: redemption.Wallet{ID: w.ID, Address: w.ProxyAddress.Hex()},
			name:   w.Name,
		}

		client, err := relayer.NewClient(&relayer.Config{
			BaseURL:      cfg.RelayerURL,
			ChainID:      cfg.ChainID,
			PrivateKey:   key,
			ProxyAddress: w.ProxyAddress,
			MultiSend:    cfg.SafeMultisendAddress,
			Credentials:  creds,
			Logger:       logger.With(zap.String("wallet", w.ID)),
		})
		switch {
		case err == nil:
			runner.relayer = client
		case errors.Is(err, relayer.ErrMissingCredentials) && opts.DryRun:
			logger.Warn("relayer-credentials-missing-dry-run-only", zap.String("wallet", w.ID))
		default:
			return nil, fmt.Errorf("relayer for wallet %s: %w", w.ID, err)
		}

		runners = append(runners, runner)
	}

	if len(runners) == 0 {
		if opts.WalletID != "" {
			return nil, fmt.Errorf("wallet %s is not configured", opts.WalletID)
		}
		return nil, errors.New("no complete wallet configured")
	}

	return runners, nil
}
