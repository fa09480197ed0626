package app

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/internal/chain"
	"github.com/mselser95/polymarket-redeemer/internal/redemption"
	"github.com/mselser95/polymarket-redeemer/internal/storage"
	"github.com/mselser95/polymarket-redeemer/pkg/cache"
	"github.com/mselser95/polymarket-redeemer/pkg/config"
	"github.com/mselser95/polymarket-redeemer/pkg/healthprobe"
	"github.com/mselser95/polymarket-redeemer/pkg/httpserver"
)

// App is the main application orchestrator: it runs redemption cycles
// over the configured wallets on a fixed interval.
type App struct {
	cfg           *config.Config
	opts          Options
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	marketCache   *cache.RistrettoCache
	indexCache    *cache.RistrettoCache
	receipts      *chain.ReceiptSource
	storage       storage.Storage
	engine        *redemption.Engine
	wallets       []walletRunner
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	sleep         func(ctx context.Context, d time.Duration) error
}

// Options holds application options.
type Options struct {
	Once     bool          // single pass over the wallets, then exit
	DryRun   bool          // log would-be submissions only
	WalletID string        // restrict to one wallet id
	Interval time.Duration // overrides SCAN_INTERVAL when positive
}

type walletRunner struct {
	wallet  redemption.Wallet
	name    string
	relayer redemption.Relayer
}
