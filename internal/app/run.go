package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/internal/redemption"
)

// Run starts the application and blocks until shutdown. With Once set it
// performs a single pass over the wallets and returns.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.Int("wallets", len(a.wallets)),
		zap.Bool("once", a.opts.Once),
		zap.Bool("dry-run", a.opts.DryRun),
		zap.Duration("interval", a.interval()),
		zap.String("storage-mode", a.cfg.StorageMode),
		zap.String("log-level", a.cfg.LogLevel))

	if a.opts.Once {
		_, err := a.RunOnce(a.ctx)
		shutdownErr := a.Shutdown()
		if err != nil {
			return err
		}
		return shutdownErr
	}

	a.wg.Add(1)
	go a.runHTTPServer()

	a.wg.Add(1)
	go a.scanLoop()

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort))

	return a.waitForShutdown()
}

// RunOnce runs one cycle per wallet, sequentially, with WalletDelay between
// wallets. A failing or panicking wallet does not stop the pass.
func (a *App) RunOnce(ctx context.Context) ([]*redemption.CycleReport, error) {
	reports := make([]*redemption.CycleReport, 0, len(a.wallets))
	failed := 0

	for i, w := range a.wallets {
		if i > 0 {
			err := a.sleep(ctx, a.cfg.WalletDelay)
			if err != nil {
				return reports, fmt.Errorf("wallet delay: %w", err)
			}
		}

		report, err := a.runWallet(ctx, w)
		a.healthChecker.RecordWallet(w.wallet.ID, err)
		if err != nil {
			failed++
			a.logger.Error("wallet-cycle-failed",
				zap.String("wallet", w.wallet.ID),
				zap.String("name", w.name),
				zap.Error(err))
		}
		if report != nil {
			reports = append(reports, report)
		}
	}

	a.healthChecker.RecordCycle()

	if failed > 0 {
		return reports, fmt.Errorf("%d of %d wallet cycles failed", failed, len(a.wallets))
	}
	return reports, nil
}

func (a *App) runWallet(ctx context.Context, w walletRunner) (report *redemption.CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("wallet-cycle-panic",
				zap.String("wallet", w.wallet.ID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = fmt.Errorf("wallet %s panicked: %v", w.wallet.ID, r)
		}
	}()

	return a.engine.RunWallet(ctx, w.wallet, w.relayer)
}

func (a *App) scanLoop() {
	defer a.wg.Done()

	for {
		_, err := a.RunOnce(a.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("scan-pass-incomplete", zap.Error(err))
		}

		a.logger.Info("scan-pass-complete", zap.Duration("next-in", a.interval()))

		err = a.sleep(a.ctx, a.interval())
		if err != nil {
			a.logger.Info("scan-loop-stopping")
			return
		}
	}
}

func (a *App) interval() time.Duration {
	if a.opts.Interval > 0 {
		return a.opts.Interval
	}
	return a.cfg.ScanInterval
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
