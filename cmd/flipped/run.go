package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/risk"
	"github.com/rxtech-lab/flipped-trading/internal/server"
	"github.com/rxtech-lab/flipped-trading/internal/trading/engine"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Trade live until interrupted",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Serve status and metrics on `ADDR` (overrides server.addr and enables the server)",
			},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	if addr := cmd.String("addr"); addr != "" {
		cfg.Server.Enabled = true
		cfg.Server.Addr = addr
	}

	zlog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer zlog.Close()

	ctx, stop := ossignal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(cfg, zlog, true)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// the server stops with the runner
		defer cancel()

		return a.runner.Run(gctx, liveCallbacks(zlog))
	})

	if cfg.Server.Enabled {
		srv, err := server.New(server.Options{
			Addr:    cfg.Server.Addr,
			Status:  a.runner,
			Metrics: a.metrics.Handler(),
			Archive: a.archiver,
		}, zlog)
		if err != nil {
			return err
		}

		g.Go(func() error {
			return srv.Serve(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	stats := a.runner.Stats()
	log.Printf("Session %s finished: %d baskets closed, realized %.2f", stats.ID, stats.Baskets.Closed, stats.PnL.Realized)

	return nil
}

// liveCallbacks logs the lifecycle events the log file does not already carry.
func liveCallbacks(zlog *logger.Logger) engine.Callbacks {
	onStart := engine.OnEngineStartCallback(func(symbol string, runPath string) error {
		zlog.Info("Engine started", zap.String("symbol", symbol), zap.String("run_path", runPath))

		return nil
	})
	onStop := engine.OnEngineStopCallback(func(err error) {
		if err != nil {
			zlog.Error("Engine stopped with error", zap.Error(err))

			return
		}

		zlog.Info("Engine stopped")
	})
	onRejected := engine.OnRiskRejectedCallback(func(reason risk.RejectReason, account types.AccountInfo) {
		zlog.Warn("Risk gate blocked entry",
			zap.String("reason", string(reason)),
			zap.Float64("balance", account.Balance),
			zap.Float64("equity", account.Equity),
		)
	})

	return engine.Callbacks{
		OnEngineStart:  &onStart,
		OnEngineStop:   &onStop,
		OnTick:         nil,
		OnBasketAction: nil,
		OnSignal:       nil,
		OnRiskRejected: &onRejected,
		OnError:        nil,
		OnStatusUpdate: nil,
	}
}
