package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/rxtech-lab/flipped-trading/internal/archive"
	"github.com/rxtech-lab/flipped-trading/internal/config"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/marketdata"
	"github.com/rxtech-lab/flipped-trading/internal/metrics"
	"github.com/rxtech-lab/flipped-trading/internal/risk"
	"github.com/rxtech-lab/flipped-trading/internal/signal"
	"github.com/rxtech-lab/flipped-trading/internal/strategy/flipped"
	"github.com/rxtech-lab/flipped-trading/internal/trading/engine"
	enginev1 "github.com/rxtech-lab/flipped-trading/internal/trading/engine/engine_v1"
	tradingprovider "github.com/rxtech-lab/flipped-trading/internal/trading/provider"
)

// app is a fully wired runner with the pieces the commands report on.
type app struct {
	cfg      *config.Config
	runner   engine.Runner
	feed     marketdata.Feed
	metrics  *metrics.Metrics
	archiver *archive.Archiver
}

// loadConfig reads .env files and the config at path.
func loadConfig(path string) (*config.Config, error) {
	if err := config.LoadDotEnv(path); err != nil {
		return nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.NewFileLogger(logger.FileOptions{
		File:    cfg.Logging.File,
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// buildApp wires feed, broker, signal engine, risk gate and strategy into
// an initialized runner. withArchiver enables the midnight log sweep.
func buildApp(cfg *config.Config, log *logger.Logger, withArchiver bool) (*app, error) {
	strategy, err := flipped.NewStrategy(cfg.Symbol, cfg.Strategy, log)
	if err != nil {
		return nil, err
	}

	feed, err := marketdata.NewFeed(cfg.MarketData, cfg.Symbol, cfg.TimeframeValue(), log)
	if err != nil {
		return nil, err
	}

	pips := strategy.PipSpec()

	broker, err := tradingprovider.NewBroker(cfg.Broker, tradingprovider.Dependencies{
		Symbol:       cfg.Symbol,
		Quotes:       feed,
		ContractSize: pips.ValuePerLot * pips.Multiplier,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}

	source, err := signal.NewEngine(cfg.ML, log)
	if err != nil {
		return nil, err
	}

	gate, err := risk.NewGate(cfg.RiskManagement, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		runner:   enginev1.NewRunnerV1(),
		feed:     feed,
		metrics:  metrics.New(),
		archiver: nil,
	}

	deps := engine.Dependencies{
		Broker:   broker,
		Feed:     feed,
		Signal:   source,
		Risk:     gate,
		Strategy: strategy,
		Metrics:  a.metrics,
		Archiver: nil,
		Logger:   log,
		Clock:    nil,
	}

	if withArchiver {
		a.archiver, err = newArchiver(cfg, log)
		if err != nil {
			return nil, err
		}

		deps.Archiver = a.archiver
	}

	pollInterval := time.Duration(cfg.PollSeconds * float64(time.Second))
	if cfg.MarketData.Provider == marketdata.ProviderReplay {
		pollInterval = 0
	}

	runnerConfig := engine.Config{
		Symbol:               cfg.Symbol,
		PollInterval:         pollInterval,
		BarCount:             0,
		DataDir:              cfg.DataDir,
		LogFile:              cfg.Logging.File,
		InheritSkipMartiStop: cfg.InheritSkipMartiStop,
		CloseOnShutdown:      cfg.CloseOnShutdown || cfg.MarketData.Provider == marketdata.ProviderReplay,
	}

	if err := a.runner.Initialize(runnerConfig, deps); err != nil {
		return nil, err
	}

	return a, nil
}

func newArchiver(cfg *config.Config, log *logger.Logger) (*archive.Archiver, error) {
	return archive.NewArchiver(archive.Options{
		LogsDir:      filepath.Dir(cfg.Logging.File),
		ArchiveDir:   "",
		MonthsToKeep: cfg.Logging.ArchiveMonths,
		LogBasename:  filepath.Base(cfg.Logging.File),
	}, log)
}
