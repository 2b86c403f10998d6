package engine_v1

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/flipped-trading/internal/indicator"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/signal"
	"github.com/rxtech-lab/flipped-trading/internal/trading/engine"
	"github.com/rxtech-lab/flipped-trading/internal/trading/engine/engine_v1/session"
	"github.com/rxtech-lab/flipped-trading/internal/trading/engine/engine_v1/stats"
	"github.com/rxtech-lab/flipped-trading/internal/trading/engine/engine_v1/writers"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"go.uber.org/zap"
)

const (
	// MinBarCount is the smallest history requested per tick.
	MinBarCount = 120
	// ATRPeriod is the window of the ATR fed to the trailing rule.
	ATRPeriod = 14

	basketActionsFile = "basket_actions.parquet"
	signalsFile       = "signals.parquet"
	statsFile         = "stats.yaml"

	// archive sweeps run during the first minutes after midnight
	archiveWindowMinutes = 5

	shutdownTimeout = 15 * time.Second
)

// RunnerV1 polls the feed, runs the basket rules and executes them on the
// broker. The strategy is owned by the loop; other goroutines only read the
// published Status.
type RunnerV1 struct {
	cfg         engine.Config
	deps        engine.Dependencies
	log         *logger.Logger
	now         func() time.Time
	initialized bool

	sessionManager *session.Manager
	statsTracker   *stats.Tracker
	actionsWriter  *writers.BasketActionsWriter
	signalsWriter  *writers.SignalsWriter

	ticks          int
	lastTick       types.Tick
	lastSignal     types.SignalResult
	lastSignalBar  time.Time
	lastArchiveDay string
	lastErr        error

	mu     sync.RWMutex
	status engine.Status
}

// NewRunnerV1 returns an uninitialized runner.
func NewRunnerV1() engine.Runner {
	return &RunnerV1{
		cfg:            engine.Config{},       //nolint:exhaustruct // set by Initialize
		deps:           engine.Dependencies{}, //nolint:exhaustruct // set by Initialize
		log:            logger.NewNopLogger(),
		now:            time.Now,
		initialized:    false,
		sessionManager: nil,
		statsTracker:   nil,
		actionsWriter:  nil,
		signalsWriter:  nil,
		ticks:          0,
		lastTick:       types.Tick{},
		lastSignal:     types.SignalResult{},
		lastSignalBar:  time.Time{},
		lastArchiveDay: "",
		lastErr:        nil,
		mu:             sync.RWMutex{},
		status:         engine.Status{}, //nolint:exhaustruct // published after each tick
	}
}

// Initialize validates the dependencies, creates the session folder and
// opens the journal.
func (r *RunnerV1) Initialize(cfg engine.Config, deps engine.Dependencies) error {
	if err := checkDependencies(cfg, deps); err != nil {
		return err
	}

	if cfg.BarCount <= 0 {
		cfg.BarCount = max(MinBarCount, signal.RequiredBars)
	}

	r.cfg = cfg
	r.deps = deps

	if deps.Logger != nil {
		r.log = deps.Logger
	}

	if deps.Clock != nil {
		r.now = deps.Clock
	}

	r.statsTracker = stats.NewTrackerWithClock(r.log, r.now)

	if cfg.DataDir == "" {
		r.statsTracker.Initialize(cfg.Symbol, "", "", r.now())
	} else {
		r.sessionManager = session.NewManagerWithClock(r.log, r.now)
		if err := r.sessionManager.Initialize(cfg.DataDir); err != nil {
			return err
		}

		r.statsTracker.Initialize(cfg.Symbol, r.sessionManager.RunID(), r.sessionManager.SessionID(), r.sessionManager.SessionStart())

		if err := r.openJournal(); err != nil {
			return err
		}
	}

	r.publishStatus(types.EngineStatusStarting, 0)
	r.initialized = true

	r.log.Info("Runner initialized",
		zap.String("symbol", cfg.Symbol),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Int("bar_count", cfg.BarCount),
		zap.String("data_dir", cfg.DataDir),
	)

	return nil
}

// Run executes ticks until ctx is cancelled, a replay feed runs out or a
// callback fails.
func (r *RunnerV1) Run(ctx context.Context, callbacks engine.Callbacks) error {
	var runErr error

	defer func() {
		r.shutdown(callbacks)

		if callbacks.OnEngineStop != nil {
			(*callbacks.OnEngineStop)(runErr)
		}
	}()

	if !r.initialized {
		runErr = errors.New(errors.ErrCodeEngineNotInitialized, "runner not initialized - call Initialize() first")

		return runErr
	}

	if err := r.deps.Broker.CheckConnection(ctx); err != nil {
		runErr = errors.Wrap(errors.ErrCodeBrokerNotReady, "broker connection check failed", err)

		return runErr
	}

	if err := r.syncExistingBasket(ctx); err != nil {
		runErr = err

		return runErr
	}

	if callbacks.OnEngineStart != nil {
		runPath := ""
		if r.sessionManager != nil {
			runPath = r.sessionManager.RunPath()
		}

		if err := (*callbacks.OnEngineStart)(r.cfg.Symbol, runPath); err != nil {
			runErr = errors.Wrap(errors.ErrCodeCallbackFailed, "OnEngineStart callback failed", err)

			return runErr
		}
	}

	if err := r.setEngineStatus(callbacks, types.EngineStatusRunning); err != nil {
		runErr = err

		return runErr
	}

	r.log.Info("Starting main loop", zap.Duration("poll_interval", r.cfg.PollInterval))

	for ctx.Err() == nil {
		done, err := r.tick(ctx, callbacks)
		if errors.HasCode(err, errors.ErrCodeCallbackFailed) {
			runErr = err

			return runErr
		}

		if err != nil {
			r.reportError(callbacks, err)
		}

		if done {
			r.log.Info("Feed exhausted, stopping")

			return nil
		}

		if !r.sleep(ctx) {
			break
		}
	}

	r.log.Info("Shutdown requested")

	return nil
}

// Status returns the snapshot published after the last tick.
func (r *RunnerV1) Status() engine.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.status
}

// Stats returns the cumulative session statistics.
func (r *RunnerV1) Stats() types.SessionStats {
	if r.statsTracker == nil {
		return types.SessionStats{} //nolint:exhaustruct // not initialized
	}

	return r.statsTracker.Cumulative()
}

// tick runs one poll. It reports done when a replay feed has no more bars.
func (r *RunnerV1) tick(ctx context.Context, callbacks engine.Callbacks) (bool, error) {
	if advancer, ok := r.deps.Feed.(engine.Advancer); ok {
		if err := advancer.Advance(); err != nil {
			if errors.HasCode(err, errors.ErrCodeReplayExhausted) {
				return true, nil
			}

			return false, err
		}
	}

	r.ticks++
	r.lastErr = nil
	strategy := r.deps.Strategy

	bars, err := r.deps.Feed.Bars(ctx, r.cfg.BarCount)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch bars", err)
	}

	atrPips := indicator.ATRPips(bars, ATRPeriod, strategy.PipSpec().Multiplier)

	tick, err := r.deps.Feed.LatestTick(ctx)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch tick", err)
	}

	r.lastTick = tick
	price := tick.PriceFor(strategy.Direction())

	var tickErr error

	if strategy.IsOpen() {
		tickErr = r.maybeClose(ctx, callbacks, price, atrPips)

		if tickErr == nil && strategy.IsOpen() {
			tickErr = r.maybeAdd(ctx, callbacks, price)
		}
	} else {
		tickErr = r.maybeOpenNew(ctx, callbacks, bars)
	}

	if errors.HasCode(tickErr, errors.ErrCodeCallbackFailed) {
		return false, tickErr
	}

	now := r.now()
	r.handleDateBoundary(now)
	r.maybeArchive(now)

	r.lastErr = tickErr
	r.publishStatus(types.EngineStatusRunning, tick.PriceFor(strategy.Direction()))

	if callbacks.OnTick != nil {
		if err := (*callbacks.OnTick)(r.Status()); err != nil {
			return false, errors.Wrap(errors.ErrCodeCallbackFailed, "OnTick callback failed", err)
		}
	}

	return false, tickErr
}

// maybeClose closes the basket when an exit rule fires. A close the broker
// does not complete is journaled with the _FAILED reason; the basket stays
// open unless the broker has no positions left.
func (r *RunnerV1) maybeClose(ctx context.Context, callbacks engine.Callbacks, price float64, atrPips optional.Option[float64]) error {
	strategy := r.deps.Strategy

	shouldClose, reason := strategy.ShouldClose(price, atrPips)
	if !shouldClose {
		return nil
	}

	closed, closeErr := r.deps.Broker.CloseAll(ctx)
	if closeErr == nil && len(closed) > 0 {
		action, err := strategy.CloseBasket(price, reason)
		if err != nil {
			return err
		}

		return r.recordAction(callbacks, action)
	}

	if closeErr == nil {
		closeErr = errors.New(errors.ErrCodeCloseFailed, "broker closed no positions")
	}

	failed := reason.Failed()

	r.log.Error("Basket close failed",
		zap.String("reason", string(failed)),
		zap.Int("closed", len(closed)),
		zap.Error(closeErr),
	)

	positions, posErr := r.deps.Broker.Positions(ctx)
	if posErr == nil && len(positions) == 0 {
		action, err := strategy.CloseBasket(price, failed)
		if err != nil {
			return err
		}

		if err := r.recordAction(callbacks, action); err != nil {
			return err
		}

		return errors.Wrapf(errors.ErrCodeCloseFailed, closeErr, "%s: basket released, broker has no positions", failed)
	}

	status := strategy.Status()
	attempt := types.BasketAction{
		Action:      types.ActionClose,
		Direction:   status.Direction,
		Price:       price,
		Volume:      status.TotalVolume,
		BasketSize:  status.BasketSize,
		TotalVolume: status.TotalVolume,
		Profit:      strategy.Profit(price),
		Reason:      failed,
		OrderID:     "",
		Time:        r.now(),
		Released:    false,
	}

	if err := r.recordAction(callbacks, attempt); err != nil {
		return err
	}

	return errors.Wrapf(errors.ErrCodeCloseFailed, errors.Join(errors.ErrCodeCloseFailed, "close failed", closeErr, posErr), "%s: basket kept open for retry", failed)
}

// maybeAdd sends the next leg when price moved far enough in favor.
func (r *RunnerV1) maybeAdd(ctx context.Context, callbacks engine.Callbacks, price float64) error {
	strategy := r.deps.Strategy

	if !strategy.ShouldAdd(price) {
		return nil
	}

	volume := strategy.ComputeNextVolume()

	order, err := r.deps.Broker.OpenMarket(ctx, strategy.Direction(), volume)
	if err != nil {
		return errors.Wrap(errors.ErrCodeOrderFailed, "failed to add basket leg", err)
	}

	action, err := strategy.AddToBasket(order.Price, order.OrderID)
	if err != nil {
		return err
	}

	return r.recordAction(callbacks, action)
}

// maybeOpenNew evaluates the signal and, when the risk gate agrees, opens a basket.
func (r *RunnerV1) maybeOpenNew(ctx context.Context, callbacks engine.Callbacks, bars []types.Bar) error {
	result := r.deps.Signal.Evaluate(bars)
	if err := r.recordSignal(callbacks, result); err != nil {
		return err
	}

	if !result.HasSignal() {
		return nil
	}

	account, err := r.deps.Broker.AccountInfo(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeAccountFailed, "failed to fetch account info", err)
	}

	r.deps.Risk.UpdateDaily(account.Profit)

	ok, reason := r.deps.Risk.CanOpenPosition(account)
	if !ok {
		r.log.Warn("Skipping signal due to risk gate",
			zap.String("signal", string(result.Signal)),
			zap.String("reason", string(reason)),
		)

		r.statsTracker.RecordRiskRejection()

		if r.deps.Metrics != nil {
			r.deps.Metrics.RecordRiskRejection(string(reason))
		}

		if callbacks.OnRiskRejected != nil {
			(*callbacks.OnRiskRejected)(reason, account)
		}

		return nil
	}

	strategy := r.deps.Strategy

	order, err := r.deps.Broker.OpenMarket(ctx, result.Signal, strategy.ComputeNextVolume())
	if err != nil {
		return errors.Wrap(errors.ErrCodeOrderFailed, "failed to open basket", err)
	}

	action, err := strategy.OpenBasket(result.Signal, order.Price, order.OrderID)
	if err != nil {
		return err
	}

	r.deps.Risk.RecordTrade()

	r.log.Info("ML entry",
		zap.String("signal", string(result.Signal)),
		zap.Float64("buy_probability", result.BuyProbability),
		zap.Float64("sell_probability", result.SellProbability),
		zap.Float64("price", order.Price),
	)

	return r.recordAction(callbacks, action)
}

// syncExistingBasket adopts positions already open at the broker.
func (r *RunnerV1) syncExistingBasket(ctx context.Context) error {
	positions, err := r.deps.Broker.Positions(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBasketSyncFail, "failed to read broker positions", err)
	}

	if len(positions) == 0 {
		return nil
	}

	legs, direction, skipped := legsFromPositions(positions)

	if err := r.deps.Strategy.SyncFromExternal(legs, direction); err != nil {
		return err
	}

	if r.cfg.InheritSkipMartiStop {
		r.deps.Strategy.MarkInherited(true)
	}

	r.log.Info("Synced existing basket",
		zap.Int("legs", len(legs)),
		zap.String("direction", string(direction)),
		zap.Int("skipped_opposite", skipped),
		zap.Bool("skip_marti_stop", r.cfg.InheritSkipMartiStop),
	)

	return nil
}

// legsFromPositions turns broker positions into legs. The first position sets
// the direction; positions on the other side are skipped and counted.
func legsFromPositions(positions []types.BrokerPosition) ([]types.Leg, types.Direction, int) {
	if len(positions) == 0 {
		return nil, types.DirectionNone, 0
	}

	direction := positions[0].Direction
	legs := make([]types.Leg, 0, len(positions))
	skipped := 0

	for _, position := range positions {
		if position.Direction != direction {
			skipped++

			continue
		}

		legs = append(legs, position.ToLeg())
	}

	return legs, direction, skipped
}

// recordAction journals, counts and reports one basket action.
func (r *RunnerV1) recordAction(callbacks engine.Callbacks, action types.BasketAction) error {
	if !r.lastTick.Time.IsZero() {
		action.Time = r.lastTick.Time
	}

	if r.actionsWriter != nil {
		if err := r.actionsWriter.Write(action); err != nil {
			r.log.Warn("Failed to journal basket action", zap.Error(err))
			r.reportError(callbacks, err)
		}
	}

	r.statsTracker.RecordAction(action)

	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordAction(action)
	}

	if err := r.statsTracker.WriteStatsYAML(); err != nil {
		r.log.Warn("Failed to write stats", zap.Error(err))
	}

	if callbacks.OnBasketAction != nil {
		if err := (*callbacks.OnBasketAction)(action); err != nil {
			return errors.Wrap(errors.ErrCodeCallbackFailed, "OnBasketAction callback failed", err)
		}
	}

	return nil
}

// recordSignal keeps the latest result and journals one evaluation per bar.
func (r *RunnerV1) recordSignal(callbacks engine.Callbacks, result types.SignalResult) error {
	r.lastSignal = result

	if !result.Time.IsZero() && result.Time.Equal(r.lastSignalBar) {
		return nil
	}

	r.lastSignalBar = result.Time

	if r.signalsWriter != nil {
		if err := r.signalsWriter.Write(result); err != nil {
			r.log.Warn("Failed to journal signal", zap.Error(err))
		}
	}

	if callbacks.OnSignal != nil {
		if err := (*callbacks.OnSignal)(result); err != nil {
			return errors.Wrap(errors.ErrCodeCallbackFailed, "OnSignal callback failed", err)
		}
	}

	return nil
}

// handleDateBoundary moves the journal into the new day's run folder and
// resets the daily stats.
func (r *RunnerV1) handleDateBoundary(now time.Time) {
	date := now.Format("2006-01-02")
	if !r.statsTracker.HandleDateBoundary(date) || r.sessionManager == nil {
		return
	}

	if err := r.statsTracker.WriteStatsYAML(); err != nil {
		r.log.Warn("Failed to write stats before date boundary", zap.Error(err))
	}

	r.closeJournal()

	if _, err := r.sessionManager.HandleDateBoundary(now); err != nil {
		r.log.Error("Failed to move session to new date", zap.Error(err))

		return
	}

	if err := r.openJournal(); err != nil {
		r.log.Error("Failed to reopen journal", zap.Error(err))
	}
}

// maybeArchive runs the log archiver once per day shortly after midnight.
func (r *RunnerV1) maybeArchive(now time.Time) {
	if r.deps.Archiver == nil {
		return
	}

	day := now.Format("2006-01-02")
	if now.Hour() != 0 || now.Minute() >= archiveWindowMinutes || day == r.lastArchiveDay {
		return
	}

	r.lastArchiveDay = day

	archived, err := r.deps.Archiver.ArchiveOldLogs()
	if err != nil {
		r.log.Error("Log archiving failed", zap.Error(err))

		return
	}

	r.log.Info("Log archive sweep done", zap.Int("archived", archived))
}

func (r *RunnerV1) openJournal() error {
	r.actionsWriter = writers.NewBasketActionsWriter(r.sessionManager.FilePath(basketActionsFile), r.cfg.Symbol, r.log)
	if err := r.actionsWriter.Initialize(); err != nil {
		r.actionsWriter = nil

		return err
	}

	r.signalsWriter = writers.NewSignalsWriter(r.sessionManager.FilePath(signalsFile), r.cfg.Symbol, r.log)
	if err := r.signalsWriter.Initialize(); err != nil {
		r.signalsWriter = nil

		return err
	}

	r.statsTracker.SetPaths(stats.Paths{
		BasketActions: r.actionsWriter.OutputPath(),
		Signals:       r.signalsWriter.OutputPath(),
		Log:           r.cfg.LogFile,
		Stats:         filepath.Join(r.sessionManager.RunPath(), statsFile),
	})

	return nil
}

func (r *RunnerV1) closeJournal() {
	if r.actionsWriter != nil {
		if err := r.actionsWriter.Flush(); err != nil {
			r.log.Warn("Failed to flush basket actions writer", zap.Error(err))
		}

		if err := r.actionsWriter.Close(); err != nil {
			r.log.Warn("Failed to close basket actions writer", zap.Error(err))
		}

		r.actionsWriter = nil
	}

	if r.signalsWriter != nil {
		if err := r.signalsWriter.Flush(); err != nil {
			r.log.Warn("Failed to flush signals writer", zap.Error(err))
		}

		if err := r.signalsWriter.Close(); err != nil {
			r.log.Warn("Failed to close signals writer", zap.Error(err))
		}

		r.signalsWriter = nil
	}
}

// shutdown closes an open basket when configured, then flushes the journal
// and writes the final stats.
func (r *RunnerV1) shutdown(callbacks engine.Callbacks) {
	if r.initialized && r.cfg.CloseOnShutdown && r.deps.Strategy.IsOpen() {
		r.closeOnShutdown(callbacks)
	}

	if r.statsTracker != nil {
		if err := r.statsTracker.WriteStatsYAML(); err != nil {
			r.log.Warn("Failed to write final stats", zap.Error(err))
		}
	}

	r.closeJournal()

	if r.initialized {
		_ = r.setEngineStatus(callbacks, types.EngineStatusStopped)
	}
}

func (r *RunnerV1) closeOnShutdown(callbacks engine.Callbacks) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	strategy := r.deps.Strategy
	r.log.Info("Closing open basket before exit", zap.Int("legs", len(strategy.Legs())))

	price := r.lastTick.PriceFor(strategy.Direction())
	if tick, err := r.deps.Feed.LatestTick(ctx); err == nil {
		r.lastTick = tick
		price = tick.PriceFor(strategy.Direction())
	}

	closed, err := r.deps.Broker.CloseAll(ctx)
	if err != nil || len(closed) == 0 {
		r.log.Error("Failed to close basket on shutdown", zap.Int("closed", len(closed)), zap.Error(err))

		return
	}

	action, err := strategy.CloseBasket(price, types.CloseReasonShutdown)
	if err != nil {
		r.log.Error("Failed to book shutdown close", zap.Error(err))

		return
	}

	_ = r.recordAction(callbacks, action)
}

func (r *RunnerV1) setEngineStatus(callbacks engine.Callbacks, status types.EngineStatus) error {
	r.mu.Lock()
	r.status.EngineStatus = status
	r.mu.Unlock()

	if callbacks.OnStatusUpdate != nil {
		if err := (*callbacks.OnStatusUpdate)(status); err != nil {
			return errors.Wrap(errors.ErrCodeCallbackFailed, "OnStatusUpdate callback failed", err)
		}
	}

	return nil
}

// publishStatus replaces the snapshot read by Status and updates the gauges.
func (r *RunnerV1) publishStatus(engineStatus types.EngineStatus, price float64) {
	strategy := r.deps.Strategy
	basket := strategy.Status()
	profit := strategy.Profit(price)

	snapshot := engine.Status{
		EngineStatus: engineStatus,
		Symbol:       r.cfg.Symbol,
		RunID:        "",
		Ticks:        r.ticks,
		LastTick:     r.lastTick,
		Price:        price,
		Basket:       basket,
		Profit:       profit,
		LastSignal:   r.lastSignal,
		Risk:         r.deps.Risk.Snapshot(),
		Daily:        r.statsTracker.Daily(),
		LastError:    "",
		UpdatedAt:    r.now(),
	}

	if r.sessionManager != nil {
		snapshot.RunID = r.sessionManager.RunID()
	}

	if r.lastErr != nil {
		snapshot.LastError = r.lastErr.Error()
	}

	r.mu.Lock()
	r.status = snapshot
	r.mu.Unlock()

	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveBasket(basket, profit)
	}
}

func (r *RunnerV1) reportError(callbacks engine.Callbacks, err error) {
	r.log.Error("Tick failed", zap.Error(err))

	if r.deps.Metrics != nil {
		r.deps.Metrics.RecordTickError()
	}

	if callbacks.OnError != nil {
		(*callbacks.OnError)(err)
	}
}

// sleep waits for the poll interval. It returns false when ctx ends first.
func (r *RunnerV1) sleep(ctx context.Context) bool {
	if r.cfg.PollInterval <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(r.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func checkDependencies(cfg engine.Config, deps engine.Dependencies) error {
	switch {
	case cfg.Symbol == "":
		return errors.New(errors.ErrCodeMissingParameter, "symbol is required")
	case cfg.PollInterval < 0:
		return errors.New(errors.ErrCodeInvalidParameter, "poll interval must not be negative")
	case deps.Broker == nil:
		return errors.New(errors.ErrCodeEngineNotInitialized, "broker is required")
	case deps.Feed == nil:
		return errors.New(errors.ErrCodeEngineNotInitialized, "market data feed is required")
	case deps.Signal == nil:
		return errors.New(errors.ErrCodeEngineNotInitialized, "signal source is required")
	case deps.Risk == nil:
		return errors.New(errors.ErrCodeEngineNotInitialized, "risk gate is required")
	case deps.Strategy == nil:
		return errors.New(errors.ErrCodeEngineNotInitialized, "strategy is required")
	}

	return nil
}
