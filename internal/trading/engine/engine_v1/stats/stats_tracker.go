package stats

import (
	"maps"
	"sync"
	"time"

	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"go.uber.org/zap"
)

// Accumulator holds running basket statistics.
type Accumulator struct {
	Closed         int
	Wins           int
	Losses         int
	Adds           int
	FailedCloses   int
	RiskRejections int
	MaxBasketSize  int
	RealizedPnL    float64
	MaxProfit      float64
	MaxLoss        float64
	PeakPnL        float64
	MaxDrawdown    float64
	CloseReasons   map[string]int
	HoldingTimes   []int
}

func newAccumulator() *Accumulator {
	return &Accumulator{
		Closed:         0,
		Wins:           0,
		Losses:         0,
		Adds:           0,
		FailedCloses:   0,
		RiskRejections: 0,
		MaxBasketSize:  0,
		RealizedPnL:    0,
		MaxProfit:      0,
		MaxLoss:        0,
		PeakPnL:        0,
		MaxDrawdown:    0,
		CloseReasons:   make(map[string]int),
		HoldingTimes:   make([]int, 0),
	}
}

// Paths are the files referenced from stats.yaml.
type Paths struct {
	BasketActions string
	Signals       string
	Log           string
	// Stats is where WriteStatsYAML writes. Empty disables writing.
	Stats string
}

// Tracker keeps daily and session-wide basket statistics.
type Tracker struct {
	symbol       string
	runID        string
	sessionID    string
	sessionStart time.Time
	currentDate  string

	// reset on date boundary
	daily *Accumulator
	// since session start
	cumulative *Accumulator

	// open time of the current basket, zero when none
	openedAt time.Time

	paths Paths
	now   func() time.Time
	mu    sync.Mutex
	log   *logger.Logger
}

// NewTracker creates a tracker using the wall clock.
func NewTracker(log *logger.Logger) *Tracker {
	return NewTrackerWithClock(log, time.Now)
}

// NewTrackerWithClock creates a tracker with an injected clock.
func NewTrackerWithClock(log *logger.Logger, now func() time.Time) *Tracker {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Tracker{
		symbol:       "",
		runID:        "",
		sessionID:    "",
		sessionStart: time.Time{},
		currentDate:  "",
		daily:        newAccumulator(),
		cumulative:   newAccumulator(),
		openedAt:     time.Time{},
		paths:        Paths{BasketActions: "", Signals: "", Log: "", Stats: ""},
		now:          now,
		mu:           sync.Mutex{},
		log:          log,
	}
}

// Initialize sets the session identity.
func (t *Tracker) Initialize(symbol, runID, sessionID string, sessionStart time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.symbol = symbol
	t.runID = runID
	t.sessionID = sessionID
	t.sessionStart = sessionStart
	t.currentDate = sessionStart.Format("2006-01-02")

	t.log.Info("Stats tracker initialized",
		zap.String("run_id", runID),
		zap.String("symbol", symbol),
	)
}

// SetPaths records the journal and output paths.
func (t *Tracker) SetPaths(paths Paths) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.paths = paths
}

// RecordAction folds one journaled basket action into both accumulators.
func (t *Tracker) RecordAction(action types.BasketAction) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch action.Action {
	case types.ActionOpen:
		t.openedAt = action.Time
	case types.ActionAdd:
		t.daily.Adds++
		t.cumulative.Adds++
	case types.ActionClose:
		if action.Reason.IsFailed() {
			t.daily.FailedCloses++
			t.cumulative.FailedCloses++

			// the basket is still open and will be closed again
			if !action.Released {
				return
			}
		}

		holding := -1
		if !t.openedAt.IsZero() && !action.Time.IsZero() {
			holding = int(action.Time.Sub(t.openedAt).Seconds())
		}

		t.openedAt = time.Time{}

		recordClose(t.daily, action, holding)
		recordClose(t.cumulative, action, holding)

		t.log.Debug("Basket close recorded",
			zap.String("reason", string(action.Reason)),
			zap.Float64("profit", action.Profit),
			zap.Int("closed", t.cumulative.Closed),
		)
	}
}

// RecordRiskRejection counts a refused opening.
func (t *Tracker) RecordRiskRejection() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.daily.RiskRejections++
	t.cumulative.RiskRejections++
}

// HandleDateBoundary resets the daily accumulator when date differs from the
// current one.
func (t *Tracker) HandleDateBoundary(date string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if date == t.currentDate {
		return false
	}

	previous := t.currentDate
	t.currentDate = date
	t.daily = newAccumulator()

	t.log.Info("Daily stats reset",
		zap.String("old_date", previous),
		zap.String("new_date", date),
	)

	return true
}

// Daily returns statistics for the current date.
func (t *Tracker) Daily() types.SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.build(t.daily, t.currentDate)
}

// Cumulative returns statistics since session start.
func (t *Tracker) Cumulative() types.SessionStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.build(t.cumulative, t.sessionStart.Format("2006-01-02"))
}

// WriteStatsYAML writes the cumulative stats to the configured path.
func (t *Tracker) WriteStatsYAML() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.paths.Stats == "" {
		return nil
	}

	return types.WriteSessionStats(t.paths.Stats, t.build(t.cumulative, t.currentDate))
}

// StatsPath returns where WriteStatsYAML writes.
func (t *Tracker) StatsPath() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.paths.Stats
}

func (t *Tracker) build(acc *Accumulator, date string) types.SessionStats {
	winRate := 0.0
	if acc.Closed > 0 {
		winRate = float64(acc.Wins) / float64(acc.Closed)
	}

	holding := types.BasketHoldingTime{Min: 0, Max: 0, Avg: 0}

	if len(acc.HoldingTimes) > 0 {
		holding.Min = acc.HoldingTimes[0]
		holding.Max = acc.HoldingTimes[0]
		total := 0

		for _, h := range acc.HoldingTimes {
			total += h
			holding.Min = min(holding.Min, h)
			holding.Max = max(holding.Max, h)
		}

		holding.Avg = total / len(acc.HoldingTimes)
	}

	return types.SessionStats{
		ID:           t.runID,
		SessionID:    t.sessionID,
		Date:         date,
		SessionStart: t.sessionStart,
		LastUpdated:  t.now(),
		Symbol:       t.symbol,
		Baskets: types.BasketResult{
			Closed:         acc.Closed,
			Wins:           acc.Wins,
			Losses:         acc.Losses,
			WinRate:        winRate,
			Adds:           acc.Adds,
			MaxBasketSize:  acc.MaxBasketSize,
			FailedCloses:   acc.FailedCloses,
			RiskRejections: acc.RiskRejections,
		},
		PnL: types.BasketPnL{
			Realized:    acc.RealizedPnL,
			MaxProfit:   acc.MaxProfit,
			MaxLoss:     acc.MaxLoss,
			MaxDrawdown: acc.MaxDrawdown,
		},
		HoldingTime:           holding,
		CloseReasons:          maps.Clone(acc.CloseReasons),
		BasketActionsFilePath: t.paths.BasketActions,
		SignalsFilePath:       t.paths.Signals,
		LogFilePath:           t.paths.Log,
	}
}

func recordClose(acc *Accumulator, action types.BasketAction, holding int) {
	acc.Closed++
	acc.RealizedPnL += action.Profit
	acc.CloseReasons[string(action.Reason)]++
	acc.MaxBasketSize = max(acc.MaxBasketSize, action.BasketSize)

	if action.Profit > 0 {
		acc.Wins++
	} else if action.Profit < 0 {
		acc.Losses++
	}

	acc.MaxProfit = max(acc.MaxProfit, action.Profit)
	acc.MaxLoss = min(acc.MaxLoss, action.Profit)

	acc.PeakPnL = max(acc.PeakPnL, acc.RealizedPnL)
	acc.MaxDrawdown = max(acc.MaxDrawdown, acc.PeakPnL-acc.RealizedPnL)

	if holding >= 0 {
		acc.HoldingTimes = append(acc.HoldingTimes, holding)
	}
}
