package engine

import (
	"context"
	"time"

	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/marketdata"
	"github.com/rxtech-lab/flipped-trading/internal/metrics"
	"github.com/rxtech-lab/flipped-trading/internal/risk"
	"github.com/rxtech-lab/flipped-trading/internal/signal"
	"github.com/rxtech-lab/flipped-trading/internal/strategy/flipped"
	tradingprovider "github.com/rxtech-lab/flipped-trading/internal/trading/provider"
	"github.com/rxtech-lab/flipped-trading/internal/types"
)

// Lifecycle callback types for the runner.
// Callbacks with an error return abort the run when they fail.

// OnEngineStartCallback is called once the broker is reachable and any
// existing basket has been adopted. runPath is empty when journaling is off.
type OnEngineStartCallback func(symbol string, runPath string) error

// OnEngineStopCallback is called when Run returns (always called via defer).
type OnEngineStopCallback func(err error)

// OnTickCallback is called after every completed tick.
type OnTickCallback func(status Status) error

// OnBasketActionCallback is called for every journaled open, add and close,
// including failed close attempts.
type OnBasketActionCallback func(action types.BasketAction) error

// OnSignalCallback is called for each signal evaluated on a new bar.
type OnSignalCallback func(result types.SignalResult) error

// OnRiskRejectedCallback is called when the risk gate refuses a signal.
type OnRiskRejectedCallback func(reason risk.RejectReason, account types.AccountInfo)

// OnErrorCallback is called when a tick fails. The loop continues.
type OnErrorCallback func(err error)

// OnStatusUpdateCallback is called when the engine status changes.
type OnStatusUpdateCallback func(status types.EngineStatus) error

// Callbacks holds the lifecycle callbacks. Nil fields are skipped.
type Callbacks struct {
	OnEngineStart  *OnEngineStartCallback
	OnEngineStop   *OnEngineStopCallback
	OnTick         *OnTickCallback
	OnBasketAction *OnBasketActionCallback
	OnSignal       *OnSignalCallback
	OnRiskRejected *OnRiskRejectedCallback
	OnError        *OnErrorCallback
	OnStatusUpdate *OnStatusUpdateCallback
}

// Config holds the runner settings.
type Config struct {
	Symbol string
	// PollInterval is the pause between ticks. Zero runs ticks back to back.
	PollInterval time.Duration
	// BarCount is how many bars each tick requests from the feed.
	BarCount int
	// DataDir is the sessions root. Empty disables the journal and stats file.
	DataDir string
	// LogFile is recorded in stats.yaml.
	LogFile string
	// InheritSkipMartiStop turns off the marti rules on a basket adopted at startup.
	InheritSkipMartiStop bool
	// CloseOnShutdown closes an open basket when Run returns.
	CloseOnShutdown bool
}

// RiskGate decides whether a new basket may open.
type RiskGate interface {
	UpdateDaily(currentPnL float64)
	CanOpenPosition(account types.AccountInfo) (bool, risk.RejectReason)
	RecordTrade()
	Snapshot() risk.Snapshot
}

// Archiver sweeps rotated log files.
type Archiver interface {
	ArchiveOldLogs() (int, error)
}

// Advancer is a feed that moves through recorded bars one step per tick.
// Run ends cleanly once Advance reports the data is exhausted.
type Advancer interface {
	Advance() error
}

// Dependencies are the collaborators of a runner. Metrics, Archiver and
// Clock are optional.
type Dependencies struct {
	Broker   tradingprovider.Broker
	Feed     marketdata.Feed
	Signal   signal.Source
	Risk     RiskGate
	Strategy *flipped.Strategy
	Metrics  *metrics.Metrics
	Archiver Archiver
	Logger   *logger.Logger
	Clock    func() time.Time
}

// Status is the snapshot published after each tick.
type Status struct {
	EngineStatus types.EngineStatus `json:"engine_status"`
	Symbol       string             `json:"symbol"`
	RunID        string             `json:"run_id,omitempty"`
	Ticks        int                `json:"ticks"`
	LastTick     types.Tick         `json:"last_tick"`
	Price        float64            `json:"price"`
	Basket       types.BasketStatus `json:"basket"`
	Profit       float64            `json:"profit"`
	LastSignal   types.SignalResult `json:"last_signal"`
	Risk         risk.Snapshot      `json:"risk"`
	Daily        types.SessionStats `json:"daily"`
	LastError    string             `json:"last_error,omitempty"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Runner drives one basket strategy against a broker and a feed.
type Runner interface {
	// Initialize validates the dependencies and prepares the session folder.
	Initialize(cfg Config, deps Dependencies) error

	// Run blocks until ctx is cancelled, a replay feed is exhausted or a
	// callback fails.
	Run(ctx context.Context, callbacks Callbacks) error

	// Status returns the latest snapshot. Safe for concurrent use.
	Status() Status

	// Stats returns the cumulative session statistics.
	Stats() types.SessionStats
}
