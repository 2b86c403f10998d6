// Package risk gates new baskets on the daily loss cap and account drawdown.
package risk

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"go.uber.org/zap"
)

// RejectReason explains a gate decision.
type RejectReason string

const (
	ReasonOK             RejectReason = "OK"
	ReasonDailyLossLimit RejectReason = "DAILY_LOSS_LIMIT"
	ReasonMaxDrawdown    RejectReason = "MAX_DRAWDOWN"
)

// Config holds the gate limits in percent.
type Config struct {
	DailyLossLimitPercent float64 `yaml:"daily_loss_limit_percent" json:"daily_loss_limit_percent" jsonschema:"title=Daily Loss Limit Percent,description=Block new baskets once the day's loss reaches this share of balance,default=5" validate:"gte=0,lte=100"`
	MaxDrawdownPercent    float64 `yaml:"max_drawdown_percent" json:"max_drawdown_percent" jsonschema:"title=Max Drawdown Percent,description=Block new baskets once equity falls this far below its peak,default=10" validate:"gte=0,lte=100"`
}

// DefaultConfig returns 5% daily loss and 10% drawdown.
func DefaultConfig() Config {
	return Config{
		DailyLossLimitPercent: 5.0,
		MaxDrawdownPercent:    10.0,
	}
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid risk config", err)
	}

	return nil
}

// Gate tracks the day's PnL and the equity peak.
type Gate struct {
	mu     sync.Mutex
	cfg    Config
	log    *logger.Logger
	now    func() time.Time
	day    string
	pnl    float64
	trades int
	peak   float64
}

// Snapshot is a copy of the gate counters.
type Snapshot struct {
	Day         string  `json:"day" yaml:"day"`
	DailyPnL    float64 `json:"daily_pnl" yaml:"daily_pnl"`
	DailyTrades int     `json:"daily_trades" yaml:"daily_trades"`
	PeakEquity  float64 `json:"peak_equity" yaml:"peak_equity"`
}

// NewGate creates a gate using the wall clock.
func NewGate(cfg Config, log *logger.Logger) (*Gate, error) {
	return NewGateWithClock(cfg, log, time.Now)
}

// NewGateWithClock creates a gate with an injected clock.
func NewGateWithClock(cfg Config, log *logger.Logger, now func() time.Time) (*Gate, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Gate{
		mu:     sync.Mutex{},
		cfg:    cfg,
		log:    log,
		now:    now,
		day:    dayKey(now()),
		pnl:    0,
		trades: 0,
		peak:   0,
	}, nil
}

// UpdateDaily resets the counters on a new calendar day, then records currentPnL
// as the day's PnL.
func (g *Gate) UpdateDaily(currentPnL float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	today := dayKey(g.now())
	if today != g.day {
		g.log.Info("Daily risk reset",
			zap.String("previous_day", g.day),
			zap.Float64("daily_pnl", g.pnl),
			zap.Int("daily_trades", g.trades),
		)

		g.pnl = 0
		g.trades = 0
		g.day = today
	}

	g.pnl = currentPnL
}

// RecordTrade counts an opened basket toward the day.
func (g *Gate) RecordTrade() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.trades++
}

// CanOpenPosition applies the daily loss cap, then the drawdown guard.
func (g *Gate) CanOpenPosition(account types.AccountInfo) (bool, RejectReason) {
	g.mu.Lock()
	defer g.mu.Unlock()

	lossCap := account.Balance * (g.cfg.DailyLossLimitPercent / 100)
	if g.pnl <= -lossCap {
		return false, ReasonDailyLossLimit
	}

	equity := account.EquityOrBalance()
	if equity > g.peak {
		g.peak = equity
	}

	if g.peak > 0 {
		drawdown := (g.peak - equity) / g.peak * 100
		if drawdown >= g.cfg.MaxDrawdownPercent {
			return false, ReasonMaxDrawdown
		}
	}

	return true, ReasonOK
}

// Snapshot returns the current counters.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Snapshot{
		Day:         g.day,
		DailyPnL:    g.pnl,
		DailyTrades: g.trades,
		PeakEquity:  g.peak,
	}
}

func dayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}
