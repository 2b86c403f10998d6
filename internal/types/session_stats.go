package types

import (
	"os"
	"time"

	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EngineStatus is the lifecycle state of the runner.
type EngineStatus string

const (
	EngineStatusStarting EngineStatus = "starting"
	EngineStatusRunning  EngineStatus = "running"
	EngineStatusStopped  EngineStatus = "stopped"
)

// BasketResult counts closed baskets.
type BasketResult struct {
	// Closed counts baskets that ended, including ones released after a failed close.
	Closed int `yaml:"closed" json:"closed"`
	Wins   int `yaml:"wins" json:"wins"`
	Losses int `yaml:"losses" json:"losses"`
	// WinRate is Wins / Closed, 0 when nothing closed.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`
	// Adds counts legs added after the opening leg.
	Adds int `yaml:"adds" json:"adds"`
	// MaxBasketSize is the largest number of legs seen at a close.
	MaxBasketSize int `yaml:"max_basket_size" json:"max_basket_size"`
	// FailedCloses counts close attempts the broker did not complete.
	FailedCloses int `yaml:"failed_closes" json:"failed_closes"`
	// RiskRejections counts openings refused by the risk gate.
	RiskRejections int `yaml:"risk_rejections" json:"risk_rejections"`
}

// BasketPnL is realized profit and loss of closed baskets.
type BasketPnL struct {
	Realized float64 `yaml:"realized" json:"realized"`
	// MaxProfit is the best single basket.
	MaxProfit float64 `yaml:"max_profit" json:"max_profit"`
	// MaxLoss is the worst single basket, zero or negative.
	MaxLoss float64 `yaml:"max_loss" json:"max_loss"`
	// MaxDrawdown is the largest drop of realized P&L from its peak.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
}

// BasketHoldingTime is basket lifetime from open to close, in seconds.
type BasketHoldingTime struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
	Avg int `yaml:"avg" json:"avg"`
}

// SessionStats summarizes one run of the bot for a day or for the whole session.
type SessionStats struct {
	// ID is the run folder name, e.g. run_1.
	ID        string `yaml:"id" json:"id"`
	SessionID string `yaml:"session_id" json:"session_id"`
	// Date is YYYY-MM-DD.
	Date         string    `yaml:"date" json:"date"`
	SessionStart time.Time `yaml:"session_start" json:"session_start"`
	LastUpdated  time.Time `yaml:"last_updated" json:"last_updated"`
	Symbol       string    `yaml:"symbol" json:"symbol"`

	Baskets      BasketResult      `yaml:"baskets" json:"baskets"`
	PnL          BasketPnL         `yaml:"pnl" json:"pnl"`
	HoldingTime  BasketHoldingTime `yaml:"holding_time" json:"holding_time"`
	CloseReasons map[string]int    `yaml:"close_reasons" json:"close_reasons"`

	BasketActionsFilePath string `yaml:"basket_actions_file_path" json:"basket_actions_file_path"`
	SignalsFilePath       string `yaml:"signals_file_path" json:"signals_file_path"`
	LogFilePath           string `yaml:"log_file_path" json:"log_file_path"`
}

// WriteSessionStats writes stats as YAML to path.
func WriteSessionStats(path string, stats SessionStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to marshal session stats to YAML", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to write session stats file", err)
	}

	return nil
}

// ReadSessionStats reads stats written by WriteSessionStats.
func ReadSessionStats(path string) (SessionStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SessionStats{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read session stats file", err)
	}

	var stats SessionStats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return SessionStats{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to unmarshal session stats", err)
	}

	return stats, nil
}
