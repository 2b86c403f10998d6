package types

import (
	"strings"
	"time"

	"github.com/rxtech-lab/flipped-trading/pkg/errors"
)

// Direction is the side of a basket. The empty direction means no basket.
type Direction string

type ActionType string

// CloseReason names the rule that closed a basket.
type CloseReason string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionNone Direction = ""
)

const (
	ActionOpen  ActionType = "OPEN"
	ActionAdd   ActionType = "ADD"
	ActionClose ActionType = "CLOSE"
)

const (
	CloseReasonMartiStop     CloseReason = "MARTI_STOP"
	CloseReasonMartiTP       CloseReason = "MARTI_TP"
	CloseReasonHardStop      CloseReason = "HARD_STOP"
	CloseReasonBreakeven     CloseReason = "BE_STOP"
	CloseReasonATRTrail      CloseReason = "ATR_TRAIL"
	CloseReasonTrailGiveback CloseReason = "TRAIL_GIVEBACK"
	CloseReasonShutdown      CloseReason = "SHUTDOWN"
	CloseReasonNone          CloseReason = ""

	failedSuffix = "_FAILED"
)

// ParseDirection accepts BUY or SELL in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case DirectionBuy:
		return DirectionBuy, nil
	case DirectionSell:
		return DirectionSell, nil
	default:
		return DirectionNone, errors.Newf(errors.ErrCodeInvalidDirection, "unsupported direction %q", s)
	}
}

// Valid reports whether d is BUY or SELL.
func (d Direction) Valid() bool {
	return d == DirectionBuy || d == DirectionSell
}

// Sign is +1 for BUY and -1 for SELL.
func (d Direction) Sign() float64 {
	if d == DirectionBuy {
		return 1
	}

	return -1
}

// Opposite returns the closing side of d.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionBuy:
		return DirectionSell
	case DirectionSell:
		return DirectionBuy
	default:
		return DirectionNone
	}
}

// Failed marks a close attempt the broker did not fully execute.
func (r CloseReason) Failed() CloseReason {
	if r.IsFailed() {
		return r
	}

	return r + failedSuffix
}

// IsFailed reports whether r carries the failure suffix.
func (r CloseReason) IsFailed() bool {
	return strings.HasSuffix(string(r), failedSuffix)
}

// Leg is one position inside a basket.
type Leg struct {
	Price   float64 `yaml:"price" json:"price"`
	Volume  float64 `yaml:"volume" json:"volume"`
	OrderID string  `yaml:"order_id" json:"order_id"`
}

// BasketAction describes what a ledger operation did.
type BasketAction struct {
	Action      ActionType  `yaml:"action" json:"action"`
	Direction   Direction   `yaml:"direction" json:"direction"`
	Price       float64     `yaml:"price" json:"price"`
	Volume      float64     `yaml:"volume" json:"volume"`
	BasketSize  int         `yaml:"basket_size" json:"basket_size"`
	TotalVolume float64     `yaml:"total_volume" json:"total_volume"`
	Profit      float64     `yaml:"profit" json:"profit"`
	Reason      CloseReason `yaml:"reason" json:"reason"`
	OrderID     string      `yaml:"order_id" json:"order_id"`
	Time        time.Time   `yaml:"time" json:"time"`
	// Released is set on a close that ended the basket in the ledger. A
	// failed close attempt that left the basket open has it unset.
	Released bool `yaml:"released" json:"released"`
}

// BasketStatus is a read-only snapshot of the basket.
type BasketStatus struct {
	Open               bool      `yaml:"open" json:"open"`
	Direction          Direction `yaml:"direction" json:"direction"`
	BasketSize         int       `yaml:"basket_size" json:"basket_size"`
	TotalVolume        float64   `yaml:"total_volume" json:"total_volume"`
	Legs               []Leg     `yaml:"legs" json:"legs"`
	MaxFavorableProfit float64   `yaml:"max_favorable_profit" json:"max_favorable_profit"`
	BreakevenArmed     bool      `yaml:"breakeven_armed" json:"breakeven_armed"`
}
