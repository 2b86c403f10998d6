package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
)

// OrderResult is a filled market order.
type OrderResult struct {
	OrderID   string    `yaml:"order_id" json:"order_id" validate:"required"`
	Direction Direction `yaml:"direction" json:"direction" validate:"required,oneof=BUY SELL"`
	Price     float64   `yaml:"price" json:"price" validate:"gt=0"`
	Volume    float64   `yaml:"volume" json:"volume" validate:"gt=0"`
	Time      time.Time `yaml:"time" json:"time"`
}

// BrokerPosition is an open position as reported by the broker.
type BrokerPosition struct {
	Ticket    string    `yaml:"ticket" json:"ticket" validate:"required"`
	Symbol    string    `yaml:"symbol" json:"symbol" validate:"required"`
	Direction Direction `yaml:"direction" json:"direction" validate:"required,oneof=BUY SELL"`
	Volume    float64   `yaml:"volume" json:"volume" validate:"gt=0"`
	PriceOpen float64   `yaml:"price_open" json:"price_open" validate:"gt=0"`
	Profit    float64   `yaml:"profit" json:"profit"`
	OpenTime  time.Time `yaml:"open_time" json:"open_time"`
}

// Validate validates the OrderResult struct.
func (o *OrderResult) Validate() error {
	if err := validator.New().Struct(o); err != nil {
		return errors.Wrap(errors.ErrCodeOrderFailed, "invalid order result", err)
	}

	return nil
}

// Validate validates the BrokerPosition struct.
func (p *BrokerPosition) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return errors.Wrap(errors.ErrCodeBasketSyncFail, "invalid broker position", err)
	}

	return nil
}

// ToLeg converts a broker position into a basket leg.
func (p BrokerPosition) ToLeg() Leg {
	return Leg{
		Price:   p.PriceOpen,
		Volume:  p.Volume,
		OrderID: p.Ticket,
	}
}
