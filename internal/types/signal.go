package types

import "time"

// SignalResult is the output of one signal evaluation.
type SignalResult struct {
	// Time is the time of the last bar used
	Time time.Time `json:"time" yaml:"time"`
	// Signal is BUY, SELL or empty for no signal
	Signal Direction `json:"signal" yaml:"signal"`
	// BuyProbability is the model probability of the buy class
	BuyProbability float64 `json:"buy_probability" yaml:"buy_probability"`
	// SellProbability is the model probability of the sell class
	SellProbability float64 `json:"sell_probability" yaml:"sell_probability"`
}

// HasSignal reports whether the result carries a direction.
func (s SignalResult) HasSignal() bool {
	return s.Signal.Valid()
}
