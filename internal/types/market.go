package types

import "time"

// Bar is one OHLC candle.
type Bar struct {
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// Tick is the latest top of book.
type Tick struct {
	Time time.Time `yaml:"time" json:"time"`
	Bid  float64   `yaml:"bid" json:"bid"`
	Ask  float64   `yaml:"ask" json:"ask"`
}

// Mid returns the midpoint of bid and ask.
func (t Tick) Mid() float64 {
	return (t.Ask + t.Bid) / 2
}

// PriceFor returns the ask for BUY, the bid for SELL and the mid otherwise.
func (t Tick) PriceFor(direction Direction) float64 {
	switch direction {
	case DirectionBuy:
		return t.Ask
	case DirectionSell:
		return t.Bid
	default:
		return t.Mid()
	}
}

// Closes extracts the close series of bars.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, bar := range bars {
		out[i] = bar.Close
	}

	return out
}
