package flipped

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PipSpec converts price distance to pips and pips to money.
type PipSpec struct {
	Multiplier  float64
	ValuePerLot float64
}

// LookupPipSpec returns the instrument class defaults for symbol.
func LookupPipSpec(symbol string) PipSpec {
	sym := strings.ToUpper(symbol)

	switch {
	case isGold(sym):
		return PipSpec{Multiplier: 100, ValuePerLot: 1.0}
	case strings.Contains(sym, "JPY"):
		return PipSpec{Multiplier: 100, ValuePerLot: 10.0}
	default:
		return PipSpec{Multiplier: 10000, ValuePerLot: 10.0}
	}
}

// DefaultMartiProfitPerLot is the marti risk unit used when none is configured.
func DefaultMartiProfitPerLot(symbol string) float64 {
	sym := strings.ToUpper(symbol)

	switch {
	case isGold(sym):
		return 134.0
	case strings.Contains(sym, "JPY"), sym == "EURUSD":
		return 49.0
	default:
		return 40.0
	}
}

// Pips converts a price difference to pips.
func (p PipSpec) Pips(priceDiff float64) float64 {
	return priceDiff * p.Multiplier
}

// Price converts pips to a price difference.
func (p PipSpec) Price(pips float64) float64 {
	return pips / p.Multiplier
}

// Money is the value of pips on volume lots.
func (p PipSpec) Money(pips, volume float64) float64 {
	return pips * volume * p.ValuePerLot
}

func isGold(sym string) bool {
	return strings.Contains(sym, "XAU") || strings.Contains(sym, "GOLD")
}

// round2 rounds a volume to 2 decimals.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func resolvePipSpec(symbol string, cfg Config) PipSpec {
	spec := LookupPipSpec(symbol)
	if cfg.PipMultiplier != nil {
		spec.Multiplier = *cfg.PipMultiplier
	}

	if cfg.PipValuePerLot != nil {
		spec.ValuePerLot = *cfg.PipValuePerLot
	}

	return spec
}
