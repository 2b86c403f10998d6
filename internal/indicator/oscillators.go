package indicator

import (
	"math"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/flipped-trading/internal/types"
)

const (
	DefaultRMIPeriod   = 14
	DefaultRMIMomentum = 5
	DefaultADXPeriod   = 14
	DefaultATRPeriod   = 14
)

// RMI is the relative momentum index: an RSI over momentum-period changes
// with simple rolling averages.
func RMI(closes []float64, period, momentum int) []float64 {
	change := Diff(closes, momentum)
	gains := NaNSeries(len(closes))
	losses := NaNSeries(len(closes))

	for i, m := range change {
		switch {
		case math.IsNaN(m):
			// warm-up
		case m > 0:
			gains[i], losses[i] = m, 0
		case m < 0:
			gains[i], losses[i] = 0, -m
		default:
			gains[i], losses[i] = 0, 0
		}
	}

	avgGain := RollingMean(gains, period)
	avgLoss := RollingMean(losses, period)
	out := NaNSeries(len(closes))

	for i := range out {
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}

	return out
}

// ADX averages the directional index over period bars using simple means.
func ADX(bars []types.Bar, period int) []float64 {
	n := len(bars)
	atr := RollingMean(TrueRange(bars), period)
	plusDM := NaNSeries(n)
	minusDM := NaNSeries(n)

	for i := 1; i < n; i++ {
		up := bars[i].High - bars[i-1].High
		down := bars[i-1].Low - bars[i].Low

		plusDM[i] = 0
		if up > down && up > 0 {
			plusDM[i] = up
		}

		minusDM[i] = 0
		if down > up && down > 0 {
			minusDM[i] = down
		}
	}

	plusMean := RollingMean(plusDM, period)
	minusMean := RollingMean(minusDM, period)
	dx := NaNSeries(n)

	for i := range dx {
		plusDI := 100 * plusMean[i] / atr[i]
		minusDI := 100 * minusMean[i] / atr[i]
		dx[i] = 100 * math.Abs(plusDI-minusDI) / (plusDI + minusDI)
	}

	return RollingMean(dx, period)
}

// ATRPips is the latest simple ATR over period bars in pips. It needs
// period+1 bars.
func ATRPips(bars []types.Bar, period int, pipMultiplier float64) optional.Option[float64] {
	if period <= 0 || len(bars) < period+1 {
		return optional.None[float64]()
	}

	atr := Last(RollingMean(TrueRange(bars), period))
	if atr.IsNone() {
		return atr
	}

	return optional.Some(atr.Unwrap() * pipMultiplier)
}
