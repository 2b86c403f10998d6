// Package indicator computes the rolling series behind the entry features.
// Every function returns a series aligned with its input where warm-up
// positions hold NaN.
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/flipped-trading/internal/types"
)

// NaNSeries returns n NaN values.
func NaNSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}

// Last returns the final value of values when it is finite.
func Last(values []float64) optional.Option[float64] {
	if len(values) == 0 {
		return optional.None[float64]()
	}

	v := values[len(values)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return optional.None[float64]()
	}

	return optional.Some(v)
}

// RollingMean is a trailing mean over period values. A window that holds a
// NaN yields NaN.
func RollingMean(values []float64, period int) []float64 {
	out := NaNSeries(len(values))
	if period <= 0 {
		return out
	}

	for i := period - 1; i < len(values); i++ {
		sum := 0.0
		for _, v := range values[i-period+1 : i+1] {
			sum += v
		}

		out[i] = sum / float64(period)
	}

	return out
}

// SMA is the simple moving average of a NaN-free series.
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return NaNSeries(len(values))
	}

	out := talib.Sma(values, period)
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}

	return out
}

// EMA is an exponential moving average with alpha 2/(span+1), seeded with the
// first value.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	alpha := 2.0 / (float64(span) + 1)
	out[0] = values[0]

	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}

	return out
}

// Diff returns values[i] - values[i-lag].
func Diff(values []float64, lag int) []float64 {
	out := NaNSeries(len(values))
	for i := lag; i < len(values); i++ {
		out[i] = values[i] - values[i-lag]
	}

	return out
}

// PctChange returns the fractional change over lag periods.
func PctChange(values []float64, lag int) []float64 {
	out := NaNSeries(len(values))
	for i := lag; i < len(values); i++ {
		out[i] = values[i]/values[i-lag] - 1
	}

	return out
}

// TrueRange is the max of high-low and the gaps to the previous close. The
// first bar has no previous close and uses high-low.
func TrueRange(bars []types.Bar) []float64 {
	if len(bars) == 0 {
		return nil
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))

	for i, bar := range bars {
		highs[i] = bar.High
		lows[i] = bar.Low
		closes[i] = bar.Close
	}

	out := talib.TRange(highs, lows, closes)
	out[0] = highs[0] - lows[0]

	return out
}
