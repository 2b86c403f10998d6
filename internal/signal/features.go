package signal

import (
	"math"

	"github.com/rxtech-lab/flipped-trading/internal/indicator"
	"github.com/rxtech-lab/flipped-trading/internal/types"
)

// RequiredBars is the history needed before every feature is defined.
const RequiredBars = 60

// FeatureColumns is the model input order.
var FeatureColumns = []string{
	"RMI",
	"ADX",
	"ATR_pips",
	"Velocity5",
	"Velocity15",
	"Return1",
	"Return5",
	"Body",
	"Range",
	"WickUpper",
	"WickLower",
	"HourSin",
	"HourCos",
	"price_vs_sma20",
	"price_vs_sma50",
	"sma20_slope5",
	"ema20_slope5",
	"near_sma20",
}

// FeatureFrame holds one series per feature column, aligned with the bars.
type FeatureFrame struct {
	Columns []string
	Series  map[string][]float64
	Len     int
}

// BuildFeatures computes every feature column for bars, oldest first.
func BuildFeatures(bars []types.Bar) FeatureFrame {
	n := len(bars)
	closes := types.Closes(bars)
	pipMult := framePipMultiplier(closes)
	series := make(map[string][]float64, len(FeatureColumns))

	series["RMI"] = indicator.RMI(closes, indicator.DefaultRMIPeriod, indicator.DefaultRMIMomentum)
	series["ADX"] = indicator.ADX(bars, indicator.DefaultADXPeriod)
	series["ATR_pips"] = scale(indicator.RollingMean(indicator.TrueRange(bars), indicator.DefaultATRPeriod), 100)
	series["Velocity5"] = scale(indicator.Diff(closes, 5), 100.0/5)
	series["Velocity15"] = scale(indicator.Diff(closes, 15), 100.0/15)
	series["Return1"] = scale(indicator.PctChange(closes, 1), 100)
	series["Return5"] = scale(indicator.PctChange(closes, 5), 100)

	body := make([]float64, n)
	rng := make([]float64, n)
	wickUpper := make([]float64, n)
	wickLower := make([]float64, n)
	hourSin := make([]float64, n)
	hourCos := make([]float64, n)

	for i, bar := range bars {
		body[i] = bar.Close - bar.Open
		rng[i] = bar.High - bar.Low
		wickUpper[i] = bar.High - math.Max(bar.Open, bar.Close)
		wickLower[i] = math.Min(bar.Open, bar.Close) - bar.Low

		hour := float64(bar.Time.UTC().Hour())
		hourSin[i] = math.Sin(2 * math.Pi * hour / 24)
		hourCos[i] = math.Cos(2 * math.Pi * hour / 24)
	}

	series["Body"] = body
	series["Range"] = rng
	series["WickUpper"] = wickUpper
	series["WickLower"] = wickLower
	series["HourSin"] = hourSin
	series["HourCos"] = hourCos

	sma20 := indicator.SMA(closes, 20)
	sma50 := indicator.SMA(closes, 50)
	ema20 := indicator.EMA(closes, 20)

	vsSMA20 := indicator.NaNSeries(n)
	vsSMA50 := indicator.NaNSeries(n)
	near := indicator.NaNSeries(n)
	nearLimit := 50.0

	if pipMult > 1000 {
		nearLimit = 5
	}

	for i, c := range closes {
		vsSMA20[i] = (c - sma20[i]) * pipMult
		vsSMA50[i] = (c - sma50[i]) * pipMult

		// NaN compares false, so warm-up rows read as not near
		near[i] = 0
		if math.Abs(vsSMA20[i]) <= nearLimit {
			near[i] = 1
		}
	}

	series["price_vs_sma20"] = vsSMA20
	series["price_vs_sma50"] = vsSMA50
	series["sma20_slope5"] = scale(indicator.Diff(sma20, 5), pipMult)
	series["ema20_slope5"] = scale(indicator.Diff(ema20, 5), pipMult)
	series["near_sma20"] = near

	return FeatureFrame{
		Columns: FeatureColumns,
		Series:  series,
		Len:     n,
	}
}

// Row returns the feature values at index i in column order.
func (f FeatureFrame) Row(i int) []float64 {
	row := make([]float64, len(f.Columns))
	for j, col := range f.Columns {
		row[j] = f.Series[col][i]
	}

	return row
}

// LatestCompleteRow returns the newest row without NaN values, or false when
// no row is complete.
func (f FeatureFrame) LatestCompleteRow() ([]float64, int, bool) {
	for i := f.Len - 1; i >= 0; i-- {
		row := f.Row(i)
		if !hasNaN(row) {
			return row, i, true
		}
	}

	return nil, -1, false
}

// framePipMultiplier guesses the pip size from the price level.
func framePipMultiplier(closes []float64) float64 {
	if len(closes) == 0 {
		return 10000
	}

	sum := 0.0
	for _, c := range closes {
		sum += math.Abs(c)
	}

	if sum/float64(len(closes)) > 10 {
		return 100
	}

	return 10000
}

func scale(values []float64, factor float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * factor
	}

	return out
}

func hasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return true
		}
	}

	return false
}
