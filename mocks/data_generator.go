package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/rxtech-lab/flipped-trading/internal/types"
)

// BarGenerator produces synthetic OHLCV bars for tests and replay fixtures.
type BarGenerator struct {
	rng *rand.Rand
}

// NewBarGenerator creates a generator. Use a fixed seed for reproducible series.
func NewBarGenerator(seed int64) *BarGenerator {
	return &BarGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures a bar series.
type GeneratorConfig struct {
	StartTime time.Time
	// Interval between bar open times
	Interval     time.Duration
	Count        int
	InitialPrice float64
	// Volatility is the per-bar standard deviation of returns (0.0005 = 0.05%)
	Volatility float64
	// Trend is the total drift over the series (-0.01 to 0.01 for bearish to bullish)
	Trend      float64
	VolumeBase float64
	// VolumeVariance is the relative spread of volume (0.0 to 1.0)
	VolumeVariance float64
}

// DefaultGeneratorConfig is a day of XAUUSD-like minute bars.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		StartTime:      time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		Interval:       time.Minute,
		Count:          1440,
		InitialPrice:   2000.0,
		Volatility:     0.0004,
		Trend:          0.0,
		VolumeBase:     500,
		VolumeVariance: 0.3,
	}
}

// Generate returns config.Count bars following a geometric random walk.
func (g *BarGenerator) Generate(config GeneratorConfig) []types.Bar {
	bars := make([]types.Bar, config.Count)
	price := config.InitialPrice
	at := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := price

		// Box-Muller
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(1-u1)) * math.Cos(2*math.Pi*u2)

		drift := 0.0
		if config.Count > 0 {
			drift = config.Trend / float64(config.Count)
		}

		closePrice := open * (1 + config.Volatility*z + drift)
		if closePrice <= 0 {
			closePrice = open * 0.99
		}

		high := math.Max(open, closePrice) + math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
		low := math.Min(open, closePrice) - math.Abs(g.rng.Float64()*config.Volatility*open*0.5)

		if low <= 0 {
			low = math.Min(open, closePrice) * 0.99
		}

		volume := config.VolumeBase * (1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance)
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		bars[i] = types.Bar{
			Time:   at,
			Open:   roundToDecimals(open, 2),
			High:   roundToDecimals(high, 2),
			Low:    roundToDecimals(low, 2),
			Close:  roundToDecimals(closePrice, 2),
			Volume: roundToDecimals(volume, 2),
		}

		price = closePrice
		at = at.Add(config.Interval)
	}

	return bars
}

// GenerateLinear returns count bars whose close moves by step each bar with
// a fixed half range around the close. Useful for deterministic runner tests.
func GenerateLinear(start time.Time, count int, first, step, halfRange float64) []types.Bar {
	bars := make([]types.Bar, count)

	for i := range bars {
		closePrice := first + step*float64(i)
		bars[i] = types.Bar{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   roundToDecimals(closePrice-step, 2),
			High:   roundToDecimals(closePrice+halfRange, 2),
			Low:    roundToDecimals(closePrice-halfRange, 2),
			Close:  roundToDecimals(closePrice, 2),
			Volume: 100,
		}
	}

	return bars
}

func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
