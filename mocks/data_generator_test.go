package mocks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarGenerator_Generate(t *testing.T) {
	config := DefaultGeneratorConfig()
	config.Count = 500

	bars := NewBarGenerator(42).Generate(config)
	require.Len(t, bars, 500)

	for i, bar := range bars {
		assert.Equal(t, config.StartTime.Add(time.Duration(i)*time.Minute), bar.Time)
		assert.GreaterOrEqual(t, bar.High, bar.Open)
		assert.GreaterOrEqual(t, bar.High, bar.Close)
		assert.LessOrEqual(t, bar.Low, bar.Open)
		assert.LessOrEqual(t, bar.Low, bar.Close)
		assert.Positive(t, bar.Low)
		assert.Positive(t, bar.Volume)
	}

	assert.InDelta(t, 2000, bars[0].Open, 0.01)
}

func TestBarGenerator_Reproducibility(t *testing.T) {
	config := DefaultGeneratorConfig()
	config.Count = 50

	assert.Equal(t, NewBarGenerator(7).Generate(config), NewBarGenerator(7).Generate(config))
	assert.NotEqual(t, NewBarGenerator(7).Generate(config), NewBarGenerator(8).Generate(config))
}

func TestGenerateLinear(t *testing.T) {
	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	bars := GenerateLinear(start, 3, 2000, 0.5, 0.2)

	require.Len(t, bars, 3)
	assert.InDelta(t, 2001.0, bars[2].Close, 1e-9)
	assert.InDelta(t, 2001.2, bars[2].High, 1e-9)
	assert.InDelta(t, 2000.8, bars[2].Low, 1e-9)
	assert.Equal(t, start.Add(2*time.Minute), bars[2].Time)
}
