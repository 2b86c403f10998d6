package utils

import (
	"math"
	"strconv"
	"strings"
)

// RoundToDecimalPrecision rounds the quantity down to the specified decimal precision.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	multiplier := math.Pow10(decimalPrecision)

	// nudge to absorb representation error such as 0.29999999
	return math.Floor(quantity*multiplier+1e-9) / multiplier
}

// VolumeToQuantity converts lots to exchange units, rounded down to precision.
func VolumeToQuantity(volume, contractSize float64, precision int) float64 {
	if contractSize <= 0 {
		contractSize = 1
	}

	return RoundToDecimalPrecision(volume*contractSize, precision)
}

// QuantityToVolume converts exchange units back to lots.
func QuantityToVolume(quantity, contractSize float64) float64 {
	if contractSize <= 0 {
		return quantity
	}

	return quantity / contractSize
}

// ParseFloatOrZero parses an exchange decimal string, returning 0 on empty or bad input.
func ParseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}

	return v
}
