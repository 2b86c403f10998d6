package marketdata

import (
	"time"

	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
)

// Timeframe is a bar interval in Binance notation, e.g. 1m or 4h.
type Timeframe string

const (
	TimeframeOneMinute      Timeframe = "1m"
	TimeframeThreeMinutes   Timeframe = "3m"
	TimeframeFiveMinutes    Timeframe = "5m"
	TimeframeFifteenMinutes Timeframe = "15m"
	TimeframeThirtyMinutes  Timeframe = "30m"
	TimeframeOneHour        Timeframe = "1h"
	TimeframeTwoHours       Timeframe = "2h"
	TimeframeFourHours      Timeframe = "4h"
	TimeframeSixHours       Timeframe = "6h"
	TimeframeEightHours     Timeframe = "8h"
	TimeframeTwelveHours    Timeframe = "12h"
	TimeframeOneDay         Timeframe = "1d"
	TimeframeThreeDays      Timeframe = "3d"
	TimeframeOneWeek        Timeframe = "1w"
)

var timeframeDurations = map[Timeframe]time.Duration{
	TimeframeOneMinute:      time.Minute,
	TimeframeThreeMinutes:   3 * time.Minute,
	TimeframeFiveMinutes:    5 * time.Minute,
	TimeframeFifteenMinutes: 15 * time.Minute,
	TimeframeThirtyMinutes:  30 * time.Minute,
	TimeframeOneHour:        time.Hour,
	TimeframeTwoHours:       2 * time.Hour,
	TimeframeFourHours:      4 * time.Hour,
	TimeframeSixHours:       6 * time.Hour,
	TimeframeEightHours:     8 * time.Hour,
	TimeframeTwelveHours:    12 * time.Hour,
	TimeframeOneDay:         24 * time.Hour,
	TimeframeThreeDays:      72 * time.Hour,
	TimeframeOneWeek:        7 * 24 * time.Hour,
}

// ParseTimeframe checks that s is a supported interval.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframeDurations[tf]; !ok {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported timeframe %q", s)
	}

	return tf, nil
}

// Duration is the length of one bar.
func (t Timeframe) Duration() time.Duration {
	return timeframeDurations[t]
}

// Multiplier is the polygon aggregate multiplier.
func (t Timeframe) Multiplier() int {
	switch t {
	case TimeframeThreeMinutes, TimeframeThreeDays:
		return 3
	case TimeframeFiveMinutes:
		return 5
	case TimeframeFifteenMinutes:
		return 15
	case TimeframeThirtyMinutes:
		return 30
	case TimeframeTwoHours:
		return 2
	case TimeframeFourHours:
		return 4
	case TimeframeSixHours:
		return 6
	case TimeframeEightHours:
		return 8
	case TimeframeTwelveHours:
		return 12
	default:
		return 1
	}
}

// Timespan is the polygon aggregate timespan.
func (t Timeframe) Timespan() models.Timespan {
	switch t {
	case TimeframeOneMinute, TimeframeThreeMinutes, TimeframeFiveMinutes, TimeframeFifteenMinutes, TimeframeThirtyMinutes:
		return models.Minute
	case TimeframeOneHour, TimeframeTwoHours, TimeframeFourHours, TimeframeSixHours, TimeframeEightHours, TimeframeTwelveHours:
		return models.Hour
	case TimeframeOneWeek:
		return models.Week
	default:
		return models.Day
	}
}
