package flipped

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
)

// Config holds the basket sizing and exit parameters.
type Config struct {
	AddDistancePips  float64 `yaml:"add_distance_pips" json:"add_distance_pips" jsonschema:"title=Add Distance Pips,description=Favorable pips from the last leg before adding a leg,default=5" validate:"gte=0"`
	InitialVolume    float64 `yaml:"initial_volume" json:"initial_volume" jsonschema:"title=Initial Volume,description=Lots of the first leg,default=0.02" validate:"gt=0"`
	VolumeMultiplier float64 `yaml:"volume_multiplier" json:"volume_multiplier" jsonschema:"title=Volume Multiplier,description=Each leg is the previous volume times this,default=1.1" validate:"gt=0"`
	MaxPositions     int     `yaml:"max_positions" json:"max_positions" jsonschema:"title=Max Positions,description=Maximum legs per basket,default=6" validate:"gte=1"`
	MaxTotalVolume   float64 `yaml:"max_total_volume" json:"max_total_volume" jsonschema:"title=Max Total Volume,description=No adds once the basket holds this many lots,default=2" validate:"gt=0"`

	// MartiProfitPerLot defaults per instrument class when unset.
	MartiProfitPerLot *float64 `yaml:"marti_profit_per_lot" json:"marti_profit_per_lot,omitempty" jsonschema:"title=Marti Profit Per Lot,description=Dollars per lot for the mirrored stop and target" validate:"omitempty,gte=0"`
	MartiTPMultiple   float64  `yaml:"marti_tp_multiple" json:"marti_tp_multiple" jsonschema:"title=Marti TP Multiple,description=Target is the marti stop times this,default=2" validate:"gte=0"`

	HardStopDollars     float64 `yaml:"hard_stop_dollars" json:"hard_stop_dollars" jsonschema:"title=Hard Stop Dollars,description=Close when the loss reaches this amount (0 disables),default=0" validate:"gte=0"`
	BEBufferPips        float64 `yaml:"be_buffer_pips" json:"be_buffer_pips" jsonschema:"title=Breakeven Buffer Pips,default=1" validate:"gte=0"`
	TrailGivebackPct    float64 `yaml:"trail_giveback_pct" json:"trail_giveback_pct" jsonschema:"title=Trail Giveback,description=Fraction of peak profit given back before closing,default=0.4" validate:"gte=0,lte=1"`
	TrailATRK           float64 `yaml:"trail_atr_k" json:"trail_atr_k" jsonschema:"title=ATR Trail K,description=ATR multiple for the price trail (0 disables),default=0" validate:"gte=0"`
	TrailMinProfit      float64 `yaml:"trail_min_profit" json:"trail_min_profit" jsonschema:"title=Trail Min Profit,default=0"`
	TrailStartMultiple  float64 `yaml:"trail_start_multiple" json:"trail_start_multiple" jsonschema:"title=Trail Start Multiple,description=Peak profit must exceed the marti stop times this,default=0.5" validate:"gte=0"`
	TrailEnabled        bool    `yaml:"trail_enabled" json:"trail_enabled" jsonschema:"title=Trail Enabled,default=true"`
	MinTicksForTrail    int     `yaml:"min_ticks_for_trail" json:"min_ticks_for_trail" jsonschema:"title=Min Ticks For Trail,default=0" validate:"gte=0"`
	ArmAfterAdd         bool    `yaml:"arm_after_add" json:"arm_after_add" jsonschema:"title=Arm After Add,description=Arm breakeven once the basket has two legs,default=true"`
	ArmProfitDollars    float64 `yaml:"arm_profit_dollars" json:"arm_profit_dollars" jsonschema:"title=Arm Profit Dollars,default=0" validate:"gte=0"`
	BEArmProfitMultiple float64 `yaml:"be_arm_profit_multiple" json:"be_arm_profit_multiple" jsonschema:"title=Breakeven Arm Multiple,description=Arm breakeven at the marti stop times this in profit,default=0.3" validate:"gte=0"`
	MinTicksForBE       int     `yaml:"min_ticks_for_be" json:"min_ticks_for_be" jsonschema:"title=Min Ticks For Breakeven,default=0" validate:"gte=0"`
	ResumeGraceTicks    int     `yaml:"resume_grace_ticks" json:"resume_grace_ticks" jsonschema:"title=Resume Grace Ticks,description=Ticks without close checks after adopting broker positions,default=3"`

	// PipMultiplier and PipValuePerLot override the instrument class table.
	PipMultiplier  *float64 `yaml:"pip_multiplier" json:"pip_multiplier,omitempty" jsonschema:"title=Pip Multiplier" validate:"omitempty,gt=0"`
	PipValuePerLot *float64 `yaml:"pip_value_per_lot" json:"pip_value_per_lot,omitempty" jsonschema:"title=Pip Value Per Lot" validate:"omitempty,gt=0"`
}

// DefaultConfig returns the stock parameters.
func DefaultConfig() Config {
	return Config{
		AddDistancePips:     5.0,
		InitialVolume:       0.02,
		VolumeMultiplier:    1.1,
		MaxPositions:        6,
		MaxTotalVolume:      2.0,
		MartiProfitPerLot:   nil,
		MartiTPMultiple:     2.0,
		HardStopDollars:     0,
		BEBufferPips:        1.0,
		TrailGivebackPct:    0.4,
		TrailATRK:           0,
		TrailMinProfit:      0,
		TrailStartMultiple:  0.5,
		TrailEnabled:        true,
		MinTicksForTrail:    0,
		ArmAfterAdd:         true,
		ArmProfitDollars:    0,
		BEArmProfitMultiple: 0.3,
		MinTicksForBE:       0,
		ResumeGraceTicks:    3,
		PipMultiplier:       nil,
		PipValuePerLot:      nil,
	}
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid strategy config", err)
	}

	return nil
}
