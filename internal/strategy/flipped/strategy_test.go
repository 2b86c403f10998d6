package flipped

import (
	"testing"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type StrategyTestSuite struct {
	suite.Suite
}

func TestStrategySuite(t *testing.T) {
	suite.Run(t, new(StrategyTestSuite))
}

func (suite *StrategyTestSuite) newStrategy(symbol string, mutate func(*Config)) *Strategy {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := NewStrategy(symbol, cfg, nil)
	suite.Require().NoError(err)

	return s
}

func noATR() optional.Option[float64] {
	return optional.None[float64]()
}

func (suite *StrategyTestSuite) TestNewStrategyValidation() {
	_, err := NewStrategy("", DefaultConfig(), nil)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	cfg := DefaultConfig()
	cfg.InitialVolume = 0
	_, err = NewStrategy("EURUSD", cfg, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	cfg = DefaultConfig()
	cfg.TrailGivebackPct = 1.5
	_, err = NewStrategy("EURUSD", cfg, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *StrategyTestSuite) TestPipSpecByInstrument() {
	tests := []struct {
		name       string
		symbol     string
		multiplier float64
		value      float64
		marti      float64
	}{
		{name: "gold", symbol: "XAUUSD", multiplier: 100, value: 1, marti: 134},
		{name: "gold alias", symbol: "gold.m", multiplier: 100, value: 1, marti: 134},
		{name: "yen pair", symbol: "USDJPY", multiplier: 100, value: 10, marti: 49},
		{name: "euro", symbol: "EURUSD", multiplier: 10000, value: 10, marti: 49},
		{name: "other major", symbol: "GBPUSD", multiplier: 10000, value: 10, marti: 40},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			spec := LookupPipSpec(tt.symbol)
			suite.Equal(tt.multiplier, spec.Multiplier)
			suite.Equal(tt.value, spec.ValuePerLot)
			suite.Equal(tt.marti, DefaultMartiProfitPerLot(tt.symbol))
		})
	}
}

func (suite *StrategyTestSuite) TestPipOverrides() {
	mult := 10.0
	value := 2.5
	marti := 77.0

	s := suite.newStrategy("BTCUSDT", func(c *Config) {
		c.PipMultiplier = &mult
		c.PipValuePerLot = &value
		c.MartiProfitPerLot = &marti
	})

	suite.Equal(PipSpec{Multiplier: 10, ValuePerLot: 2.5}, s.PipSpec())

	_, err := s.OpenBasket(types.DirectionBuy, 100, "1")
	suite.Require().NoError(err)
	suite.InDelta(0.02*77.0, s.MartiStop(), 1e-9)
}

func (suite *StrategyTestSuite) TestOpenThenCloseAtSamePrice() {
	s := suite.newStrategy("EURUSD", nil)

	open, err := s.OpenBasket(types.DirectionBuy, 1.1000, "1001")
	suite.Require().NoError(err)
	suite.Equal(types.ActionOpen, open.Action)
	suite.Equal(0.02, open.Volume)
	suite.Equal(1, open.BasketSize)
	suite.True(s.IsOpen())

	closed, err := s.CloseBasket(1.1000, types.CloseReasonShutdown)
	suite.Require().NoError(err)
	suite.Equal(types.ActionClose, closed.Action)
	suite.Equal(types.DirectionBuy, closed.Direction)
	suite.Equal(types.CloseReasonShutdown, closed.Reason)
	suite.InDelta(0.0, closed.Profit, 1e-9)

	suite.False(s.IsOpen())
	suite.Empty(s.Legs())
	suite.Equal(types.DirectionNone, s.Direction())
	suite.False(s.Status().Open)
}

func (suite *StrategyTestSuite) TestPreconditions() {
	s := suite.newStrategy("EURUSD", nil)

	_, err := s.AddToBasket(1.1, "x")
	suite.True(errors.HasCode(err, errors.ErrCodeBasketNotOpen))

	_, err = s.CloseBasket(1.1, types.CloseReasonShutdown)
	suite.True(errors.HasCode(err, errors.ErrCodeBasketNotOpen))

	_, err = s.OpenBasket(types.DirectionNone, 1.1, "x")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidDirection))

	_, err = s.OpenBasket(types.DirectionSell, 1.1, "x")
	suite.Require().NoError(err)

	_, err = s.OpenBasket(types.DirectionBuy, 1.1, "y")
	suite.True(errors.HasCode(err, errors.ErrCodeBasketOpen))

	err = s.SyncFromExternal([]types.Leg{{Price: 1.1, Volume: 0.02}}, types.DirectionBuy)
	suite.True(errors.HasCode(err, errors.ErrCodeBasketOpen))
}

func (suite *StrategyTestSuite) TestShouldCloseWithoutBasket() {
	s := suite.newStrategy("EURUSD", nil)

	closeIt, reason := s.ShouldClose(1.1, noATR())
	suite.False(closeIt)
	suite.Equal(types.CloseReasonNone, reason)
	suite.False(s.ShouldAdd(1.2))
}

func (suite *StrategyTestSuite) TestNextVolumeNonDecreasing() {
	s := suite.newStrategy("EURUSD", func(c *Config) {
		c.InitialVolume = 0.01
		c.VolumeMultiplier = 1.5
		c.MaxPositions = 10
	})

	suite.Equal(0.01, s.ComputeNextVolume())

	_, err := s.OpenBasket(types.DirectionBuy, 1.1, "1")
	suite.Require().NoError(err)

	prev := 0.01
	for i := 0; i < 6; i++ {
		next := s.ComputeNextVolume()
		suite.GreaterOrEqual(next, prev)
		suite.GreaterOrEqual(next, 0.01)

		action, err := s.AddToBasket(1.1, "")
		suite.Require().NoError(err)
		suite.Equal(next, action.Volume)
		prev = next
	}

	suite.Equal([]float64{0.01, 0.02, 0.03}, legVolumes(s.Legs()[:3]))
}

func (suite *StrategyTestSuite) TestNextVolumeFloor() {
	s := suite.newStrategy("EURUSD", func(c *Config) {
		c.InitialVolume = 0.01
		c.VolumeMultiplier = 0.5
	})

	_, err := s.OpenBasket(types.DirectionSell, 1.1, "1")
	suite.Require().NoError(err)
	suite.Equal(0.01, s.ComputeNextVolume())
}

func (suite *StrategyTestSuite) TestShouldAddBuy() {
	s := suite.newStrategy("EURUSD", nil)

	_, err := s.OpenBasket(types.DirectionBuy, 1.1000, "1")
	suite.Require().NoError(err)

	suite.False(s.ShouldAdd(1.1004))
	suite.False(s.ShouldAdd(1.0990))
	suite.True(s.ShouldAdd(1.1006))
	suite.True(s.ShouldAdd(1.1020))
}

func (suite *StrategyTestSuite) TestShouldAddSell() {
	s := suite.newStrategy("EURUSD", nil)

	_, err := s.OpenBasket(types.DirectionSell, 1.1000, "1")
	suite.Require().NoError(err)

	suite.False(s.ShouldAdd(1.0996))
	suite.False(s.ShouldAdd(1.1010))
	suite.True(s.ShouldAdd(1.0994))
}

func (suite *StrategyTestSuite) TestShouldAddMeasuresFromLastLeg() {
	s := suite.newStrategy("EURUSD", nil)

	_, err := s.OpenBasket(types.DirectionBuy, 1.1000, "1")
	suite.Require().NoError(err)
	_, err = s.AddToBasket(1.1006, "2")
	suite.Require().NoError(err)

	suite.False(s.ShouldAdd(1.1008))
	suite.True(s.ShouldAdd(1.1012))
}

func (suite *StrategyTestSuite) TestShouldAddCaps() {
	s := suite.newStrategy("EURUSD", func(c *Config) {
		c.MaxPositions = 2
	})

	_, err := s.OpenBasket(types.DirectionBuy, 1.1000, "1")
	suite.Require().NoError(err)
	_, err = s.AddToBasket(1.1006, "2")
	suite.Require().NoError(err)
	suite.False(s.ShouldAdd(1.1100))

	v := suite.newStrategy("EURUSD", func(c *Config) {
		c.InitialVolume = 0.5
		c.MaxTotalVolume = 0.5
	})

	_, err = v.OpenBasket(types.DirectionBuy, 1.1000, "1")
	suite.Require().NoError(err)
	suite.False(v.ShouldAdd(1.1100))
}

func (suite *StrategyTestSuite) TestGoldScenarioMartiStop() {
	s := suite.newStrategy("XAUUSD", nil)

	_, err := s.OpenBasket(types.DirectionBuy, 2000.00, "1")
	suite.Require().NoError(err)
	suite.True(s.ShouldAdd(2000.10))

	add, err := s.AddToBasket(2000.10, "2")
	suite.Require().NoError(err)
	suite.Equal(0.02, add.Volume)
	suite.InDelta(0.04, add.TotalVolume, 1e-9)
	suite.InDelta(5.36, s.MartiStop(), 1e-9)

	price := 1998.625
	suite.InDelta(-5.70, s.Profit(price), 1e-6)

	closeIt, reason := s.ShouldClose(price, noATR())
	suite.True(closeIt)
	suite.Equal(types.CloseReasonMartiStop, reason)
}

func (suite *StrategyTestSuite) TestMartiStopBoundary() {
	s := suite.newStrategy("EURUSD", nil)

	_, err := s.OpenBasket(types.DirectionBuy, 1.1000, "1")
	suite.Require().NoError(err)
	suite.InDelta(0.98, s.MartiStop(), 1e-9)

	closeIt, _ := s.ShouldClose(1.0996, noATR())
	suite.False(closeIt)

	closeIt, reason := s.ShouldClose(1.0995, noATR())
	suite.True(closeIt)
	suite.Equal(types.CloseReasonMartiStop, reason)
}

func (suite *StrategyTestSuite) TestMartiTakeProfit() {
	s := suite.newStrategy("EURUSD", func(c *Config) {
		c.TrailEnabled = false
	})

	_, err := s.OpenBasket(types.DirectionSell, 1.1000, "1")
	suite.Require().NoError(err)

	closeIt, reason := s.ShouldClose(1.0990, noATR())
	suite.True(closeIt)
	suite.Equal(types.CloseReasonMartiTP, reason)
}

func (suite *StrategyTestSuite) TestHardStopBeforeLargeMartiStop() {
	marti := 10000.0
	s := suite.newStrategy("EURUSD", func(c *Config) {
		c.HardStopDollars = 50
		c.MartiProfitPerLot = &marti
	})

	_, err := s.OpenBasket(types.DirectionBuy, 1.1000, "1")
	suite.Require().NoError(err)

	closeIt, _ := s.ShouldClose(1.0760, noATR())
	suite.False(closeIt)

	closeIt, reason := s.ShouldClose(1.0740, noATR())
	suite.True(closeIt)
	suite.Equal(types.CloseReasonHardStop, reason)
}

func (suite *StrategyTestSuite) TestInheritedBasketSkipsMartiStop() {
	s := suite.newStrategy("EURUSD", func(c *Config) {
		c.ResumeGraceTicks = 0
	})

	err := s.SyncFromExternal([]types.Leg{{Price: 1.1000, Volume: 0.02, OrderID: "7"}}, types.DirectionBuy)
	suite.Require().NoError(err)
	s.MarkInherited(true)

	closeIt, _ := s.ShouldClose(1.0900, noATR())
	suite.False(closeIt)
}

func (suite *StrategyTestSuite) TestResumeGrace() {
	s := suite.newStrategy("EURUSD", nil)

	err := s.SyncFromExternal([]types.Leg{{Price: 1.1000, Volume: 0.02, OrderID: "7"}}, types.DirectionBuy)
	suite.Require().NoError(err)

	for i := 0; i < 3; i++ {
		closeIt, reason := s.ShouldClose(1.0900, noATR())
		suite.False(closeIt, "tick %d", i)
		suite.Equal(types.CloseReasonNone, reason)
	}

	closeIt, reason := s.ShouldClose(1.0900, noATR())
	suite.True(closeIt)
	suite.Equal(types.CloseReasonMartiStop, reason)
}

func (suite *StrategyTestSuite) TestSyncArmsBreakevenForMultiLeg() {
	s := suite.newStrategy("EURUSD", nil)

	err := s.SyncFromExternal([]types.Leg{
		{Price: 1.1000, Volume: 0.02, OrderID: "1"},
		{Price: 1.1006, Volume: 0.02, OrderID: "2"},
	}, types.DirectionBuy)
	suite.Require().NoError(err)
	suite.True(s.Status().BreakevenArmed)

	s.MarkInherited(false)
	suite.False(s.Status().BreakevenArmed)

	err = suite.newStrategy("EURUSD", nil).SyncFromExternal(nil, types.DirectionBuy)
	suite.True(errors.HasCode(err, errors.ErrCodeBasketSyncFail))
}

func (suite *StrategyTestSuite) TestMaxFavorableProfitMonotonic() {
	s := suite.newStrategy("EURUSD", nil)

	_, err := s.OpenBasket(types.DirectionBuy, 1.1000, "1")
	suite.Require().NoError(err)
	suite.Equal(0.0, s.Status().MaxFavorableProfit)

	prev := 0.0
	for _, price := range []float64{1.1001, 1.1003, 1.1005, 1.1004} {
		closeIt, _ := s.ShouldClose(price, noATR())
		suite.False(closeIt)

		mfe := s.Status().MaxFavorableProfit
		suite.GreaterOrEqual(mfe, prev)
		prev = mfe
	}

	suite.InDelta(1.0, prev, 1e-9)

	_, err = s.CloseBasket(1.1004, types.CloseReasonShutdown)
	suite.Require().NoError(err)
	suite.Equal(0.0, s.Status().MaxFavorableProfit)

	_, err = s.OpenBasket(types.DirectionBuy, 1.1004, "2")
	suite.Require().NoError(err)
	suite.Equal(0.0, s.Status().MaxFavorableProfit)
}

func (suite *StrategyTestSuite) TestTrailGiveback() {
	s := suite.newStrategy("EURUSD", nil)

	_, err := s.OpenBasket(types.DirectionBuy, 1.1000, "1")
	suite.Require().NoError(err)

	for _, price := range []float64{1.1003, 1.1005, 1.1004} {
		closeIt, _ := s.ShouldClose(price, noATR())
		suite.False(closeIt)
	}

	closeIt, reason := s.ShouldClose(1.1002, noATR())
	suite.True(closeIt)
	suite.Equal(types.CloseReasonTrailGiveback, reason)
}

func (suite *StrategyTestSuite) TestTrailWaitsForMinTicks() {
	s := suite.newStrategy("EURUSD", func(c *Config) {
		c.MinTicksForTrail = 10
		c.BEArmProfitMultiple = 0
	})

	_, err := s.OpenBasket(types.DirectionBuy, 1.1000, "1")
	suite.Require().NoError(err)

	for _, price := range []float64{1.1005, 1.1002} {
		closeIt, _ := s.ShouldClose(price, noATR())
		suite.False(closeIt)
	}
}

func (suite *StrategyTestSuite) TestBreakevenNeverFiresBeforeArm() {
	s := suite.newStrategy("EURUSD", func(c *Config) {
		c.ArmAfterAdd = false
		c.BEArmProfitMultiple = 0
		c.ArmProfitDollars = 2
		c.MartiTPMultiple = 0
	})

	_, err := s.OpenBasket(types.DirectionBuy, 1.1000, "1")
	suite.Require().NoError(err)

	closeIt, _ := s.ShouldClose(1.0998, noATR())
	suite.False(closeIt)
	suite.False(s.Status().BreakevenArmed)

	closeIt, _ = s.ShouldClose(1.1012, noATR())
	suite.False(closeIt)
	suite.True(s.Status().BreakevenArmed)

	closeIt, reason := s.ShouldClose(1.0998, noATR())
	suite.True(closeIt)
	suite.Equal(types.CloseReasonBreakeven, reason)
}

func (suite *StrategyTestSuite) TestBreakevenArmedAfterAdd() {
	s := suite.newStrategy("EURUSD", func(c *Config) {
		c.TrailEnabled = false
	})

	_, err := s.OpenBasket(types.DirectionSell, 1.1000, "1")
	suite.Require().NoError(err)
	_, err = s.AddToBasket(1.0994, "2")
	suite.Require().NoError(err)

	// weighted entry 1.0997, buffer 1 pip
	closeIt, _ := s.ShouldClose(1.0997, noATR())
	suite.False(closeIt)
	suite.True(s.Status().BreakevenArmed)

	closeIt, reason := s.ShouldClose(1.0999, noATR())
	suite.True(closeIt)
	suite.Equal(types.CloseReasonBreakeven, reason)
}

func (suite *StrategyTestSuite) TestBreakevenWaitsForMinTicks() {
	s := suite.newStrategy("XAUUSD", func(c *Config) {
		c.MinTicksForBE = 3
		c.ArmAfterAdd = false
		c.ArmProfitDollars = 0.5
		c.BEArmProfitMultiple = 0
		c.MartiTPMultiple = 0
		c.TrailEnabled = false
	})

	_, err := s.OpenBasket(types.DirectionBuy, 2000, "1")
	suite.Require().NoError(err)

	// profit 2.0 clears the arm threshold from the first tick
	for tick := 1; tick <= 2; tick++ {
		closeIt, _ := s.ShouldClose(2001, noATR())
		suite.False(closeIt)
		suite.False(s.Status().BreakevenArmed, "tick %d", tick)
	}

	closeIt, _ := s.ShouldClose(2001, noATR())
	suite.False(closeIt)
	suite.True(s.Status().BreakevenArmed)
}

func (suite *StrategyTestSuite) TestBreakevenArmsOnMartiStopMultiple() {
	s := suite.newStrategy("XAUUSD", func(c *Config) {
		c.ArmAfterAdd = false
		c.ArmProfitDollars = 0
		c.BEArmProfitMultiple = 0.3
		c.MartiTPMultiple = 0
		c.TrailEnabled = false
	})

	_, err := s.OpenBasket(types.DirectionBuy, 2000, "1")
	suite.Require().NoError(err)

	// marti stop 0.02 * 134 = 2.68, arm level 0.804
	suite.InDelta(2.68, s.MartiStop(), 1e-9)

	closeIt, _ := s.ShouldClose(2000.40, noATR())
	suite.False(closeIt)
	suite.False(s.Status().BreakevenArmed)

	closeIt, _ = s.ShouldClose(2000.41, noATR())
	suite.False(closeIt)
	suite.True(s.Status().BreakevenArmed)

	closeIt, reason := s.ShouldClose(1999.98, noATR())
	suite.True(closeIt)
	suite.Equal(types.CloseReasonBreakeven, reason)
}

func (suite *StrategyTestSuite) TestTrailFloorUsesMartiStopMultiple() {
	s := suite.newStrategy("XAUUSD", func(c *Config) {
		c.ArmAfterAdd = false
		c.BEArmProfitMultiple = 0
		c.MartiTPMultiple = 0
		c.TrailMinProfit = 0
		c.TrailStartMultiple = 0.5
		c.TrailGivebackPct = 0.4
	})

	_, err := s.OpenBasket(types.DirectionBuy, 2000, "1")
	suite.Require().NoError(err)

	// floor is 2.68 * 0.5 = 1.34; a 1.0 peak stays below it
	closeIt, _ := s.ShouldClose(2000.50, noATR())
	suite.False(closeIt)

	closeIt, _ = s.ShouldClose(2000.10, noATR())
	suite.False(closeIt)

	// a 2.0 peak is above the floor, so giving back to 1.0 trails out
	closeIt, _ = s.ShouldClose(2001, noATR())
	suite.False(closeIt)

	closeIt, reason := s.ShouldClose(2000.50, noATR())
	suite.True(closeIt)
	suite.Equal(types.CloseReasonTrailGiveback, reason)
}

func (suite *StrategyTestSuite) TestATRTrail() {
	s := suite.newStrategy("EURUSD", func(c *Config) {
		c.TrailATRK = 2
		c.TrailEnabled = false
		c.ArmAfterAdd = false
		c.BEArmProfitMultiple = 0
		c.MartiTPMultiple = 0
	})

	_, err := s.OpenBasket(types.DirectionBuy, 1.1000, "1")
	suite.Require().NoError(err)

	closeIt, _ := s.ShouldClose(1.1010, optional.Some(3.0))
	suite.False(closeIt)

	closeIt, _ = s.ShouldClose(1.1003, noATR())
	suite.False(closeIt)

	closeIt, reason := s.ShouldClose(1.1003, optional.Some(3.0))
	suite.True(closeIt)
	suite.Equal(types.CloseReasonATRTrail, reason)
}

func (suite *StrategyTestSuite) TestATRTrailMeasuresFromEntryOnFirstTick() {
	s := suite.newStrategy("XAUUSD", func(c *Config) {
		c.TrailATRK = 2
		c.TrailEnabled = false
		c.ArmAfterAdd = false
		c.BEArmProfitMultiple = 0
		c.MartiTPMultiple = 0
	})

	_, err := s.OpenBasket(types.DirectionBuy, 2000, "1")
	suite.Require().NoError(err)

	// best price starts at the entry, offset is 3 * 2 pips = 0.06
	closeIt, reason := s.ShouldClose(1999.90, optional.Some(3.0))
	suite.True(closeIt)
	suite.Equal(types.CloseReasonATRTrail, reason)
}

func (suite *StrategyTestSuite) TestStatusSnapshot() {
	s := suite.newStrategy("EURUSD", nil)

	_, err := s.OpenBasket(types.DirectionBuy, 1.1000, "1")
	suite.Require().NoError(err)
	_, err = s.AddToBasket(1.1006, "2")
	suite.Require().NoError(err)

	status := s.Status()
	suite.True(status.Open)
	suite.Equal(types.DirectionBuy, status.Direction)
	suite.Equal(2, status.BasketSize)
	suite.InDelta(0.04, status.TotalVolume, 1e-9)
	suite.Len(status.Legs, 2)

	status.Legs[0].Price = 0
	suite.Equal(1.1000, s.Legs()[0].Price)
}

func legVolumes(legs []types.Leg) []float64 {
	out := make([]float64, 0, len(legs))
	for _, leg := range legs {
		out = append(out, leg.Volume)
	}

	return out
}
