package flipped

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"go.uber.org/zap"
)

// ShouldAdd reports whether price has moved far enough in the basket's favor
// from the last leg, within the leg count and volume caps.
func (s *Strategy) ShouldAdd(price float64) bool {
	if !s.IsOpen() {
		return false
	}

	if len(s.legs) >= s.cfg.MaxPositions {
		return false
	}

	if s.TotalVolume() >= s.cfg.MaxTotalVolume {
		return false
	}

	last := s.legs[len(s.legs)-1].Price
	move := s.direction.Sign() * s.pips.Pips(price-last)

	return move >= s.cfg.AddDistancePips
}

// ShouldClose runs the exit rules in order and returns the first that fires.
// Every call counts as one tick of the open basket. atrPips is only needed by
// the ATR trail.
func (s *Strategy) ShouldClose(price float64, atrPips optional.Option[float64]) (bool, types.CloseReason) {
	if !s.IsOpen() {
		return false, types.CloseReasonNone
	}

	s.ticksOpen++

	if s.resumeGraceRemaining > 0 {
		s.resumeGraceRemaining--

		return false, types.CloseReasonNone
	}

	profit := s.Profit(price)
	if profit > s.maxFavorableProfit {
		s.maxFavorableProfit = profit
	}

	s.armBreakevenIfReady(profit)

	martiStop := s.MartiStop()

	if !s.skipMartiStop {
		if martiStop > 0 && profit <= -martiStop {
			return s.fire(types.CloseReasonMartiStop, price, profit)
		}

		martiTP := martiStop * s.cfg.MartiTPMultiple
		if martiTP > 0 && profit >= martiTP {
			return s.fire(types.CloseReasonMartiTP, price, profit)
		}
	}

	if s.cfg.HardStopDollars > 0 && profit <= -s.cfg.HardStopDollars {
		return s.fire(types.CloseReasonHardStop, price, profit)
	}

	if s.breakevenArmed {
		buffer := s.pips.Price(s.cfg.BEBufferPips)
		entry := s.weightedEntry()

		if s.direction == types.DirectionBuy && price <= entry-buffer {
			return s.fire(types.CloseReasonBreakeven, price, profit)
		}

		if s.direction == types.DirectionSell && price >= entry+buffer {
			return s.fire(types.CloseReasonBreakeven, price, profit)
		}
	}

	if s.cfg.TrailATRK > 0 && atrPips.IsSome() && s.bestPrice.IsSome() {
		offset := s.pips.Price(atrPips.Unwrap() * s.cfg.TrailATRK)
		best := s.bestPrice.Unwrap()

		if s.direction == types.DirectionBuy && price < best-offset {
			return s.fire(types.CloseReasonATRTrail, price, profit)
		}

		if s.direction == types.DirectionSell && price > best+offset {
			return s.fire(types.CloseReasonATRTrail, price, profit)
		}
	}

	if s.cfg.TrailEnabled && s.ticksOpen >= s.cfg.MinTicksForTrail {
		floor := max(s.cfg.TrailMinProfit, 0)
		if martiStop > 0 && s.cfg.TrailStartMultiple > 0 {
			floor = max(floor, martiStop*s.cfg.TrailStartMultiple)
		}

		if s.maxFavorableProfit > floor && profit <= s.maxFavorableProfit*(1-s.cfg.TrailGivebackPct) {
			return s.fire(types.CloseReasonTrailGiveback, price, profit)
		}
	}

	s.trackBestPrice(price)

	return false, types.CloseReasonNone
}

// armBreakevenIfReady latches breakeven once any arm condition holds.
func (s *Strategy) armBreakevenIfReady(profit float64) {
	if s.breakevenArmed || s.ticksOpen < s.cfg.MinTicksForBE {
		return
	}

	switch {
	case s.cfg.ArmAfterAdd && len(s.legs) >= 2:
		s.breakevenArmed = true
	case s.cfg.ArmProfitDollars > 0 && profit >= s.cfg.ArmProfitDollars:
		s.breakevenArmed = true
	default:
		martiStop := s.MartiStop()
		if martiStop > 0 && s.cfg.BEArmProfitMultiple > 0 && profit >= martiStop*s.cfg.BEArmProfitMultiple {
			s.breakevenArmed = true
		}
	}

	if s.breakevenArmed {
		s.log.Debug("Breakeven armed",
			zap.String("direction", string(s.direction)),
			zap.Float64("profit", profit),
			zap.Int("basket_size", len(s.legs)),
		)
	}
}

func (s *Strategy) trackBestPrice(price float64) {
	if s.bestPrice.IsNone() {
		s.bestPrice = optional.Some(price)

		return
	}

	best := s.bestPrice.Unwrap()
	if s.direction == types.DirectionBuy {
		best = max(best, price)
	} else {
		best = min(best, price)
	}

	s.bestPrice = optional.Some(best)
}

func (s *Strategy) fire(reason types.CloseReason, price, profit float64) (bool, types.CloseReason) {
	s.log.Info("Close rule triggered",
		zap.String("reason", string(reason)),
		zap.String("direction", string(s.direction)),
		zap.Float64("price", price),
		zap.Float64("profit", profit),
		zap.Float64("max_favorable_profit", s.maxFavorableProfit),
	)

	return true, reason
}
