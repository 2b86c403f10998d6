// Package flipped implements the flipped grid basket: legs are added on
// favorable movement, and the basket exits through an ordered set of stop,
// target, breakeven and trailing rules.
package flipped

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"go.uber.org/zap"
)

// Strategy owns one basket and its running state. It is not safe for
// concurrent use; the runner is its only writer.
type Strategy struct {
	symbol            string
	cfg               Config
	pips              PipSpec
	martiProfitPerLot float64
	log               *logger.Logger
	now               func() time.Time

	direction types.Direction
	legs      []types.Leg

	maxFavorableProfit   float64
	bestPrice            optional.Option[float64]
	breakevenArmed       bool
	resumeGraceRemaining int
	ticksOpen            int
	skipMartiStop        bool
}

// NewStrategy validates cfg and returns an empty strategy for symbol.
func NewStrategy(symbol string, cfg Config, log *logger.Logger) (*Strategy, error) {
	if symbol == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "symbol is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	marti := DefaultMartiProfitPerLot(symbol)
	if cfg.MartiProfitPerLot != nil {
		marti = *cfg.MartiProfitPerLot
	}

	s := &Strategy{
		symbol:               symbol,
		cfg:                  cfg,
		pips:                 resolvePipSpec(symbol, cfg),
		martiProfitPerLot:    marti,
		log:                  log,
		now:                  time.Now,
		direction:            types.DirectionNone,
		legs:                 nil,
		maxFavorableProfit:   0,
		bestPrice:            optional.None[float64](),
		breakevenArmed:       false,
		resumeGraceRemaining: 0,
		ticksOpen:            0,
		skipMartiStop:        false,
	}

	s.log.Info("Flipped strategy initialized",
		zap.String("symbol", symbol),
		zap.Float64("add_distance_pips", cfg.AddDistancePips),
		zap.Float64("initial_volume", cfg.InitialVolume),
		zap.Float64("volume_multiplier", cfg.VolumeMultiplier),
		zap.Float64("hard_stop_dollars", cfg.HardStopDollars),
		zap.Float64("trail_giveback_pct", cfg.TrailGivebackPct),
		zap.Float64("marti_profit_per_lot", marti),
	)

	return s, nil
}

// Symbol returns the traded symbol.
func (s *Strategy) Symbol() string {
	return s.symbol
}

// Config returns the strategy parameters.
func (s *Strategy) Config() Config {
	return s.cfg
}

// PipSpec returns the pip conversion in use.
func (s *Strategy) PipSpec() PipSpec {
	return s.pips
}

// IsOpen reports whether a basket is open.
func (s *Strategy) IsOpen() bool {
	return s.direction.Valid() && len(s.legs) > 0
}

// Direction returns the basket direction, or DirectionNone.
func (s *Strategy) Direction() types.Direction {
	return s.direction
}

// Legs returns a copy of the basket legs.
func (s *Strategy) Legs() []types.Leg {
	out := make([]types.Leg, len(s.legs))
	copy(out, s.legs)

	return out
}

// TotalVolume is the sum of leg volumes.
func (s *Strategy) TotalVolume() float64 {
	total := 0.0
	for _, leg := range s.legs {
		total += leg.Volume
	}

	return total
}

// Profit returns the basket profit at price, or 0 when no basket is open.
func (s *Strategy) Profit(price float64) float64 {
	if !s.IsOpen() {
		return 0
	}

	sign := s.direction.Sign()
	profit := 0.0

	for _, leg := range s.legs {
		pips := sign * s.pips.Pips(price-leg.Price)
		profit += s.pips.Money(pips, leg.Volume)
	}

	return profit
}

// MartiStop is the volume-scaled loss limit of the current basket.
func (s *Strategy) MartiStop() float64 {
	return s.TotalVolume() * s.martiProfitPerLot
}

// ComputeNextVolume returns the volume of the next leg.
func (s *Strategy) ComputeNextVolume() float64 {
	if len(s.legs) == 0 {
		return round2(s.cfg.InitialVolume)
	}

	last := s.legs[len(s.legs)-1].Volume

	return round2(max(last*s.cfg.VolumeMultiplier, 0.01))
}

// OpenBasket starts a basket with a single leg of the initial volume.
func (s *Strategy) OpenBasket(direction types.Direction, price float64, orderID string) (types.BasketAction, error) {
	if !direction.Valid() {
		return types.BasketAction{}, errors.Newf(errors.ErrCodeInvalidDirection, "cannot open basket with direction %q", direction)
	}

	if s.IsOpen() {
		return types.BasketAction{}, errors.Newf(errors.ErrCodeBasketOpen, "%s basket already open with %d legs", s.direction, len(s.legs))
	}

	volume := round2(s.cfg.InitialVolume)

	s.resetRunningState()
	s.direction = direction
	s.legs = []types.Leg{{Price: price, Volume: volume, OrderID: orderID}}
	s.bestPrice = optional.Some(price)

	s.log.Info("Opened basket",
		zap.String("direction", string(direction)),
		zap.Float64("price", price),
		zap.Float64("volume", volume),
		zap.String("order_id", orderID),
	)

	return types.BasketAction{
		Action:      types.ActionOpen,
		Direction:   direction,
		Price:       price,
		Volume:      volume,
		BasketSize:  1,
		TotalVolume: volume,
		Profit:      0,
		Reason:      types.CloseReasonNone,
		OrderID:     orderID,
		Time:        s.now(),
		Released:    false,
	}, nil
}

// AddToBasket appends a leg sized by ComputeNextVolume.
func (s *Strategy) AddToBasket(price float64, orderID string) (types.BasketAction, error) {
	if !s.IsOpen() {
		return types.BasketAction{}, errors.New(errors.ErrCodeBasketNotOpen, "cannot add to basket - no basket is open")
	}

	volume := s.ComputeNextVolume()
	s.legs = append(s.legs, types.Leg{Price: price, Volume: volume, OrderID: orderID})
	total := s.TotalVolume()

	s.log.Info("Added to basket",
		zap.String("direction", string(s.direction)),
		zap.Float64("price", price),
		zap.Float64("volume", volume),
		zap.Float64("total_volume", total),
		zap.Int("basket_size", len(s.legs)),
	)

	return types.BasketAction{
		Action:      types.ActionAdd,
		Direction:   s.direction,
		Price:       price,
		Volume:      volume,
		BasketSize:  len(s.legs),
		TotalVolume: total,
		Profit:      0,
		Reason:      types.CloseReasonNone,
		OrderID:     orderID,
		Time:        s.now(),
		Released:    false,
	}, nil
}

// CloseBasket books the final profit at price and resets everything.
func (s *Strategy) CloseBasket(price float64, reason types.CloseReason) (types.BasketAction, error) {
	if !s.IsOpen() {
		return types.BasketAction{}, errors.New(errors.ErrCodeBasketNotOpen, "cannot close basket - no basket is open")
	}

	profit := s.Profit(price)
	size := len(s.legs)
	total := s.TotalVolume()
	direction := s.direction

	s.direction = types.DirectionNone
	s.legs = nil
	s.resetRunningState()

	s.log.Info("Closed basket",
		zap.String("direction", string(direction)),
		zap.String("reason", string(reason)),
		zap.Int("basket_size", size),
		zap.Float64("total_volume", total),
		zap.Float64("profit", profit),
	)

	return types.BasketAction{
		Action:      types.ActionClose,
		Direction:   direction,
		Price:       price,
		Volume:      total,
		BasketSize:  size,
		TotalVolume: total,
		Profit:      profit,
		Reason:      reason,
		OrderID:     "",
		Time:        s.now(),
		Released:    true,
	}, nil
}

// SyncFromExternal adopts legs already open at the broker as the current basket.
func (s *Strategy) SyncFromExternal(legs []types.Leg, direction types.Direction) error {
	if !direction.Valid() {
		return errors.Newf(errors.ErrCodeInvalidDirection, "cannot sync basket with direction %q", direction)
	}

	if len(legs) == 0 {
		return errors.New(errors.ErrCodeBasketSyncFail, "cannot sync basket without legs")
	}

	if s.IsOpen() {
		return errors.New(errors.ErrCodeBasketOpen, "cannot sync over an open basket")
	}

	adopted := make([]types.Leg, 0, len(legs))

	for _, leg := range legs {
		volume := round2(leg.Volume)
		if volume <= 0 {
			return errors.Newf(errors.ErrCodeInvalidVolume, "leg %s has non-positive volume %.4f", leg.OrderID, leg.Volume)
		}

		adopted = append(adopted, types.Leg{Price: leg.Price, Volume: volume, OrderID: leg.OrderID})
	}

	s.resetRunningState()
	s.direction = direction
	s.legs = adopted
	// rough re-arm: a multi-leg basket has already been added to
	s.breakevenArmed = len(adopted) >= 2
	s.MarkSynced()

	s.log.Info("Synced basket from broker",
		zap.String("direction", string(direction)),
		zap.Int("basket_size", len(adopted)),
		zap.Float64("total_volume", s.TotalVolume()),
		zap.Bool("breakeven_armed", s.breakevenArmed),
	)

	return nil
}

// MarkSynced starts the resume grace window.
func (s *Strategy) MarkSynced() {
	s.resumeGraceRemaining = max(s.cfg.ResumeGraceTicks, 0)
	s.ticksOpen = 0
}

// MarkInherited flags a basket inherited from an earlier run. Breakeven state
// is never carried over.
func (s *Strategy) MarkInherited(skipMartiStop bool) {
	s.skipMartiStop = skipMartiStop
	s.breakevenArmed = false
}

// Status returns a snapshot of the basket.
func (s *Strategy) Status() types.BasketStatus {
	if !s.IsOpen() {
		return types.BasketStatus{
			Open:               false,
			Direction:          types.DirectionNone,
			BasketSize:         0,
			TotalVolume:        0,
			Legs:               nil,
			MaxFavorableProfit: 0,
			BreakevenArmed:     false,
		}
	}

	return types.BasketStatus{
		Open:               true,
		Direction:          s.direction,
		BasketSize:         len(s.legs),
		TotalVolume:        s.TotalVolume(),
		Legs:               s.Legs(),
		MaxFavorableProfit: round2(s.maxFavorableProfit),
		BreakevenArmed:     s.breakevenArmed,
	}
}

func (s *Strategy) resetRunningState() {
	s.maxFavorableProfit = 0
	s.bestPrice = optional.None[float64]()
	s.breakevenArmed = false
	s.resumeGraceRemaining = 0
	s.ticksOpen = 0
	s.skipMartiStop = false
}

// weightedEntry is the volume weighted average entry price.
func (s *Strategy) weightedEntry() float64 {
	total := s.TotalVolume()
	if total <= 0 {
		return 0
	}

	sum := 0.0
	for _, leg := range s.legs {
		sum += leg.Volume * leg.Price
	}

	return sum / total
}
