package tradingprovider

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaperOptions configures the simulated account.
type PaperOptions struct {
	InitialBalance float64
	// ContractSize is the money value of a 1.0 price move on one lot.
	ContractSize float64
}

type paperPosition struct {
	ticket    string
	direction types.Direction
	volume    decimal.Decimal
	price     decimal.Decimal
	openTime  time.Time
}

// PaperBroker simulates a hedging account: every order is its own position,
// filled at the current ask (BUY) or bid (SELL).
type PaperBroker struct {
	mu           sync.Mutex
	symbol       string
	quotes       QuoteSource
	contractSize decimal.Decimal
	balance      decimal.Decimal
	positions    []paperPosition
	log          *logger.Logger
}

// NewPaperBroker creates a paper broker quoting from quotes.
func NewPaperBroker(symbol string, quotes QuoteSource, opts PaperOptions, log *logger.Logger) *PaperBroker {
	if log == nil {
		log = logger.NewNopLogger()
	}

	contractSize := opts.ContractSize
	if contractSize <= 0 {
		contractSize = 1
	}

	return &PaperBroker{
		mu:           sync.Mutex{},
		symbol:       symbol,
		quotes:       quotes,
		contractSize: decimal.NewFromFloat(contractSize),
		balance:      decimal.NewFromFloat(opts.InitialBalance),
		positions:    nil,
		log:          log,
	}
}

// OpenMarket fills immediately at the current quote.
func (p *PaperBroker) OpenMarket(ctx context.Context, direction types.Direction, volume float64) (types.OrderResult, error) {
	if !direction.Valid() {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidDirection, "unsupported order direction: %q", direction)
	}

	if volume <= 0 {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidVolume, "order volume must be greater than zero, got %.4f", volume)
	}

	tick, err := p.quotes.LatestTick(ctx)
	if err != nil {
		return types.OrderResult{}, errors.Wrap(errors.ErrCodeOrderFailed, "paper broker has no quote", err)
	}

	price := tick.PriceFor(direction)
	pos := paperPosition{
		ticket:    uuid.New().String(),
		direction: direction,
		volume:    decimal.NewFromFloat(volume),
		price:     decimal.NewFromFloat(price),
		openTime:  tick.Time,
	}

	p.mu.Lock()
	p.positions = append(p.positions, pos)
	p.mu.Unlock()

	p.log.Debug("Paper order filled",
		zap.String("ticket", pos.ticket),
		zap.String("direction", string(direction)),
		zap.Float64("price", price),
		zap.Float64("volume", volume),
	)

	return types.OrderResult{
		OrderID:   pos.ticket,
		Direction: direction,
		Price:     price,
		Volume:    volume,
		Time:      tick.Time,
	}, nil
}

// CloseAll closes every position at the current quote and books the profit.
func (p *PaperBroker) CloseAll(ctx context.Context) ([]types.OrderResult, error) {
	tick, err := p.quotes.LatestTick(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCloseFailed, "paper broker has no quote", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]types.OrderResult, 0, len(p.positions))

	for _, pos := range p.positions {
		closeSide := pos.direction.Opposite()
		exit := decimal.NewFromFloat(tick.PriceFor(closeSide))
		p.balance = p.balance.Add(p.profit(pos, exit))

		results = append(results, types.OrderResult{
			OrderID:   pos.ticket,
			Direction: closeSide,
			Price:     exit.InexactFloat64(),
			Volume:    pos.volume.InexactFloat64(),
			Time:      tick.Time,
		})
	}

	p.positions = nil

	return results, nil
}

// Positions returns the open positions valued at the current quote.
func (p *PaperBroker) Positions(ctx context.Context) ([]types.BrokerPosition, error) {
	tick, err := p.quotes.LatestTick(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataMissing, "paper broker has no quote", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.BrokerPosition, 0, len(p.positions))
	for _, pos := range p.positions {
		exit := decimal.NewFromFloat(tick.PriceFor(pos.direction.Opposite()))

		out = append(out, types.BrokerPosition{
			Ticket:    pos.ticket,
			Symbol:    p.symbol,
			Direction: pos.direction,
			Volume:    pos.volume.InexactFloat64(),
			PriceOpen: pos.price.InexactFloat64(),
			Profit:    p.profit(pos, exit).InexactFloat64(),
			OpenTime:  pos.openTime,
		})
	}

	return out, nil
}

// AccountInfo reports the booked balance plus the floating profit.
func (p *PaperBroker) AccountInfo(ctx context.Context) (types.AccountInfo, error) {
	positions, err := p.Positions(ctx)
	if err != nil {
		return types.AccountInfo{}, errors.Wrap(errors.ErrCodeAccountFailed, "failed to value paper positions", err)
	}

	floating := decimal.Zero
	for _, pos := range positions {
		floating = floating.Add(decimal.NewFromFloat(pos.Profit))
	}

	p.mu.Lock()
	balance := p.balance
	p.mu.Unlock()

	return types.AccountInfo{
		Balance:    balance.InexactFloat64(),
		Equity:     balance.Add(floating).InexactFloat64(),
		Profit:     floating.InexactFloat64(),
		MarginUsed: 0,
		Currency:   "USD",
	}, nil
}

// CheckConnection always succeeds once a quote is available.
func (p *PaperBroker) CheckConnection(ctx context.Context) error {
	if _, err := p.quotes.LatestTick(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeBrokerNotReady, "paper broker has no quote", err)
	}

	return nil
}

// Seed adds a position without touching the balance. It lets a paper run start
// with positions left over from an earlier session.
func (p *PaperBroker) Seed(position types.BrokerPosition) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ticket := position.Ticket
	if ticket == "" {
		ticket = uuid.New().String()
	}

	p.positions = append(p.positions, paperPosition{
		ticket:    ticket,
		direction: position.Direction,
		volume:    decimal.NewFromFloat(position.Volume),
		price:     decimal.NewFromFloat(position.PriceOpen),
		openTime:  position.OpenTime,
	})
}

func (p *PaperBroker) profit(pos paperPosition, exit decimal.Decimal) decimal.Decimal {
	diff := exit.Sub(pos.price)
	if pos.direction == types.DirectionSell {
		diff = diff.Neg()
	}

	return diff.Mul(pos.volume).Mul(p.contractSize)
}
