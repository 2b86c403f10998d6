package tradingprovider

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/internal/utils"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"go.uber.org/zap"
)

// Service interfaces for mocking the Binance futures API

// CreateOrderService interface for creating futures orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side futures.SideType) CreateOrderService
	Type(orderType futures.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	ReduceOnly(reduceOnly bool) CreateOrderService
	NewOrderResponseType(respType futures.NewOrderRespType) CreateOrderService
	Do(ctx context.Context) (*futures.CreateOrderResponse, error)
}

// GetPositionRiskService interface for listing positions.
type GetPositionRiskService interface {
	Symbol(symbol string) GetPositionRiskService
	Do(ctx context.Context) ([]*futures.PositionRisk, error)
}

// GetAccountService interface for getting account info.
type GetAccountService interface {
	Do(ctx context.Context) (*futures.Account, error)
}

// ListBookTickersService interface for the best bid and ask.
type ListBookTickersService interface {
	Symbol(symbol string) ListBookTickersService
	Do(ctx context.Context) ([]*futures.BookTicker, error)
}

// FuturesClient interface abstracts the Binance futures client for testing.
type FuturesClient interface {
	NewCreateOrderService() CreateOrderService
	NewGetPositionRiskService() GetPositionRiskService
	NewGetAccountService() GetAccountService
	NewListBookTickersService() ListBookTickersService
}

// realFuturesClient wraps the actual futures.Client.
type realFuturesClient struct {
	client *futures.Client
}

func (r *realFuturesClient) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realFuturesClient) NewGetPositionRiskService() GetPositionRiskService {
	return &realGetPositionRiskService{service: r.client.NewGetPositionRiskService()}
}

func (r *realFuturesClient) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

func (r *realFuturesClient) NewListBookTickersService() ListBookTickersService {
	return &realListBookTickersService{service: r.client.NewListBookTickersService()}
}

// Real service wrappers

type realCreateOrderService struct {
	service *futures.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side futures.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType futures.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) ReduceOnly(reduceOnly bool) CreateOrderService {
	s.service = s.service.ReduceOnly(reduceOnly)

	return s
}

func (s *realCreateOrderService) NewOrderResponseType(respType futures.NewOrderRespType) CreateOrderService {
	s.service = s.service.NewOrderResponseType(respType)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*futures.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realGetPositionRiskService struct {
	service *futures.GetPositionRiskService
}

func (s *realGetPositionRiskService) Symbol(symbol string) GetPositionRiskService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realGetPositionRiskService) Do(ctx context.Context) ([]*futures.PositionRisk, error) {
	return s.service.Do(ctx)
}

type realGetAccountService struct {
	service *futures.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*futures.Account, error) {
	return s.service.Do(ctx)
}

type realListBookTickersService struct {
	service *futures.ListBookTickersService
}

func (s *realListBookTickersService) Symbol(symbol string) ListBookTickersService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realListBookTickersService) Do(ctx context.Context) ([]*futures.BookTicker, error) {
	return s.service.Do(ctx)
}

// BinanceFuturesOptions configures the futures broker.
type BinanceFuturesOptions struct {
	APIKey            string
	SecretKey         string
	Testnet           bool
	BaseURL           string
	Symbol            string
	QuantityPrecision int
	// ContractSize is the exchange quantity per lot. Zero means one.
	ContractSize float64
}

// BinanceFuturesBroker implements Broker on Binance USDⓈ-M futures in one-way
// mode. The exchange nets positions, so a basket is held as one net position
// and is reported back as a single leg.
type BinanceFuturesBroker struct {
	client            FuturesClient
	symbol            string
	quantityPrecision int
	contractSize      float64
	now               func() time.Time
	log               *logger.Logger
}

// NewBinanceFuturesBroker creates a futures broker.
// If Testnet is true, connects to the Binance futures testnet.
// If BaseURL is set, it takes precedence over Testnet.
func NewBinanceFuturesBroker(opts BinanceFuturesOptions, log *logger.Logger) (*BinanceFuturesBroker, error) {
	if opts.Symbol == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "binance futures broker requires a symbol")
	}

	if opts.Testnet {
		futures.UseTestnet = true
	}

	client := futures.NewClient(opts.APIKey, opts.SecretKey)

	if opts.BaseURL != "" {
		client.BaseURL = opts.BaseURL
	}

	return newBinanceFuturesBrokerWithClient(&realFuturesClient{client: client}, opts, log), nil
}

// newBinanceFuturesBrokerWithClient is used for testing with fake clients.
func newBinanceFuturesBrokerWithClient(client FuturesClient, opts BinanceFuturesOptions, log *logger.Logger) *BinanceFuturesBroker {
	if log == nil {
		log = logger.NewNopLogger()
	}

	contractSize := opts.ContractSize
	if contractSize <= 0 {
		contractSize = 1
	}

	return &BinanceFuturesBroker{
		client:            client,
		symbol:            opts.Symbol,
		quantityPrecision: opts.QuantityPrecision,
		contractSize:      contractSize,
		now:               time.Now,
		log:               log,
	}
}

// OpenMarket places a market order and returns its average fill.
func (b *BinanceFuturesBroker) OpenMarket(ctx context.Context, direction types.Direction, volume float64) (types.OrderResult, error) {
	side, err := toFuturesSide(direction)
	if err != nil {
		return types.OrderResult{}, err
	}

	if volume <= 0 {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidVolume, "order volume must be greater than zero, got %.4f", volume)
	}

	quantity := utils.VolumeToQuantity(volume, b.contractSize, b.quantityPrecision)
	if quantity <= 0 {
		return types.OrderResult{}, errors.Newf(errors.ErrCodeInvalidVolume,
			"order volume %.4f is too small after rounding to %d decimal places", volume, b.quantityPrecision)
	}

	resp, err := b.placeMarket(ctx, side, quantity, false)
	if err != nil {
		return types.OrderResult{}, errors.Wrap(errors.ErrCodeOrderFailed, "failed to place order on Binance", err)
	}

	return b.toOrderResult(ctx, resp, direction, quantity)
}

// CloseAll sends a reduce-only market order against every non-zero position.
func (b *BinanceFuturesBroker) CloseAll(ctx context.Context) ([]types.OrderResult, error) {
	risks, err := b.client.NewGetPositionRiskService().Symbol(b.symbol).Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCloseFailed, "failed to get positions from Binance", err)
	}

	var (
		results []types.OrderResult
		errs    []error
	)

	for _, risk := range risks {
		amount := utils.ParseFloatOrZero(risk.PositionAmt)
		if amount == 0 {
			continue
		}

		closeDirection := types.DirectionSell
		if amount < 0 {
			closeDirection = types.DirectionBuy
		}

		side, _ := toFuturesSide(closeDirection)
		quantity := utils.RoundToDecimalPrecision(math.Abs(amount), b.quantityPrecision)

		resp, err := b.placeMarket(ctx, side, quantity, true)
		if err != nil {
			b.log.Error("Failed to close position", zap.String("symbol", risk.Symbol), zap.Float64("amount", amount), zap.Error(err))
			errs = append(errs, err)

			continue
		}

		result, err := b.toOrderResult(ctx, resp, closeDirection, quantity)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		results = append(results, result)
	}

	return results, errors.Join(errors.ErrCodeCloseFailed, "failed to close all positions", errs...)
}

// Positions returns the net position of the symbol, if any.
func (b *BinanceFuturesBroker) Positions(ctx context.Context) ([]types.BrokerPosition, error) {
	risks, err := b.client.NewGetPositionRiskService().Symbol(b.symbol).Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePositionNotFound, "failed to get positions from Binance", err)
	}

	positions := make([]types.BrokerPosition, 0, len(risks))

	for _, risk := range risks {
		amount := utils.ParseFloatOrZero(risk.PositionAmt)
		if amount == 0 {
			continue
		}

		direction := types.DirectionBuy
		if amount < 0 {
			direction = types.DirectionSell
		}

		positions = append(positions, types.BrokerPosition{
			Ticket:    risk.Symbol + ":" + risk.PositionSide,
			Symbol:    risk.Symbol,
			Direction: direction,
			Volume:    utils.QuantityToVolume(math.Abs(amount), b.contractSize),
			PriceOpen: utils.ParseFloatOrZero(risk.EntryPrice),
			Profit:    utils.ParseFloatOrZero(risk.UnRealizedProfit),
			OpenTime:  time.Time{},
		})
	}

	return positions, nil
}

// AccountInfo maps the futures wallet to an AccountInfo.
func (b *BinanceFuturesBroker) AccountInfo(ctx context.Context) (types.AccountInfo, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return types.AccountInfo{}, errors.Wrap(errors.ErrCodeAccountFailed, "failed to get account info from Binance", err)
	}

	return types.AccountInfo{
		Balance:    utils.ParseFloatOrZero(account.TotalWalletBalance),
		Equity:     utils.ParseFloatOrZero(account.TotalMarginBalance),
		Profit:     utils.ParseFloatOrZero(account.TotalUnrealizedProfit),
		MarginUsed: utils.ParseFloatOrZero(account.TotalInitialMargin),
		Currency:   "USDT",
	}, nil
}

// CheckConnection verifies connectivity and authentication.
func (b *BinanceFuturesBroker) CheckConnection(ctx context.Context) error {
	_, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBrokerNotReady, "failed to connect to Binance API", err)
	}

	return nil
}

func (b *BinanceFuturesBroker) placeMarket(ctx context.Context, side futures.SideType, quantity float64, reduceOnly bool) (*futures.CreateOrderResponse, error) {
	service := b.client.NewCreateOrderService().
		Symbol(b.symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(strconv.FormatFloat(quantity, 'f', b.quantityPrecision, 64)).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)

	if reduceOnly {
		service = service.ReduceOnly(true)
	}

	return service.Do(ctx)
}

// toOrderResult reads the average fill, falling back to the book when the
// exchange did not report one.
func (b *BinanceFuturesBroker) toOrderResult(ctx context.Context, resp *futures.CreateOrderResponse, direction types.Direction, quantity float64) (types.OrderResult, error) {
	price := utils.ParseFloatOrZero(resp.AvgPrice)
	if price <= 0 {
		tickers, err := b.client.NewListBookTickersService().Symbol(b.symbol).Do(ctx)
		if err != nil || len(tickers) == 0 {
			return types.OrderResult{}, errors.Newf(errors.ErrCodeOrderFailed, "order %d filled without a price", resp.OrderID)
		}

		price = utils.ParseFloatOrZero(tickers[0].AskPrice)
		if direction == types.DirectionSell {
			price = utils.ParseFloatOrZero(tickers[0].BidPrice)
		}
	}

	executed := utils.ParseFloatOrZero(resp.ExecutedQuantity)
	if executed <= 0 {
		executed = quantity
	}

	filledAt := b.now()
	if resp.UpdateTime > 0 {
		filledAt = time.UnixMilli(resp.UpdateTime)
	}

	return types.OrderResult{
		OrderID:   strconv.FormatInt(resp.OrderID, 10),
		Direction: direction,
		Price:     price,
		Volume:    utils.QuantityToVolume(executed, b.contractSize),
		Time:      filledAt,
	}, nil
}

func toFuturesSide(direction types.Direction) (futures.SideType, error) {
	switch direction {
	case types.DirectionBuy:
		return futures.SideTypeBuy, nil
	case types.DirectionSell:
		return futures.SideTypeSell, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidDirection, "unsupported order direction: %q", direction)
	}
}
