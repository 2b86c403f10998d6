package marketdata

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/internal/utils"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"go.uber.org/zap"
)

// binancePageLimit is the kline page size requested from the exchange.
const binancePageLimit = 1000

// BinanceKlinesService interface for fetching klines.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Limit(limit int) BinanceKlinesService
	Do(ctx context.Context) ([]*futures.Kline, error)
}

// BinanceBookTickerService interface for the best bid and ask.
type BinanceBookTickerService interface {
	Symbol(symbol string) BinanceBookTickerService
	Do(ctx context.Context) ([]*futures.BookTicker, error)
}

// BinanceAPIClient abstracts the public futures market endpoints for testing.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
	NewListBookTickersService() BinanceBookTickerService
}

type binanceAPIWrapper struct {
	client *futures.Client
}

func (w *binanceAPIWrapper) NewKlinesService() BinanceKlinesService {
	return &binanceKlinesWrapper{service: w.client.NewKlinesService()}
}

func (w *binanceAPIWrapper) NewListBookTickersService() BinanceBookTickerService {
	return &binanceBookTickerWrapper{service: w.client.NewListBookTickersService()}
}

type binanceKlinesWrapper struct {
	service *futures.KlinesService
}

func (w *binanceKlinesWrapper) Symbol(symbol string) BinanceKlinesService {
	w.service = w.service.Symbol(symbol)

	return w
}

func (w *binanceKlinesWrapper) Interval(interval string) BinanceKlinesService {
	w.service = w.service.Interval(interval)

	return w
}

func (w *binanceKlinesWrapper) StartTime(startTime int64) BinanceKlinesService {
	w.service = w.service.StartTime(startTime)

	return w
}

func (w *binanceKlinesWrapper) EndTime(endTime int64) BinanceKlinesService {
	w.service = w.service.EndTime(endTime)

	return w
}

func (w *binanceKlinesWrapper) Limit(limit int) BinanceKlinesService {
	w.service = w.service.Limit(limit)

	return w
}

func (w *binanceKlinesWrapper) Do(ctx context.Context) ([]*futures.Kline, error) {
	return w.service.Do(ctx)
}

type binanceBookTickerWrapper struct {
	service *futures.ListBookTickersService
}

func (w *binanceBookTickerWrapper) Symbol(symbol string) BinanceBookTickerService {
	w.service = w.service.Symbol(symbol)

	return w
}

func (w *binanceBookTickerWrapper) Do(ctx context.Context) ([]*futures.BookTicker, error) {
	return w.service.Do(ctx)
}

// BinanceFeed reads futures klines and the book ticker.
type BinanceFeed struct {
	client    BinanceAPIClient
	ticker    string
	timeframe Timeframe
	log       *logger.Logger
}

// NewBinanceFeed creates a feed on the public futures endpoints.
func NewBinanceFeed(ticker string, timeframe Timeframe, testnet bool, log *logger.Logger) *BinanceFeed {
	if testnet {
		futures.UseTestnet = true
	}

	return NewBinanceFeedWithAPI(&binanceAPIWrapper{client: futures.NewClient("", "")}, ticker, timeframe, log)
}

// NewBinanceFeedWithAPI creates a feed over a custom client.
func NewBinanceFeedWithAPI(client BinanceAPIClient, ticker string, timeframe Timeframe, log *logger.Logger) *BinanceFeed {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &BinanceFeed{
		client:    client,
		ticker:    ticker,
		timeframe: timeframe,
		log:       log,
	}
}

// LatestTick returns the book ticker.
func (f *BinanceFeed) LatestTick(ctx context.Context) (types.Tick, error) {
	tickers, err := f.client.NewListBookTickersService().Symbol(f.ticker).Do(ctx)
	if err != nil {
		return types.Tick{}, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to get book ticker from Binance", err)
	}

	if len(tickers) == 0 {
		return types.Tick{}, errors.Newf(errors.ErrCodeMarketDataMissing, "no book ticker for %s", f.ticker)
	}

	tick := types.Tick{
		Time: time.Now(),
		Bid:  utils.ParseFloatOrZero(tickers[0].BidPrice),
		Ask:  utils.ParseFloatOrZero(tickers[0].AskPrice),
	}

	if tick.Bid <= 0 || tick.Ask <= 0 {
		return types.Tick{}, errors.Newf(errors.ErrCodeMarketDataParseFailed, "invalid book ticker for %s: bid=%q ask=%q",
			f.ticker, tickers[0].BidPrice, tickers[0].AskPrice)
	}

	return tick, nil
}

// Bars returns the latest count klines. The last one may still be forming.
func (f *BinanceFeed) Bars(ctx context.Context, count int) ([]types.Bar, error) {
	if count <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "bar count must be positive, got %d", count)
	}

	klines, err := f.client.NewKlinesService().
		Symbol(f.ticker).
		Interval(string(f.timeframe)).
		Limit(min(count, 1500)).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch klines from Binance", err)
	}

	bars := make([]types.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, klineToBar(k))
	}

	return lastN(bars, count), nil
}

// FetchRange pages through klines between start and end.
func (f *BinanceFeed) FetchRange(ctx context.Context, start, end time.Time, onBar func(types.Bar) error) error {
	current := start.UnixMilli()
	endMillis := end.UnixMilli()

	for current < endMillis {
		klines, err := f.client.NewKlinesService().
			Symbol(f.ticker).
			Interval(string(f.timeframe)).
			StartTime(current).
			EndTime(endMillis).
			Limit(binancePageLimit).
			Do(ctx)
		if err != nil {
			return errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch klines from Binance", err)
		}

		for _, k := range klines {
			if err := onBar(klineToBar(k)); err != nil {
				return err
			}
		}

		if len(klines) < binancePageLimit {
			break
		}

		// continue after the close of the last kline to avoid duplicates
		current = klines[len(klines)-1].CloseTime + 1
	}

	f.log.Debug("Fetched Binance kline range",
		zap.String("ticker", f.ticker),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	return nil
}

func klineToBar(k *futures.Kline) types.Bar {
	return types.Bar{
		Time:   time.UnixMilli(k.OpenTime),
		Open:   utils.ParseFloatOrZero(k.Open),
		High:   utils.ParseFloatOrZero(k.High),
		Low:    utils.ParseFloatOrZero(k.Low),
		Close:  utils.ParseFloatOrZero(k.Close),
		Volume: utils.ParseFloatOrZero(k.Volume),
	}
}
