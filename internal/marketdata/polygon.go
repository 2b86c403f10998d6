package marketdata

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"go.uber.org/zap"
)

const (
	polygonPageLimit = 50000
	// minimum lookback for the trailing window, covering a weekend close
	polygonMinLookback = 72 * time.Hour
)

// PolygonAggsIterator is the aggregate iterator returned by ListAggs.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient abstracts the polygon aggregates endpoint for testing.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

type polygonAPIWrapper struct {
	client *polygon.Client
}

func (w *polygonAPIWrapper) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return w.client.ListAggs(ctx, params, options...)
}

// PolygonFeed reads aggregates from polygon. Quotes are synthesized around
// the last close with a fixed spread.
type PolygonFeed struct {
	client    PolygonAPIClient
	ticker    string
	timeframe Timeframe
	spread    float64
	now       func() time.Time
	log       *logger.Logger
}

// NewPolygonFeed creates a polygon feed.
func NewPolygonFeed(apiKey, ticker string, timeframe Timeframe, spread float64, log *logger.Logger) (*PolygonFeed, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon api key is required")
	}

	return NewPolygonFeedWithAPI(&polygonAPIWrapper{client: polygon.New(apiKey)}, ticker, timeframe, spread, log), nil
}

// NewPolygonFeedWithAPI creates a feed over a custom client.
func NewPolygonFeedWithAPI(client PolygonAPIClient, ticker string, timeframe Timeframe, spread float64, log *logger.Logger) *PolygonFeed {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &PolygonFeed{
		client:    client,
		ticker:    ticker,
		timeframe: timeframe,
		spread:    spread,
		now:       time.Now,
		log:       log,
	}
}

// LatestTick quotes around the close of the newest aggregate.
func (f *PolygonFeed) LatestTick(ctx context.Context) (types.Tick, error) {
	bars, err := f.Bars(ctx, 1)
	if err != nil {
		return types.Tick{}, err
	}

	if len(bars) == 0 {
		return types.Tick{}, errors.Newf(errors.ErrCodeMarketDataMissing, "no aggregates for %s", f.ticker)
	}

	return tickFromClose(bars[len(bars)-1], f.spread), nil
}

// Bars returns the trailing count aggregates.
func (f *PolygonFeed) Bars(ctx context.Context, count int) ([]types.Bar, error) {
	if count <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "bar count must be positive, got %d", count)
	}

	end := f.now()
	lookback := max(f.timeframe.Duration()*time.Duration(count)*2, polygonMinLookback)

	bars := make([]types.Bar, 0, count)

	err := f.FetchRange(ctx, end.Add(-lookback), end, func(bar types.Bar) error {
		bars = append(bars, bar)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return lastN(bars, count), nil
}

// FetchRange iterates aggregates between start and end.
func (f *PolygonFeed) FetchRange(ctx context.Context, start, end time.Time, onBar func(types.Bar) error) error {
	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     f.ticker,
		Multiplier: f.timeframe.Multiplier(),
		Timespan:   f.timeframe.Timespan(),
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(polygonPageLimit)

	iter := f.client.ListAggs(ctx, params)

	count := 0

	for iter.Next() {
		agg := iter.Item()

		bar := types.Bar{
			Time:   time.Time(agg.Timestamp),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		}

		if err := onBar(bar); err != nil {
			return err
		}

		count++
	}

	if err := iter.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "error iterating polygon aggregates", err)
	}

	f.log.Debug("Fetched polygon aggregates", zap.String("ticker", f.ticker), zap.Int("count", count))

	return nil
}
