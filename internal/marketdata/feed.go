// Package marketdata supplies bars and top-of-book quotes to the runner,
// either live from an exchange or replayed from a local file.
package marketdata

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
)

// Feed is the market data source of the runner.
type Feed interface {
	// LatestTick returns the current bid and ask.
	LatestTick(ctx context.Context) (types.Tick, error)
	// Bars returns up to count of the most recent bars, oldest first.
	Bars(ctx context.Context, count int) ([]types.Bar, error)
}

// RangeSource streams historical bars between two times, oldest first.
type RangeSource interface {
	FetchRange(ctx context.Context, start, end time.Time, onBar func(types.Bar) error) error
}

type ProviderType string

const (
	ProviderBinance ProviderType = "binance"
	ProviderPolygon ProviderType = "polygon"
	ProviderReplay  ProviderType = "replay"
)

// Config selects and configures the feed.
type Config struct {
	Provider ProviderType `yaml:"provider" json:"provider" jsonschema:"title=Provider,enum=binance,enum=polygon,enum=replay,default=binance" validate:"required,oneof=binance polygon replay"`
	// Ticker is the provider symbol, e.g. C:XAUUSD on polygon. Empty uses the
	// traded symbol.
	Ticker    string `yaml:"ticker" json:"ticker,omitempty" jsonschema:"title=Ticker"`
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env" jsonschema:"title=API Key Env,default=POLYGON_API_KEY" validate:"required_if=Provider polygon"`
	// Path is the parquet or csv file replayed by the replay provider.
	Path string `yaml:"path" json:"path,omitempty" jsonschema:"title=Replay Path" validate:"required_if=Provider replay"`
	// Spread in price units, applied around the close when the provider has
	// no order book.
	Spread  float64 `yaml:"spread" json:"spread" jsonschema:"title=Spread,minimum=0,default=0" validate:"gte=0"`
	Testnet bool    `yaml:"testnet" json:"testnet" jsonschema:"title=Testnet,default=false"`
	// Warmup is the number of bars a replay starts with.
	Warmup int `yaml:"warmup" json:"warmup" jsonschema:"title=Replay Warmup,minimum=0,default=120" validate:"gte=0"`
}

// DefaultConfig returns a binance feed config.
func DefaultConfig() Config {
	return Config{
		Provider:  ProviderBinance,
		Ticker:    "",
		APIKeyEnv: "POLYGON_API_KEY",
		Path:      "",
		Spread:    0,
		Testnet:   false,
		Warmup:    120,
	}
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid market data config", err)
	}

	return nil
}

// TickerFor returns the provider ticker of symbol.
func (c Config) TickerFor(symbol string) string {
	if c.Ticker != "" {
		return c.Ticker
	}

	return symbol
}

// NewFeed creates the feed named by cfg.Provider.
func NewFeed(cfg Config, symbol string, timeframe Timeframe, log *logger.Logger) (Feed, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if symbol == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "market data feed requires a symbol")
	}

	if timeframe.Duration() == 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported timeframe %q", timeframe)
	}

	ticker := cfg.TickerFor(symbol)

	switch cfg.Provider {
	case ProviderBinance:
		return NewBinanceFeed(ticker, timeframe, cfg.Testnet, log), nil
	case ProviderPolygon:
		apiKey := os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, errors.Newf(errors.ErrCodeMissingParameter, "polygon api key missing: set %s", cfg.APIKeyEnv)
		}

		return NewPolygonFeed(apiKey, ticker, timeframe, cfg.Spread, log)
	case ProviderReplay:
		return NewReplayFeed(ReplayOptions{
			Path:   cfg.Path,
			Ticker: cfg.Ticker,
			Spread: cfg.Spread,
			Warmup: cfg.Warmup,
		}, log)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", cfg.Provider)
	}
}

// tickFromClose builds a quote around a close price.
func tickFromClose(bar types.Bar, spread float64) types.Tick {
	half := spread / 2

	return types.Tick{
		Time: bar.Time,
		Bid:  bar.Close - half,
		Ask:  bar.Close + half,
	}
}

// lastN returns the trailing count items of bars.
func lastN(bars []types.Bar, count int) []types.Bar {
	if count <= 0 || len(bars) <= count {
		return bars
	}

	return bars[len(bars)-count:]
}
