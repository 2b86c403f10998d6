package tradingprovider

import (
	"context"
	"os"

	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"github.com/rxtech-lab/flipped-trading/pkg/schema"
)

// Broker executes basket legs and reports the account.
type Broker interface {
	// OpenMarket opens a market position of volume lots in direction.
	OpenMarket(ctx context.Context, direction types.Direction, volume float64) (types.OrderResult, error)
	// CloseAll closes every open position of the symbol. It returns the closes
	// that succeeded together with the joined errors of those that did not.
	CloseAll(ctx context.Context) ([]types.OrderResult, error)
	// Positions returns the open positions of the symbol.
	Positions(ctx context.Context) ([]types.BrokerPosition, error)
	// AccountInfo returns balance, equity and floating profit.
	AccountInfo(ctx context.Context) (types.AccountInfo, error)
	// CheckConnection verifies connectivity and credentials.
	CheckConnection(ctx context.Context) error
}

// QuoteSource supplies the top of book used to fill simulated orders.
type QuoteSource interface {
	LatestTick(ctx context.Context) (types.Tick, error)
}

type ProviderType string

const (
	ProviderPaper          ProviderType = "paper"
	ProviderBinanceFutures ProviderType = "binance-futures"
)

type ProviderInfo struct {
	Name           string `json:"name"`
	DisplayName    string `json:"displayName"`
	Description    string `json:"description"`
	IsPaperTrading bool   `json:"isPaperTrading"`
}

var providerRegistry = map[ProviderType]ProviderInfo{
	ProviderPaper: {
		Name:           string(ProviderPaper),
		DisplayName:    "Paper",
		Description:    "In-process simulated broker filled from the market data feed",
		IsPaperTrading: true,
	},
	ProviderBinanceFutures: {
		Name:           string(ProviderBinanceFutures),
		DisplayName:    "Binance USDⓈ-M Futures",
		Description:    "Binance futures with one-way position mode, testnet or live",
		IsPaperTrading: false,
	},
}

func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	return providers
}

// GetProviderInfo returns metadata for a specific broker provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported broker provider: %s", providerName)
	}

	return info, nil
}

// GetProviderConfigSchema returns the JSON schema of the broker config.
func GetProviderConfigSchema() (string, error) {
	return schema.ToJSONSchema(DefaultConfig())
}

// Dependencies are the collaborators a broker may need.
type Dependencies struct {
	Symbol string
	// Quotes fills paper orders.
	Quotes QuoteSource
	// ContractSize converts lots to exchange quantity and price moves to money
	// when the config leaves it unset.
	ContractSize float64
	Logger       *logger.Logger
}

// NewBroker creates the broker named by cfg.Provider.
func NewBroker(cfg Config, deps Dependencies) (Broker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if deps.Symbol == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "broker requires a symbol")
	}

	contractSize := cfg.ContractSize
	if contractSize <= 0 {
		contractSize = deps.ContractSize
	}

	switch cfg.Provider {
	case ProviderPaper:
		if deps.Quotes == nil {
			return nil, errors.New(errors.ErrCodeBrokerNotReady, "paper broker requires a quote source")
		}

		return NewPaperBroker(deps.Symbol, deps.Quotes, PaperOptions{
			InitialBalance: cfg.InitialBalance,
			ContractSize:   contractSize,
		}, deps.Logger), nil

	case ProviderBinanceFutures:
		apiKey := os.Getenv(cfg.APIKeyEnv)
		secretKey := os.Getenv(cfg.SecretKeyEnv)

		if apiKey == "" || secretKey == "" {
			return nil, errors.Newf(errors.ErrCodeMissingParameter, "binance credentials missing: set %s and %s", cfg.APIKeyEnv, cfg.SecretKeyEnv)
		}

		return NewBinanceFuturesBroker(BinanceFuturesOptions{
			APIKey:            apiKey,
			SecretKey:         secretKey,
			Testnet:           cfg.Testnet,
			BaseURL:           cfg.BaseURL,
			Symbol:            deps.Symbol,
			QuantityPrecision: cfg.QuantityPrecision,
			ContractSize:      max(cfg.ContractSize, 0),
		}, deps.Logger)

	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported broker provider: %s", cfg.Provider)
	}
}
