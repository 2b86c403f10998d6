package tradingprovider

import (
	"testing"

	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type BrokerRegistryTestSuite struct {
	suite.Suite
}

func TestBrokerRegistrySuite(t *testing.T) {
	suite.Run(t, new(BrokerRegistryTestSuite))
}

func (suite *BrokerRegistryTestSuite) TestSupportedProviders() {
	suite.ElementsMatch([]string{"paper", "binance-futures"}, GetSupportedProviders())

	info, err := GetProviderInfo("paper")
	suite.Require().NoError(err)
	suite.True(info.IsPaperTrading)

	_, err = GetProviderInfo("mt5")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidProvider))

	schema, err := GetProviderConfigSchema()
	suite.Require().NoError(err)
	suite.Contains(schema, "quantity_precision")
}

func (suite *BrokerRegistryTestSuite) TestNewPaperBroker() {
	quotes := &staticQuotes{tick: types.Tick{Bid: 1, Ask: 1}}

	broker, err := NewBroker(DefaultConfig(), Dependencies{Symbol: "EURUSD", Quotes: quotes, ContractSize: 100000})
	suite.Require().NoError(err)
	suite.IsType(&PaperBroker{}, broker)

	_, err = NewBroker(DefaultConfig(), Dependencies{Symbol: "EURUSD"})
	suite.True(errors.HasCode(err, errors.ErrCodeBrokerNotReady))

	_, err = NewBroker(DefaultConfig(), Dependencies{Quotes: quotes})
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}

func (suite *BrokerRegistryTestSuite) TestNewBinanceBrokerNeedsCredentials() {
	cfg := DefaultConfig()
	cfg.Provider = ProviderBinanceFutures
	cfg.APIKeyEnv = "FLIPPED_TEST_MISSING_KEY"
	cfg.SecretKeyEnv = "FLIPPED_TEST_MISSING_SECRET"

	_, err := NewBroker(cfg, Dependencies{Symbol: "BTCUSDT"})
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	suite.T().Setenv("FLIPPED_TEST_MISSING_KEY", "key")
	suite.T().Setenv("FLIPPED_TEST_MISSING_SECRET", "secret")
	cfg.Testnet = false

	broker, err := NewBroker(cfg, Dependencies{Symbol: "BTCUSDT"})
	suite.Require().NoError(err)
	suite.IsType(&BinanceFuturesBroker{}, broker)
}

func (suite *BrokerRegistryTestSuite) TestInvalidConfig() {
	cfg := DefaultConfig()
	cfg.Provider = "mt5"

	_, err := NewBroker(cfg, Dependencies{Symbol: "EURUSD"})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	cfg = DefaultConfig()
	cfg.Provider = ProviderBinanceFutures
	cfg.APIKeyEnv = ""

	suite.Error(cfg.Validate())
}
