package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rxtech-lab/flipped-trading/internal/marketdata"
	tradingprovider "github.com/rxtech-lab/flipped-trading/internal/trading/provider"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
	dir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
}

func (suite *ConfigTestSuite) write(name, content string) string {
	path := filepath.Join(suite.dir, name)
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o644))

	return path
}

func (suite *ConfigTestSuite) TestLoadAppliesDefaults() {
	path := suite.write("config.yaml", `
symbol: EURUSD
ml:
  model_path: models/entry.json
strategy:
  add_distance_pips: 8
  marti_profit_per_lot: 120
`)

	cfg, err := Load(path)
	suite.Require().NoError(err)
	suite.Equal("EURUSD", cfg.Symbol)
	suite.Equal("1m", cfg.Timeframe)
	suite.Equal(marketdata.TimeframeOneMinute, cfg.TimeframeValue())
	suite.Equal(8.0, cfg.Strategy.AddDistancePips)
	suite.Equal(0.02, cfg.Strategy.InitialVolume)
	suite.Equal(6, cfg.Strategy.MaxPositions)
	suite.True(cfg.Strategy.TrailEnabled)
	suite.Require().NotNil(cfg.Strategy.MartiProfitPerLot)
	suite.Equal(120.0, *cfg.Strategy.MartiProfitPerLot)
	suite.Nil(cfg.Strategy.PipMultiplier)
	suite.Equal(5.0, cfg.RiskManagement.DailyLossLimitPercent)
	suite.Equal(0.62, cfg.ML.BuyThreshold)
	suite.Equal(tradingprovider.ProviderPaper, cfg.Broker.Provider)
	suite.Equal(marketdata.ProviderBinance, cfg.MarketData.Provider)
	suite.Equal("logs/xu_ml_bot.log", cfg.Logging.File)
	suite.Equal(3, cfg.Logging.ArchiveMonths)
	suite.Equal(":9464", cfg.Server.Addr)
	suite.True(cfg.CloseOnShutdown)
}

func (suite *ConfigTestSuite) TestEnvOverrides() {
	path := suite.write("config.yaml", "ml:\n  model_path: m.json\n")

	suite.T().Setenv("FLIPPED_STRATEGY_INITIAL_VOLUME", "0.05")
	suite.T().Setenv("FLIPPED_STRATEGY_PIP_MULTIPLIER", "10")
	suite.T().Setenv("FLIPPED_BROKER_PROVIDER", "binance-futures")
	suite.T().Setenv("FLIPPED_POLL_SECONDS", "2.5")

	cfg, err := Load(path)
	suite.Require().NoError(err)
	suite.Equal(0.05, cfg.Strategy.InitialVolume)
	suite.Require().NotNil(cfg.Strategy.PipMultiplier)
	suite.Equal(10.0, *cfg.Strategy.PipMultiplier)
	suite.Equal(tradingprovider.ProviderBinanceFutures, cfg.Broker.Provider)
	suite.Equal(2.5, cfg.PollSeconds)
}

func (suite *ConfigTestSuite) TestValidationFailures() {
	tests := []struct {
		name    string
		content string
	}{
		{"missing model", "symbol: XAUUSD\n"},
		{"bad timeframe", "timeframe: 7m\nml:\n  model_path: m.json\n"},
		{"bad giveback", "ml:\n  model_path: m.json\nstrategy:\n  trail_giveback_pct: 1.5\n"},
		{"bad risk", "ml:\n  model_path: m.json\nrisk_management:\n  daily_loss_limit_percent: 150\n"},
		{"bad threshold", "ml:\n  model_path: m.json\n  buy_threshold: 2\n"},
		{"bad provider", "ml:\n  model_path: m.json\nbroker:\n  provider: mt5\n"},
		{"replay without path", "ml:\n  model_path: m.json\nmarket_data:\n  provider: replay\n"},
		{"bad log level", "ml:\n  model_path: m.json\nlogging:\n  level: verbose\n"},
		{"zero poll", "ml:\n  model_path: m.json\npoll_seconds: 0\n"},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := Load(suite.write("config.yaml", tc.content))
			suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration), "got %v", err)
		})
	}
}

func (suite *ConfigTestSuite) TestLoadErrors() {
	_, err := Load("")
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	_, err = Load(filepath.Join(suite.dir, "missing.yaml"))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = Load(suite.write("broken.yaml", "strategy: [1, 2"))
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ConfigTestSuite) TestSchema() {
	raw, err := Schema()
	suite.Require().NoError(err)
	suite.Contains(raw, "add_distance_pips")
	suite.Contains(raw, "daily_loss_limit_percent")
	suite.Contains(raw, "market_data")
}

func (suite *ConfigTestSuite) TestLoadDotEnv() {
	configPath := suite.write("config.yaml", "")
	suite.write(".env", "FLIPPED_TEST_DOTENV_KEY=from-file\n")

	suite.T().Setenv("FLIPPED_TEST_DOTENV_KEY", "")
	suite.Require().NoError(os.Unsetenv("FLIPPED_TEST_DOTENV_KEY"))

	suite.Require().NoError(LoadDotEnv(configPath))
	suite.Equal("from-file", os.Getenv("FLIPPED_TEST_DOTENV_KEY"))
}
