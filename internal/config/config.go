// Package config loads the bot configuration from YAML, environment
// variables and defaults.
package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/flipped-trading/internal/marketdata"
	"github.com/rxtech-lab/flipped-trading/internal/risk"
	"github.com/rxtech-lab/flipped-trading/internal/signal"
	"github.com/rxtech-lab/flipped-trading/internal/strategy/flipped"
	tradingprovider "github.com/rxtech-lab/flipped-trading/internal/trading/provider"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"github.com/rxtech-lab/flipped-trading/pkg/schema"
)

// LoggingConfig configures the log file and its archiving.
type LoggingConfig struct {
	File          string `yaml:"file" json:"file" jsonschema:"title=Log File,default=logs/xu_ml_bot.log" validate:"required"`
	Level         string `yaml:"level" json:"level" jsonschema:"title=Level,enum=debug,enum=info,enum=warn,enum=error,default=info" validate:"oneof=debug info warn error"`
	Console       bool   `yaml:"console" json:"console" jsonschema:"title=Console,default=true"`
	ArchiveMonths int    `yaml:"archive_months" json:"archive_months" jsonschema:"title=Archive Months,description=Monthly archives older than this are deleted,default=3" validate:"gte=1"`
}

// ServerConfig configures the status and metrics server.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" jsonschema:"title=Enabled,default=false"`
	Addr    string `yaml:"addr" json:"addr" jsonschema:"title=Address,default=:9464" validate:"required_if=Enabled true"`
}

// Config is the full bot configuration.
type Config struct {
	Symbol      string  `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol,default=XAUUSD" validate:"required"`
	Timeframe   string  `yaml:"timeframe" json:"timeframe" jsonschema:"title=Timeframe,default=1m" validate:"required"`
	PollSeconds float64 `yaml:"poll_seconds" json:"poll_seconds" jsonschema:"title=Poll Seconds,description=Delay between ticks,default=1" validate:"gt=0"`
	DataDir     string  `yaml:"data_dir" json:"data_dir" jsonschema:"title=Data Directory,description=Sessions journal and stats root,default=./data" validate:"required"`
	// InheritSkipMartiStop disables the marti stop and target on a basket adopted from the broker at startup.
	InheritSkipMartiStop bool `yaml:"inherit_skip_marti_stop" json:"inherit_skip_marti_stop" jsonschema:"title=Inherit Skip Marti Stop,default=false"`
	// CloseOnShutdown closes an open basket on the broker when the bot stops.
	CloseOnShutdown bool `yaml:"close_on_shutdown" json:"close_on_shutdown" jsonschema:"title=Close On Shutdown,default=true"`

	Strategy       flipped.Config         `yaml:"strategy" json:"strategy"`
	RiskManagement risk.Config            `yaml:"risk_management" json:"risk_management"`
	ML             signal.Config          `yaml:"ml" json:"ml"`
	Broker         tradingprovider.Config `yaml:"broker" json:"broker"`
	MarketData     marketdata.Config      `yaml:"market_data" json:"market_data"`
	Logging        LoggingConfig          `yaml:"logging" json:"logging"`
	Server         ServerConfig           `yaml:"server" json:"server"`
}

// DefaultConfig returns defaults for every key. The model path has no default.
func DefaultConfig() Config {
	return Config{
		Symbol:               "XAUUSD",
		Timeframe:            "1m",
		PollSeconds:          1.0,
		DataDir:              "./data",
		InheritSkipMartiStop: false,
		CloseOnShutdown:      true,
		Strategy:             flipped.DefaultConfig(),
		RiskManagement:       risk.DefaultConfig(),
		ML:                   signal.DefaultConfig(),
		Broker:               tradingprovider.DefaultConfig(),
		MarketData:           marketdata.DefaultConfig(),
		Logging: LoggingConfig{
			File:          "logs/xu_ml_bot.log",
			Level:         "info",
			Console:       true,
			ArchiveMonths: 3,
		},
		Server: ServerConfig{
			Enabled: false,
			Addr:    ":9464",
		},
	}
}

// Validate checks the top level fields and every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	if _, err := marketdata.ParseTimeframe(c.Timeframe); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid config", err)
	}

	sections := []interface{ Validate() error }{
		&c.Strategy,
		&c.RiskManagement,
		&c.ML,
		&c.Broker,
		&c.MarketData,
	}

	for _, section := range sections {
		if err := section.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// TimeframeValue returns the parsed timeframe. Call after Validate.
func (c *Config) TimeframeValue() marketdata.Timeframe {
	return marketdata.Timeframe(c.Timeframe)
}

// Schema returns the JSON schema of the config file.
func Schema() (string, error) {
	return schema.ToYAMLSchema(DefaultConfig())
}
