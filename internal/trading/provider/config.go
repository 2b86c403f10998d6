package tradingprovider

import (
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
)

// Config selects and configures the broker.
type Config struct {
	Provider ProviderType `yaml:"provider" json:"provider" jsonschema:"title=Provider,enum=paper,enum=binance-futures,default=paper" validate:"required,oneof=paper binance-futures"`

	// APIKeyEnv and SecretKeyEnv name the environment variables holding the
	// credentials; the keys themselves never live in the config file.
	APIKeyEnv    string `yaml:"api_key_env" json:"api_key_env" jsonschema:"title=API Key Env,default=BINANCE_API_KEY" validate:"required_if=Provider binance-futures"`
	SecretKeyEnv string `yaml:"secret_key_env" json:"secret_key_env" jsonschema:"title=Secret Key Env,default=BINANCE_SECRET_KEY" validate:"required_if=Provider binance-futures"`
	Testnet      bool   `yaml:"testnet" json:"testnet" jsonschema:"title=Testnet,default=true"`
	BaseURL      string `yaml:"base_url" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Overrides the exchange endpoint" validate:"omitempty,url"`

	QuantityPrecision int     `yaml:"quantity_precision" json:"quantity_precision" jsonschema:"title=Quantity Precision,description=Decimals of the exchange order quantity,default=3" validate:"gte=0,lte=8"`
	ContractSize      float64 `yaml:"contract_size" json:"contract_size" jsonschema:"title=Contract Size,description=Units per lot (0 derives it from the symbol for paper and uses 1 for binance)" validate:"gte=0"`
	InitialBalance    float64 `yaml:"initial_balance" json:"initial_balance" jsonschema:"title=Initial Balance,description=Paper account starting balance,default=10000" validate:"gte=0"`
}

// DefaultConfig returns a paper broker config.
func DefaultConfig() Config {
	return Config{
		Provider:          ProviderPaper,
		APIKeyEnv:         "BINANCE_API_KEY",
		SecretKeyEnv:      "BINANCE_SECRET_KEY",
		Testnet:           true,
		BaseURL:           "",
		QuantityPrecision: 3,
		ContractSize:      0,
		InitialBalance:    10000,
	}
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid broker config", err)
	}

	return nil
}
