package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. FLIPPED_STRATEGY_INITIAL_VOLUME.
const EnvPrefix = "FLIPPED"

// Load reads path over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "config path cannot be empty")
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	keys, err := registerDefaults(v, DefaultConfig())
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to bind env for %s", key)
		}
	}

	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "reading config file failed (%s)", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "parsing config failed", err)
	}

	return &cfg, nil
}

// registerDefaults flattens defaults into dotted keys and registers the
// non-null ones. It returns every key, including optional ones.
func registerDefaults(v *viper.Viper, defaults Config) ([]string, error) {
	raw, err := yaml.Marshal(defaults)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to encode defaults", err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to decode defaults", err)
	}

	var keys []string

	flattenKeys("", tree, func(key string, value any) {
		keys = append(keys, key)

		if value != nil {
			v.SetDefault(key, value)
		}
	})

	return keys, nil
}

func flattenKeys(prefix string, node map[string]any, visit func(key string, value any)) {
	for name, value := range node {
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		if child, ok := value.(map[string]any); ok {
			flattenKeys(key, child, visit)

			continue
		}

		visit(key, value)
	}
}

// LoadDotEnv loads a .env file next to the config file, then one in the
// working directory. Missing files are ignored and existing variables win.
func LoadDotEnv(configPath string) error {
	candidates := []string{".env"}
	if configPath != "" {
		candidates = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, candidates...)
	}

	seen := map[string]bool{}

	for _, candidate := range candidates {
		abs, err := filepath.Abs(candidate)
		if err != nil || seen[abs] {
			continue
		}

		seen[abs] = true

		if _, err := os.Stat(abs); err != nil {
			continue
		}

		if err := godotenv.Load(abs); err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to load %s", abs)
		}
	}

	return nil
}
