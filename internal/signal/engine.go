// Package signal turns recent bars into a BUY, SELL or empty entry signal
// using a pre-trained classifier over technical features.
package signal

import (
	"os"
	"slices"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/internal/version"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	classBuy  = 1
	classSell = -1
)

// Config holds the model paths and decision thresholds.
type Config struct {
	ModelPath         string  `yaml:"model_path" json:"model_path" jsonschema:"title=Model Path,description=JSON export of the entry classifier" validate:"required"`
	MetaPath          string  `yaml:"meta_path" json:"meta_path,omitempty" jsonschema:"title=Meta Path,description=Optional training metadata checked against the feature order"`
	BuyThreshold      float64 `yaml:"buy_threshold" json:"buy_threshold" jsonschema:"title=Buy Threshold,default=0.62" validate:"gte=0,lte=1"`
	SellThreshold     float64 `yaml:"sell_threshold" json:"sell_threshold" jsonschema:"title=Sell Threshold,default=0.6" validate:"gte=0,lte=1"`
	MinProbabilityGap float64 `yaml:"min_probability_gap" json:"min_probability_gap" jsonschema:"title=Min Probability Gap,default=0.05" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the stock thresholds with no model configured.
func DefaultConfig() Config {
	return Config{
		ModelPath:         "",
		MetaPath:          "",
		BuyThreshold:      0.62,
		SellThreshold:     0.60,
		MinProbabilityGap: 0.05,
	}
}

// Validate validates the Config struct.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid ml config", err)
	}

	return nil
}

// Source evaluates bars into a signal.
type Source interface {
	Evaluate(bars []types.Bar) types.SignalResult
}

// Engine is the model backed Source.
type Engine struct {
	cfg   Config
	model Model
	log   *logger.Logger

	mu     sync.RWMutex
	latest []float64
}

// NewEngine loads the model (and meta, when configured) named by cfg.
func NewEngine(cfg Config, log *logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	model, err := LoadLogisticModel(cfg.ModelPath)
	if err != nil {
		return nil, err
	}

	if !slices.Equal(model.FeatureColumns(), FeatureColumns) {
		return nil, errors.Newf(errors.ErrCodeFeatureMismatch, "model feature columns %v do not match %v", model.FeatureColumns(), FeatureColumns)
	}

	if cfg.MetaPath != "" {
		if err := checkMeta(cfg.MetaPath); err != nil {
			return nil, err
		}
	}

	return NewEngineWithModel(cfg, model, log), nil
}

// NewEngineWithModel wraps an already loaded model.
func NewEngineWithModel(cfg Config, model Model, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Engine{
		cfg:    cfg,
		model:  model,
		log:    log,
		mu:     sync.RWMutex{},
		latest: nil,
	}
}

// Evaluate scores the newest complete feature row. Short history, a missing
// row or a model failure all yield an empty signal.
func (e *Engine) Evaluate(bars []types.Bar) types.SignalResult {
	empty := types.SignalResult{}
	if len(bars) < RequiredBars {
		return empty
	}

	frame := BuildFeatures(bars)

	row, idx, ok := frame.LatestCompleteRow()
	if !ok {
		return empty
	}

	e.mu.Lock()
	e.latest = row
	e.mu.Unlock()

	proba, err := e.model.PredictProba(row)
	if err != nil {
		e.log.Warn("Model prediction failed", zap.Error(err))

		return empty
	}

	buy := e.classProbability(proba, classBuy)
	sell := e.classProbability(proba, classSell)

	return types.SignalResult{
		Time:            bars[idx].Time,
		Signal:          e.decide(buy, sell),
		BuyProbability:  buy,
		SellProbability: sell,
	}
}

// LatestFeatures returns the last feature row that was scored.
func (e *Engine) LatestFeatures() []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return slices.Clone(e.latest)
}

func (e *Engine) decide(buy, sell float64) types.Direction {
	switch {
	case buy >= e.cfg.BuyThreshold && buy-sell >= e.cfg.MinProbabilityGap && buy > sell:
		return types.DirectionBuy
	case sell >= e.cfg.SellThreshold && sell-buy >= e.cfg.MinProbabilityGap && sell > buy:
		return types.DirectionSell
	default:
		return types.DirectionNone
	}
}

// classProbability reads a class, falling back to the first model class.
func (e *Engine) classProbability(proba map[int]float64, class int) float64 {
	if p, ok := proba[class]; ok {
		return p
	}

	classes := e.model.Classes()
	if len(classes) == 0 {
		return 0
	}

	return proba[classes[0]]
}

func checkMeta(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeModelLoadFailed, err, "failed to read model meta %s", path)
	}

	if !gjson.ValidBytes(raw) {
		return errors.Newf(errors.ErrCodeModelLoadFailed, "model meta %s is not valid JSON", path)
	}

	meta := gjson.ParseBytes(raw)

	if format := meta.Get("format_version"); format.Exists() {
		if err := version.CheckModelFormat(version.ModelFormatVersion, format.String()); err != nil {
			return errors.Wrap(errors.ErrCodeVersionMismatch, "unsupported model meta format", err)
		}
	}

	if cols := meta.Get("feature_columns"); cols.Exists() {
		if !slices.Equal(stringArray(cols), FeatureColumns) {
			return errors.Newf(errors.ErrCodeFeatureMismatch, "model meta feature columns do not match %v", FeatureColumns)
		}
	}

	return nil
}
