package signal

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type fakeModel struct {
	classes []int
	proba   map[int]float64
	err     error
	calls   int
}

func (f *fakeModel) Classes() []int {
	return f.classes
}

func (f *fakeModel) PredictProba(features []float64) (map[int]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	return f.proba, nil
}

type SignalTestSuite struct {
	suite.Suite
	tempDir string
}

func TestSignalSuite(t *testing.T) {
	suite.Run(t, new(SignalTestSuite))
}

func (suite *SignalTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func risingBars(n int) []types.Bar {
	start := time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, n)

	for i := range bars {
		base := 2000 + float64(i)
		bars[i] = types.Bar{
			Time:   start.Add(time.Duration(i) * time.Minute),
			Open:   base,
			High:   base + 1.5,
			Low:    base - 0.5,
			Close:  base + 1,
			Volume: 1,
		}
	}

	return bars
}

func (suite *SignalTestSuite) writeModel(name string, doc map[string]any) string {
	raw, err := json.Marshal(doc)
	suite.Require().NoError(err)

	path := filepath.Join(suite.tempDir, name)
	suite.Require().NoError(os.WriteFile(path, raw, 0o644))

	return path
}

func modelDoc(format string, columns []string, intercept []float64) map[string]any {
	n := len(columns)
	zeros := make([]float64, n)
	ones := make([]float64, n)

	for i := range ones {
		ones[i] = 1
	}

	coef := make([][]float64, len(intercept))
	for i := range coef {
		coef[i] = zeros
	}

	return map[string]any{
		"format_version":  format,
		"classes":         []int{-1, 0, 1},
		"feature_columns": columns,
		"scaler":          map[string]any{"mean": zeros, "scale": ones},
		"coef":            coef,
		"intercept":       intercept,
	}
}

func (suite *SignalTestSuite) engine(proba map[int]float64) (*Engine, *fakeModel) {
	model := &fakeModel{classes: []int{-1, 0, 1}, proba: proba}

	return NewEngineWithModel(DefaultConfig(), model, nil), model
}

func (suite *SignalTestSuite) TestInsufficientBars() {
	engine, model := suite.engine(map[int]float64{1: 0.9, -1: 0.05, 0: 0.05})

	result := engine.Evaluate(risingBars(RequiredBars - 1))
	suite.Equal(types.SignalResult{}, result)
	suite.Equal(0, model.calls)
}

func (suite *SignalTestSuite) TestDecision() {
	tests := []struct {
		name     string
		proba    map[int]float64
		expected types.Direction
	}{
		{name: "buy", proba: map[int]float64{1: 0.7, -1: 0.2, 0: 0.1}, expected: types.DirectionBuy},
		{name: "sell", proba: map[int]float64{1: 0.3, -1: 0.65, 0: 0.05}, expected: types.DirectionSell},
		{name: "buy below threshold", proba: map[int]float64{1: 0.61, -1: 0.1, 0: 0.29}, expected: types.DirectionNone},
		{name: "gap too small", proba: map[int]float64{1: 0.63, -1: 0.6}, expected: types.DirectionNone},
		{name: "neutral", proba: map[int]float64{1: 0.2, -1: 0.2, 0: 0.6}, expected: types.DirectionNone},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			engine, _ := suite.engine(tt.proba)

			result := engine.Evaluate(risingBars(RequiredBars))
			suite.Equal(tt.expected, result.Signal)
			suite.Equal(tt.proba[1], result.BuyProbability)
			suite.Equal(tt.proba[-1], result.SellProbability)
			suite.Equal(risingBars(RequiredBars)[RequiredBars-1].Time, result.Time)
		})
	}
}

func (suite *SignalTestSuite) TestMissingClassReadsFirstClass() {
	model := &fakeModel{classes: []int{0, 1}, proba: map[int]float64{0: 0.7, 1: 0.3}}
	engine := NewEngineWithModel(DefaultConfig(), model, nil)

	result := engine.Evaluate(risingBars(RequiredBars))
	suite.Equal(0.3, result.BuyProbability)
	suite.Equal(0.7, result.SellProbability)
	suite.Equal(types.DirectionSell, result.Signal)
}

func (suite *SignalTestSuite) TestModelFailureYieldsNoSignal() {
	model := &fakeModel{classes: []int{-1, 0, 1}, err: errors.New(errors.ErrCodeModelPredict, "boom")}
	engine := NewEngineWithModel(DefaultConfig(), model, nil)

	suite.Equal(types.SignalResult{}, engine.Evaluate(risingBars(RequiredBars)))
	suite.Len(engine.LatestFeatures(), len(FeatureColumns))
}

func (suite *SignalTestSuite) TestNoCompleteRow() {
	engine, _ := suite.engine(map[int]float64{1: 0.9})

	bars := risingBars(RequiredBars)
	for i := range bars {
		bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = 5, 5, 5, 5
	}

	suite.Equal(types.SignalResult{}, engine.Evaluate(bars))
}

func (suite *SignalTestSuite) TestLoadLogisticModel() {
	path := suite.writeModel("model.json", modelDoc("1.1.0", FeatureColumns, []float64{0, 0, 2}))

	model, err := LoadLogisticModel(path)
	suite.Require().NoError(err)
	suite.Equal("1.1.0", model.FormatVersion())
	suite.Equal([]int{-1, 0, 1}, model.Classes())

	proba, err := model.PredictProba(make([]float64, len(FeatureColumns)))
	suite.Require().NoError(err)
	suite.InDelta(math.Exp(2)/(2+math.Exp(2)), proba[1], 1e-12)
	suite.InDelta(1/(2+math.Exp(2)), proba[-1], 1e-12)
	suite.InDelta(1.0, proba[-1]+proba[0]+proba[1], 1e-12)

	_, err = model.PredictProba([]float64{1})
	suite.True(errors.HasCode(err, errors.ErrCodeFeatureMismatch))
}

func (suite *SignalTestSuite) TestBinaryModel() {
	doc := modelDoc("1.0.0", []string{"a", "b"}, []float64{0})
	doc["classes"] = []int{-1, 1}
	doc["coef"] = [][]float64{{1, 0}}

	raw, err := json.Marshal(doc)
	suite.Require().NoError(err)

	model, err := ParseLogisticModel(raw)
	suite.Require().NoError(err)

	proba, err := model.PredictProba([]float64{math.Log(3), 7})
	suite.Require().NoError(err)
	suite.InDelta(0.75, proba[1], 1e-12)
	suite.InDelta(0.25, proba[-1], 1e-12)
}

func (suite *SignalTestSuite) TestParseRejectsBadExports() {
	tests := []struct {
		name string
		raw  string
		code errors.ErrorCode
	}{
		{name: "not json", raw: "{", code: errors.ErrCodeModelLoadFailed},
		{name: "no format", raw: `{"classes":[0,1]}`, code: errors.ErrCodeModelLoadFailed},
		{name: "future format", raw: `{"format_version":"2.0.0"}`, code: errors.ErrCodeVersionMismatch},
		{name: "one class", raw: `{"format_version":"1.0.0","classes":[1],"feature_columns":["a"]}`, code: errors.ErrCodeModelLoadFailed},
		{name: "scaler size", raw: `{"format_version":"1.0.0","classes":[0,1],"feature_columns":["a"],"scaler":{"mean":[],"scale":[1]}}`, code: errors.ErrCodeModelLoadFailed},
		{name: "coef size", raw: `{"format_version":"1.0.0","classes":[0,1],"feature_columns":["a"],"scaler":{"mean":[0],"scale":[1]},"coef":[[1,2]],"intercept":[0]}`, code: errors.ErrCodeModelLoadFailed},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := ParseLogisticModel([]byte(tt.raw))
			suite.True(errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func (suite *SignalTestSuite) TestNewEngineEndToEnd() {
	cfg := DefaultConfig()
	cfg.ModelPath = suite.writeModel("model.json", modelDoc("1.1.0", FeatureColumns, []float64{0, 0, 2}))
	cfg.MetaPath = suite.writeModel("meta.json", map[string]any{"format_version": "1.1.0", "feature_columns": FeatureColumns})

	engine, err := NewEngine(cfg, nil)
	suite.Require().NoError(err)

	result := engine.Evaluate(risingBars(RequiredBars))
	suite.Equal(types.DirectionBuy, result.Signal)
}

func (suite *SignalTestSuite) TestNewEngineRejectsMismatch() {
	cfg := DefaultConfig()
	cfg.ModelPath = suite.writeModel("model.json", modelDoc("1.1.0", []string{"RMI"}, []float64{0, 0, 0}))

	_, err := NewEngine(cfg, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeFeatureMismatch))

	cfg.ModelPath = suite.writeModel("model.json", modelDoc("1.1.0", FeatureColumns, []float64{0, 0, 0}))
	cfg.MetaPath = suite.writeModel("meta.json", map[string]any{"feature_columns": []string{"ADX"}})

	_, err = NewEngine(cfg, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeFeatureMismatch))

	cfg.MetaPath = filepath.Join(suite.tempDir, "missing.json")
	_, err = NewEngine(cfg, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeModelLoadFailed))

	_, err = NewEngine(DefaultConfig(), nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *SignalTestSuite) TestFeatures() {
	bars := risingBars(RequiredBars)
	frame := BuildFeatures(bars)

	row, idx, ok := frame.LatestCompleteRow()
	suite.Require().True(ok)
	suite.Equal(RequiredBars-1, idx)
	suite.Len(row, len(FeatureColumns))

	last := bars[idx]
	suite.Equal(1.0, frame.Series["Body"][idx])
	suite.Equal(2.0, frame.Series["Range"][idx])
	suite.Equal(last.High-last.Close, frame.Series["WickUpper"][idx])
	suite.Equal(0.5, frame.Series["WickLower"][idx])
	suite.InDelta(100.0, frame.Series["Velocity5"][idx], 1e-9)
	suite.InDelta(200.0, frame.Series["ATR_pips"][idx], 1e-9)
	suite.Equal(100.0, frame.Series["RMI"][idx])

	// SMA20 of a unit step series lags the close by 9.5
	suite.InDelta(950.0, frame.Series["price_vs_sma20"][idx], 1e-6)
	suite.InDelta(500.0, frame.Series["sma20_slope5"][idx], 1e-6)
	suite.Equal(0.0, frame.Series["near_sma20"][idx])

	hour := float64(last.Time.Hour())
	suite.InDelta(math.Sin(2*math.Pi*hour/24), frame.Series["HourSin"][idx], 1e-12)
	suite.InDelta(math.Cos(2*math.Pi*hour/24), frame.Series["HourCos"][idx], 1e-12)

	_, _, ok = BuildFeatures(bars[:30]).LatestCompleteRow()
	suite.False(ok)
}

func (suite *SignalTestSuite) TestFramePipMultiplier() {
	suite.Equal(100.0, framePipMultiplier([]float64{2000, 2001}))
	suite.Equal(10000.0, framePipMultiplier([]float64{1.1, 1.2}))
	suite.Equal(10000.0, framePipMultiplier(nil))
}
