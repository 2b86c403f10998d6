package signal

import (
	"math"
	"os"

	"github.com/rxtech-lab/flipped-trading/internal/version"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"github.com/tidwall/gjson"
)

// Model maps a feature row to class probabilities keyed by class label.
type Model interface {
	// Classes returns the class labels in model order.
	Classes() []int
	// PredictProba returns the probability of each class.
	PredictProba(features []float64) (map[int]float64, error)
}

// LogisticModel is a standardized logistic regression exported to JSON.
type LogisticModel struct {
	formatVersion string
	classes       []int
	columns       []string
	mean          []float64
	scale         []float64
	coef          [][]float64
	intercept     []float64
}

// LoadLogisticModel reads a model export from path.
func LoadLogisticModel(path string) (*LogisticModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeModelLoadFailed, err, "failed to read model %s", path)
	}

	return ParseLogisticModel(raw)
}

// ParseLogisticModel decodes a model export.
//
// Expected layout:
//
//	{
//	  "format_version": "1.1.0",
//	  "classes": [-1, 0, 1],
//	  "feature_columns": ["RMI", ...],
//	  "scaler": {"mean": [...], "scale": [...]},
//	  "coef": [[...], [...], [...]],
//	  "intercept": [...]
//	}
//
// A two class export may carry a single coefficient row, which is read as
// the log-odds of the second class.
func ParseLogisticModel(raw []byte) (*LogisticModel, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New(errors.ErrCodeModelLoadFailed, "model export is not valid JSON")
	}

	doc := gjson.ParseBytes(raw)

	format := doc.Get("format_version").String()
	if format == "" {
		return nil, errors.New(errors.ErrCodeModelLoadFailed, "model export is missing format_version")
	}

	if err := version.CheckModelFormat(version.ModelFormatVersion, format); err != nil {
		return nil, errors.Wrap(errors.ErrCodeVersionMismatch, "unsupported model format", err)
	}

	m := &LogisticModel{
		formatVersion: format,
		classes:       intArray(doc.Get("classes")),
		columns:       stringArray(doc.Get("feature_columns")),
		mean:          floatArray(doc.Get("scaler.mean")),
		scale:         floatArray(doc.Get("scaler.scale")),
		coef:          nil,
		intercept:     floatArray(doc.Get("intercept")),
	}

	for _, row := range doc.Get("coef").Array() {
		m.coef = append(m.coef, floatArray(row))
	}

	if err := m.validate(); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *LogisticModel) validate() error {
	if len(m.classes) < 2 {
		return errors.Newf(errors.ErrCodeModelLoadFailed, "model needs at least 2 classes, got %d", len(m.classes))
	}

	n := len(m.columns)
	if n == 0 {
		return errors.New(errors.ErrCodeModelLoadFailed, "model export has no feature_columns")
	}

	if len(m.mean) != n || len(m.scale) != n {
		return errors.Newf(errors.ErrCodeModelLoadFailed, "scaler has %d/%d values for %d features", len(m.mean), len(m.scale), n)
	}

	rows := len(m.classes)
	if len(m.classes) == 2 && len(m.coef) == 1 {
		rows = 1
	}

	if len(m.coef) != rows || len(m.intercept) != rows {
		return errors.Newf(errors.ErrCodeModelLoadFailed, "expected %d coefficient rows and intercepts, got %d and %d", rows, len(m.coef), len(m.intercept))
	}

	for i, row := range m.coef {
		if len(row) != n {
			return errors.Newf(errors.ErrCodeModelLoadFailed, "coefficient row %d has %d values for %d features", i, len(row), n)
		}
	}

	return nil
}

// FormatVersion returns the export format of the model.
func (m *LogisticModel) FormatVersion() string {
	return m.formatVersion
}

// FeatureColumns returns the column order the model was trained on.
func (m *LogisticModel) FeatureColumns() []string {
	return m.columns
}

// Classes returns the class labels in model order.
func (m *LogisticModel) Classes() []int {
	return m.classes
}

// PredictProba standardizes features and applies the softmax (or sigmoid for a
// single coefficient row).
func (m *LogisticModel) PredictProba(features []float64) (map[int]float64, error) {
	if len(features) != len(m.columns) {
		return nil, errors.Newf(errors.ErrCodeFeatureMismatch, "model expects %d features, got %d", len(m.columns), len(features))
	}

	scaled := make([]float64, len(features))
	for i, v := range features {
		s := m.scale[i]
		if s == 0 {
			s = 1
		}

		scaled[i] = (v - m.mean[i]) / s
	}

	logits := make([]float64, len(m.coef))
	for k, row := range m.coef {
		z := m.intercept[k]
		for i, w := range row {
			z += w * scaled[i]
		}

		logits[k] = z
	}

	out := make(map[int]float64, len(m.classes))

	if len(logits) == 1 {
		p := 1 / (1 + math.Exp(-logits[0]))
		out[m.classes[0]] = 1 - p
		out[m.classes[1]] = p

		return out, nil
	}

	for k, p := range softmax(logits) {
		out[m.classes[k]] = p
	}

	return out, nil
}

func softmax(logits []float64) []float64 {
	peak := math.Inf(-1)
	for _, z := range logits {
		peak = math.Max(peak, z)
	}

	sum := 0.0
	out := make([]float64, len(logits))

	for i, z := range logits {
		out[i] = math.Exp(z - peak)
		sum += out[i]
	}

	for i := range out {
		out[i] /= sum
	}

	return out
}

func floatArray(r gjson.Result) []float64 {
	items := r.Array()
	out := make([]float64, 0, len(items))

	for _, item := range items {
		out = append(out, item.Float())
	}

	return out
}

func intArray(r gjson.Result) []int {
	items := r.Array()
	out := make([]int, 0, len(items))

	for _, item := range items {
		out = append(out, int(item.Int()))
	}

	return out
}

func stringArray(r gjson.Result) []string {
	items := r.Array()
	out := make([]string, 0, len(items))

	for _, item := range items {
		out = append(out, item.String())
	}

	return out
}
