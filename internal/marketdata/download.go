package marketdata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"go.uber.org/zap"
)

// OnDownloadProgress reports the time covered so far against the requested span.
type OnDownloadProgress = func(current float64, total float64, message string)

// DownloadParams describes a historical download.
type DownloadParams struct {
	Ticker    string    `validate:"required"`
	Timeframe Timeframe `validate:"required"`
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required,gtfield=StartDate"`
	DataPath  string    `validate:"required"`
}

// OutputPath is TICKER_START_END_TIMEFRAME.parquet under DataPath.
func (p DownloadParams) OutputPath() string {
	name := fmt.Sprintf("%s_%s_%s_%s.parquet",
		sanitizeTicker(p.Ticker),
		p.StartDate.Format(time.DateOnly),
		p.EndDate.Format(time.DateOnly),
		p.Timeframe)

	return filepath.Join(p.DataPath, name)
}

// Download streams bars from source into a parquet file and returns its path.
func Download(ctx context.Context, source RangeSource, params DownloadParams, onProgress OnDownloadProgress, log *logger.Logger) (string, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if err := validator.New().Struct(params); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download parameters", err)
	}

	if err := os.MkdirAll(params.DataPath, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeWriteFailed, "failed to create data directory", err)
	}

	writer := NewBarWriter(params.OutputPath(), params.Ticker)
	if err := writer.Initialize(); err != nil {
		return "", err
	}
	defer writer.Close()

	total := params.EndDate.Sub(params.StartDate).Seconds()
	message := fmt.Sprintf("Downloading %s", params.Ticker)

	err := source.FetchRange(ctx, params.StartDate, params.EndDate, func(bar types.Bar) error {
		if err := writer.Write(bar); err != nil {
			return err
		}

		if onProgress != nil {
			onProgress(bar.Time.Sub(params.StartDate).Seconds(), total, message)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	path, err := writer.Finalize()
	if err != nil {
		return "", err
	}

	if onProgress != nil {
		onProgress(total, total, message)
	}

	log.Info("Download finished",
		zap.String("ticker", params.Ticker),
		zap.Int("bars", writer.Written()),
		zap.String("path", path),
	)

	return path, nil
}

func sanitizeTicker(ticker string) string {
	out := []rune(ticker)
	for i, r := range out {
		if r == ':' || r == '/' || r == '\\' {
			out[i] = '-'
		}
	}

	return string(out)
}
