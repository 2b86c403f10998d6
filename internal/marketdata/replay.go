package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/flipped-trading/internal/logger"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"go.uber.org/zap"
)

// ReplayOptions configures a replay feed.
type ReplayOptions struct {
	// Path is a parquet or csv file with time, open, high, low, close and volume columns.
	Path string
	// Ticker filters on a symbol column when set.
	Ticker string
	Spread float64
	// Warmup is the number of bars visible before the first Advance.
	Warmup int
}

// ReplayFeed steps through recorded bars. Bars and LatestTick only see bars
// up to the cursor; Advance moves it by one.
type ReplayFeed struct {
	mu     sync.RWMutex
	bars   []types.Bar
	cursor int
	spread float64
	log    *logger.Logger
}

// NewReplayFeed loads every bar of opts.Path through DuckDB.
func NewReplayFeed(opts ReplayOptions, log *logger.Logger) (*ReplayFeed, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	bars, err := loadBars(opts.Path, opts.Ticker)
	if err != nil {
		return nil, err
	}

	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeMarketDataMissing, "no bars found in %s", opts.Path)
	}

	feed := NewReplayFeedFromBars(bars, opts.Spread, opts.Warmup, log)

	log.Info("Replay feed loaded",
		zap.String("path", opts.Path),
		zap.Int("bars", len(bars)),
		zap.Time("first", bars[0].Time),
		zap.Time("last", bars[len(bars)-1].Time),
	)

	return feed, nil
}

// NewReplayFeedFromBars replays bars held in memory.
func NewReplayFeedFromBars(bars []types.Bar, spread float64, warmup int, log *logger.Logger) *ReplayFeed {
	if log == nil {
		log = logger.NewNopLogger()
	}

	cursor := min(max(warmup, 1), len(bars)) - 1

	return &ReplayFeed{
		mu:     sync.RWMutex{},
		bars:   bars,
		cursor: cursor,
		spread: spread,
		log:    log,
	}
}

// Advance exposes the next bar. It returns ErrCodeReplayExhausted after the last one.
func (f *ReplayFeed) Advance() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cursor+1 >= len(f.bars) {
		return errors.New(errors.ErrCodeReplayExhausted, "replay reached the last bar")
	}

	f.cursor++

	return nil
}

// Progress returns the cursor position and the number of bars.
func (f *ReplayFeed) Progress() (int, int) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.cursor + 1, len(f.bars)
}

// LatestTick quotes around the close of the current bar.
func (f *ReplayFeed) LatestTick(_ context.Context) (types.Tick, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.cursor < 0 {
		return types.Tick{}, errors.New(errors.ErrCodeMarketDataMissing, "replay has no bars")
	}

	return tickFromClose(f.bars[f.cursor], f.spread), nil
}

// Bars returns up to count bars ending at the cursor.
func (f *ReplayFeed) Bars(_ context.Context, count int) ([]types.Bar, error) {
	if count <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "bar count must be positive, got %d", count)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	visible := lastN(f.bars[:f.cursor+1], count)
	out := make([]types.Bar, len(visible))
	copy(out, visible)

	return out, nil
}

func loadBars(path, ticker string) ([]types.Bar, error) {
	source, err := replaySource(path)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to open DuckDB connection", err)
	}
	defer db.Close()

	builder := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("time", "open", "high", "low", "close", "volume").
		From(source).
		OrderBy("time ASC")

	if ticker != "" {
		builder = builder.Where(squirrel.Eq{"symbol": ticker})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build replay query", err)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read bars from %s", path)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var (
			timestamp                      time.Time
			open, high, low, close, volume float64
		)

		if err := rows.Scan(&timestamp, &open, &high, &low, &close, &volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "failed to scan bar", err)
		}

		bars = append(bars, types.Bar{
			Time:   timestamp,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: volume,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate bars", err)
	}

	return bars, nil
}

// replaySource returns the DuckDB table function reading path.
func replaySource(path string) (string, error) {
	if path == "" {
		return "", errors.New(errors.ErrCodeMissingParameter, "replay path is required")
	}

	escaped := strings.ReplaceAll(path, "'", "''")

	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return fmt.Sprintf("read_parquet('%s')", escaped), nil
	case ".csv":
		return fmt.Sprintf("read_csv_auto('%s')", escaped), nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "unsupported replay file %s, expected .parquet or .csv", path)
	}
}
