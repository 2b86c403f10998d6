package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/rxtech-lab/flipped-trading/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ReplayFeedTestSuite struct {
	suite.Suite
	ctx    context.Context
	tmpDir string
	start  time.Time
}

func TestReplayFeedSuite(t *testing.T) {
	suite.Run(t, new(ReplayFeedTestSuite))
}

func (suite *ReplayFeedTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.tmpDir = suite.T().TempDir()
	suite.start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
}

func (suite *ReplayFeedTestSuite) bars(closes ...float64) []types.Bar {
	out := make([]types.Bar, len(closes))
	for i, c := range closes {
		out[i] = types.Bar{
			Time:   suite.start.Add(time.Duration(i) * time.Minute),
			Open:   c,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 1,
		}
	}

	return out
}

func (suite *ReplayFeedTestSuite) TestCursorAndWarmup() {
	feed := NewReplayFeedFromBars(suite.bars(1, 2, 3, 4, 5), 0.2, 2, nil)

	bars, err := feed.Bars(suite.ctx, 10)
	suite.Require().NoError(err)
	suite.Len(bars, 2)

	tick, err := feed.LatestTick(suite.ctx)
	suite.Require().NoError(err)
	suite.InDelta(1.9, tick.Bid, 1e-9)
	suite.InDelta(2.1, tick.Ask, 1e-9)

	current, total := feed.Progress()
	suite.Equal(2, current)
	suite.Equal(5, total)

	suite.Require().NoError(feed.Advance())
	bars, err = feed.Bars(suite.ctx, 2)
	suite.Require().NoError(err)
	suite.Equal(2.0, bars[0].Close)
	suite.Equal(3.0, bars[1].Close)
}

func (suite *ReplayFeedTestSuite) TestExhaustion() {
	feed := NewReplayFeedFromBars(suite.bars(1, 2, 3), 0, 0, nil)

	suite.NoError(feed.Advance())
	suite.NoError(feed.Advance())

	err := feed.Advance()
	suite.True(errors.HasCode(err, errors.ErrCodeReplayExhausted))

	tick, err := feed.LatestTick(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal(3.0, tick.Bid)
}

func (suite *ReplayFeedTestSuite) TestBarsReturnsCopy() {
	feed := NewReplayFeedFromBars(suite.bars(1, 2, 3), 0, 3, nil)

	bars, err := feed.Bars(suite.ctx, 3)
	suite.Require().NoError(err)
	bars[0].Close = 99

	again, err := feed.Bars(suite.ctx, 3)
	suite.Require().NoError(err)
	suite.Equal(1.0, again[0].Close)
}

func (suite *ReplayFeedTestSuite) TestEmptyReplay() {
	feed := NewReplayFeedFromBars(nil, 0, 10, nil)

	_, err := feed.LatestTick(suite.ctx)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataMissing))
	suite.True(errors.HasCode(feed.Advance(), errors.ErrCodeReplayExhausted))
}

func (suite *ReplayFeedTestSuite) TestParquetRoundTripThroughWriter() {
	path := filepath.Join(suite.tmpDir, "bars.parquet")
	writer := NewBarWriter(path, "XAUUSD")
	suite.Require().NoError(writer.Initialize())

	// written out of order; the export sorts by time
	input := suite.bars(10, 11, 12)
	suite.Require().NoError(writer.Write(input[2]))
	suite.Require().NoError(writer.Write(input[0]))
	suite.Require().NoError(writer.Write(input[1]))

	out, err := writer.Finalize()
	suite.Require().NoError(err)
	suite.Equal(path, out)
	suite.Equal(3, writer.Written())
	suite.NoError(writer.Close())

	feed, err := NewReplayFeed(ReplayOptions{Path: path, Ticker: "XAUUSD", Warmup: 3}, nil)
	suite.Require().NoError(err)

	bars, err := feed.Bars(suite.ctx, 3)
	suite.Require().NoError(err)
	suite.Require().Len(bars, 3)
	suite.Equal(10.0, bars[0].Close)
	suite.Equal(12.0, bars[2].Close)
	suite.Equal(suite.start.Add(2*time.Minute).Unix(), bars[2].Time.Unix())

	_, err = NewReplayFeed(ReplayOptions{Path: path, Ticker: "EURUSD"}, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataMissing))
}

func (suite *ReplayFeedTestSuite) TestCSVReplay() {
	path := filepath.Join(suite.tmpDir, "bars.csv")
	content := "time,open,high,low,close,volume\n" +
		"2024-03-01 00:00:00,1.1,1.2,1.0,1.1,5\n" +
		"2024-03-01 00:01:00,1.1,1.3,1.1,1.25,7\n"
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o644))

	feed, err := NewReplayFeed(ReplayOptions{Path: path, Warmup: 2}, nil)
	suite.Require().NoError(err)

	bars, err := feed.Bars(suite.ctx, 5)
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)
	suite.Equal(1.25, bars[1].Close)
	suite.Equal(7.0, bars[1].Volume)
}

func (suite *ReplayFeedTestSuite) TestUnsupportedReplayFile() {
	_, err := NewReplayFeed(ReplayOptions{Path: "bars.json"}, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = NewReplayFeed(ReplayOptions{}, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}
