package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rxtech-lab/flipped-trading/internal/archive"
	"github.com/rxtech-lab/flipped-trading/internal/metrics"
	"github.com/rxtech-lab/flipped-trading/internal/trading/engine"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/stretchr/testify/suite"
)

type fakeStatus struct {
	status engine.Status
	stats  types.SessionStats
}

func (f *fakeStatus) Status() engine.Status {
	return f.status
}

func (f *fakeStatus) Stats() types.SessionStats {
	return f.stats
}

type fakeArchive struct {
	stats archive.Stats
	err   error
}

func (f *fakeArchive) Stats() (archive.Stats, error) {
	return f.stats, f.err
}

type ServerTestSuite struct {
	suite.Suite
	status *fakeStatus
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (suite *ServerTestSuite) SetupTest() {
	suite.status = &fakeStatus{
		status: engine.Status{
			EngineStatus: types.EngineStatusRunning,
			Symbol:       "XAUUSD",
			RunID:        "run_2",
			Ticks:        42,
			Price:        2001.5,
			Basket: types.BasketStatus{
				Open:        true,
				Direction:   types.DirectionBuy,
				BasketSize:  2,
				TotalVolume: 0.04,
			},
			Profit: 3.2,
		},
		stats: types.SessionStats{
			ID:           "run_2",
			Symbol:       "XAUUSD",
			CloseReasons: map[string]int{"TRAIL_GIVEBACK": 3},
			Baskets:      types.BasketResult{Closed: 3, Wins: 3, WinRate: 1},
		},
	}
}

func (suite *ServerTestSuite) newServer(opts Options) *Server {
	opts.Status = suite.status

	srv, err := New(opts, nil)
	suite.Require().NoError(err)

	return srv
}

func (suite *ServerTestSuite) get(srv *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

func (suite *ServerTestSuite) TestNewRequiresStatus() {
	_, err := New(Options{Addr: ":0"}, nil)
	suite.Error(err)
}

func (suite *ServerTestSuite) TestHealth() {
	srv := suite.newServer(Options{})

	rec := suite.get(srv, "/healthz")
	suite.Equal(http.StatusOK, rec.Code)

	var body healthResponse
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	suite.Equal("ok", body.Status)
	suite.Equal(types.EngineStatusRunning, body.EngineStatus)

	suite.status.status.EngineStatus = types.EngineStatusStopped
	suite.Equal(http.StatusServiceUnavailable, suite.get(srv, "/healthz").Code)
}

func (suite *ServerTestSuite) TestStatus() {
	rec := suite.get(suite.newServer(Options{}), "/status")
	suite.Equal(http.StatusOK, rec.Code)
	suite.Equal("application/json", rec.Header().Get("Content-Type"))

	var body engine.Status
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	suite.Equal("run_2", body.RunID)
	suite.Equal(42, body.Ticks)
	suite.True(body.Basket.Open)
	suite.Equal(types.DirectionBuy, body.Basket.Direction)
}

func (suite *ServerTestSuite) TestStats() {
	rec := suite.get(suite.newServer(Options{}), "/stats")
	suite.Equal(http.StatusOK, rec.Code)

	var body types.SessionStats
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	suite.Equal(3, body.Baskets.Closed)
	suite.Equal(3, body.CloseReasons["TRAIL_GIVEBACK"])
}

func (suite *ServerTestSuite) TestMethodNotAllowed() {
	rec := httptest.NewRecorder()
	suite.newServer(Options{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))

	suite.Equal(http.StatusMethodNotAllowed, rec.Code)
}

func (suite *ServerTestSuite) TestMetrics() {
	m := metrics.New()
	m.RecordTickError()

	srv := suite.newServer(Options{Metrics: m.Handler()})

	rec := suite.get(srv, "/metrics")
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), "flipped_tick_errors_total 1")

	suite.Equal(http.StatusNotFound, suite.get(suite.newServer(Options{}), "/metrics").Code)
}

func (suite *ServerTestSuite) TestArchives() {
	suite.Equal(http.StatusNotFound, suite.get(suite.newServer(Options{}), "/archives").Code)

	reporter := &fakeArchive{stats: archive.Stats{
		TotalArchives: 1,
		TotalSizeMB:   0.5,
		Archives:      []archive.ArchiveInfo{{Filename: "2025-02.zip", SizeMB: 0.5, Files: 28}},
	}}

	rec := suite.get(suite.newServer(Options{Archive: reporter}), "/archives")
	suite.Equal(http.StatusOK, rec.Code)

	var body archive.Stats
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	suite.Equal(28, body.Archives[0].Files)

	reporter.err = fmt.Errorf("permission denied")
	suite.Equal(http.StatusInternalServerError, suite.get(suite.newServer(Options{Archive: reporter}), "/archives").Code)
}

func (suite *ServerTestSuite) TestServeUntilCancelled() {
	srv := suite.newServer(Options{Addr: "127.0.0.1:0"})
	suite.Require().NoError(srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	suite.Require().NoError(err)

	body, err := io.ReadAll(resp.Body)
	suite.Require().NoError(err)
	suite.Require().NoError(resp.Body.Close())
	suite.Contains(string(body), "running")

	cancel()

	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(5 * time.Second):
		suite.Fail("server did not stop")
	}
}
