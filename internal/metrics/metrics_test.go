package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rxtech-lab/flipped-trading/internal/types"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
	metrics *Metrics
}

func (s *MetricsTestSuite) SetupTest() {
	s.metrics = New()
}

func TestMetricsTestSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func (s *MetricsTestSuite) TestObserveBasket() {
	s.metrics.ObserveBasket(types.BasketStatus{Open: true, BasketSize: 3, TotalVolume: 0.06}, -1.25)

	s.InDelta(1, testutil.ToFloat64(s.metrics.basketOpen), 1e-9)
	s.InDelta(3, testutil.ToFloat64(s.metrics.basketLegs), 1e-9)
	s.InDelta(0.06, testutil.ToFloat64(s.metrics.basketVolume), 1e-9)
	s.InDelta(-1.25, testutil.ToFloat64(s.metrics.basketProfit), 1e-9)

	s.metrics.ObserveBasket(types.BasketStatus{}, 0)

	s.Zero(testutil.ToFloat64(s.metrics.basketOpen))
	s.Zero(testutil.ToFloat64(s.metrics.basketLegs))
}

func (s *MetricsTestSuite) TestRecordAction() {
	s.metrics.RecordAction(types.BasketAction{Action: types.ActionOpen})
	s.metrics.RecordAction(types.BasketAction{Action: types.ActionAdd})
	s.metrics.RecordAction(types.BasketAction{Action: types.ActionClose, Reason: types.CloseReasonMartiStop.Failed()})
	s.metrics.RecordAction(types.BasketAction{Action: types.ActionClose, Reason: types.CloseReasonMartiStop})

	s.InDelta(2, testutil.ToFloat64(s.metrics.actions.WithLabelValues("CLOSE")), 1e-9)
	s.InDelta(1, testutil.ToFloat64(s.metrics.closes.WithLabelValues("MARTI_STOP")), 1e-9)
	s.InDelta(1, testutil.ToFloat64(s.metrics.closes.WithLabelValues("MARTI_STOP_FAILED")), 1e-9)
}

func (s *MetricsTestSuite) TestCountersAndHandler() {
	s.metrics.RecordRiskRejection("DAILY_LOSS_LIMIT")
	s.metrics.RecordTickError()
	s.metrics.RecordTickError()

	s.InDelta(2, testutil.ToFloat64(s.metrics.tickErrors), 1e-9)

	rec := httptest.NewRecorder()
	s.metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	s.Require().NoError(err)
	s.Contains(string(body), `flipped_risk_rejections_total{reason="DAILY_LOSS_LIMIT"} 1`)
	s.Contains(string(body), "flipped_tick_errors_total 2")
	s.Contains(string(body), "flipped_basket_open 0")
}
