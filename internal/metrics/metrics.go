// Package metrics exposes basket state and runner activity to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rxtech-lab/flipped-trading/internal/types"
)

// Metrics owns a private registry so several runners can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	basketOpen     prometheus.Gauge
	basketLegs     prometheus.Gauge
	basketVolume   prometheus.Gauge
	basketProfit   prometheus.Gauge
	actions        *prometheus.CounterVec
	closes         *prometheus.CounterVec
	riskRejections *prometheus.CounterVec
	tickErrors     prometheus.Counter
}

// New registers the flipped_* collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		basketOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flipped_basket_open",
			Help: "1 while a basket is open, 0 otherwise.",
		}),
		basketLegs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flipped_basket_legs",
			Help: "Number of legs in the open basket.",
		}),
		basketVolume: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flipped_basket_volume",
			Help: "Total lots in the open basket.",
		}),
		basketProfit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flipped_basket_profit",
			Help: "Floating profit of the open basket in account currency.",
		}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flipped_basket_actions_total",
			Help: "Basket actions journaled, by action.",
		}, []string{"action"}),
		closes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flipped_basket_closes_total",
			Help: "Basket close attempts, by reason. Failed attempts carry the _FAILED suffix.",
		}, []string{"reason"}),
		riskRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flipped_risk_rejections_total",
			Help: "Openings refused by the risk gate, by reason.",
		}, []string{"reason"}),
		tickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flipped_tick_errors_total",
			Help: "Ticks that ended with an error.",
		}),
	}

	m.registry.MustRegister(
		m.basketOpen,
		m.basketLegs,
		m.basketVolume,
		m.basketProfit,
		m.actions,
		m.closes,
		m.riskRejections,
		m.tickErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveBasket sets the basket gauges from a status snapshot.
func (m *Metrics) ObserveBasket(status types.BasketStatus, profit float64) {
	if !status.Open {
		m.basketOpen.Set(0)
		m.basketLegs.Set(0)
		m.basketVolume.Set(0)
		m.basketProfit.Set(0)

		return
	}

	m.basketOpen.Set(1)
	m.basketLegs.Set(float64(status.BasketSize))
	m.basketVolume.Set(status.TotalVolume)
	m.basketProfit.Set(profit)
}

// RecordAction counts a journaled action, and its reason for closes.
func (m *Metrics) RecordAction(action types.BasketAction) {
	m.actions.WithLabelValues(string(action.Action)).Inc()

	if action.Action == types.ActionClose {
		m.closes.WithLabelValues(string(action.Reason)).Inc()
	}
}

func (m *Metrics) RecordRiskRejection(reason string) {
	m.riskRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordTickError() {
	m.tickErrors.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
