// Package metrics exposes simulation counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/event"
	"github.com/erisproject/eris-sub002/internal/sim"
)

// Metrics holds the collectors for one simulation run. Everything
// registers against a private registry so tests and multiple runs in
// one process never collide.
type Metrics struct {
	reg *prometheus.Registry

	Periods    prometheus.Counter
	Iterations prometheus.Histogram
	Members    *prometheus.GaugeVec
	Trades     prometheus.Counter
	TradeUnits prometheus.Counter
	Aborts     prometheus.Counter
	Prices     *prometheus.GaugeVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		Periods: f.NewCounter(prometheus.CounterOpts{
			Name: "eris_periods_total",
			Help: "Completed simulation periods.",
		}),
		Iterations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "eris_intra_iterations",
			Help:    "Intra-period optimize passes needed to reach a fixed point.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
		Members: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "eris_members",
			Help: "Members attached to the simulation.",
		}, []string{"kind"}),
		Trades: f.NewCounter(prometheus.CounterOpts{
			Name: "eris_trades_total",
			Help: "Reservations bought out.",
		}),
		TradeUnits: f.NewCounter(prometheus.CounterOpts{
			Name: "eris_trade_units_total",
			Help: "Output units delivered across all trades.",
		}),
		Aborts: f.NewCounter(prometheus.CounterOpts{
			Name: "eris_reservations_aborted_total",
			Help: "Reservations released without a purchase.",
		}),
		Prices: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "eris_market_price",
			Help: "Market price at the end of the last period.",
		}, []string{"market"}),
	}
}

// Registry returns the backing registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Observe subscribes the collectors to the simulation's event stream.
func (m *Metrics) Observe(s *sim.Simulation) {
	bus := s.Bus()
	event.Subscribe(bus, func(ev sim.PeriodEnded) {
		m.Periods.Inc()
		m.Iterations.Observe(float64(ev.IntraIterations))
	})
	event.Subscribe(bus, func(ev sim.MemberAdded) {
		m.Members.WithLabelValues(ev.Kind.String()).Inc()
	})
	event.Subscribe(bus, func(ev sim.MemberRemoved) {
		m.Members.WithLabelValues(ev.Kind.String()).Dec()
	})
	event.Subscribe(bus, func(ev econ.TradeExecuted) {
		m.Trades.Inc()
		m.TradeUnits.Add(ev.Quantity)
	})
	event.Subscribe(bus, func(ev econ.ReservationReleased) {
		m.Aborts.Inc()
	})
}

// SetPrice records a market's end-of-period price.
func (m *Metrics) SetPrice(market string, price float64) {
	m.Prices.WithLabelValues(market).Set(price)
}
