package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/event"
	"github.com/erisproject/eris-sub002/internal/sim"
)

func dispatch(s *sim.Simulation) {
	s.Bus().SwapBuffers()
	s.Bus().DispatchAll()
}

func TestObserveCountsPeriods(t *testing.T) {
	m := New()
	s := sim.New(sim.Options{})
	m.Observe(s)

	event.Emit(s.Bus(), sim.PeriodEnded{Period: 1, IntraIterations: 3})
	event.Emit(s.Bus(), sim.PeriodEnded{Period: 2, IntraIterations: 1})
	dispatch(s)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.Periods), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(m.Iterations, "eris_intra_iterations"))
}

func TestObserveTracksMembership(t *testing.T) {
	m := New()
	s := sim.New(sim.Options{})
	m.Observe(s)

	event.Emit(s.Bus(), sim.MemberAdded{ID: 1, Kind: sim.KindAgent})
	event.Emit(s.Bus(), sim.MemberAdded{ID: 2, Kind: sim.KindAgent})
	event.Emit(s.Bus(), sim.MemberAdded{ID: 3, Kind: sim.KindMarket})
	event.Emit(s.Bus(), sim.MemberRemoved{ID: 1, Kind: sim.KindAgent})
	dispatch(s)

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Members.WithLabelValues("agent")), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Members.WithLabelValues("market")), 1e-9)
}

func TestObserveCountsTrades(t *testing.T) {
	m := New()
	s := sim.New(sim.Options{})
	m.Observe(s)

	event.Emit(s.Bus(), econ.TradeExecuted{Market: 1, Buyer: 2, Quantity: 3, Price: 2, Payment: 6})
	event.Emit(s.Bus(), econ.TradeExecuted{Market: 1, Buyer: 2, Quantity: 1.5, Price: 2, Payment: 3})
	event.Emit(s.Bus(), econ.ReservationReleased{Market: 1, Buyer: 2, Quantity: 1, Refund: 2})
	dispatch(s)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.Trades), 1e-9)
	assert.InDelta(t, 4.5, testutil.ToFloat64(m.TradeUnits), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Aborts), 1e-9)
}

func TestSetPrice(t *testing.T) {
	m := New()
	m.SetPrice("bread", 2.5)
	m.SetPrice("bread", 3.0)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.Prices.WithLabelValues("bread")), 1e-9)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	m.Periods.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eris_periods_total 1")
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := New()
	b := New()
	a.Periods.Inc()

	assert.InDelta(t, 1.0, testutil.ToFloat64(a.Periods), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(b.Periods), 1e-9)
}
