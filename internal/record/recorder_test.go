package record

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/event"
	"github.com/erisproject/eris-sub002/internal/sim"
)

func newRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := New(filepath.Join(t.TempDir(), "run.db"), nil)
	assert.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func (r *Recorder) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	assert.NoError(t, r.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestNewCreatesSchema(t *testing.T) {
	r := newRecorder(t)
	for _, table := range []string{"runs", "periods", "trades", "market_state"} {
		assert.Zero(t, r.countRows(t, table))
	}
	assert.NotEmpty(t, r.RunID())
}

func TestStartRunInsertsRow(t *testing.T) {
	r := newRecorder(t)
	assert.NoError(t, r.StartRun("exchange", 42, 4))

	var scenario string
	var seed int64
	var workers int
	err := r.db.QueryRow(`SELECT scenario, seed, workers FROM runs WHERE id = ?`, r.RunID()).
		Scan(&scenario, &seed, &workers)
	assert.NoError(t, err)
	assert.Equal(t, "exchange", scenario)
	assert.Equal(t, int64(42), seed)
	assert.Equal(t, 4, workers)
}

func TestRunIDsAreDistinct(t *testing.T) {
	a := newRecorder(t)
	b := newRecorder(t)
	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestObserveRecordsTrades(t *testing.T) {
	r := newRecorder(t)
	assert.NoError(t, r.StartRun("exchange", 1, 1))

	s := sim.New(sim.Options{})
	r.Observe(s)

	event.Emit(s.Bus(), econ.TradeExecuted{
		Market:   sim.ID(3),
		Buyer:    sim.ID(5),
		Quantity: 2,
		Price:    1.5,
		Payment:  3,
	})
	s.Bus().SwapBuffers()
	s.Bus().DispatchAll()

	assert.Equal(t, 1, r.countRows(t, "trades"))
	var market, buyer int64
	var qty, price, payment float64
	err := r.db.QueryRow(`SELECT market, buyer, quantity, price, payment FROM trades`).
		Scan(&market, &buyer, &qty, &price, &payment)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), market)
	assert.Equal(t, int64(5), buyer)
	assert.InDelta(t, 2.0, qty, 1e-9)
	assert.InDelta(t, 1.5, price, 1e-9)
	assert.InDelta(t, 3.0, payment, 1e-9)
}

func TestRecordPeriodPersistsMarketState(t *testing.T) {
	r := newRecorder(t)
	assert.NoError(t, r.StartRun("exchange", 1, 1))

	s := sim.New(sim.Options{})
	money := econ.NewGood("money")
	bread := econ.NewGood("bread")
	for _, m := range []sim.Member{money, bread} {
		_, err := s.Add(m)
		assert.NoError(t, err)
	}
	market := econ.NewMarket("bread", econ.Bundle{bread.ID(): 1}, econ.Bundle{money.ID(): 1}, 2.5)
	_, err := s.Add(market)
	assert.NoError(t, err)

	stats := sim.RunStats{Period: 1, IntraIterations: 3, Elapsed: 2 * time.Millisecond}
	assert.NoError(t, r.RecordPeriod(stats, []*econ.Market{market}))

	var iterations int
	var elapsed int64
	err = r.db.QueryRow(`SELECT iterations, elapsed_us FROM periods WHERE period = 1`).
		Scan(&iterations, &elapsed)
	assert.NoError(t, err)
	assert.Equal(t, 3, iterations)
	assert.Equal(t, int64(2000), elapsed)

	var price, sold float64
	var stockout int
	err = r.db.QueryRow(`SELECT price, sold, stockout FROM market_state WHERE period = 1`).
		Scan(&price, &sold, &stockout)
	assert.NoError(t, err)
	assert.InDelta(t, 2.5, price, 1e-9)
	assert.Zero(t, sold)
	assert.Zero(t, stockout)
}

func TestRecordPeriodRejectsDuplicates(t *testing.T) {
	r := newRecorder(t)
	assert.NoError(t, r.StartRun("exchange", 1, 1))

	stats := sim.RunStats{Period: 1}
	assert.NoError(t, r.RecordPeriod(stats, nil))
	assert.ErrorContains(t, r.RecordPeriod(stats, nil), "insert period 1")
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.db")

	first, err := New(path, nil)
	assert.NoError(t, err)
	assert.NoError(t, first.StartRun("exchange", 1, 1))
	assert.NoError(t, first.Close())

	second, err := New(path, nil)
	assert.NoError(t, err)
	defer second.Close()
	assert.NoError(t, second.StartRun("exchange", 2, 1))
	assert.Equal(t, 2, second.countRows(t, "runs"))
}
