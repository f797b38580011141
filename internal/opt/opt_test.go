package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/sim"
)

// world wires one firm selling bread for money so tests can drive
// optimizers by hand, outside the scheduler.
type world struct {
	s      *sim.Simulation
	money  *econ.Good
	bread  *econ.Good
	bakery *econ.Firm
	market *econ.Market

	probe *econ.Agent
}

func newWorld(t *testing.T, capacity, price float64) *world {
	t.Helper()
	w := &world{
		s:     sim.New(sim.Options{}),
		money: econ.NewGood("money"),
		bread: econ.NewGood("bread"),
	}
	w.bakery = econ.NewFirm("bakery", capacity)
	for _, m := range []sim.Member{w.money, w.bread, w.bakery} {
		mustAdd(t, w.s, m)
	}
	w.market = econ.NewMarket("bread", econ.Bundle{w.bread.ID(): 1}, econ.Bundle{w.money.ID(): 1}, price)
	mustAdd(t, w.s, w.market)
	w.market.AddFirm(w.bakery)
	return w
}

func mustAdd(t *testing.T, s *sim.Simulation, m sim.Member) {
	t.Helper()
	_, err := s.Add(m)
	assert.NoError(t, err)
}

// tripStockout records a failed oversized ask so the market reports a
// stockout. The probe never holds funds, so nothing else changes.
func (w *world) tripStockout(t *testing.T) {
	t.Helper()
	if w.probe == nil {
		w.probe = econ.NewAgent("probe", nil, nil)
		mustAdd(t, w.s, w.probe)
	}
	_, err := w.market.Reserve(w.probe, w.market.Supply()+1000, w.market.CurrentPrice())
	assert.ErrorIs(t, err, econ.ErrOutputInfeasible)
	assert.True(t, w.market.WasStockout())
}

func stage() *sim.Stage { return &sim.Stage{Log: zap.NewNop()} }
