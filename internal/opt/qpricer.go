package opt

import (
	"go.uber.org/zap"

	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/sim"
)

// DefaultPriceTries bounds how many times QuantityPricer raises the
// price within a single period.
const DefaultPriceTries = 8

// QuantityPricer raises a market's price during the intra-period loop
// while buyers keep hitting stockouts, up to a bounded number of tries
// per period. Each raise invalidates the spenders' plans, so the loop
// reruns them against the new price; once supply covers demand (or the
// tries are spent) the pricer goes quiet and the loop can settle.
type QuantityPricer struct {
	sim.MemberCore
	market *econ.Market

	increase float64
	maxTries int
	tries    int
}

func NewQuantityPricer(market *econ.Market, increase float64) *QuantityPricer {
	return &QuantityPricer{market: market, increase: increase, maxTries: DefaultPriceTries}
}

// WithMaxTries overrides the per-period raise budget.
func (o *QuantityPricer) WithMaxTries(n int) *QuantityPricer {
	o.maxTries = n
	return o
}

func (o *QuantityPricer) Kind() sim.Kind { return sim.KindIntraOpt }

// Added ties the pricer's lifetime to its market.
func (o *QuantityPricer) Added() {
	o.Simulation().DependsOn(o.ID(), o.market.ID())
}

func (o *QuantityPricer) IntraReset(st *sim.Stage) error {
	o.tries = 0
	return nil
}

func (o *QuantityPricer) IntraOptimize(st *sim.Stage) (bool, error) {
	if !o.market.WasStockout() {
		return false, nil
	}
	if o.tries >= o.maxTries {
		return false, nil
	}
	o.tries++
	price := o.market.CurrentPrice() * (1 + o.increase)
	o.market.SetPrice(price)
	o.market.ClearStockout()
	st.Log.Debug("intra price raised",
		zap.Uint64("market", uint64(o.market.ID())),
		zap.Float64("price", price),
		zap.Int("try", o.tries),
	)
	return true, nil
}

func (o *QuantityPricer) IntraApply(st *sim.Stage) error { return nil }

// Tries returns how many raises happened this period.
func (o *QuantityPricer) Tries() int { return o.tries }
