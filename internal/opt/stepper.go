package opt

import (
	"go.uber.org/zap"

	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/sim"
)

// Default tuning for PriceStepper.
const (
	DefaultStep    = 0.25
	DefaultMinStep = 1.0 / (1 << 10)
	DefaultMaxStep = 0.5
)

// PriceStepper adjusts a market's price between periods based on what
// happened last period: a stockout pushes the price up, a period with
// no sales pushes it down. Consecutive moves in the same direction
// double the relative step; a reversal halves it, so the price homes
// in on the market-clearing level.
//
// The new price is computed during the optimize stage, while every
// optimizer still observes last period's state, and written during the
// apply stage.
type PriceStepper struct {
	sim.MemberCore
	market *econ.Market

	step    float64
	minStep float64
	maxStep float64

	lastUp  bool
	stepped bool

	proposed float64
	dirty    bool
}

func NewPriceStepper(market *econ.Market) *PriceStepper {
	return &PriceStepper{
		market:  market,
		step:    DefaultStep,
		minStep: DefaultMinStep,
		maxStep: DefaultMaxStep,
	}
}

// WithStep overrides the initial relative step.
func (o *PriceStepper) WithStep(step float64) *PriceStepper {
	o.step = step
	return o
}

func (o *PriceStepper) Kind() sim.Kind { return sim.KindInterOpt }

// Added ties the stepper's lifetime to its market.
func (o *PriceStepper) Added() {
	o.Simulation().DependsOn(o.ID(), o.market.ID())
}

func (o *PriceStepper) InterOptimize(st *sim.Stage) error {
	o.dirty = false

	var up bool
	switch {
	case o.market.WasStockout():
		up = true
	case o.market.Sold() == 0:
		up = false
	default:
		// Cleared without a stockout: the price is workable, leave it.
		return nil
	}

	if o.stepped {
		if up == o.lastUp {
			o.step *= 2
			if o.step > o.maxStep {
				o.step = o.maxStep
			}
		} else {
			o.step /= 2
			if o.step < o.minStep {
				o.step = o.minStep
			}
		}
	}
	o.lastUp = up
	o.stepped = true

	price := o.market.CurrentPrice()
	if up {
		o.proposed = price * (1 + o.step)
	} else {
		o.proposed = price * (1 - o.step)
	}
	o.dirty = true
	return nil
}

func (o *PriceStepper) InterApply(st *sim.Stage) error {
	if !o.dirty {
		return nil
	}
	o.market.SetPrice(o.proposed)
	o.market.ClearStockout()
	o.dirty = false
	st.Log.Debug("price stepped",
		zap.Uint64("market", uint64(o.market.ID())),
		zap.Float64("price", o.proposed),
		zap.Float64("step", o.step),
	)
	return nil
}

// Step returns the current relative step size.
func (o *PriceStepper) Step() float64 { return o.step }
