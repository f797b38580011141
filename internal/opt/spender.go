package opt

import (
	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/sim"
)

// DefaultSpendRounds is how many equal slices a spender splits its
// budget into when planning.
const DefaultSpendRounds = 32

// Spender spends an agent's budget across a set of markets during the
// intra-period loop. Each pass it splits the spendable budget into
// equal slices and assigns every slice to the market whose output
// currently adds the most utility per unit of cost, then holds the
// resulting plan as pending reservations. While prices keep moving the
// plan keeps changing and the loop reruns; once a pass reproduces the
// held plan the spender reports no change, and the apply stage buys
// out the reservations.
//
// Escrowed funds count as spendable during planning: a new plan always
// starts by releasing the old one.
type Spender struct {
	sim.MemberCore
	book
	money   sim.ID
	markets []*econ.Market
	rounds  int
}

func NewSpender(agent *econ.Agent, money sim.ID, markets ...*econ.Market) *Spender {
	return &Spender{
		book:    newBook(agent),
		money:   money,
		markets: markets,
		rounds:  DefaultSpendRounds,
	}
}

// WithRounds overrides the number of budget slices used for planning.
func (o *Spender) WithRounds(n int) *Spender {
	o.rounds = n
	return o
}

func (o *Spender) Kind() sim.Kind { return sim.KindIntraOpt }

// Added ties the spender's lifetime to its agent.
func (o *Spender) Added() {
	o.Simulation().DependsOn(o.ID(), o.agent.ID())
}

// Removing releases any reservations still held so the escrow flows
// back to the agent before the spender detaches.
func (o *Spender) Removing() { o.abandon() }

func (o *Spender) IntraInitialize(st *sim.Stage) error {
	o.abandon()
	return nil
}

func (o *Spender) IntraOptimize(st *sim.Stage) (bool, error) {
	plan, prices := o.plan()

	if !o.stale() && plansEqual(plan, o.planned) {
		return false, nil
	}

	o.abandon()
	for _, m := range o.markets {
		qty := plan[m.ID()]
		if qty <= planEpsilon {
			continue
		}
		if err := o.reserve(m, qty, prices[m.ID()]); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (o *Spender) IntraApply(st *sim.Stage) error { return o.buyAll() }

// Held returns the reservations currently pending for this spender.
func (o *Spender) Held() []*econ.Reservation { return o.reservations() }

// plan greedily allocates the spendable budget, slice by slice, to the
// market with the best utility gain per unit cost. It returns the
// target quantity and the assumed unit price per market.
func (o *Spender) plan() (map[sim.ID]float64, map[sim.ID]float64) {
	trial := o.agent.Assets()
	for _, r := range o.held {
		trial.Add(r.Escrow())
	}
	budget := trial[o.money]

	plan := make(map[sim.ID]float64, len(o.markets))
	prices := make(map[sim.ID]float64, len(o.markets))
	util := o.agent.Utility()
	if util == nil || budget <= planEpsilon || o.rounds < 1 {
		return plan, prices
	}

	type view struct {
		id      sim.ID
		price   float64
		output  econ.Bundle
		payment econ.Bundle
		supply  float64
	}
	views := make([]view, 0, len(o.markets))
	for _, m := range o.markets {
		price := m.CurrentPrice()
		if price <= planEpsilon {
			continue
		}
		views = append(views, view{
			id:      m.ID(),
			price:   price,
			output:  m.Output(),
			payment: m.PriceUnit(),
			supply:  m.Supply() + o.heldIn(m.ID()),
		})
		prices[m.ID()] = price
	}

	slice := budget / float64(o.rounds)
	base := util.Utility(trial)
	for budget > slice-planEpsilon {
		best := -1
		bestGain := 0.0
		bestTrial := econ.Bundle(nil)
		bestQty := 0.0
		for i, v := range views {
			qty := slice / v.price
			if room := v.supply - plan[v.id]; qty > room {
				qty = room
			}
			if qty <= planEpsilon {
				continue
			}
			cost := qty * v.price
			next := trial.Clone()
			next.AddScaled(v.output, qty)
			if err := next.Subtract(v.payment.Scaled(cost)); err != nil {
				continue
			}
			gain := (util.Utility(next) - base) / cost
			if gain > bestGain+planEpsilon {
				best, bestGain, bestTrial, bestQty = i, gain, next, qty
			}
		}
		if best < 0 {
			break
		}
		v := views[best]
		plan[v.id] += bestQty
		budget -= bestQty * v.price
		trial = bestTrial
		base = util.Utility(trial)
	}
	for id, qty := range plan {
		if qty <= planEpsilon {
			delete(plan, id)
		}
	}
	return plan, prices
}
