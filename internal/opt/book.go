package opt

import (
	"errors"

	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/sim"
)

const planEpsilon = 1e-9

// book tracks the pending reservations that implement one member's
// spending plan, and the quantities and prices the plan assumed.
type book struct {
	agent   *econ.Agent
	held    []*econ.Reservation
	planned map[sim.ID]float64
	prices  map[sim.ID]float64
}

func newBook(agent *econ.Agent) book {
	return book{
		agent:   agent,
		planned: make(map[sim.ID]float64),
		prices:  make(map[sim.ID]float64),
	}
}

// spendable returns how much of the given good the agent could put
// toward a fresh plan: assets on hand plus everything escrowed under
// the held reservations.
func (b *book) spendable(money sim.ID) float64 {
	assets := b.agent.Assets()
	for _, r := range b.held {
		assets.Add(r.Escrow())
	}
	return assets[money]
}

// reserve places one market's share of the plan. Feasibility failures
// are absorbed: a reservation that could not be placed simply stays out
// of the plan, and since placing it counted as a change the loop gets
// another pass to replan against whatever blocked it.
func (b *book) reserve(m *econ.Market, qty, price float64) error {
	r, err := m.Reserve(b.agent, qty, price)
	if errors.Is(err, econ.ErrOutputInfeasible) {
		// Another buyer got there first; take what is left.
		if left := m.Supply(); left > planEpsilon {
			if left < qty {
				qty = left
			}
			r, err = m.Reserve(b.agent, qty, price)
		}
	}
	switch {
	case err == nil:
		b.held = append(b.held, r)
		b.planned[m.ID()] += qty
		b.prices[m.ID()] = price
		return nil
	case errors.Is(err, econ.ErrLowPrice),
		errors.Is(err, econ.ErrOutputInfeasible),
		errors.Is(err, econ.ErrInsufficientAssets):
		// The market refused. Remember the ask anyway so an identical
		// replan reads as settled instead of looping forever.
		b.planned[m.ID()] += qty
		b.prices[m.ID()] = price
		return nil
	default:
		return err
	}
}

// buyAll completes every held reservation and clears the book.
func (b *book) buyAll() error {
	for _, r := range b.held {
		if err := r.Buy(); err != nil {
			return err
		}
	}
	b.clear()
	return nil
}

// abandon releases every held reservation, refunding the escrow.
func (b *book) abandon() {
	for _, r := range b.held {
		r.Close()
	}
	b.clear()
}

func (b *book) clear() {
	b.held = b.held[:0]
	b.planned = make(map[sim.ID]float64)
	b.prices = make(map[sim.ID]float64)
}

// stale reports whether any held reservation was priced under a price
// the market has since moved away from.
func (b *book) stale() bool {
	for _, r := range b.held {
		if diff := r.Market().CurrentPrice() - r.UnitPrice(); diff > planEpsilon || diff < -planEpsilon {
			return true
		}
	}
	return false
}

// heldIn returns the units this book has pending in one market. Plans
// are drawn against market supply plus this: the units the book itself
// holds are released before the next plan is placed.
func (b *book) heldIn(id sim.ID) float64 {
	q := 0.0
	for _, r := range b.held {
		if r.Market().ID() == id && r.State() == econ.ReservationPending {
			q += r.Quantity()
		}
	}
	return q
}

// reservations returns a copy of the held reservation list.
func (b *book) reservations() []*econ.Reservation {
	out := make([]*econ.Reservation, len(b.held))
	copy(out, b.held)
	return out
}

func plansEqual(a, b map[sim.ID]float64) bool {
	for id, qa := range a {
		if diff := qa - b[id]; diff > planEpsilon || diff < -planEpsilon {
			return false
		}
	}
	for id, qb := range b {
		if _, ok := a[id]; !ok && qb > planEpsilon {
			return false
		}
	}
	return true
}
