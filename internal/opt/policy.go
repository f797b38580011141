package opt

import (
	"go.uber.org/zap"

	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/sim"
)

// PolicyContext is the snapshot handed to an external spending policy
// each pass of the intra-period loop.
type PolicyContext struct {
	Period    uint64
	Iteration int
	Budget    float64
	Assets    map[sim.ID]float64
	Markets   []MarketView
}

// MarketView is one market's state as a policy sees it.
type MarketView struct {
	ID       sim.ID
	Price    float64
	Supply   float64
	Sold     float64
	Stockout bool
}

// Order is one purchase a policy wants held. A zero MaxPrice means the
// price the policy just saw.
type Order struct {
	Market   sim.ID
	Quantity float64
	MaxPrice float64
}

// Policy turns a context into purchase orders. Sequential policies run
// on the coordinator goroutine only; a policy backed by a
// single-threaded interpreter must report itself sequential.
type Policy interface {
	Plan(ctx PolicyContext) ([]Order, error)
	Sequential() bool
}

// PolicySpender is a Spender whose plan comes from an external policy
// instead of the built-in utility climb. The escrow discipline is the
// same: each pass holds the ordered quantities as pending reservations,
// and the apply stage buys out whatever plan the loop settled on.
type PolicySpender struct {
	sim.MemberCore
	book
	policy  Policy
	money   sim.ID
	markets []*econ.Market
}

func NewPolicySpender(policy Policy, agent *econ.Agent, money sim.ID, markets ...*econ.Market) *PolicySpender {
	return &PolicySpender{
		book:    newBook(agent),
		policy:  policy,
		money:   money,
		markets: markets,
	}
}

func (o *PolicySpender) Kind() sim.Kind { return sim.KindIntraOpt }

func (o *PolicySpender) SequentialRun() bool { return o.policy.Sequential() }

// Added ties the spender's lifetime to its agent.
func (o *PolicySpender) Added() {
	o.Simulation().DependsOn(o.ID(), o.agent.ID())
}

// Removing releases any reservations still held so the escrow flows
// back to the agent before the spender detaches.
func (o *PolicySpender) Removing() { o.abandon() }

func (o *PolicySpender) IntraInitialize(st *sim.Stage) error {
	o.abandon()
	return nil
}

func (o *PolicySpender) IntraOptimize(st *sim.Stage) (bool, error) {
	ctx := PolicyContext{
		Period:    st.Period,
		Iteration: st.Iteration,
		Budget:    o.spendable(o.money),
		Assets:    o.agent.Assets(),
		Markets:   make([]MarketView, 0, len(o.markets)),
	}
	byID := make(map[sim.ID]*econ.Market, len(o.markets))
	for _, m := range o.markets {
		byID[m.ID()] = m
		ctx.Markets = append(ctx.Markets, MarketView{
			ID:       m.ID(),
			Price:    m.CurrentPrice(),
			Supply:   m.Supply() + o.heldIn(m.ID()),
			Sold:     m.Sold(),
			Stockout: m.WasStockout(),
		})
	}

	orders, err := o.policy.Plan(ctx)
	if err != nil {
		return false, err
	}

	plan := make(map[sim.ID]float64, len(orders))
	caps := make(map[sim.ID]float64, len(orders))
	for _, ord := range orders {
		m, ok := byID[ord.Market]
		if !ok {
			st.Log.Warn("policy ordered from unknown market",
				zap.Uint64("market", uint64(ord.Market)))
			continue
		}
		if ord.Quantity <= planEpsilon {
			continue
		}
		plan[ord.Market] += ord.Quantity
		limit := ord.MaxPrice
		if limit <= 0 {
			limit = m.CurrentPrice()
		}
		caps[ord.Market] = limit
	}

	if !o.stale() && plansEqual(plan, o.planned) {
		return false, nil
	}

	o.abandon()
	for _, m := range o.markets {
		qty := plan[m.ID()]
		if qty <= planEpsilon {
			continue
		}
		if err := o.reserve(m, qty, caps[m.ID()]); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (o *PolicySpender) IntraApply(st *sim.Stage) error { return o.buyAll() }

// Held returns the reservations currently pending for this spender.
func (o *PolicySpender) Held() []*econ.Reservation { return o.reservations() }
