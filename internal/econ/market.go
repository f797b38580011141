package econ

import (
	"fmt"
	"sort"

	"github.com/erisproject/eris-sub002/internal/sim"
)

// Market sells a fixed output bundle at a per-unit price denominated in
// a fixed price-unit bundle, supplied by its attached firms. All trade
// goes through the reservation protocol: Reserve escrows, the returned
// Reservation commits or refunds.
type Market struct {
	sim.MemberCore
	name      string
	output    Bundle // per unit bought; immutable after construction
	priceUnit Bundle // per unit of price; immutable after construction

	// Guarded by the member lock.
	price     float64
	firms     map[sim.ID]*Firm
	periodTag uint64
	sold      float64
	stockout  bool
}

func NewMarket(name string, output, priceUnit Bundle, price float64) *Market {
	return &Market{
		name:      name,
		output:    output.Clone(),
		priceUnit: priceUnit.Clone(),
		price:     price,
		firms:     make(map[sim.ID]*Firm),
	}
}

func (m *Market) Kind() sim.Kind { return sim.KindMarket }

func (m *Market) Name() string { return m.name }

// Output returns a copy of the bundle delivered per unit bought.
func (m *Market) Output() Bundle { return m.output.Clone() }

// PriceUnit returns a copy of the bundle the price is denominated in.
func (m *Market) PriceUnit() Bundle { return m.priceUnit.Clone() }

// Added records a removal dependency on every good the market trades:
// removing such a good removes the market.
func (m *Market) Added() {
	s := m.Simulation()
	id := m.ID()
	for g := range m.output {
		s.DependsOn(id, g)
	}
	for g := range m.priceUnit {
		s.DependsOn(id, g)
	}
}

// AddFirm attaches a supplier. The firm must already be registered.
func (m *Market) AddFirm(f *Firm) {
	m.Lock()
	m.firms[f.ID()] = f
	m.Unlock()
}

// RemoveFirm detaches the supplier with the given id; pending
// reservations already holding its capacity are unaffected.
func (m *Market) RemoveFirm(id sim.ID) {
	m.Lock()
	delete(m.firms, id)
	m.Unlock()
}

// CurrentPrice returns the per-unit price.
func (m *Market) CurrentPrice() float64 {
	m.RLock()
	defer m.RUnlock()
	return m.price
}

// SetPrice replaces the per-unit price. Prices apply to reservations
// made after the call; in-flight reservations keep theirs.
func (m *Market) SetPrice(p float64) {
	m.Lock()
	m.price = p
	m.Unlock()
}

// Sold returns the units committed via Buy since the counter last
// rolled (see rollPeriod).
func (m *Market) Sold() float64 {
	m.RLock()
	defer m.RUnlock()
	return m.sold
}

// WasStockout reports whether a reservation failed for lack of supply
// since the counter last rolled.
func (m *Market) WasStockout() bool {
	m.RLock()
	defer m.RUnlock()
	return m.stockout
}

// ClearStockout resets the stockout flag, letting buyers re-trip it
// against the conditions that follow (a raised price, say).
func (m *Market) ClearStockout() {
	m.Lock()
	m.stockout = false
	m.Unlock()
}

// Price returns the total cost of buying qty units at the current
// price, and whether the market's firms could still supply that many.
func (m *Market) Price(qty float64) (total float64, feasible bool) {
	firms := m.firmSnapshot()
	ls := sim.LockShared(m.lockSet(nil, firms)...)
	defer ls.Unlock()
	supply := 0.0
	for _, f := range firms {
		supply += f.remaining
	}
	return qty * m.price, qty <= supply+epsilon
}

// Quantity returns how many units the given budget buys at the current
// price, capped by available supply; constrained reports whether supply
// was the binding cap.
func (m *Market) Quantity(budget float64) (qty float64, constrained bool) {
	firms := m.firmSnapshot()
	ls := sim.LockShared(m.lockSet(nil, firms)...)
	defer ls.Unlock()
	if m.price <= epsilon {
		qty = 0
	} else {
		qty = budget / m.price
	}
	supply := 0.0
	for _, f := range firms {
		supply += f.remaining
	}
	if qty > supply {
		return supply, true
	}
	return qty, false
}

// Supply returns the output units the attached firms can still deliver
// this period.
func (m *Market) Supply() float64 {
	firms := m.firmSnapshot()
	ls := sim.LockShared(m.lockSet(nil, firms)...)
	defer ls.Unlock()
	supply := 0.0
	for _, f := range firms {
		supply += f.remaining
	}
	return supply
}

// Reserve escrows a purchase of qty units for the buyer. It checks, in
// order and before anything moves, the per-unit price against maxPrice,
// the quantity against remaining firm supply, and the payment against
// the buyer's assets; then it debits the buyer and holds firm capacity
// under exclusive locks on the full participant set. The returned
// reservation is pending; callers pair it with a deferred Close so an
// abandoned reservation refunds itself.
func (m *Market) Reserve(buyer *Agent, qty, maxPrice float64) (*Reservation, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("reserve: quantity %g must be positive", qty)
	}
	firms := m.firmSnapshot()
	ls := sim.LockExclusive(m.lockSet(buyer, firms)...)
	defer ls.Unlock()
	m.rollPeriod()

	// A firm detached from the market between snapshot and lock no
	// longer supplies; one attached in that window waits for the next
	// call.
	avail := firms[:0]
	for _, f := range firms {
		if _, ok := m.firms[f.ID()]; ok {
			avail = append(avail, f)
		}
	}

	if m.price > maxPrice+epsilon {
		return nil, fmt.Errorf("reserve %g at cap %g/unit: %w (price %g)", qty, maxPrice, ErrLowPrice, m.price)
	}
	supply := 0.0
	for _, f := range avail {
		supply += f.remaining
	}
	if qty > supply+epsilon {
		m.stockout = true
		return nil, fmt.Errorf("reserve %g: %w (available %g)", qty, ErrOutputInfeasible, supply)
	}
	total := qty * m.price
	payment := m.priceUnit.Scaled(total)
	if !buyer.assets.Covers(payment) {
		return nil, fmt.Errorf("reserve %g for %s: %w", qty, payment, ErrInsufficientAssets)
	}

	if err := buyer.assets.Subtract(payment); err != nil {
		return nil, err
	}
	r := &Reservation{
		market: m,
		buyer:  buyer,
		qty:    qty,
		price:  m.price,
		escrow: payment.Clone(),
	}
	rem := qty
	for _, f := range avail {
		if rem <= epsilon {
			break
		}
		take := f.remaining
		if take > rem {
			take = rem
		}
		if take <= epsilon {
			continue
		}
		f.holdOutput(take)
		r.subs = append(r.subs, subReservation{firm: f, units: take})
		rem -= take
	}
	// Payment shares are proportional to units supplied; the last share
	// is the exact remainder so the parts always sum to the escrow.
	disbursed := make(Bundle)
	for i := range r.subs {
		if i == len(r.subs)-1 {
			r.subs[i].payment = payment.Minus(disbursed)
		} else {
			share := payment.Scaled(r.subs[i].units / qty)
			disbursed.Add(share)
			r.subs[i].payment = share
		}
	}
	return r, nil
}

// firmSnapshot returns the attached firms ordered by id.
func (m *Market) firmSnapshot() []*Firm {
	m.RLock()
	firms := make([]*Firm, 0, len(m.firms))
	for _, f := range m.firms {
		firms = append(firms, f)
	}
	m.RUnlock()
	sort.Slice(firms, func(i, j int) bool { return firms[i].ID() < firms[j].ID() })
	return firms
}

func (m *Market) lockSet(buyer *Agent, firms []*Firm) []sim.Member {
	ms := make([]sim.Member, 0, len(firms)+2)
	ms = append(ms, m)
	if buyer != nil {
		ms = append(ms, buyer)
	}
	for _, f := range firms {
		ms = append(ms, f)
	}
	return ms
}

// rollPeriod lazily resets the per-period counters on first use in a new
// period. Lock held by the caller.
func (m *Market) rollPeriod() {
	s := m.Simulation()
	if s == nil {
		return
	}
	if p := s.Period(); m.periodTag != p {
		m.periodTag = p
		m.sold = 0
		m.stockout = false
	}
}

// noteSold records committed units. Lock held by the caller.
func (m *Market) noteSold(qty float64) {
	m.rollPeriod()
	m.sold += qty
}
