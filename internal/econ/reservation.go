package econ

import (
	"errors"
	"fmt"
	"sync"

	"github.com/erisproject/eris-sub002/internal/event"
	"github.com/erisproject/eris-sub002/internal/sim"
)

// ReservationState is the lifecycle of an in-flight transaction.
type ReservationState uint8

const (
	ReservationPending ReservationState = iota
	ReservationComplete
	ReservationAborted
)

func (s ReservationState) String() string {
	switch s {
	case ReservationPending:
		return "pending"
	case ReservationComplete:
		return "complete"
	case ReservationAborted:
		return "aborted"
	}
	return "unknown"
}

// subReservation is one firm's slice of a reservation: the output units
// held from it and the payment share it receives on Buy.
type subReservation struct {
	firm    *Firm
	units   float64
	payment Bundle
}

// Reservation is one escrowed market transaction. While pending it holds
// the full payment debited from the buyer and the output capacity held
// at each supplying firm; Buy disburses both sides, Release refunds
// both. No partial state is ever observable: every transition happens
// under exclusive locks on the buyer, the market, and every supplier,
// acquired in id order.
//
// A reservation abandoned while pending leaks the buyer's escrow, so the
// creating scope pairs it with a deferred Close, which releases pending
// reservations and is a no-op on completed or aborted ones.
type Reservation struct {
	mu     sync.Mutex
	state  ReservationState
	market *Market
	buyer  *Agent
	qty    float64
	price  float64 // per unit, fixed at creation
	escrow Bundle
	subs   []subReservation
}

// State returns the reservation's current lifecycle state.
func (r *Reservation) State() ReservationState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Quantity returns the reserved number of units.
func (r *Reservation) Quantity() float64 { return r.qty }

// UnitPrice returns the per-unit price fixed when the reservation was
// created.
func (r *Reservation) UnitPrice() float64 { return r.price }

// Total returns the full payment, in price units.
func (r *Reservation) Total() float64 { return r.qty * r.price }

// Escrow returns a copy of the held payment; empty once the reservation
// leaves pending.
func (r *Reservation) Escrow() Bundle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.escrow.Clone()
}

// Market returns the market the reservation was made in.
func (r *Reservation) Market() *Market { return r.market }

// Buyer returns the reserving agent.
func (r *Reservation) Buyer() *Agent { return r.buyer }

// Buy commits the transaction: every firm receives its payment share and
// gives up its held units, and the buyer is credited the purchased
// output. Fails with ErrNonPending when the reservation already reached
// a terminal state.
func (r *Reservation) Buy() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ReservationPending {
		return fmt.Errorf("buy: %w (state %s)", ErrNonPending, r.state)
	}

	ls := sim.LockExclusive(r.participants()...)
	for _, sub := range r.subs {
		sub.firm.deliverOutput(sub.units, sub.payment)
	}
	r.buyer.assets.Add(r.market.output.Scaled(r.qty))
	r.market.noteSold(r.qty)
	r.escrow = nil
	r.state = ReservationComplete
	ls.Unlock()

	if s := r.market.Simulation(); s != nil {
		event.Emit(s.Bus(), TradeExecuted{
			Market:   r.market.ID(),
			Buyer:    r.buyer.ID(),
			Quantity: r.qty,
			Price:    r.price,
			Payment:  r.qty * r.price,
		})
	}
	return nil
}

// Release aborts the transaction: every firm's held units return to its
// available capacity and the buyer is refunded the full escrow. Fails
// with ErrNonPending when the reservation already reached a terminal
// state.
func (r *Reservation) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.release()
}

// release does the work of Release with r.mu already held.
func (r *Reservation) release() error {
	if r.state != ReservationPending {
		return fmt.Errorf("release: %w (state %s)", ErrNonPending, r.state)
	}

	ls := sim.LockExclusive(r.participants()...)
	for _, sub := range r.subs {
		sub.firm.releaseOutput(sub.units)
	}
	r.buyer.assets.Add(r.escrow)
	refund := r.qty * r.price
	r.escrow = nil
	r.state = ReservationAborted
	ls.Unlock()

	if s := r.market.Simulation(); s != nil {
		event.Emit(s.Bus(), ReservationReleased{
			Market:   r.market.ID(),
			Buyer:    r.buyer.ID(),
			Quantity: r.qty,
			Refund:   refund,
		})
	}
	return nil
}

// Close releases the reservation if it is still pending and is a no-op
// otherwise, so it can be deferred unconditionally at the creation site.
func (r *Reservation) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != ReservationPending {
		return nil
	}
	if err := r.release(); err != nil && !errors.Is(err, ErrNonPending) {
		return err
	}
	return nil
}

func (r *Reservation) participants() []sim.Member {
	ms := make([]sim.Member, 0, len(r.subs)+2)
	ms = append(ms, r.market, r.buyer)
	for _, sub := range r.subs {
		ms = append(ms, sub.firm)
	}
	return ms
}
