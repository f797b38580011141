package econ

import "github.com/erisproject/eris-sub002/internal/sim"

// Firm is a supplier: a registry member with a per-period production
// capacity, measured in units of the output of the market it is attached
// to. Reservations hold capacity in escrow until they are bought or
// released; payments accumulate in the firm's assets.
type Firm struct {
	sim.MemberCore
	name string

	// Guarded by the member lock.
	capacity  float64
	remaining float64
	held      float64
	assets    Bundle
}

func NewFirm(name string, capacity float64) *Firm {
	return &Firm{
		name:      name,
		capacity:  capacity,
		remaining: capacity,
		assets:    make(Bundle),
	}
}

func (f *Firm) Kind() sim.Kind { return sim.KindAgent }

func (f *Firm) Name() string { return f.name }

// Capacity returns the per-period production capacity.
func (f *Firm) Capacity() float64 {
	f.RLock()
	defer f.RUnlock()
	return f.capacity
}

// Available returns the capacity not yet reserved this period.
func (f *Firm) Available() float64 {
	f.RLock()
	defer f.RUnlock()
	return f.remaining
}

// Held returns the capacity escrowed by pending reservations.
func (f *Firm) Held() float64 {
	f.RLock()
	defer f.RUnlock()
	return f.held
}

// Assets returns a copy of the firm's asset bundle.
func (f *Firm) Assets() Bundle {
	f.RLock()
	defer f.RUnlock()
	return f.assets.Clone()
}

// Advance resets the period capacity. Revenue is retained.
func (f *Firm) Advance(st *sim.Stage) error {
	f.Lock()
	f.remaining = f.capacity
	f.held = 0
	f.Unlock()
	return nil
}

// The reservation protocol below runs with the firm's exclusive lock
// already held as part of a LockSet; no locking here.

func (f *Firm) holdOutput(units float64) {
	f.remaining -= units
	f.held += units
}

func (f *Firm) releaseOutput(units float64) {
	f.held -= units
	f.remaining += units
}

func (f *Firm) deliverOutput(units float64, payment Bundle) {
	f.held -= units
	f.assets.Add(payment)
}
