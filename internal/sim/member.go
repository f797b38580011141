package sim

import (
	"sync"
	"sync/atomic"
)

// ID identifies a registered member. 0 means detached: either never added
// to a Simulation or already removed from one. IDs are assigned once, in
// insertion order starting at 1, and are never reused.
type ID uint64

// None is the id of a detached member.
const None ID = 0

// Kind is the registry category a member belongs to. Stage execution and
// typed lookup are scoped by kind.
type Kind uint8

const (
	KindAgent Kind = iota + 1
	KindGood
	KindMarket
	KindInterOpt
	KindIntraOpt
)

func (k Kind) String() string {
	switch k {
	case KindAgent:
		return "agent"
	case KindGood:
		return "good"
	case KindMarket:
		return "market"
	case KindInterOpt:
		return "interopt"
	case KindIntraOpt:
		return "intraopt"
	}
	return "unknown"
}

// Member is the contract every registry-managed object satisfies.
// Concrete members embed MemberCore and declare their category by
// implementing Kind(); everything else is provided by the core.
type Member interface {
	ID() ID
	Kind() Kind
	Simulation() *Simulation

	// Lock/RLock expose the member's own read-write lock. Multi-member
	// operations must go through LockExclusive/LockShared instead of
	// calling these directly on more than one member.
	Lock()
	Unlock()
	RLock()
	RUnlock()

	core() *MemberCore
}

// AddHook is implemented by members that want a callback right after
// insertion, once their id and simulation back-reference are set.
type AddHook interface {
	Added()
}

// RemoveHook is implemented by members that want a callback right before
// removal, while they are still registered.
type RemoveHook interface {
	Removing()
}

// MemberCore is the embeddable implementation of Member (minus Kind).
// The zero value is a detached member ready for Simulation.Add.
type MemberCore struct {
	id      atomic.Uint64
	sim     atomic.Pointer[Simulation]
	removed atomic.Bool
	mu      sync.RWMutex
}

// ID returns the member's registry id, or None when detached.
func (m *MemberCore) ID() ID { return ID(m.id.Load()) }

// Simulation returns the owning registry, or nil when detached.
func (m *MemberCore) Simulation() *Simulation { return m.sim.Load() }

func (m *MemberCore) Lock()    { m.mu.Lock() }
func (m *MemberCore) Unlock()  { m.mu.Unlock() }
func (m *MemberCore) RLock()   { m.mu.RLock() }
func (m *MemberCore) RUnlock() { m.mu.RUnlock() }

func (m *MemberCore) core() *MemberCore { return m }
