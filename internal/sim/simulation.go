package sim

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/erisproject/eris-sub002/internal/event"
	"github.com/erisproject/eris-sub002/internal/rng"
)

// Options configures a Simulation.
type Options struct {
	// Workers is the number of goroutines used to execute a stage's
	// callbacks. 0 or 1 runs every stage inline on the caller.
	Workers int

	// Seed is the base RNG seed. 0 derives the seed from ERIS_RNG_SEED
	// or, absent that, from OS entropy. Worker i draws from a generator
	// seeded with base+i.
	Seed uint64

	// Log receives registry and scheduler diagnostics. nil disables.
	Log *zap.Logger
}

// Simulation is the entity registry and period scheduler. It owns every
// registered member, the dependency graph used for cascading removal,
// the event bus, and the per-worker random generators.
//
// Registry operations (Add, Lookup, Remove, DependsOn) are safe for
// concurrent use. Run is not: one Run call at a time.
type Simulation struct {
	log *zap.Logger
	bus *event.Bus

	mu      sync.RWMutex
	nextID  ID
	members map[ID]Member
	byKind  map[Kind]map[ID]Member
	deps    map[ID]map[ID]struct{} // dependency id -> ids removed with it

	workers int
	rngs    []*rand.Rand
	period  atomic.Uint64
}

func New(opts Options) *Simulation {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	base := opts.Seed
	if base == 0 {
		base = rng.Seed()
	}
	seeder := rng.NewSeeder(base)
	rngs := make([]*rand.Rand, workers)
	for i := range rngs {
		rngs[i] = seeder.Rand(i)
	}
	log.Debug("simulation created",
		zap.Int("workers", workers),
		zap.Uint64("seed", base))
	return &Simulation{
		log:     log,
		bus:     event.NewBus(),
		members: make(map[ID]Member),
		byKind:  make(map[Kind]map[ID]Member),
		deps:    make(map[ID]map[ID]struct{}),
		workers: workers,
		rngs:    rngs,
	}
}

// Bus returns the simulation's event bus. Events emitted during a period
// are dispatched at the end of that period's Run call.
func (s *Simulation) Bus() *event.Bus { return s.bus }

// Period returns the number of the last started period, 0 before the
// first Run.
func (s *Simulation) Period() uint64 { return s.period.Load() }

// Add registers m, assigns it the next id, and invokes its AddHook if it
// has one. Ids start at 1 and are never reused. A KindIntraOpt member
// must implement IntraApplier. Member objects are single-use: adding an
// already-registered or previously-removed member fails.
func (s *Simulation) Add(m Member) (Handle, error) {
	if m == nil {
		return Handle{}, fmt.Errorf("add: nil member")
	}
	kind := m.Kind()
	if kind == KindIntraOpt {
		if _, ok := m.(IntraApplier); !ok {
			return Handle{}, fmt.Errorf("add %T: %w", m, ErrIntraApplyRequired)
		}
	}
	c := m.core()

	s.mu.Lock()
	if c.removed.Load() {
		s.mu.Unlock()
		return Handle{}, fmt.Errorf("add %T: %w", m, ErrDetached)
	}
	if c.id.Load() != 0 {
		s.mu.Unlock()
		return Handle{}, fmt.Errorf("add %T: %w", m, ErrAlreadyAdded)
	}
	s.nextID++
	id := s.nextID
	c.id.Store(uint64(id))
	c.sim.Store(s)
	s.members[id] = m
	km := s.byKind[kind]
	if km == nil {
		km = make(map[ID]Member)
		s.byKind[kind] = km
	}
	km[id] = m
	s.mu.Unlock()

	if hook, ok := m.(AddHook); ok {
		hook.Added()
	}
	event.Emit(s.bus, MemberAdded{ID: id, Kind: kind})
	s.log.Debug("member added",
		zap.Uint64("id", uint64(id)),
		zap.Stringer("kind", kind))
	return Handle{m: m}, nil
}

// Lookup returns a handle to the live member with the given id.
func (s *Simulation) Lookup(id ID) (Handle, error) {
	s.mu.RLock()
	m, ok := s.members[id]
	s.mu.RUnlock()
	if !ok {
		return Handle{}, fmt.Errorf("lookup %d: %w", id, ErrNotFound)
	}
	return Handle{m: m}, nil
}

// LookupKind returns a handle to the live member with the given id,
// failing with ErrKindMismatch when the id is registered under a
// different kind.
func (s *Simulation) LookupKind(kind Kind, id ID) (Handle, error) {
	s.mu.RLock()
	m, ok := s.byKind[kind][id]
	var otherKind bool
	if !ok {
		_, otherKind = s.members[id]
	}
	s.mu.RUnlock()
	if ok {
		return Handle{m: m}, nil
	}
	if otherKind {
		return Handle{}, fmt.Errorf("lookup %s %d: %w", kind, id, ErrKindMismatch)
	}
	return Handle{}, fmt.Errorf("lookup %s %d: %w", kind, id, ErrNotFound)
}

// Has reports whether id is registered.
func (s *Simulation) Has(id ID) bool {
	s.mu.RLock()
	_, ok := s.members[id]
	s.mu.RUnlock()
	return ok
}

// Remove detaches the member with the given id and cascades to every
// member that declared a dependency on it. The member's RemoveHook runs
// first, while it is still registered; then its id is cleared to None.
// Removal is idempotent: removing an unknown or already-removed id is a
// no-op. Reports whether anything was removed.
func (s *Simulation) Remove(id ID) bool {
	s.mu.RLock()
	m, ok := s.members[id]
	s.mu.RUnlock()
	if !ok {
		return false
	}

	if hook, ok := m.(RemoveHook); ok {
		hook.Removing()
	}

	s.mu.Lock()
	if _, still := s.members[id]; !still {
		// Lost a race with another removal (possibly the hook's own).
		s.mu.Unlock()
		return false
	}
	kind := m.Kind()
	delete(s.members, id)
	delete(s.byKind[kind], id)
	dependents := s.deps[id]
	delete(s.deps, id)
	c := m.core()
	c.id.Store(0)
	c.sim.Store(nil)
	c.removed.Store(true)
	s.mu.Unlock()

	event.Emit(s.bus, MemberRemoved{ID: id, Kind: kind})
	s.log.Debug("member removed",
		zap.Uint64("id", uint64(id)),
		zap.Stringer("kind", kind),
		zap.Int("dependents", len(dependents)))

	// The dependent set was erased above, before recursing, so mutual
	// dependencies terminate: by the time a cycle loops back here the
	// id no longer resolves.
	for dep := range dependents {
		s.Remove(dep)
	}
	return true
}

// DependsOn records that dependent must be removed whenever dependency
// is removed. Cycles are allowed.
func (s *Simulation) DependsOn(dependent, dependency ID) {
	if dependent == None || dependency == None {
		return
	}
	s.mu.Lock()
	set := s.deps[dependency]
	if set == nil {
		set = make(map[ID]struct{})
		s.deps[dependency] = set
	}
	set[dependent] = struct{}{}
	s.mu.Unlock()
}

// Dependents returns the ids currently recorded to cascade when id is
// removed, in ascending order.
func (s *Simulation) Dependents(id ID) []ID {
	s.mu.RLock()
	set := s.deps[id]
	out := make([]ID, 0, len(set))
	for dep := range set {
		out = append(out, dep)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DependencyCount returns the number of ids with recorded dependents.
func (s *Simulation) DependencyCount() int {
	s.mu.RLock()
	n := len(s.deps)
	s.mu.RUnlock()
	return n
}

// MembersOf returns handles to every live member of a kind, ordered
// by id.
func (s *Simulation) MembersOf(kind Kind) []Handle {
	ms := s.kindSnapshot(kind)
	hs := make([]Handle, len(ms))
	for i, m := range ms {
		hs[i] = Handle{m: m}
	}
	return hs
}

// Count returns the number of live members.
func (s *Simulation) Count() int {
	s.mu.RLock()
	n := len(s.members)
	s.mu.RUnlock()
	return n
}

// CountOf returns the number of live members of a kind.
func (s *Simulation) CountOf(kind Kind) int {
	s.mu.RLock()
	n := len(s.byKind[kind])
	s.mu.RUnlock()
	return n
}

func (s *Simulation) kindSnapshot(kind Kind) []Member {
	s.mu.RLock()
	km := s.byKind[kind]
	ms := make([]Member, 0, len(km))
	for _, m := range km {
		ms = append(ms, m)
	}
	s.mu.RUnlock()
	sort.Slice(ms, func(i, j int) bool { return ms[i].ID() < ms[j].ID() })
	return ms
}
