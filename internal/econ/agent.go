package econ

import "github.com/erisproject/eris-sub002/internal/sim"

// Agent is a registry member holding an asset bundle, mutable only under
// its exclusive lock. An agent with a utility function is a consumer:
// advancing a period consumes everything held and records the utility
// realized from it.
type Agent struct {
	sim.MemberCore
	name    string
	utility Utility // fixed at construction time

	// Guarded by the member lock.
	assets   Bundle
	consumed Bundle
	realized float64
}

// NewAgent creates a detached agent holding a copy of initial. utility
// may be nil for agents that only trade.
func NewAgent(name string, initial Bundle, utility Utility) *Agent {
	return &Agent{
		name:    name,
		utility: utility,
		assets:  initial.Clone(),
	}
}

func (a *Agent) Kind() sim.Kind { return sim.KindAgent }

func (a *Agent) Name() string { return a.name }

// Utility returns the agent's utility function, or nil.
func (a *Agent) Utility() Utility { return a.utility }

// Assets returns a copy of the current asset bundle.
func (a *Agent) Assets() Bundle {
	a.RLock()
	defer a.RUnlock()
	return a.assets.Clone()
}

// WithAssets runs fn with the live asset bundle under the exclusive
// lock. fn must not retain the bundle.
func (a *Agent) WithAssets(fn func(assets Bundle)) {
	a.Lock()
	defer a.Unlock()
	fn(a.assets)
}

// Credit adds amount to the agent's assets.
func (a *Agent) Credit(amount Bundle) {
	a.Lock()
	a.assets.Add(amount)
	a.Unlock()
}

// RealizedUtility returns the utility recorded at the last period
// advance, 0 for agents without a utility function.
func (a *Agent) RealizedUtility() float64 {
	a.RLock()
	defer a.RUnlock()
	return a.realized
}

// Consumed returns a copy of the bundle cleared at the last advance.
func (a *Agent) Consumed() Bundle {
	a.RLock()
	defer a.RUnlock()
	return a.consumed.Clone()
}

// Advance rolls the agent into the new period: everything held is
// consumed and, when a utility function is attached, valued. Standing
// income is a post-advance effect, not a carryover.
func (a *Agent) Advance(st *sim.Stage) error {
	a.Lock()
	defer a.Unlock()
	if a.utility != nil {
		a.realized = a.utility.Utility(a.assets)
	}
	a.consumed = a.assets
	a.assets = make(Bundle)
	return nil
}
