package sim

import (
	"math/rand"

	"go.uber.org/zap"
)

// Stage is the context handed to every scheduler callback. The RNG is
// owned by the executing worker; callbacks must not retain it past the
// call.
type Stage struct {
	Sim       *Simulation
	Period    uint64
	Iteration int // intra-period fixed-point iteration, 0 elsewhere
	RNG       *rand.Rand
	Log       *zap.Logger
}

// The scheduler probes members for the capability matching each stage
// and skips members that do not implement it. InterOptimize must only
// calculate; mutations belong in InterApply. IntraOptimize reports
// whether it changed anything: the intra-period loop repeats while any
// optimizer reports a change, so an optimizer that unconditionally
// reports true never converges.

// InterOptimizer runs between periods, before anything mutates.
type InterOptimizer interface {
	InterOptimize(st *Stage) error
}

// InterApplier commits what InterOptimize calculated.
type InterApplier interface {
	InterApply(st *Stage) error
}

// Advancer rolls an agent into the new period (asset clearing and the
// like). Runs after InterApply.
type Advancer interface {
	Advance(st *Stage) error
}

// PostAdvancer runs after every agent has advanced, for effects that
// must observe the post-advance world (income crediting, say).
type PostAdvancer interface {
	PostAdvance(st *Stage) error
}

// IntraInitializer runs once per period before the intra-period loop.
type IntraInitializer interface {
	IntraInitialize(st *Stage) error
}

// IntraResetter runs once per period, after every IntraInitialize.
type IntraResetter interface {
	IntraReset(st *Stage) error
}

// IntraOptimizer runs once per fixed-point iteration.
type IntraOptimizer interface {
	IntraOptimize(st *Stage) (changed bool, err error)
}

// IntraApplier commits the converged intra-period state. Mandatory for
// KindIntraOpt members; Add enforces it.
type IntraApplier interface {
	IntraApply(st *Stage) error
}

// SequentialRunner marks a member whose stage callbacks must run on the
// coordinating goroutine rather than the worker pool (single-goroutine
// script VMs, say). Sequential members run after the pooled ones within
// the same stage barrier.
type SequentialRunner interface {
	SequentialRun() bool
}

func isSequential(m Member) bool {
	if sr, ok := m.(SequentialRunner); ok {
		return sr.SequentialRun()
	}
	return false
}
