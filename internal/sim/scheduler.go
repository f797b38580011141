package sim

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/erisproject/eris-sub002/internal/event"
)

// RunStats describes one completed period.
type RunStats struct {
	Period          uint64
	IntraIterations int
	Elapsed         time.Duration
}

// Run advances the simulation by exactly one period.
//
// From the second period on it first runs the inter-period stages:
// InterOptimize and InterApply over every interopt member, Advance over
// every agent, then PostAdvance over every interopt member. Every period
// then runs the intra-period stages over the intraopt members:
// IntraInitialize and IntraReset once each, IntraOptimize repeated until
// a full pass reports no change, and IntraApply once to commit.
//
// Stage boundaries are barriers; within a stage, callbacks for distinct
// members run in unspecified order, fanned out across the worker pool
// when one is configured. The first callback error aborts the run and is
// returned; remaining stages do not execute. Events emitted during the
// period are dispatched after the final stage commits.
func (s *Simulation) Run() (RunStats, error) {
	start := time.Now()
	period := s.period.Add(1)
	stats := RunStats{Period: period}
	event.Emit(s.bus, PeriodBegan{Period: period})

	if period > 1 {
		if err := s.runStage("interOptimize", KindInterOpt, func(m Member, st *Stage) error {
			if o, ok := m.(InterOptimizer); ok {
				return o.InterOptimize(st)
			}
			return nil
		}); err != nil {
			return stats, err
		}
		if err := s.runStage("interApply", KindInterOpt, func(m Member, st *Stage) error {
			if o, ok := m.(InterApplier); ok {
				return o.InterApply(st)
			}
			return nil
		}); err != nil {
			return stats, err
		}
		if err := s.runStage("advance", KindAgent, func(m Member, st *Stage) error {
			if a, ok := m.(Advancer); ok {
				return a.Advance(st)
			}
			return nil
		}); err != nil {
			return stats, err
		}
		if err := s.runStage("postAdvance", KindInterOpt, func(m Member, st *Stage) error {
			if o, ok := m.(PostAdvancer); ok {
				return o.PostAdvance(st)
			}
			return nil
		}); err != nil {
			return stats, err
		}
	}

	if err := s.runStage("intraInitialize", KindIntraOpt, func(m Member, st *Stage) error {
		if o, ok := m.(IntraInitializer); ok {
			return o.IntraInitialize(st)
		}
		return nil
	}); err != nil {
		return stats, err
	}
	if err := s.runStage("intraReset", KindIntraOpt, func(m Member, st *Stage) error {
		if o, ok := m.(IntraResetter); ok {
			return o.IntraReset(st)
		}
		return nil
	}); err != nil {
		return stats, err
	}

	for {
		stats.IntraIterations++
		changed, err := s.execStage("intraOptimize", KindIntraOpt, stats.IntraIterations,
			func(m Member, st *Stage) (bool, error) {
				if o, ok := m.(IntraOptimizer); ok {
					return o.IntraOptimize(st)
				}
				return false, nil
			})
		if err != nil {
			return stats, err
		}
		if !changed {
			break
		}
	}

	if err := s.runStage("intraApply", KindIntraOpt, func(m Member, st *Stage) error {
		if a, ok := m.(IntraApplier); ok {
			return a.IntraApply(st)
		}
		return nil
	}); err != nil {
		return stats, err
	}

	stats.Elapsed = time.Since(start)
	event.Emit(s.bus, PeriodEnded{Period: period, IntraIterations: stats.IntraIterations})
	s.bus.SwapBuffers()
	s.bus.DispatchAll()

	s.log.Debug("period complete",
		zap.Uint64("period", period),
		zap.Int("intra_iterations", stats.IntraIterations),
		zap.Duration("elapsed", stats.Elapsed))
	return stats, nil
}

func (s *Simulation) runStage(name string, kind Kind, fn func(Member, *Stage) error) error {
	_, err := s.execStage(name, kind, 0, func(m Member, st *Stage) (bool, error) {
		return false, fn(m, st)
	})
	return err
}

// execStage runs fn over every live member of a kind and waits for all
// of them: the return is the stage barrier. With a worker pool, members
// are distributed over one goroutine per worker, each drawing from its
// own generator; SequentialRun members execute afterwards on the calling
// goroutine.
func (s *Simulation) execStage(name string, kind Kind, iteration int, fn func(Member, *Stage) (bool, error)) (bool, error) {
	members := s.kindSnapshot(kind)
	if len(members) == 0 {
		return false, nil
	}
	period := s.period.Load()

	var pooled, inline []Member
	if s.workers > 1 {
		for _, m := range members {
			if isSequential(m) {
				inline = append(inline, m)
			} else {
				pooled = append(pooled, m)
			}
		}
	} else {
		inline = members
	}

	changed := false
	if len(pooled) > 0 {
		var anyChanged, failed atomic.Bool
		errCh := make(chan error, 1)
		jobs := make(chan Member)
		var wg sync.WaitGroup
		for i := 0; i < s.workers; i++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()
				st := &Stage{Sim: s, Period: period, Iteration: iteration, RNG: s.rngs[worker], Log: s.log}
				for m := range jobs {
					if failed.Load() {
						continue
					}
					c, err := fn(m, st)
					if err != nil {
						if failed.CompareAndSwap(false, true) {
							errCh <- fmt.Errorf("%s: %s %d: %w", name, m.Kind(), m.ID(), err)
						}
						continue
					}
					if c {
						anyChanged.Store(true)
					}
				}
			}(i)
		}
		for _, m := range pooled {
			jobs <- m
		}
		close(jobs)
		wg.Wait()
		select {
		case err := <-errCh:
			return false, err
		default:
		}
		changed = anyChanged.Load()
	}

	if len(inline) > 0 {
		st := &Stage{Sim: s, Period: period, Iteration: iteration, RNG: s.rngs[0], Log: s.log}
		for _, m := range inline {
			c, err := fn(m, st)
			if err != nil {
				return false, fmt.Errorf("%s: %s %d: %w", name, m.Kind(), m.ID(), err)
			}
			changed = changed || c
		}
	}
	return changed, nil
}
