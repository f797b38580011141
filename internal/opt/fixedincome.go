// Package opt provides the stock optimizers that drive agents, firms
// and markets between and within periods.
package opt

import (
	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/sim"
)

// FixedIncome credits an agent with the same bundle every period. The
// credit lands after the agent's advance step so it is not consumed by
// the end-of-period reset.
type FixedIncome struct {
	sim.MemberCore
	agent  *econ.Agent
	income econ.Bundle
}

func NewFixedIncome(agent *econ.Agent, income econ.Bundle) *FixedIncome {
	return &FixedIncome{agent: agent, income: income.Clone()}
}

func (o *FixedIncome) Kind() sim.Kind { return sim.KindInterOpt }

// Added ties the income stream's lifetime to its recipient.
func (o *FixedIncome) Added() {
	o.Simulation().DependsOn(o.ID(), o.agent.ID())
}

func (o *FixedIncome) PostAdvance(st *sim.Stage) error {
	o.agent.Credit(o.income)
	return nil
}

// Income returns a copy of the per-period credit.
func (o *FixedIncome) Income() econ.Bundle { return o.income.Clone() }
