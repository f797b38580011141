package econ

import "github.com/erisproject/eris-sub002/internal/sim"

// Good is a registry member whose id names one dimension of a Bundle.
type Good struct {
	sim.MemberCore
	name string
}

func NewGood(name string) *Good {
	return &Good{name: name}
}

func (g *Good) Kind() sim.Kind { return sim.KindGood }

func (g *Good) Name() string { return g.name }
