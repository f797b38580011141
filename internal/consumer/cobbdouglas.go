// Package consumer provides utility functions for consuming agents.
package consumer

import (
	"math"

	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/sim"
)

// CobbDouglas is u(b) = coef · Π b[g]^exponents[g]. Goods missing from
// the bundle contribute 0^exp: utility is zero whenever a positive
// exponent's good is absent.
type CobbDouglas struct {
	coef      float64
	exponents map[sim.ID]float64
}

func NewCobbDouglas(coef float64, exponents map[sim.ID]float64) *CobbDouglas {
	exps := make(map[sim.ID]float64, len(exponents))
	for g, e := range exponents {
		exps[g] = e
	}
	return &CobbDouglas{coef: coef, exponents: exps}
}

func (u *CobbDouglas) Utility(b econ.Bundle) float64 {
	v := u.coef
	for g, e := range u.exponents {
		v *= math.Pow(b[g], e)
	}
	return v
}

// Marginal returns ∂u/∂b[good]. At a zero quantity with exponent below
// one the true derivative diverges; +Inf is returned.
func (u *CobbDouglas) Marginal(b econ.Bundle, good sim.ID) float64 {
	e, ok := u.exponents[good]
	if !ok || e == 0 {
		return 0
	}
	v := u.coef * e
	for g, ge := range u.exponents {
		if g == good {
			v *= math.Pow(b[g], ge-1)
		} else {
			v *= math.Pow(b[g], ge)
		}
	}
	return v
}
