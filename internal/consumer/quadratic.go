package consumer

import (
	"github.com/erisproject/eris-sub002/internal/econ"
	"github.com/erisproject/eris-sub002/internal/sim"
)

// Quadratic is u(b) = Σ linear[g]·b[g] + Σ quad[g][h]·b[g]·b[h], where
// each unordered pair appears once in quad (quad[g][g] weights b[g]²).
// Negative quadratic terms give diminishing and eventually negative
// marginal utility, which keeps spenders from sinking everything into
// one good.
type Quadratic struct {
	linear map[sim.ID]float64
	quad   map[sim.ID]map[sim.ID]float64
}

func NewQuadratic(linear map[sim.ID]float64) *Quadratic {
	lin := make(map[sim.ID]float64, len(linear))
	for g, c := range linear {
		lin[g] = c
	}
	return &Quadratic{linear: lin, quad: make(map[sim.ID]map[sim.ID]float64)}
}

// SetQuad sets the coefficient on b[g]·b[h]. Order of g and h does not
// matter; the last call for a pair wins.
func (u *Quadratic) SetQuad(g, h sim.ID, coef float64) *Quadratic {
	if g > h {
		g, h = h, g
	}
	row := u.quad[g]
	if row == nil {
		row = make(map[sim.ID]float64)
		u.quad[g] = row
	}
	row[h] = coef
	return u
}

func (u *Quadratic) Utility(b econ.Bundle) float64 {
	v := 0.0
	for g, c := range u.linear {
		v += c * b[g]
	}
	for g, row := range u.quad {
		for h, c := range row {
			v += c * b[g] * b[h]
		}
	}
	return v
}

func (u *Quadratic) Marginal(b econ.Bundle, good sim.ID) float64 {
	v := u.linear[good]
	for g, row := range u.quad {
		for h, c := range row {
			switch {
			case g == good && h == good:
				v += 2 * c * b[good]
			case g == good:
				v += c * b[h]
			case h == good:
				v += c * b[g]
			}
		}
	}
	return v
}
