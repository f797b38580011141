package econ

import "github.com/erisproject/eris-sub002/internal/sim"

// Utility values a bundle of goods. Implementations must be pure: safe
// for concurrent calls, no retained state.
type Utility interface {
	// Utility returns the value the owner assigns to holding b.
	Utility(b Bundle) float64

	// Marginal returns the first derivative of Utility with respect to
	// the quantity of one good, evaluated at b.
	Marginal(b Bundle, good sim.ID) float64
}
