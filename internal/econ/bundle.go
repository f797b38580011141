// Package econ holds the model economy that exercises the simulation
// core: goods, asset bundles, agents, firms, and the market reservation
// protocol.
package econ

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/erisproject/eris-sub002/internal/sim"
)

// epsilon absorbs float dust when comparing and pruning quantities.
const epsilon = 1e-9

// Bundle maps good ids to (non-negative) quantities. The zero value is
// an empty bundle usable for reads; mutating methods require a non-nil
// map. Bundles are not goroutine-safe: a bundle inside a member is
// guarded by that member's lock.
type Bundle map[sim.ID]float64

// Clone returns an independent copy.
func (b Bundle) Clone() Bundle {
	out := make(Bundle, len(b))
	for g, q := range b {
		out[g] = q
	}
	return out
}

// Empty reports whether the bundle holds no positive quantity.
func (b Bundle) Empty() bool {
	for _, q := range b {
		if q > epsilon {
			return false
		}
	}
	return true
}

// Add adds every quantity in other to b.
func (b Bundle) Add(other Bundle) {
	for g, q := range other {
		b.set(g, b[g]+q)
	}
}

// AddScaled adds f times every quantity in other to b.
func (b Bundle) AddScaled(other Bundle, f float64) {
	for g, q := range other {
		b.set(g, b[g]+q*f)
	}
}

// Scaled returns a new bundle with every quantity multiplied by f.
func (b Bundle) Scaled(f float64) Bundle {
	out := make(Bundle, len(b))
	for g, q := range b {
		if v := q * f; v > epsilon {
			out[g] = v
		}
	}
	return out
}

// Covers reports whether b holds at least every quantity in other.
func (b Bundle) Covers(other Bundle) bool {
	for g, q := range other {
		if b[g]+epsilon < q {
			return false
		}
	}
	return true
}

// Multiples returns how many times other fits into b: the minimum over
// other's goods of b[g]/other[g]. An empty other fits infinitely.
func (b Bundle) Multiples(other Bundle) float64 {
	m := math.Inf(1)
	for g, q := range other {
		if q <= epsilon {
			continue
		}
		if r := b[g] / q; r < m {
			m = r
		}
	}
	return m
}

// Subtract removes every quantity in other from b. It fails with
// ErrInsufficientAssets, leaving b unchanged, when any quantity would go
// negative.
func (b Bundle) Subtract(other Bundle) error {
	if !b.Covers(other) {
		return fmt.Errorf("subtract %s from %s: %w", other, b, ErrInsufficientAssets)
	}
	for g, q := range other {
		b.set(g, b[g]-q)
	}
	return nil
}

// Minus returns b − other as a new bundle, clamping each quantity at
// zero.
func (b Bundle) Minus(other Bundle) Bundle {
	out := make(Bundle, len(b))
	for g, q := range b {
		if v := q - other[g]; v > epsilon {
			out[g] = v
		}
	}
	return out
}

// TransferTo moves amount from b into to, atomically from the caller's
// point of view: on error nothing moves. Locking is the caller's job.
func (b Bundle) TransferTo(to Bundle, amount Bundle) error {
	if err := b.Subtract(amount); err != nil {
		return err
	}
	to.Add(amount)
	return nil
}

// set stores a quantity, pruning entries that are zero within epsilon.
func (b Bundle) set(g sim.ID, q float64) {
	if q < -epsilon {
		// Callers check Covers first; landing here is a bug upstream.
		q = 0
	}
	if q <= epsilon {
		delete(b, g)
		return
	}
	b[g] = q
}

func (b Bundle) String() string {
	if len(b) == 0 {
		return "{}"
	}
	ids := make([]sim.ID, 0, len(b))
	for g := range b {
		ids = append(ids, g)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var sb strings.Builder
	sb.WriteByte('{')
	for i, g := range ids {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d:%g", uint64(g), b[g])
	}
	sb.WriteByte('}')
	return sb.String()
}
