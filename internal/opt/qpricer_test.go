package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuantityPricerQuietWithoutStockout(t *testing.T) {
	w := newWorld(t, 10, 4.0)
	o := NewQuantityPricer(w.market, 0.25)
	mustAdd(t, w.s, o)

	changed, err := o.IntraOptimize(stage())
	assert.NoError(t, err)
	assert.False(t, changed)
	assert.InDelta(t, 4.0, w.market.CurrentPrice(), 1e-9)
	assert.Zero(t, o.Tries())
}

func TestQuantityPricerRaisesOnStockout(t *testing.T) {
	w := newWorld(t, 10, 4.0)
	o := NewQuantityPricer(w.market, 0.25)
	mustAdd(t, w.s, o)

	w.tripStockout(t)
	changed, err := o.IntraOptimize(stage())
	assert.NoError(t, err)
	assert.True(t, changed)
	assert.InDelta(t, 5.0, w.market.CurrentPrice(), 1e-9)
	assert.False(t, w.market.WasStockout())
	assert.Equal(t, 1, o.Tries())

	w.tripStockout(t)
	changed, err = o.IntraOptimize(stage())
	assert.NoError(t, err)
	assert.True(t, changed)
	assert.InDelta(t, 6.25, w.market.CurrentPrice(), 1e-9)
	assert.Equal(t, 2, o.Tries())
}

func TestQuantityPricerExhaustsTries(t *testing.T) {
	w := newWorld(t, 10, 4.0)
	o := NewQuantityPricer(w.market, 0.25).WithMaxTries(2)
	mustAdd(t, w.s, o)

	for i := 0; i < 2; i++ {
		w.tripStockout(t)
		changed, err := o.IntraOptimize(stage())
		assert.NoError(t, err)
		assert.True(t, changed)
	}

	// Out of tries: the stockout stays on the books for the
	// inter-period stepper to see.
	w.tripStockout(t)
	changed, err := o.IntraOptimize(stage())
	assert.NoError(t, err)
	assert.False(t, changed)
	assert.InDelta(t, 6.25, w.market.CurrentPrice(), 1e-9)
	assert.True(t, w.market.WasStockout())
}

func TestQuantityPricerResetRearms(t *testing.T) {
	w := newWorld(t, 10, 4.0)
	o := NewQuantityPricer(w.market, 0.25).WithMaxTries(2)
	mustAdd(t, w.s, o)

	for i := 0; i < 2; i++ {
		w.tripStockout(t)
		_, err := o.IntraOptimize(stage())
		assert.NoError(t, err)
	}
	w.tripStockout(t)

	assert.NoError(t, o.IntraReset(stage()))
	assert.Zero(t, o.Tries())

	changed, err := o.IntraOptimize(stage())
	assert.NoError(t, err)
	assert.True(t, changed)
	assert.InDelta(t, 7.8125, w.market.CurrentPrice(), 1e-9)
}

func TestQuantityPricerApplyIsIdle(t *testing.T) {
	w := newWorld(t, 10, 4.0)
	o := NewQuantityPricer(w.market, 0.25)
	mustAdd(t, w.s, o)

	assert.NoError(t, o.IntraApply(stage()))
	assert.InDelta(t, 4.0, w.market.CurrentPrice(), 1e-9)
}
