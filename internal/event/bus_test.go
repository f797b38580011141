package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct{ n int }
type pong struct{ s string }

func TestBusHoldsEventsUntilSwap(t *testing.T) {
	b := NewBus()
	var got []int
	Subscribe(b, func(ev ping) { got = append(got, ev.n) })

	Emit(b, ping{1})
	Emit(b, ping{2})
	b.DispatchAll()
	assert.Empty(t, got, "events stay in the back buffer until the swap")

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []int{1, 2}, got)
}

func TestBusPreservesEmitOrder(t *testing.T) {
	b := NewBus()
	var got []int
	Subscribe(b, func(ev ping) { got = append(got, ev.n) })

	for i := 1; i <= 5; i++ {
		Emit(b, ping{i})
	}
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestBusRoutesByType(t *testing.T) {
	b := NewBus()
	var pings, pongs int
	Subscribe(b, func(ping) { pings++ })
	Subscribe(b, func(pong) { pongs++ })

	Emit(b, ping{1})
	Emit(b, pong{"a"})
	Emit(b, pong{"b"})
	b.SwapBuffers()
	b.DispatchAll()

	assert.Equal(t, 1, pings)
	assert.Equal(t, 2, pongs)
}

func TestBusFansOutToEveryHandler(t *testing.T) {
	b := NewBus()
	var first, second []int
	Subscribe(b, func(ev ping) { first = append(first, ev.n) })
	Subscribe(b, func(ev ping) { second = append(second, ev.n) })

	Emit(b, ping{7})
	b.SwapBuffers()
	b.DispatchAll()

	assert.Equal(t, []int{7}, first)
	assert.Equal(t, []int{7}, second)
}

func TestBusHandlerEmissionsLandInNextCycle(t *testing.T) {
	b := NewBus()
	var got []int
	Subscribe(b, func(ev ping) {
		got = append(got, ev.n)
		if ev.n < 3 {
			Emit(b, ping{ev.n + 1})
		}
	})

	Emit(b, ping{1})
	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []int{1}, got)

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []int{1, 2}, got)

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestBusWithoutSubscribersDropsEvents(t *testing.T) {
	b := NewBus()
	Emit(b, ping{1})
	b.SwapBuffers()
	b.DispatchAll()
	// Nothing to assert beyond not panicking.
}
