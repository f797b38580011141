// Package event carries typed notifications across a period boundary.
package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted during period N are
// delivered when the scheduler dispatches at the end of the period, after
// the final stage barrier; events a handler emits while dispatching land
// in the next period's buffer. Emit may be called from any worker
// goroutine; SwapBuffers and DispatchAll belong to the coordinating
// goroutine at the period boundary.
type Bus struct {
	mu       sync.Mutex // protects back buffer and handler registration
	front    map[reflect.Type][]any
	back     map[reflect.Type][]any
	handlers map[reflect.Type][]any
}

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]any),
		back:     make(map[reflect.Type][]any),
		handlers: make(map[reflect.Type][]any),
	}
}

// Emit queues an event into the back buffer for the next dispatch.
func Emit[T any](b *Bus, event T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	b.back[t] = append(b.back[t], event)
	b.mu.Unlock()
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], fn)
}

// SwapBuffers rotates back→front and clears the new back buffer.
func (b *Bus) SwapBuffers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.front, b.back = b.back, b.front
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
}

// DispatchAll delivers every front-buffer event to its subscribed
// handlers, in emit order per event type.
func (b *Bus) DispatchAll() {
	b.mu.Lock()
	front := b.front
	handlers := b.handlers
	b.mu.Unlock()
	for t, events := range front {
		hs := handlers[t]
		for _, ev := range events {
			for _, h := range hs {
				// Safe: Subscribe and Emit key handlers and events by
				// the same type.
				callHandler(h, ev)
			}
		}
	}
}

func callHandler(handler any, event any) {
	reflect.ValueOf(handler).Call([]reflect.Value{reflect.ValueOf(event)})
}
