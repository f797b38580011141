package sim

import (
	"fmt"
	"reflect"
)

// Handle is a shared, type-tagged reference to a Member. The zero Handle
// references nothing and is falsy via OK. Handles stay dereferenceable
// after their member is removed from the registry; the member then
// reports ID() == None. Handles are comparable and usable as map keys:
// two handles are equal exactly when they reference the same member.
type Handle struct {
	m Member
}

// Wrap builds a Handle for m. A nil m yields the zero Handle.
func Wrap(m Member) Handle {
	if m == nil {
		return Handle{}
	}
	return Handle{m: m}
}

// OK reports whether the handle references a member.
func (h Handle) OK() bool { return h.m != nil }

// ID returns the referenced member's id, or None for the zero Handle and
// for detached members.
func (h Handle) ID() ID {
	if h.m == nil {
		return None
	}
	return h.m.ID()
}

// Kind returns the referenced member's kind, or 0 for the zero Handle.
func (h Handle) Kind() Kind {
	if h.m == nil {
		return 0
	}
	return h.m.Kind()
}

// Member returns the referenced member, or nil for the zero Handle.
func (h Handle) Member() Member { return h.m }

func (h Handle) String() string {
	if h.m == nil {
		return "handle(none)"
	}
	return fmt.Sprintf("handle(%s %d)", h.m.Kind(), h.m.ID())
}

// As converts a handle to the concrete (or narrower interface) type T.
// It fails with a *TypeError when the referenced member is not a T, and
// with ErrNotFound for the zero Handle. The conversion never truncates:
// on failure the zero T is returned.
func As[T Member](h Handle) (T, error) {
	var zero T
	if h.m == nil {
		return zero, fmt.Errorf("convert empty handle: %w", ErrNotFound)
	}
	t, ok := h.m.(T)
	if !ok {
		return zero, &TypeError{
			Want: reflect.TypeOf((*T)(nil)).Elem().String(),
			Got:  fmt.Sprintf("%T", h.m),
		}
	}
	return t, nil
}

// MustAs is As for conversions the caller knows cannot fail.
func MustAs[T Member](h Handle) T {
	t, err := As[T](h)
	if err != nil {
		panic(err)
	}
	return t
}
