package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a lookup or removal of an id with no live member.
	ErrNotFound = errors.New("member not found")

	// ErrKindMismatch reports a kind-scoped lookup that found the id
	// registered under a different kind.
	ErrKindMismatch = errors.New("member kind mismatch")

	// ErrDetached reports an operation that requires a registered member
	// invoked on one that was never added or has been removed.
	ErrDetached = errors.New("member is detached")

	// ErrAlreadyAdded reports a second Add of a member that is currently
	// registered. Member objects are single-use: a removed member cannot
	// be re-added either (that case reports ErrDetached).
	ErrAlreadyAdded = errors.New("member already added")

	// ErrIntraApplyRequired reports an Add of a KindIntraOpt member that
	// does not implement IntraApplier.
	ErrIntraApplyRequired = errors.New("intra-period optimizer must implement IntraApplier")
)

// TypeError reports a checked handle conversion to an incompatible
// concrete type.
type TypeError struct {
	Want string
	Got  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("cannot convert member of type %s to %s", e.Got, e.Want)
}
