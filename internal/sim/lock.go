package sim

import "sort"

// LockSet holds locks on one or more members, acquired in ascending id
// order and released in reverse. Acquiring every multi-member lock set
// through this path is the deadlock-avoidance discipline: two operations
// locking overlapping sets always request the shared members in the same
// relative order.
//
// A member listed more than once is locked once, so an operation whose
// participant roles overlap (a buyer that is also a supplier) does not
// self-deadlock. Nested acquisition of a lock already held by the caller
// through a separate LockSet is not re-entrant and will deadlock; one
// operation takes one lock set.
type LockSet struct {
	members []Member
	shared  bool
}

// LockExclusive acquires the exclusive lock of every given member, in id
// order. Nil members are skipped. Release with Unlock, usually deferred.
func LockExclusive(members ...Member) *LockSet {
	ls := &LockSet{members: lockOrder(members)}
	for _, m := range ls.members {
		m.Lock()
	}
	return ls
}

// LockShared acquires the shared (read) lock of every given member, in
// id order.
func LockShared(members ...Member) *LockSet {
	ls := &LockSet{members: lockOrder(members), shared: true}
	for _, m := range ls.members {
		m.RLock()
	}
	return ls
}

// Unlock releases every held lock in reverse acquisition order. The set
// must not be reused afterwards.
func (ls *LockSet) Unlock() {
	for i := len(ls.members) - 1; i >= 0; i-- {
		if ls.shared {
			ls.members[i].RUnlock()
		} else {
			ls.members[i].Unlock()
		}
	}
	ls.members = nil
}

// lockOrder returns the distinct non-nil members sorted by id. Members
// are expected to be registered when locked as a set: detached members
// all carry id 0 and have no defined mutual order.
func lockOrder(members []Member) []Member {
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if m == nil {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == m {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
