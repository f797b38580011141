package sim

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockOrderSortsAndDedupes(t *testing.T) {
	s := New(Options{})
	a := &stubMember{kind: KindAgent}
	b := &stubMember{kind: KindAgent}
	c := &stubMember{kind: KindAgent}
	for _, m := range []*stubMember{a, b, c} {
		_, err := s.Add(m)
		assert.NoError(t, err)
	}

	got := lockOrder([]Member{c, a, nil, b, a, c})
	assert.Equal(t, []Member{a, b, c}, got)

	assert.Empty(t, lockOrder(nil))
	assert.Empty(t, lockOrder([]Member{nil, nil}))
}

func TestLockSetToleratesDuplicates(t *testing.T) {
	s := New(Options{})
	a := &stubMember{kind: KindAgent}
	_, err := s.Add(a)
	assert.NoError(t, err)

	// Would deadlock if the same member were locked twice.
	ls := LockExclusive(a, a, a)
	ls.Unlock()

	ls = LockShared(a, a)
	ls.Unlock()
}

func TestLockSharedAllowsConcurrentReaders(t *testing.T) {
	s := New(Options{})
	a := &stubMember{kind: KindAgent}
	b := &stubMember{kind: KindAgent}
	_, err := s.Add(a)
	assert.NoError(t, err)
	_, err = s.Add(b)
	assert.NoError(t, err)

	first := LockShared(a, b)
	second := LockShared(b, a)
	second.Unlock()
	first.Unlock()
}

func TestLockOrderingAvoidsDeadlock(t *testing.T) {
	s := New(Options{})
	members := make([]*stubMember, 4)
	counts := make([]int, len(members))
	for i := range members {
		members[i] = &stubMember{kind: KindAgent}
		_, err := s.Add(members[i])
		assert.NoError(t, err)
	}

	// Every goroutine requests the same members in a different order;
	// id-ordered acquisition keeps them from deadlocking.
	perms := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{2, 0, 3, 1},
		{1, 3, 0, 2},
		{0, 2, 1, 3},
		{3, 0, 2, 1},
	}
	const rounds = 200

	var wg sync.WaitGroup
	for _, p := range perms {
		wg.Add(1)
		go func(order []int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				set := make([]Member, len(order))
				for i, idx := range order {
					set[i] = members[idx]
				}
				ls := LockExclusive(set...)
				for _, idx := range order {
					counts[idx]++
				}
				ls.Unlock()
			}
		}(p)
	}
	wg.Wait()

	for i, n := range counts {
		assert.Equal(t, len(perms)*rounds, n, "member %d", i)
	}
}
