package wire

import (
	"fmt"
)

// arenaSlabSize is the granularity at which the arena requests memory.
// Allocations larger than a slab get a dedicated slab of their own size.
const arenaSlabSize = 64 * 1024

// Arena is the allocation context for decode output. Every byte sequence
// the decoder copies out of the wire is allocated here, so the caller owns
// the whole decoded tree as one unit and releases it atomically. An arena
// is not safe for concurrent use; each decode call gets its own.
type Arena struct {
	slabs  [][]byte
	cur    []byte
	off    int
	used   int64
	budget int64 // 0 means unlimited
}

// NewArena creates an arena without a byte budget.
func NewArena() *Arena {
	return &Arena{}
}

// NewArenaWithBudget creates an arena that refuses to grow past budget
// bytes. Decoding a stream whose length prefixes demand more than the
// budget fails with ErrArenaExhausted.
func NewArenaWithBudget(budget int64) *Arena {
	return &Arena{budget: budget}
}

// Alloc returns a zeroed n-byte slice owned by the arena.
func (a *Arena) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("arena: negative allocation %d", n)
	}
	if n == 0 {
		return []byte{}, nil
	}
	if a.budget > 0 && a.used+int64(n) > a.budget {
		return nil, fmt.Errorf("%w: need %d bytes, %d of %d used",
			ErrArenaExhausted, n, a.used, a.budget)
	}
	a.used += int64(n)

	if n > arenaSlabSize {
		slab := make([]byte, n)
		a.slabs = append(a.slabs, slab)
		return slab, nil
	}
	if len(a.cur)-a.off < n {
		a.cur = make([]byte, arenaSlabSize)
		a.off = 0
		a.slabs = append(a.slabs, a.cur)
	}
	buf := a.cur[a.off : a.off+n : a.off+n]
	a.off += n
	return buf, nil
}

// Used reports the total bytes allocated so far.
func (a *Arena) Used() int64 {
	return a.used
}

// Release drops every slab at once. Slices previously returned by Alloc
// must not be used afterwards.
func (a *Arena) Release() {
	a.slabs = nil
	a.cur = nil
	a.off = 0
	a.used = 0
}
