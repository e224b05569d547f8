package core

import "github.com/vialba/go-elect/pkg/elect/types"

type neighbor struct {
	addr string
	val  uint16
}

// NeighborTable is a fixed capacity set of discovered peers. Insertion
// order determines the index; an address appears at most once. A
// neighbor's value is zero until it first reports one.
type NeighborTable struct {
	entries [types.MaxNeighbors]neighbor
	length  int
}

// NewNeighborTable allocates an empty table.
func NewNeighborTable() *NeighborTable {
	return &NeighborTable{}
}

// Len is the number of known neighbors.
func (t *NeighborTable) Len() int {
	return t.length
}

// Insert records a new neighbor. Returns false when the address is already
// known or the table is full; the overflow is a silent drop by design of
// the hard cap.
func (t *NeighborTable) Insert(addr string) bool {
	if _, ok := t.Lookup(addr); ok {
		return false
	}
	if t.length >= types.MaxNeighbors {
		return false
	}
	t.entries[t.length] = neighbor{addr: addr}
	t.length++
	return true
}

// Lookup finds the index of the neighbor with the given address.
func (t *NeighborTable) Lookup(addr string) (int, bool) {
	for i := 0; i < t.length; i++ {
		if t.entries[i].addr == addr {
			return i, true
		}
	}
	return 0, false
}

// Addr returns the address at the given index.
func (t *NeighborTable) Addr(i int) string {
	return t.entries[i].addr
}

// Val returns the last value the neighbor at the given index announced,
// zero when it has not reported this round.
func (t *NeighborTable) Val(i int) uint16 {
	return t.entries[i].val
}

// SetVal stores the announced value for the neighbor at the given index.
func (t *NeighborTable) SetVal(i int, v uint16) {
	t.entries[i].val = v
}

// ClearVals resets every announced value at a round boundary.
func (t *NeighborTable) ClearVals() {
	for i := 0; i < t.length; i++ {
		t.entries[i].val = 0
	}
}
