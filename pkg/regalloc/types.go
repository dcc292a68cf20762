// Package regalloc implements the four interchangeable local register
// allocation strategies (simple top-down, top-down with live ranges,
// bottom-up/Belady, linear scan) that share the instruction model in
// pkg/iloc and the liveness utilities in pkg/liveness.
package regalloc

import (
	"fmt"

	"github.com/minz/ilocra/pkg/iloc"
)

// NumFeasible is the count of physical registers permanently reserved for
// the spill protocol (r1, r2): loaded-from/stored-to memory on behalf of a
// virtual register that didn't get a permanent physical home.
const NumFeasible = 2

// Allocator rewrites a basic block of instructions referencing an unbounded
// set of virtual registers into an equivalent block using only physical
// registers r1..rk (plus the passed-through base pointer r0), inserting
// spill code against r0 where the working set exceeds k. Allocate never
// mutates its input slice and is total over any well-formed instruction
// stream for every k >= 2.
type Allocator interface {
	Allocate(instructions []iloc.Instruction, k int) []iloc.Instruction
}

// PhysicalRegister returns the physical register name for 1-based index i
// ("r1", "r2", ...). Index 0 is never produced; r0 is the fixed base
// pointer and is never itself allocated.
func PhysicalRegister(i int) string {
	return fmt.Sprintf("r%d", i)
}

// SpillMap assigns and remembers negative byte offsets from r0, one per
// distinct spilled virtual register. Offsets are assigned monotonically
// (-4, -8, -12, ...) and a slot is never reclaimed even after its virtual
// register retires.
type SpillMap struct {
	offsets map[string]int
	next    int
}

// NewSpillMap returns an empty spill map with the first slot at -4.
func NewSpillMap() *SpillMap {
	return &SpillMap{offsets: make(map[string]int), next: -4}
}

// OffsetFor returns the slot assigned to v, assigning a fresh one
// (strictly lower than any previously assigned) on first reference.
func (m *SpillMap) OffsetFor(v string) int {
	if off, ok := m.offsets[v]; ok {
		return off
	}
	off := m.next
	m.offsets[v] = off
	m.next -= 4
	return off
}

// Lookup returns the slot assigned to v, if any, without assigning one.
func (m *SpillMap) Lookup(v string) (int, bool) {
	off, ok := m.offsets[v]
	return off, ok
}

// passthrough reports whether an operand flows through a rewrite pass
// untouched: absent slots, integer literals and the reserved base pointer
// are never candidates for allocation.
func passthrough(op iloc.Operand) bool {
	return !op.Present() || !op.IsRegister() || op.IsBasePointer()
}

func offsetToken(offset int) string {
	return fmt.Sprintf("%d", offset)
}
