package regalloc

import (
	"math"

	"github.com/minz/ilocra/pkg/iloc"
	"github.com/minz/ilocra/pkg/liveness"
)

// descriptor is a physical register record: bound to at most one virtual
// register at a time, with next_use tracking when that register is next
// referenced (math.MaxInt standing in for +infinity while free).
type descriptor struct {
	phys    string
	vr      string
	nextUse int
}

// BottomUp implements Belady's rule applied locally: a linear scan
// through instructions that evicts, on demand, whichever bound physical
// register's value is needed furthest in the future.
type BottomUp struct{}

// Allocate implements Allocator.
func (BottomUp) Allocate(instructions []iloc.Instruction, k int) []iloc.Instruction {
	state := newBottomUpState(instructions, k)
	out := make([]iloc.Instruction, 0, len(instructions))

	for j, inst := range instructions {
		var before []iloc.Instruction

		resolveSource := func(op iloc.Operand) string {
			if passthrough(op) {
				return op.Text()
			}
			phys, pre := state.ensure(op.Text())
			before = append(before, pre...)
			return phys
		}
		op1 := resolveSource(inst.Op1)
		op2 := resolveSource(inst.Op2)

		for _, op := range []iloc.Operand{inst.Op1, inst.Op2} {
			if passthrough(op) {
				continue
			}
			state.retire(op.Text(), j)
		}

		dst := inst.Dst.Text()
		if !passthrough(inst.Dst) {
			phys, pre := state.bindDestination(inst.Dst.Text(), j)
			before = append(before, pre...)
			dst = phys
		}

		out = append(out, before...)
		out = append(out, inst.WithOperands(op1, op2, dst))
	}
	return out
}

type bottomUpState struct {
	descriptors []descriptor
	free        []int
	location    map[string]int
	spilled     map[string]int
	offset      int
	futureUse   map[string]*liveness.FutureUses
}

func newBottomUpState(instructions []iloc.Instruction, k int) *bottomUpState {
	descriptors := make([]descriptor, k)
	free := make([]int, 0, k)
	for i := 0; i < k; i++ {
		descriptors[i] = descriptor{phys: PhysicalRegister(i + 1), nextUse: math.MaxInt}
		free = append(free, k-1-i)
	}
	return &bottomUpState{
		descriptors: descriptors,
		free:        free,
		location:    make(map[string]int),
		spilled:     make(map[string]int),
		offset:      -4,
		futureUse:   liveness.FutureUseLists(instructions),
	}
}

func (s *bottomUpState) popFree() (int, bool) {
	if len(s.free) == 0 {
		return 0, false
	}
	n := len(s.free) - 1
	idx := s.free[n]
	s.free = s.free[:n]
	return idx, true
}

// alloc binds v to a descriptor: its own if it is already bound (a
// redefinition), a free one if available, or else the descriptor whose
// bound value's next use is farthest away (ties broken toward the last
// descriptor encountered). Eviction emits the storeAI preserving the
// evicted register's value at a fresh, strictly lower offset. The bound
// descriptor leaves with next_use = -1 so it cannot be picked as an
// eviction target again within the same instruction.
func (s *bottomUpState) alloc(v string) (int, []iloc.Instruction) {
	if idx, ok := s.location[v]; ok {
		s.descriptors[idx].nextUse = -1
		return idx, nil
	}
	if idx, ok := s.popFree(); ok {
		s.descriptors[idx].vr = v
		s.descriptors[idx].nextUse = -1
		s.location[v] = idx
		return idx, nil
	}

	best := 0
	for i := 1; i < len(s.descriptors); i++ {
		if s.descriptors[i].nextUse >= s.descriptors[best].nextUse {
			best = i
		}
	}

	var before []iloc.Instruction
	evictedVR := s.descriptors[best].vr
	if evictedVR != "" {
		s.spilled[evictedVR] = s.offset
		before = append(before, iloc.NewInstruction(iloc.OpStoreAI, s.descriptors[best].phys, iloc.BasePointer, offsetToken(s.offset)))
		s.offset -= 4
		delete(s.location, evictedVR)
	}
	s.descriptors[best].vr = v
	s.descriptors[best].nextUse = -1
	s.location[v] = best
	return best, before
}

// ensure resolves v to a physical register for use as a source operand,
// reloading it from its spill slot if it was evicted earlier. The slot is
// forgotten on reload; a later eviction of v spills to a fresh offset.
func (s *bottomUpState) ensure(v string) (string, []iloc.Instruction) {
	if idx, ok := s.location[v]; ok {
		return s.descriptors[idx].phys, nil
	}
	if offset, ok := s.spilled[v]; ok {
		idx, before := s.alloc(v)
		delete(s.spilled, v)
		load := iloc.NewInstruction(iloc.OpLoadAI, iloc.BasePointer, offsetToken(offset), s.descriptors[idx].phys)
		before = append(before, load)
		return s.descriptors[idx].phys, before
	}
	idx, before := s.alloc(v)
	return s.descriptors[idx].phys, before
}

// retire advances v's future-use bookkeeping after it has been read as a
// source at instruction j: every occurrence up to and including j is
// consumed, and the register either has its descriptor's next_use
// refreshed from the next remaining occurrence or, if none remain, is
// freed outright.
func (s *bottomUpState) retire(v string, j int) {
	fu, ok := s.futureUse[v]
	if !ok {
		return
	}
	s.advance(fu, j)
	idx, bound := s.location[v]
	if !bound {
		return
	}
	if next, ok := fu.Peek(); ok {
		s.descriptors[idx].nextUse = next
	} else {
		s.freeDescriptor(idx)
	}
}

// bindDestination allocates a descriptor for the virtual register defined
// at instruction j, consumes the definition site from the future-use list
// and primes next_use from the following occurrence, freeing immediately
// if the value is never read.
func (s *bottomUpState) bindDestination(v string, j int) (string, []iloc.Instruction) {
	idx, before := s.alloc(v)
	if fu, ok := s.futureUse[v]; ok {
		s.advance(fu, j)
		if next, ok := fu.Peek(); ok {
			s.descriptors[idx].nextUse = next
		} else {
			s.freeDescriptor(idx)
		}
	}
	return s.descriptors[idx].phys, before
}

// advance consumes every future-use entry at or before instruction j, so
// the top of the stack is always the first genuinely future occurrence.
// Popping by position rather than strictly once per reference keeps the
// stack honest when a virtual register is redefined after earlier uses.
func (s *bottomUpState) advance(fu *liveness.FutureUses, j int) {
	for {
		top, ok := fu.Peek()
		if !ok || top > j {
			return
		}
		fu.Pop()
	}
}

func (s *bottomUpState) freeDescriptor(idx int) {
	if vr := s.descriptors[idx].vr; vr != "" {
		delete(s.location, vr)
	}
	s.descriptors[idx].vr = ""
	s.descriptors[idx].nextUse = math.MaxInt
	s.free = append(s.free, idx)
}
