package regalloc

import (
	"fmt"

	"github.com/minz/ilocra/pkg/iloc"
	"github.com/minz/ilocra/pkg/liveness"
)

// TopDown implements the live-range-aware top-down allocator: spill
// victims are chosen once, up front, by the range comparator and max-live
// pruning; registers that survive the pre-pass are then handed out lazily
// from a shared free list during the rewrite pass, which is refilled as live
// ranges end.
type TopDown struct{}

// Allocate implements Allocator.
func (TopDown) Allocate(instructions []iloc.Instruction, k int) []iloc.Instruction {
	ranges := liveness.LiveRanges(instructions)
	evicted := topDownPrePass(instructions, ranges, k)
	return topDownRewrite(instructions, ranges, evicted, k)
}

// topDownPrePass sorts virtual registers by the range comparator (lowest
// count first, ties broken toward the longer live range) and evicts from
// the front of that order, counting max-live down by one per eviction,
// until the working set fits within the budget of k - NumFeasible physical
// registers.
func topDownPrePass(instructions []iloc.Instruction, ranges map[string]liveness.Range, k int) map[string]bool {
	counts := liveness.OccurrenceCounts(instructions)
	order := nonBaseOrder(instructions)

	entries := make([]liveness.RangeEntry, len(order))
	allRanges := make([]liveness.Range, len(order))
	for i, v := range order {
		r := ranges[v]
		entries[i] = liveness.RangeEntry{Name: v, Count: counts[v], Start: r.Start, End: r.End}
		allRanges[i] = r
	}
	liveness.SortByRange(entries)

	budget := k - NumFeasible
	if budget < 0 {
		budget = 0
	}

	evicted := make(map[string]bool)
	maxLive := liveness.MaxLive(allRanges)
	for _, e := range entries {
		if maxLive <= budget {
			break
		}
		evicted[e.Name] = true
		maxLive--
	}
	return evicted
}

// topDownState carries the mutable bookkeeping for a single rewrite pass:
// which physical register (if any) each surviving virtual register
// currently occupies, the shared free list, the feasible-register
// alternation toggle, and the spill map for evicted registers.
type topDownState struct {
	evicted  map[string]bool
	binding  map[string]string
	freeList []string
	spills   *SpillMap
	toggle   int
}

func newTopDownState(evicted map[string]bool, budget int) *topDownState {
	free := make([]string, 0, budget)
	for i := budget; i >= 1; i-- {
		free = append(free, PhysicalRegister(NumFeasible+i))
	}
	return &topDownState{
		evicted:  evicted,
		binding:  make(map[string]string),
		freeList: free,
		spills:   NewSpillMap(),
	}
}

func (s *topDownState) nextFeasible() string {
	phys := PhysicalRegister(s.toggle%NumFeasible + 1)
	s.toggle++
	return phys
}

func (s *topDownState) popFree() (string, bool) {
	if len(s.freeList) == 0 {
		return "", false
	}
	n := len(s.freeList) - 1
	phys := s.freeList[n]
	s.freeList = s.freeList[:n]
	return phys, true
}

// ensureSource resolves a source operand to a physical register, emitting a
// loadAI before the instruction when the virtual register lives in memory.
// A register that is neither bound nor evicted was read before any
// definition; that is unreachable on well-formed input.
func (s *topDownState) ensureSource(v string) (string, *iloc.Instruction) {
	if phys, ok := s.binding[v]; ok {
		return phys, nil
	}
	if !s.evicted[v] {
		panic(fmt.Sprintf("regalloc: virtual register %q read before any definition", v))
	}
	feasible := s.nextFeasible()
	offset := s.spills.OffsetFor(v)
	load := iloc.NewInstruction(iloc.OpLoadAI, iloc.BasePointer, offsetToken(offset), feasible)
	return feasible, &load
}

// allocateDestination resolves a destination operand. A register already
// holding a physical keeps it. An evicted register is plumbed through r1
// and persisted with a storeAI after the instruction. Anything else draws
// from the free list, demoting itself to memory on the fly (through the
// feasible toggle) when the list is empty.
func (s *topDownState) allocateDestination(v string) (string, *iloc.Instruction) {
	if phys, ok := s.binding[v]; ok {
		return phys, nil
	}
	if !s.evicted[v] {
		if phys, ok := s.popFree(); ok {
			s.binding[v] = phys
			return phys, nil
		}
		s.evicted[v] = true
		feasible := s.nextFeasible()
		offset := s.spills.OffsetFor(v)
		store := iloc.NewInstruction(iloc.OpStoreAI, feasible, iloc.BasePointer, offsetToken(offset))
		return feasible, &store
	}
	phys := PhysicalRegister(1)
	offset := s.spills.OffsetFor(v)
	store := iloc.NewInstruction(iloc.OpStoreAI, phys, iloc.BasePointer, offsetToken(offset))
	return phys, &store
}

func topDownRewrite(instructions []iloc.Instruction, ranges map[string]liveness.Range, evicted map[string]bool, k int) []iloc.Instruction {
	budget := k - NumFeasible
	if budget < 0 {
		budget = 0
	}
	state := newTopDownState(evicted, budget)

	out := make([]iloc.Instruction, 0, len(instructions))
	for j, inst := range instructions {
		var before []iloc.Instruction

		resolveSource := func(op iloc.Operand) string {
			if passthrough(op) {
				return op.Text()
			}
			phys, load := state.ensureSource(op.Text())
			if load != nil {
				before = append(before, *load)
			}
			return phys
		}
		op1 := resolveSource(inst.Op1)
		op2 := resolveSource(inst.Op2)

		for _, op := range []iloc.Operand{inst.Op1, inst.Op2} {
			if passthrough(op) {
				continue
			}
			v := op.Text()
			if r, ok := ranges[v]; ok && r.End < j {
				if phys, bound := state.binding[v]; bound {
					state.freeList = append(state.freeList, phys)
					delete(state.binding, v)
				}
			}
		}

		var after []iloc.Instruction
		dst := inst.Dst.Text()
		if !passthrough(inst.Dst) {
			phys, store := state.allocateDestination(inst.Dst.Text())
			dst = phys
			if store != nil {
				after = append(after, *store)
			}
		}

		out = append(out, before...)
		out = append(out, inst.WithOperands(op1, op2, dst))
		out = append(out, after...)
	}
	return out
}
