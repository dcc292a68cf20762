package regalloc

import (
	"container/heap"

	"github.com/minz/ilocra/pkg/iloc"
	"github.com/minz/ilocra/pkg/liveness"
)

// LinearScan implements the interval-based allocator: live ranges are
// swept once, in first-occurrence order, against a min-heap of active
// intervals keyed by end; each virtual register leaves the pre-pass with a
// single, fixed decision (a permanent physical register or a permanent
// spill slot) and the rewrite pass is a lookup against that decision plus
// an alternating feasible-register toggle for anything memory-resident.
type LinearScan struct{}

// Allocate implements Allocator.
func (LinearScan) Allocate(instructions []iloc.Instruction, k int) []iloc.Instruction {
	registers, spills := linearScanPrePass(instructions, k)
	return linearScanRewrite(instructions, registers, spills)
}

// interval is one virtual register's live range as tracked by the active
// heap; phys and index are only meaningful while the interval is active.
type interval struct {
	name  string
	start int
	end   int
	phys  string
	index int
}

// intervalHeap is a container/heap.Interface min-heap ordered by end, used
// to find the interval expiring soonest (step 1) in O(log n).
type intervalHeap []*interval

func (h intervalHeap) Len() int            { return len(h) }
func (h intervalHeap) Less(i, j int) bool  { return h[i].end < h[j].end }
func (h intervalHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *intervalHeap) Push(x any) {
	iv := x.(*interval)
	iv.index = len(*h)
	*h = append(*h, iv)
}
func (h *intervalHeap) Pop() any {
	old := *h
	n := len(old)
	iv := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return iv
}

// maxByEnd returns the active interval with the greatest end, the
// spill-at-interval candidate, without removing it.
func (h intervalHeap) maxByEnd() *interval {
	best := h[0]
	for _, iv := range h[1:] {
		if iv.end > best.end {
			best = iv
		}
	}
	return best
}

// linearScanPrePass decides, once and for all, every non-base virtual
// register's fate: a fixed physical register (registerMap) or a fixed spill
// offset (tracked in the returned SpillMap).
func linearScanPrePass(instructions []iloc.Instruction, k int) (map[string]string, *SpillMap) {
	ranges := liveness.LiveRanges(instructions)
	order := nonBaseOrder(instructions)

	registerMap := make(map[string]string)
	spills := NewSpillMap()

	pool := k
	reduced := false
	if len(order) > k {
		pool = k - NumFeasible
		reduced = true
		if pool < 2 {
			pool = 0
		}
	}

	if pool == 0 {
		for _, v := range order {
			spills.OffsetFor(v)
		}
		return registerMap, spills
	}

	free := make([]string, 0, pool)
	for i := pool; i >= 1; i-- {
		if reduced {
			free = append(free, PhysicalRegister(NumFeasible+i))
		} else {
			free = append(free, PhysicalRegister(i))
		}
	}
	popFree := func() (string, bool) {
		if len(free) == 0 {
			return "", false
		}
		n := len(free) - 1
		phys := free[n]
		free = free[:n]
		return phys, true
	}

	active := &intervalHeap{}
	heap.Init(active)

	for _, v := range order {
		r := ranges[v]
		iv := &interval{name: v, start: r.Start, end: r.End}

		for active.Len() > 0 && (*active)[0].end < iv.start {
			expired := heap.Pop(active).(*interval)
			free = append(free, expired.phys)
		}

		if active.Len() == pool {
			s := active.maxByEnd()
			if s.end > iv.end {
				iv.phys = s.phys
				registerMap[iv.name] = iv.phys
				spills.OffsetFor(s.name)
				delete(registerMap, s.name)
				heap.Remove(active, s.index)
				heap.Push(active, iv)
			} else {
				spills.OffsetFor(iv.name)
			}
		} else {
			phys, ok := popFree()
			if !ok {
				panic("regalloc: linear scan free pool exhausted below capacity")
			}
			iv.phys = phys
			registerMap[iv.name] = phys
			heap.Push(active, iv)
		}
	}
	return registerMap, spills
}

// linearScanRewrite is a single forward pass resolving every operand
// against the fixed register/spill decision from the pre-pass, alternating
// between the two feasible registers so that two memory-resident operands
// in the same instruction never collide.
func linearScanRewrite(instructions []iloc.Instruction, registerMap map[string]string, spills *SpillMap) []iloc.Instruction {
	toggle := 0
	nextFeasible := func() string {
		phys := PhysicalRegister(toggle%NumFeasible + 1)
		toggle++
		return phys
	}

	out := make([]iloc.Instruction, 0, len(instructions))
	for _, inst := range instructions {
		var before []iloc.Instruction
		var after []iloc.Instruction

		resolveSource := func(op iloc.Operand) string {
			if passthrough(op) {
				return op.Text()
			}
			v := op.Text()
			if offset, spilled := spills.Lookup(v); spilled {
				feasible := nextFeasible()
				before = append(before, iloc.NewInstruction(iloc.OpLoadAI, iloc.BasePointer, offsetToken(offset), feasible))
				return feasible
			}
			if phys, ok := registerMap[v]; ok {
				return phys
			}
			return v
		}
		op1 := resolveSource(inst.Op1)
		op2 := resolveSource(inst.Op2)

		dst := inst.Dst.Text()
		if !passthrough(inst.Dst) {
			v := inst.Dst.Text()
			if offset, spilled := spills.Lookup(v); spilled {
				feasible := nextFeasible()
				dst = feasible
				after = append(after, iloc.NewInstruction(iloc.OpStoreAI, feasible, iloc.BasePointer, offsetToken(offset)))
			} else if phys, ok := registerMap[v]; ok {
				dst = phys
			}
		}

		out = append(out, before...)
		out = append(out, inst.WithOperands(op1, op2, dst))
		out = append(out, after...)
	}
	return out
}
