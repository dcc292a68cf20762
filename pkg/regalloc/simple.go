package regalloc

import (
	"sort"

	"github.com/minz/ilocra/pkg/iloc"
	"github.com/minz/ilocra/pkg/liveness"
)

// Simple implements the frequency-ranked global allocator: registers
// are assigned once, globally, by occurrence count, and every instruction
// is then patched locally against that fixed assignment, picking a feasible
// register on the fly for any virtual register that didn't make the cut.
type Simple struct{}

// Allocate implements Allocator.
func (Simple) Allocate(instructions []iloc.Instruction, k int) []iloc.Instruction {
	order := nonBaseOrder(instructions)
	counts := liveness.OccurrenceCounts(instructions)

	allocation := simplePrePass(order, counts, k)
	return simpleRewrite(instructions, allocation)
}

// nonBaseOrder returns the distinct virtual registers in first-occurrence
// order, excluding the reserved base pointer r0.
func nonBaseOrder(instructions []iloc.Instruction) []string {
	var out []string
	for _, v := range liveness.FirstOccurrenceOrder(instructions) {
		if v != iloc.BasePointer {
			out = append(out, v)
		}
	}
	return out
}

// simplePrePass assigns physical registers globally, most frequent first.
// If every distinct virtual register fits in the budget, all of r1..rT are
// handed out directly with no reservation. Otherwise r1..rF are reserved
// and the top (k-F) most frequent registers get r_{F+1}..r_k; the rest are
// left unassigned and resolved to memory at rewrite time.
func simplePrePass(order []string, counts map[string]int, k int) map[string]string {
	ranked := make([]string, len(order))
	copy(ranked, order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})

	allocation := make(map[string]string, len(ranked))
	if len(ranked) <= k {
		for i, v := range ranked {
			allocation[v] = PhysicalRegister(i + 1)
		}
		return allocation
	}

	budget := k - NumFeasible
	if budget < 0 {
		budget = 0
	}
	for i := 0; i < budget; i++ {
		allocation[ranked[i]] = PhysicalRegister(NumFeasible + 1 + i)
	}
	return allocation
}

// simpleRewrite patches every instruction against the fixed allocation,
// plumbing any virtual register left unassigned through a feasible register
// scoped to that single instruction: a loadAI before the instruction for a
// source, a storeAI after it for the destination.
func simpleRewrite(instructions []iloc.Instruction, allocation map[string]string) []iloc.Instruction {
	spills := NewSpillMap()
	used := make([]bool, NumFeasible)
	out := make([]iloc.Instruction, 0, len(instructions))

	for _, inst := range instructions {
		for i := range used {
			used[i] = false
		}
		instFeasible := make(map[string]string)
		var before []iloc.Instruction
		var after []iloc.Instruction

		resolveSource := func(op iloc.Operand) string {
			if passthrough(op) {
				return op.Text()
			}
			v := op.Text()
			if phys, ok := allocation[v]; ok {
				return phys
			}
			feasible, firstUse := pickFeasible(used, instFeasible, v)
			if firstUse {
				offset := spills.OffsetFor(v)
				before = append(before, iloc.NewInstruction(iloc.OpLoadAI, iloc.BasePointer, offsetToken(offset), feasible))
			}
			return feasible
		}
		op1 := resolveSource(inst.Op1)
		op2 := resolveSource(inst.Op2)

		dst := inst.Dst.Text()
		if !passthrough(inst.Dst) {
			v := inst.Dst.Text()
			if phys, ok := allocation[v]; ok {
				dst = phys
			} else {
				feasible, _ := pickFeasible(used, instFeasible, v)
				dst = feasible
				offset := spills.OffsetFor(v)
				after = append(after, iloc.NewInstruction(iloc.OpStoreAI, feasible, iloc.BasePointer, offsetToken(offset)))
			}
		}

		out = append(out, before...)
		out = append(out, inst.WithOperands(op1, op2, dst))
		out = append(out, after...)
	}
	return out
}

// pickFeasible returns the feasible register bound to v for this
// instruction, reusing a prior binding from earlier in the same
// instruction if one exists; otherwise it scans used[] left to right for
// the first free slot, wrapping to index 0 if all are taken. The second
// return value is true only the first time v is bound this instruction.
func pickFeasible(used []bool, instFeasible map[string]string, v string) (string, bool) {
	if phys, ok := instFeasible[v]; ok {
		return phys, false
	}
	idx := -1
	for i, taken := range used {
		if !taken {
			idx = i
			break
		}
	}
	if idx == -1 {
		idx = 0
	}
	used[idx] = true
	phys := PhysicalRegister(idx + 1)
	instFeasible[v] = phys
	return phys, true
}
