// Package liveness implements the occurrence-count, live-range,
// future-use-list and max-live utilities shared by every register
// allocation strategy in pkg/regalloc.
package liveness

import (
	"math"
	"sort"

	"github.com/minz/ilocra/pkg/iloc"
)

// Range is the live range of a virtual register: the index of its first
// occurrence and last_index-1, where last_index is the greatest instruction
// index referencing it. The off-by-one end is load-bearing: it is what
// lets a register's physical home be handed to the instruction that reads
// it for the last time, since reads happen before the write.
type Range struct {
	Start int
	End   int
}

// OccurrenceCounts returns, for every register reference appearing anywhere
// in the stream (across op1, op2 and dst positions uniformly), the number
// of times it occurs.
func OccurrenceCounts(instructions []iloc.Instruction) map[string]int {
	counts := make(map[string]int)
	for _, inst := range instructions {
		for _, ref := range inst.References() {
			counts[ref]++
		}
	}
	return counts
}

// LiveRanges computes the live range of every virtual register referenced
// in the stream. Insertion order of first occurrence is preserved in
// FirstOccurrenceOrder and is semantically significant for the linear-scan
// allocator.
func LiveRanges(instructions []iloc.Instruction) map[string]Range {
	ranges := make(map[string]Range)
	lastIndex := make(map[string]int)

	for j, inst := range instructions {
		for _, ref := range inst.References() {
			if _, seen := ranges[ref]; !seen {
				ranges[ref] = Range{Start: j, End: j}
			}
			lastIndex[ref] = j
		}
	}
	for name, r := range ranges {
		r.End = lastIndex[name] - 1
		ranges[name] = r
	}
	return ranges
}

// FirstOccurrenceOrder returns virtual register names in the order they
// first appear in the instruction stream. This order is what the
// linear-scan allocator's interval sweep walks.
func FirstOccurrenceOrder(instructions []iloc.Instruction) []string {
	var order []string
	seen := make(map[string]bool)
	for _, inst := range instructions {
		for _, ref := range inst.References() {
			if !seen[ref] {
				seen[ref] = true
				order = append(order, ref)
			}
		}
	}
	return order
}

// FutureUses is the future-use stack for a single virtual register: a
// descending-order list of remaining occurrence indices. Pop removes and
// returns the earliest (smallest) remaining index.
type FutureUses struct {
	stack []int
}

// Pop removes and returns the next occurrence index, advancing forward in
// time. The second return value is false once the list is exhausted.
func (f *FutureUses) Pop() (int, bool) {
	if len(f.stack) == 0 {
		return 0, false
	}
	n := len(f.stack) - 1
	idx := f.stack[n]
	f.stack = f.stack[:n]
	return idx, true
}

// Peek returns the next occurrence index without removing it.
func (f *FutureUses) Peek() (int, bool) {
	if len(f.stack) == 0 {
		return 0, false
	}
	return f.stack[len(f.stack)-1], true
}

// Empty reports whether every occurrence has been consumed.
func (f *FutureUses) Empty() bool { return len(f.stack) == 0 }

// FutureUseLists builds one FutureUses stack per virtual register by
// traversing the instruction stream in reverse and pushing each reference's
// index, so the top of each stack is that register's earliest occurrence.
func FutureUseLists(instructions []iloc.Instruction) map[string]*FutureUses {
	lists := make(map[string]*FutureUses)
	for i := len(instructions) - 1; i >= 0; i-- {
		for _, ref := range instructions[i].References() {
			fu, ok := lists[ref]
			if !ok {
				fu = &FutureUses{}
				lists[ref] = fu
			}
			fu.stack = append(fu.stack, i)
		}
	}
	return lists
}

// MaxLive computes the maximum number of live ranges covering any single
// program point: a sweep merging sorted start and end sequences,
// incrementing on a start and decrementing on an end, tracking the running
// maximum. Ties between a start and an end at the same index favor the
// end (a start counts only when strictly "<"), so a range ending where
// another begins does not overlap it.
func MaxLive(ranges []Range) int {
	if len(ranges) == 0 {
		return 0
	}
	starts := make([]int, len(ranges))
	ends := make([]int, len(ranges))
	for i, r := range ranges {
		starts[i] = r.Start
		ends[i] = r.End
	}
	sort.Ints(starts)
	sort.Ints(ends)

	maxLive := math.MinInt
	curr := 0
	i, j := 0, 0
	for i < len(starts) && j < len(ends) {
		if starts[i] < ends[j] {
			curr++
			i++
			if curr > maxLive {
				maxLive = curr
			}
		} else {
			curr--
			j++
		}
	}
	return maxLive
}

// RangeEntry is a virtual register together with the fields the range
// comparator orders on: its occurrence count and live range.
type RangeEntry struct {
	Name  string
	Count int
	Start int
	End   int
}

// RangeLess orders entries ascending by occurrence count; ties are broken
// by putting the entry with the longer live range first (it is considered
// "smaller", so it sorts earlier and is spilled first by the top-down
// allocator).
func RangeLess(a, b RangeEntry) bool {
	if a.Count != b.Count {
		return a.Count < b.Count
	}
	aLen := a.End - a.Start
	bLen := b.End - b.Start
	return aLen > bLen
}

// SortByRange sorts entries in place using RangeLess. Equal entries (same
// count and same range length) keep their relative order.
func SortByRange(entries []RangeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return RangeLess(entries[i], entries[j])
	})
}
