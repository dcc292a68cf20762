package liveness

import (
	"reflect"
	"testing"

	"github.com/minz/ilocra/pkg/iloc"
)

// block6 is a straight-line block whose live-range table is known by
// hand: r0:(0,11), r1:(1,9), r2:(2,3), r3:(3,6), r4:(4,8), r5:(5,7),
// r6:(6,6), r7:(7,7), r8:(8,8), r9:(9,9), r10:(10,10), with a maximum of
// five ranges overlapping at once.
const block6 = `
loadI 0 => r0
add r0, 1 => r1
add r1, 1 => r2
add r2, 1 => r3
add r3, r2 => r4
add r4, 1 => r5
add r5, 1 => r6
add r6, r3 => r7
add r7, r5 => r8
add r8, r4 => r9
add r9, r1 => r10
output r10
output r0
`

func mustParse(t *testing.T, src string) []iloc.Instruction {
	t.Helper()
	insts, err := iloc.ParseString(src)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return insts
}

func TestLiveRangesBlock6(t *testing.T) {
	insts := mustParse(t, block6)
	got := LiveRanges(insts)

	want := map[string]Range{
		"r0":  {0, 11},
		"r1":  {1, 9},
		"r2":  {2, 3},
		"r3":  {3, 6},
		"r4":  {4, 8},
		"r5":  {5, 7},
		"r6":  {6, 6},
		"r7":  {7, 7},
		"r8":  {8, 8},
		"r9":  {9, 9},
		"r10": {10, 10},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("LiveRanges =\n%+v\nwant\n%+v", got, want)
	}
}

func TestMaxLiveBlock6(t *testing.T) {
	ranges := []Range{
		{0, 11}, {1, 9}, {2, 3}, {3, 6}, {4, 8},
		{5, 7}, {6, 6}, {7, 7}, {8, 8}, {9, 9}, {10, 10},
	}
	if got := MaxLive(ranges); got != 5 {
		t.Errorf("MaxLive = %d, want 5", got)
	}
}

func TestRangeComparatorOrdering(t *testing.T) {
	input := []RangeEntry{
		{Count: 4, Start: 0, End: 11},
		{Count: 4, Start: 1, End: 9},
		{Count: 2, Start: 2, End: 3},
		{Count: 2, Start: 3, End: 6},
		{Count: 8, Start: 4, End: 8},
	}
	SortByRange(input)

	want := []RangeEntry{
		{Count: 2, Start: 3, End: 6},
		{Count: 2, Start: 2, End: 3},
		{Count: 4, Start: 0, End: 11},
		{Count: 4, Start: 1, End: 9},
		{Count: 8, Start: 4, End: 8},
	}
	if !reflect.DeepEqual(input, want) {
		t.Errorf("SortByRange =\n%+v\nwant\n%+v", input, want)
	}
}

func TestOccurrenceCounts(t *testing.T) {
	insts := mustParse(t, "loadI 1 => r1\nadd r1, r1 => r2\noutput r2\n")
	counts := OccurrenceCounts(insts)
	if counts["r1"] != 3 {
		t.Errorf("r1 count = %d, want 3", counts["r1"])
	}
	if counts["r2"] != 2 {
		t.Errorf("r2 count = %d, want 2", counts["r2"])
	}
}

func TestFutureUseListsOrderAscending(t *testing.T) {
	insts := mustParse(t, "loadI 1 => r1\nadd r1, r3 => r2\noutput r1\n")
	lists := FutureUseLists(insts)

	fu := lists["r1"]
	first, ok := fu.Pop()
	if !ok || first != 0 {
		t.Fatalf("first pop = %d, %v; want 0, true", first, ok)
	}
	second, ok := fu.Pop()
	if !ok || second != 1 {
		t.Fatalf("second pop = %d, %v; want 1, true", second, ok)
	}
	third, ok := fu.Pop()
	if !ok || third != 2 {
		t.Fatalf("third pop = %d, %v; want 2, true", third, ok)
	}
	if !fu.Empty() {
		t.Error("expected future-use list to be exhausted")
	}
}

func TestFirstOccurrenceOrder(t *testing.T) {
	insts := mustParse(t, "loadI 1 => r2\nloadI 2 => r1\nadd r2, r1 => r3\n")
	got := FirstOccurrenceOrder(insts)
	want := []string{"r2", "r1", "r3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FirstOccurrenceOrder = %v, want %v", got, want)
	}
}
