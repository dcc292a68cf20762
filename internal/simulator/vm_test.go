package simulator

import (
	"reflect"
	"testing"

	"github.com/minz/ilocra/pkg/iloc"
	"github.com/minz/ilocra/pkg/regalloc"
)

func mustParse(t *testing.T, src string) []iloc.Instruction {
	t.Helper()
	insts, err := iloc.ParseString(src)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	return insts
}

func TestArithmeticAndOutput(t *testing.T) {
	insts := mustParse(t, `
loadI 2 => r1
loadI 3 => r2
add r1, r2 => r3
mult r3, r2 => r4
output r4
`)
	vm := New(Config{Registers: 4, MaxSteps: 100})
	if err := vm.Run(insts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := vm.Output(); !reflect.DeepEqual(got, []int64{15}) {
		t.Errorf("Output() = %v, want [15]", got)
	}
}

func TestStoreAndLoad(t *testing.T) {
	insts := mustParse(t, `
loadI 100 => r0
loadI 42 => r1
storeAI r1 => r0, -4
loadAI r0, -4 => r2
output r2
`)
	vm := New(Config{Registers: 5, MaxSteps: 100})
	if err := vm.Run(insts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := vm.Output(); !reflect.DeepEqual(got, []int64{42}) {
		t.Errorf("Output() = %v, want [42]", got)
	}
}

// equivalenceFixtures exercise the allocators under real register
// pressure: a wide fan-out of intermediates, a Fibonacci chain whose
// twelve values outgrow the 5- and 10-register budgets, spill churn with
// self-referential definitions and duplicated operands, and the irregular
// store/outputAI shapes.
var equivalenceFixtures = map[string]string{
	"wideFanout": `
loadI 0 => r0
loadI 2 => r1
loadI 3 => r2
loadI 5 => r3
loadI 7 => r4
mult r1, r2 => r5
mult r3, r4 => r6
add r5, r6 => r7
sub r7, r1 => r8
mult r8, r2 => r9
add r9, r3 => r10
sub r10, r4 => r11
mult r11, r5 => r12
add r12, r6 => r13
output r13
output r0
`,
	"fibonacci": `
loadI 0 => r0
loadI 0 => r1
loadI 1 => r2
add r1, r2 => r3
add r2, r3 => r4
add r3, r4 => r5
add r4, r5 => r6
add r5, r6 => r7
add r6, r7 => r8
add r7, r8 => r9
add r8, r9 => r10
add r9, r10 => r11
add r10, r11 => r12
output r1
output r2
output r3
output r4
output r5
output r6
output r7
output r8
output r9
output r10
output r11
output r12
`,
	"spillChurn": `
loadI 0 => r0
loadI 1 => r1
loadI 2 => r2
loadI 3 => r3
loadI 4 => r4
loadI 5 => r5
loadI 6 => r6
loadI 7 => r7
add r1, r1 => r1
add r2, r7 => r2
add r3, r3 => r3
add r1, r2 => r8
add r3, r8 => r9
add r9, r9 => r9
add r4, r5 => r10
add r6, r10 => r11
add r9, r11 => r12
output r12
output r1
output r3
output r0
`,
	"storeAndOutputAI": `
loadI 100 => r0
loadI 41 => r1
loadI 1 => r2
add r1, r2 => r3
store r3 => r0
outputAI r0, 0
output r3
`,
}

// TestObservationalEquivalence: every allocator's rewrite of a fixture
// produces the same output sequence under the simulator as the
// unallocated source.
func TestObservationalEquivalence(t *testing.T) {
	allocators := map[string]regalloc.Allocator{
		"simple":     regalloc.Simple{},
		"topdown":    regalloc.TopDown{},
		"bottomup":   regalloc.BottomUp{},
		"linearscan": regalloc.LinearScan{},
	}

	for fixtureName, src := range equivalenceFixtures {
		insts := mustParse(t, src)

		baseline := New(Config{Registers: 64, MaxSteps: 10000})
		if err := baseline.Run(insts); err != nil {
			t.Fatalf("%s: baseline Run: %v", fixtureName, err)
		}
		want := baseline.Output()

		for name, alloc := range allocators {
			for _, k := range []int{5, 10, 15} {
				out := alloc.Allocate(insts, k)
				vm := New(Config{Registers: k, MaxSteps: 10000})
				if err := vm.Run(out); err != nil {
					t.Fatalf("%s/%s/k=%d: Run: %v", fixtureName, name, k, err)
				}
				got := vm.Output()
				if !reflect.DeepEqual(got, want) {
					t.Errorf("%s/%s/k=%d: Output() = %v, want %v", fixtureName, name, k, got, want)
				}
			}
		}
	}
}

// TestFibonacciOutputs pins the fibonacci fixture's expected sequence so a
// simulator regression cannot silently re-baseline the equivalence test.
func TestFibonacciOutputs(t *testing.T) {
	insts := mustParse(t, equivalenceFixtures["fibonacci"])
	vm := New(Config{Registers: 64, MaxSteps: 10000})
	if err := vm.Run(insts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []int64{0, 1, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89}
	if got := vm.Output(); !reflect.DeepEqual(got, want) {
		t.Errorf("Output() = %v, want %v", got, want)
	}
}

func TestStepBudgetExceeded(t *testing.T) {
	insts := mustParse(t, "loadI 1 => r1\nadd r1, r1 => r1\n")
	vm := New(Config{Registers: 2, MaxSteps: 1})
	if err := vm.Run(insts); err == nil {
		t.Error("expected a step-budget error")
	}
}
