// Package simulator implements a minimal ILOC interpreter used only by this
// module's own test suite to check observational equivalence between an
// instruction stream and its register-allocated rewrite. It is never
// imported by cmd/ilocra.
package simulator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/minz/ilocra/pkg/iloc"
)

// Config mirrors the host VM's instruction budget and register file size;
// MaxSteps guards against a malformed or runaway instruction stream looping
// forever under test.
type Config struct {
	Registers int // size of the physical register file, i.e. k
	MaxSteps  int
}

// VM is a tiny register-machine interpreter: an array of int64 registers
// (r0..rk), a word-addressed memory keyed by effective address (registers[0]
// plus any offset), and an output sink recording every value an output/
// outputAI instruction prints, in order.
type VM struct {
	config    Config
	registers []int64
	memory    map[int64]int64
	output    []int64
	steps     int
}

// New creates a VM with a register file sized config.Registers+1 (r0..rk).
func New(config Config) *VM {
	return &VM{
		config:    config,
		registers: make([]int64, config.Registers+1),
		memory:    make(map[int64]int64),
	}
}

// Output returns the values recorded by output/outputAI instructions, in
// emission order.
func (vm *VM) Output() []int64 { return append([]int64(nil), vm.output...) }

var binaryOps = map[iloc.Opcode]func(a, b int64) int64{
	"add":    func(a, b int64) int64 { return a + b },
	"sub":    func(a, b int64) int64 { return a - b },
	"mult":   func(a, b int64) int64 { return a * b },
	"lshift": func(a, b int64) int64 { return a << uint(b) },
	"rshift": func(a, b int64) int64 { return a >> uint(b) },
}

// Run executes instructions from the start, returning an error if the step
// budget is exhausted or an instruction references state outside the
// configured register file.
func (vm *VM) Run(instructions []iloc.Instruction) error {
	for _, inst := range instructions {
		vm.steps++
		if vm.steps > vm.config.MaxSteps {
			return fmt.Errorf("simulator: exceeded step budget %d", vm.config.MaxSteps)
		}
		if err := vm.step(inst); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VM) step(inst iloc.Instruction) error {
	switch inst.Op {
	case iloc.OpOutput:
		v, err := vm.value(inst.Op1)
		if err != nil {
			return err
		}
		vm.output = append(vm.output, v)
		return nil
	case iloc.OpOutputAI:
		base, err := vm.regValue(inst.Op1)
		if err != nil {
			return err
		}
		off, err := vm.value(inst.Dst)
		if err != nil {
			return err
		}
		vm.output = append(vm.output, vm.memory[base+off])
		return nil
	case iloc.OpStore:
		src, err := vm.value(inst.Op1)
		if err != nil {
			return err
		}
		addr, err := vm.regValue(inst.Op2)
		if err != nil {
			return err
		}
		vm.memory[addr] = src
		return nil
	case iloc.OpStoreAI:
		src, err := vm.value(inst.Op1)
		if err != nil {
			return err
		}
		base, err := vm.regValue(inst.Op2)
		if err != nil {
			return err
		}
		off, err := vm.value(inst.Dst)
		if err != nil {
			return err
		}
		vm.memory[base+off] = src
		return nil
	case iloc.OpLoadAI:
		base, err := vm.regValue(inst.Op1)
		if err != nil {
			return err
		}
		off, err := vm.value(inst.Op2)
		if err != nil {
			return err
		}
		return vm.setDst(inst.Dst, vm.memory[base+off])
	case "loadI":
		v, err := vm.value(inst.Op1)
		if err != nil {
			return err
		}
		return vm.setDst(inst.Dst, v)
	default:
		fn, ok := binaryOps[inst.Op]
		if !ok {
			return fmt.Errorf("simulator: unsupported opcode %q", inst.Op)
		}
		a, err := vm.value(inst.Op1)
		if err != nil {
			return err
		}
		b, err := vm.value(inst.Op2)
		if err != nil {
			return err
		}
		return vm.setDst(inst.Dst, fn(a, b))
	}
}

// value resolves an operand to its runtime value: a register's current
// contents, or an integer literal parsed directly from its token.
func (vm *VM) value(op iloc.Operand) (int64, error) {
	if !op.Present() {
		return 0, fmt.Errorf("simulator: expected an operand, found none")
	}
	if op.IsRegister() {
		return vm.regValue(op)
	}
	n, err := strconv.ParseInt(op.Text(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("simulator: literal %q: %w", op.Text(), err)
	}
	return n, nil
}

func (vm *VM) regValue(op iloc.Operand) (int64, error) {
	idx, err := registerIndex(op.Text())
	if err != nil {
		return 0, err
	}
	if idx >= len(vm.registers) {
		return 0, fmt.Errorf("simulator: register %q outside the configured file of size %d", op.Text(), len(vm.registers)-1)
	}
	return vm.registers[idx], nil
}

func (vm *VM) setDst(op iloc.Operand, v int64) error {
	idx, err := registerIndex(op.Text())
	if err != nil {
		return err
	}
	if idx >= len(vm.registers) {
		return fmt.Errorf("simulator: register %q outside the configured file of size %d", op.Text(), len(vm.registers)-1)
	}
	vm.registers[idx] = v
	return nil
}

func registerIndex(token string) (int, error) {
	if !strings.HasPrefix(token, "r") {
		return 0, fmt.Errorf("simulator: %q is not a register token", token)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(token, "r"))
	if err != nil {
		return 0, fmt.Errorf("simulator: %q is not a register token", token)
	}
	return n, nil
}
