package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synerthink/dotlanth/bytecode"
	"github.com/synerthink/dotlanth/sandbox"
	"github.com/synerthink/dotlanth/translator"
)

func push(v int32) bytecode.Instruction {
	return bytecode.Instruction{Op: bytecode.OpPushInt8, Operands: []bytecode.Operand{bytecode.ImmediateOperand(v)}}
}

func op(o bytecode.Opcode) bytecode.Instruction { return bytecode.Instruction{Op: o} }

func newTestContext(t *testing.T, fn translator.Function) *Context {
	t.Helper()
	m := &translator.Module{
		Header:    translator.Header{Architecture: uint16(Width64)},
		Functions: []translator.Function{fn},
	}
	c := NewContext("dot-1", nil, nil, nil, Config{})
	require.NoError(t, c.LoadModule(m))
	return c
}

// TestArithmeticScenario is spec.md §8 scenario S3.
func TestArithmeticScenario(t *testing.T) {
	fn := translator.Function{
		Name:     "main",
		Exported: true,
		Instructions: []bytecode.Instruction{
			push(10), push(5), op(bytecode.OpAdd),
			push(3), op(bytecode.OpMul),
			op(bytecode.OpDup),
			push(5), op(bytecode.OpSub),
			op(bytecode.OpSwap),
		},
	}
	c := newTestContext(t, fn)
	res, err := c.Execute()
	require.NoError(t, err)
	require.True(t, res.Halted)
	require.Len(t, res.FinalStack, 2)
	require.Equal(t, int64(40), res.FinalStack[0].I)
	require.Equal(t, int64(45), res.FinalStack[1].I)
}

// TestStringConcatScenario is spec.md §8 scenario S4.
func TestStringConcatScenario(t *testing.T) {
	fn := translator.Function{
		Name:     "main",
		Exported: true,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPush, Operands: []bytecode.Operand{bytecode.ImmediateOperand(0)}},
			{Op: bytecode.OpPush, Operands: []bytecode.Operand{bytecode.ImmediateOperand(1)}},
			op(bytecode.OpAdd),
		},
	}
	m := &translator.Module{
		Header:    translator.Header{Architecture: uint16(Width64)},
		Functions: []translator.Function{fn},
		Constants: []bytecode.Constant{bytecode.StringConstant("Hello"), bytecode.StringConstant(" World!")},
	}
	c := NewContext("dot-1", nil, nil, nil, Config{})
	require.NoError(t, c.LoadModule(m))
	res, err := c.Execute()
	require.NoError(t, err)
	require.Len(t, res.FinalStack, 1)
	require.Equal(t, "Hello World!", res.FinalStack[0].S)
}

// TestDivisionByZeroScenario is spec.md §8 scenario S5: execution halts
// with a DivisionByZero fault and leaves no persistent state touched.
func TestDivisionByZeroScenario(t *testing.T) {
	fn := translator.Function{
		Name:     "main",
		Exported: true,
		Instructions: []bytecode.Instruction{
			push(10), push(0), op(bytecode.OpDiv),
		},
	}
	c := newTestContext(t, fn)
	_, err := c.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "division by zero")
	require.True(t, c.halted)
}

// TestStackUnderflow exercises the Stack opcode family's underflow fault.
func TestStackUnderflow(t *testing.T) {
	fn := translator.Function{Name: "main", Instructions: []bytecode.Instruction{op(bytecode.OpPop)}}
	c := newTestContext(t, fn)
	_, err := c.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "stack underflow")
}

// TestTypeMismatchNoSilentCoercion: mixing int and string operands to a
// non-Add arithmetic opcode must fault rather than coerce (spec.md §4.11).
func TestTypeMismatchNoSilentCoercion(t *testing.T) {
	fn := translator.Function{
		Name: "main",
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPush, Operands: []bytecode.Operand{bytecode.ImmediateOperand(0)}},
			push(1),
			op(bytecode.OpSub),
		},
	}
	m := &translator.Module{
		Header:    translator.Header{Architecture: uint16(Width64)},
		Functions: []translator.Function{fn},
		Constants: []bytecode.Constant{bytecode.StringConstant("x")},
	}
	c := NewContext("dot-1", nil, nil, nil, Config{})
	require.NoError(t, c.LoadModule(m))
	_, err := c.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "type mismatch")
}

// TestCompatibilityModeArithmetic is spec.md §8 invariant 9: a 32-bit guest
// on a 64-bit host truncates (0xFFFFFFFF + 1) to 0 on the operand stack.
func TestCompatibilityModeArithmetic(t *testing.T) {
	fn := translator.Function{
		Name: "main",
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpPushInt64, Operands: []bytecode.Operand{bytecode.LargeImmediateOperand(0xFFFFFFFF)}},
			push(1),
			op(bytecode.OpAdd),
		},
	}
	m := &translator.Module{
		Header:    translator.Header{Architecture: uint16(Width32)},
		Functions: []translator.Function{fn},
	}
	c := NewContext("dot-1", nil, nil, nil, Config{HostWidth: Width64})
	require.NoError(t, c.LoadModule(m))
	res, err := c.Execute()
	require.NoError(t, err)
	require.Len(t, res.FinalStack, 1)
	require.Equal(t, int64(0), res.FinalStack[0].I)
}

// TestLoadModuleRejectsWiderGuestThanHost: a module declaring a wider
// architecture than the host fails to load (spec.md §4.11 "When guest >
// host, loading fails").
func TestLoadModuleRejectsWiderGuestThanHost(t *testing.T) {
	m := &translator.Module{
		Header:    translator.Header{Architecture: uint16(Width256)},
		Functions: []translator.Function{{Name: "main"}},
	}
	c := NewContext("dot-1", nil, nil, nil, Config{HostWidth: Width64})
	err := c.LoadModule(m)
	require.Error(t, err)
}

// TestInstructionCap exercises spec.md §4.11's "Instruction cap": execution
// stops with a resource-exhaustion error after max_instructions steps.
func TestInstructionCap(t *testing.T) {
	fn := translator.Function{
		Name: "main",
		Instructions: []bytecode.Instruction{
			push(1), op(bytecode.OpPop),
			push(1), op(bytecode.OpPop),
			push(1), op(bytecode.OpPop),
		},
	}
	c := NewContext("dot-1", nil, nil, nil, Config{MaxInstructions: 2})
	require.NoError(t, c.LoadModule(&translator.Module{
		Header:    translator.Header{Architecture: uint16(Width64)},
		Functions: []translator.Function{fn},
	}))
	_, err := c.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "instruction cap")
}

// TestSandboxDeniesUnauthorizedOpcode is spec.md §8 invariant 10: no opcode
// requiring a capability executes when the dot lacks it.
func TestSandboxDeniesUnauthorizedOpcode(t *testing.T) {
	guard := sandbox.New()
	fn := translator.Function{Name: "main", Instructions: []bytecode.Instruction{push(1)}}
	c := NewContext("dot-1", guard, nil, nil, Config{})
	require.NoError(t, c.LoadModule(&translator.Module{
		Header:    translator.Header{Architecture: uint16(Width64)},
		Functions: []translator.Function{fn},
	}))
	_, err := c.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unauthorized")
	require.EqualValues(t, 1, guard.Denials("dot-1"))
}

// TestSandboxAllowsGrantedCapability exercises the success path of the same
// invariant: a matching, unexpired capability lets the opcode execute.
func TestSandboxAllowsGrantedCapability(t *testing.T) {
	guard := sandbox.New()
	guard.Grant("dot-1", sandbox.Capability{
		ID:         "cap-stack",
		OpcodeType: sandbox.OpcodeType{Category: bytecode.FamilyStack},
	})
	fn := translator.Function{Name: "main", Instructions: []bytecode.Instruction{push(7)}}
	c := NewContext("dot-1", guard, nil, nil, Config{})
	require.NoError(t, c.LoadModule(&translator.Module{
		Header:    translator.Header{Architecture: uint16(Width64)},
		Functions: []translator.Function{fn},
	}))
	res, err := c.Execute()
	require.NoError(t, err)
	require.Equal(t, int64(7), res.FinalStack[0].I)
}

// TestStepModeSuspendsPerInstruction exercises spec.md §4.11's Step mode:
// the engine returns Executed once per instruction, then EndOfCode.
func TestStepModeSuspendsPerInstruction(t *testing.T) {
	fn := translator.Function{Name: "main", Instructions: []bytecode.Instruction{push(1), push(2)}}
	c := newTestContext(t, fn)
	c.EnableStep()

	r1, err := c.Step()
	require.NoError(t, err)
	require.Equal(t, StepExecuted, r1.Kind)
	require.Equal(t, 1, r1.StackSize)

	r2, err := c.Step()
	require.NoError(t, err)
	require.Equal(t, StepExecuted, r2.Kind)
	require.Equal(t, 2, r2.StackSize)

	r3, err := c.Step()
	require.NoError(t, err)
	require.Equal(t, StepEndOfCode, r3.Kind)
}
