package bytecode

import "fmt"

// OperandKind distinguishes the operand variants from spec.md §3
// ("Instruction & Module"): immediate, large-immediate, register index,
// label reference, memory (base, offset), stack offset, global index.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandImmediate
	OperandLargeImmediate
	OperandRegister
	OperandLabel
	OperandMemory
	OperandStackOffset
	OperandGlobal
)

// Operand is a single argument to an instruction. Exactly one of its fields
// is meaningful, selected by Kind.
type Operand struct {
	Kind OperandKind

	Imm       int32  // OperandImmediate, OperandStackOffset, OperandGlobal, OperandRegister
	LargeImm  int64  // OperandLargeImmediate
	Label     string // OperandLabel, resolved to Imm (the target's instruction index) by translator.resolveLabels
	MemBase   int32  // OperandMemory
	MemOffset int32  // OperandMemory
}

func ImmediateOperand(v int32) Operand      { return Operand{Kind: OperandImmediate, Imm: v} }
func LargeImmediateOperand(v int64) Operand { return Operand{Kind: OperandLargeImmediate, LargeImm: v} }
func RegisterOperand(idx int32) Operand     { return Operand{Kind: OperandRegister, Imm: idx} }
func LabelOperand(name string) Operand      { return Operand{Kind: OperandLabel, Label: name} }
func MemoryOperand(base, offset int32) Operand {
	return Operand{Kind: OperandMemory, MemBase: base, MemOffset: offset}
}
func StackOffsetOperand(v int32) Operand { return Operand{Kind: OperandStackOffset, Imm: v} }
func GlobalOperand(idx int32) Operand    { return Operand{Kind: OperandGlobal, Imm: idx} }

// SourceLocation identifies the WASM origin of a translated instruction, for
// debug info (spec.md §4.8, §4.10).
type SourceLocation struct {
	FunctionIndex uint32
	Offset        uint32
}

// Instruction is a single decoded/assembled bytecode instruction
// ("TranspiledInstruction" in spec.md §3).
type Instruction struct {
	Op       Opcode
	Operands []Operand
	Label    string // non-empty if this instruction is itself a jump target
	Source   *SourceLocation
}

func (in Instruction) String() string {
	return fmt.Sprintf("%s %v", in.Op.Name(), in.Operands)
}
