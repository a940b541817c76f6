// Package translator implements the WASM-IR-to-bytecode translation and
// optimization core (spec.md §4.9, C9): each wasm.Function lowers to a
// TranspiledFunction of bytecode.Instruction values, WASM control
// structures become explicit labels and branches, and a configurable
// optimization pipeline (dead-code elimination, constant folding, and
// level-gated peephole/register-allocation/inlining passes) runs over the
// result before label resolution assembles relative jump targets.
//
// Grounded on wasm's decoder for the input shape and on bytecode's shared
// opcode/operand tables for the output; the control-flow lowering itself
// (structured WASM block/loop/if -> flat label+jump bytecode) has no
// teacher analog and follows the textbook stack-machine technique spec.md
// §4.9 describes ("WASM control structures lower to explicit labels and
// conditional/unconditional branches").
package translator

import "github.com/synerthink/dotlanth/bytecode"

// DebugLine maps one instruction index back to a WASM function/offset pair,
// the "line number table" spec.md §4.10 names.
type DebugLine struct {
	InstructionIndex int
	FunctionIndex    uint32
	Offset           uint32
}

// DebugLocal names one local slot, the "local variable table" spec.md
// §4.10 names.
type DebugLocal struct {
	Index int
	Name  string
}

// DebugInfo is optional per-function debug metadata (spec.md §3
// "TranspiledFunction... optional debug info").
type DebugInfo struct {
	Lines  []DebugLine
	Locals []DebugLocal
}

// Function is a translated WASM function (spec.md §3 "TranspiledFunction").
type Function struct {
	Name         string
	ParamCount   int
	LocalCount   int
	Instructions []bytecode.Instruction
	Exported     bool
	DebugInfo    *DebugInfo

	// RegisterHints is optimization level >=2's register-allocation advice
	// (spec.md §4.9 "L2: ...simple register allocation"): a suggested
	// physical register index per stack-offset/global operand value,
	// produced by a bounded interference-graph coloring over each slot's
	// live range. It is advisory only — execution never consults it, so
	// its presence or absence cannot change behavior (spec.md §8
	// "Optimizer transparency").
	RegisterHints map[int32]int32
}

// MemoryLayout is the module's linear memory bounds, carried through from
// the WASM memory section.
type MemoryLayout struct {
	MinPages uint32
	MaxPages uint32 // 0 means unbounded
}

// GlobalDef is one module-level global, carried through from the WASM
// global section with its initializer folded to a constant where possible.
type GlobalDef struct {
	Mutable bool
	Init    int64
}

// ImportKind mirrors wasm.ImportKind for the translated module's import
// table (spec.md §4.10 "Import Table").
type ImportKind = uint8

// ImportEntry is one translated import table entry.
type ImportEntry struct {
	Module string
	Name   string
	Kind   ImportKind
	Index  uint32
}

// ExportKind mirrors wasm.ExportKind for the translated module's export
// table (spec.md §4.10 "Export Table").
type ExportKind = uint8

// ExportEntry is one translated export table entry.
type ExportEntry struct {
	Name  string
	Kind  ExportKind
	Index uint32
}

// Header identifies the target architecture and feature flags a module was
// translated for (spec.md §4.10 "Header").
type Header struct {
	Architecture uint16 // one of vm.Width32/64/128/256/512
	FeatureFlags uint32
}

// Module is the fully translated module (spec.md §3 "TranspiledModule"),
// ready for the assembler (C10) to serialize.
type Module struct {
	Header    Header
	Functions []Function
	Globals   []GlobalDef
	Memory    MemoryLayout
	Imports   []ImportEntry
	Exports   []ExportEntry

	// Constants is the module's constant pool, indexed by bytecode.OpPush's
	// immediate operand (spec.md §4.11 "Push(const_id) ... Loads from
	// constant pool"). The WASM translator never emits OpPush itself (WASM
	// numeric constants lower to PushInt32/PushInt64/PushFloat32/
	// PushFloat64, which carry their value inline); this pool exists for
	// hand-assembled programs and string literals, e.g. spec.md §8
	// scenario S4's `Push("Hello")`.
	Constants []bytecode.Constant
}

// FunctionByName returns the function named name, or nil if none matches.
func (m *Module) FunctionByName(name string) *Function {
	for i := range m.Functions {
		if m.Functions[i].Name == name {
			return &m.Functions[i]
		}
	}
	return nil
}
