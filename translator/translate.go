package translator

import (
	"fmt"
	"math"
	"strings"

	"github.com/synerthink/dotlanth/bytecode"
	"github.com/synerthink/dotlanth/errs"
	"github.com/synerthink/dotlanth/wasm"
)

// Options configures one translation run.
type Options struct {
	// Architecture is the target word width (32/64/128/256/512); defaults
	// to 64 when zero.
	Architecture uint16

	// OptLevel gates the peephole/register-allocation/inlining pipeline,
	// spec.md §4.9: 0 none, 1 peephole, 2 +register hints,
	// 3 +inlining/LICM. No level produces instruction scheduling hints.
	OptLevel int

	// DeadCodeElimination and ConstantFolding are independent toggles
	// applied before the level-gated passes (spec.md §4.9).
	DeadCodeElimination bool
	ConstantFolding     bool
}

// Translate lowers a decoded WASM module into a Module of bytecode
// instructions (spec.md §4.9), then runs the configured optimization
// pipeline over every function.
func Translate(m *wasm.Module, opts Options) (*Module, error) {
	if opts.Architecture == 0 {
		opts.Architecture = 64
	}

	out := &Module{
		Header: Header{Architecture: opts.Architecture},
		Memory: memoryLayout(m),
	}

	exportedFuncNames := make(map[uint32]string)
	for _, e := range m.Exports {
		if e.Kind == wasm.ExportFunction {
			exportedFuncNames[e.Index] = e.Name
		}
		out.Exports = append(out.Exports, ExportEntry{Name: e.Name, Kind: uint8(e.Kind), Index: e.Index})
	}
	for _, imp := range m.Imports {
		out.Imports = append(out.Imports, ImportEntry{Module: imp.Module, Name: imp.Name, Kind: uint8(imp.Kind), Index: imp.TypeIdx})
	}
	for _, g := range m.Globals {
		out.Globals = append(out.Globals, GlobalDef{Mutable: g.Mutable, Init: foldConstI64(g.Init)})
	}

	importedFuncCount := uint32(0)
	for _, imp := range m.Imports {
		if imp.Kind == wasm.ImportFunction {
			importedFuncCount++
		}
	}

	for i, fn := range m.Functions {
		idx := importedFuncCount + uint32(i)
		name, exported := exportedFuncNames[idx]
		if !exported {
			name = fmt.Sprintf("func_%d", idx)
		}
		tf, err := translateFunction(name, fn, exported)
		if err != nil {
			return nil, err
		}
		// Per-function optimization runs first, while jump targets are
		// still symbolic label references: passes may delete or reorder
		// instructions as long as label-marker instructions themselves are
		// preserved.
		optimizeFunction(tf, opts)
		out.Functions = append(out.Functions, *tf)
	}
	// Inlining is a module-level, cross-function pass: it must run before
	// label resolution, since splicing a callee's body into a call site
	// changes that function's instruction count and would invalidate any
	// already-resolved absolute jump indices past the call site.
	if opts.OptLevel >= 3 {
		inlineSmallCallees(out, importedFuncCount)
	}
	for i := range out.Functions {
		if err := resolveLabels(&out.Functions[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func memoryLayout(m *wasm.Module) MemoryLayout {
	if len(m.Memories) == 0 {
		return MemoryLayout{}
	}
	mem := m.Memories[0]
	layout := MemoryLayout{MinPages: mem.MinPages}
	if mem.MaxPages != nil {
		layout.MaxPages = *mem.MaxPages
	}
	return layout
}

// foldConstI64 evaluates a single-instruction constant initializer
// expression to an int64, the only shape global/element/data offset
// initializers take in practice.
func foldConstI64(init []wasm.Instruction) int64 {
	if len(init) == 0 {
		return 0
	}
	switch init[0].Op {
	case wasm.OpI32Const:
		return int64(init[0].I32)
	case wasm.OpI64Const:
		return init[0].I64
	default:
		return 0
	}
}

// controlFrame tracks one open WASM block/loop/if while translateFunction
// walks the instruction stream linearly (spec.md §4.9: "code generator
// records each label emission site and every pending reference").
type controlFrame struct {
	kind       byte // 'b' block, 'l' loop, 'i' if
	label      string
	thenLabel  string
	elseLabel  string
	endLabel   string
	sawElse    bool
}

// branchTarget returns the label a br/br_if targeting this frame resolves
// to: a loop's own start (continue) or a block/if's end (break).
func (f controlFrame) branchTarget() string {
	if f.kind == 'l' {
		return f.label
	}
	return f.endLabel
}

type builder struct {
	fnName  string
	counter int
	out     []bytecode.Instruction
	frames  []controlFrame
}

func (b *builder) newLabel(tag string) string {
	b.counter++
	return fmt.Sprintf("%s.%s%d", b.fnName, tag, b.counter)
}

func (b *builder) emit(in bytecode.Instruction) { b.out = append(b.out, in) }

func (b *builder) emitLabelMarker(label string) {
	b.out = append(b.out, bytecode.Instruction{Op: bytecode.OpNop, Label: label})
}

// translateFunction lowers one WASM function body into a Function.
func translateFunction(name string, fn wasm.Function, exported bool) (*Function, error) {
	b := &builder{fnName: name}
	if err := b.translateBody(fn.Body); err != nil {
		return nil, err
	}
	if len(b.frames) != 0 {
		return nil, errs.New(errs.KindFormat, "unbalanced control structure").With(map[string]any{"function": name})
	}
	b.emit(bytecode.Instruction{Op: bytecode.OpReturn})

	var dbg *DebugInfo
	if len(fn.Locals) > 0 {
		dbg = &DebugInfo{}
		for i, t := range fn.Locals {
			dbg.Locals = append(dbg.Locals, DebugLocal{Index: len(fn.Signature.Params) + i, Name: valueTypeName(t)})
		}
	}

	return &Function{
		Name:         name,
		ParamCount:   len(fn.Signature.Params),
		LocalCount:   len(fn.Signature.Params) + len(fn.Locals),
		Instructions: b.out,
		Exported:     exported,
		DebugInfo:    dbg,
	}, nil
}

func valueTypeName(t wasm.ValueType) string {
	switch t {
	case wasm.I32:
		return "i32"
	case wasm.I64:
		return "i64"
	case wasm.F32:
		return "f32"
	case wasm.F64:
		return "f64"
	default:
		return "ref"
	}
}

func (b *builder) translateBody(body []wasm.Instruction) error {
	for _, in := range body {
		if err := b.translateOne(in); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) translateOne(in wasm.Instruction) error {
	switch in.Op {
	case wasm.OpUnreachable:
		b.emit(bytecode.Instruction{Op: bytecode.OpHalt})
	case wasm.OpNop:
		b.emit(bytecode.Instruction{Op: bytecode.OpNop})

	case wasm.OpBlock:
		end := b.newLabel("block_end")
		b.frames = append(b.frames, controlFrame{kind: 'b', label: end, endLabel: end})
	case wasm.OpLoop:
		start := b.newLabel("loop_start")
		b.frames = append(b.frames, controlFrame{kind: 'l', label: start})
		b.emitLabelMarker(start)
	case wasm.OpIf:
		then := b.newLabel("if_then")
		els := b.newLabel("if_else")
		end := b.newLabel("if_end")
		b.emit(bytecode.Instruction{Op: bytecode.OpJumpIf, Operands: []bytecode.Operand{bytecode.LabelOperand(then)}})
		b.emit(bytecode.Instruction{Op: bytecode.OpJump, Operands: []bytecode.Operand{bytecode.LabelOperand(els)}})
		b.emitLabelMarker(then)
		b.frames = append(b.frames, controlFrame{kind: 'i', thenLabel: then, elseLabel: els, endLabel: end})
	case wasm.OpElse:
		if len(b.frames) == 0 || b.frames[len(b.frames)-1].kind != 'i' {
			return errs.New(errs.KindFormat, "else without matching if")
		}
		f := &b.frames[len(b.frames)-1]
		b.emit(bytecode.Instruction{Op: bytecode.OpJump, Operands: []bytecode.Operand{bytecode.LabelOperand(f.endLabel)}})
		b.emitLabelMarker(f.elseLabel)
		f.sawElse = true
	case wasm.OpEnd:
		if len(b.frames) == 0 {
			return nil // function-terminating end, handled by caller
		}
		f := b.frames[len(b.frames)-1]
		b.frames = b.frames[:len(b.frames)-1]
		if f.kind == 'i' {
			if !f.sawElse {
				b.emitLabelMarker(f.elseLabel)
			}
			b.emitLabelMarker(f.endLabel)
		} else if f.kind == 'b' {
			b.emitLabelMarker(f.endLabel)
		}
		// loop frames need no trailing marker: falling through just continues.

	case wasm.OpBr:
		target, err := b.resolveBranch(in.LabelIndex)
		if err != nil {
			return err
		}
		b.emit(bytecode.Instruction{Op: bytecode.OpJump, Operands: []bytecode.Operand{bytecode.LabelOperand(target)}})
	case wasm.OpBrIf:
		target, err := b.resolveBranch(in.LabelIndex)
		if err != nil {
			return err
		}
		b.emit(bytecode.Instruction{Op: bytecode.OpJumpIf, Operands: []bytecode.Operand{bytecode.LabelOperand(target)}})
	case wasm.OpBrTable:
		return b.translateBrTable(in)
	case wasm.OpReturn:
		b.emit(bytecode.Instruction{Op: bytecode.OpReturn})
	case wasm.OpCall:
		b.emit(bytecode.Instruction{Op: bytecode.OpCall, Operands: []bytecode.Operand{bytecode.ImmediateOperand(int32(in.FunctionIndex))}})
	case wasm.OpCallIndirect:
		// Indirect calls resolve their target at runtime: the immediate -1
		// marks the call as indirect, and the execution engine pops the
		// callee's function index from the operand stack. The type and
		// table indexes are not carried.
		b.emit(bytecode.Instruction{Op: bytecode.OpCall, Operands: []bytecode.Operand{bytecode.ImmediateOperand(-1)}})

	case wasm.OpDrop:
		b.emit(bytecode.Instruction{Op: bytecode.OpPop})
	case wasm.OpSelect, wasm.OpSelectWithType:
		// select consumes [val1, val2, cond] and leaves val1 if cond else
		// val2: implemented as JumpIf over an explicit two-path sequence.
		keep := b.newLabel("select_keep")
		end := b.newLabel("select_end")
		b.emit(bytecode.Instruction{Op: bytecode.OpJumpIf, Operands: []bytecode.Operand{bytecode.LabelOperand(keep)}})
		b.emit(bytecode.Instruction{Op: bytecode.OpSwap})
		b.emit(bytecode.Instruction{Op: bytecode.OpPop})
		b.emit(bytecode.Instruction{Op: bytecode.OpJump, Operands: []bytecode.Operand{bytecode.LabelOperand(end)}})
		b.emitLabelMarker(keep)
		b.emit(bytecode.Instruction{Op: bytecode.OpPop})
		b.emitLabelMarker(end)

	case wasm.OpLocalGet:
		b.emit(bytecode.Instruction{Op: bytecode.OpLoad, Operands: []bytecode.Operand{bytecode.StackOffsetOperand(int32(in.LocalIndex))}})
	case wasm.OpLocalSet:
		b.emit(bytecode.Instruction{Op: bytecode.OpStore, Operands: []bytecode.Operand{bytecode.StackOffsetOperand(int32(in.LocalIndex))}})
	case wasm.OpLocalTee:
		b.emit(bytecode.Instruction{Op: bytecode.OpDup})
		b.emit(bytecode.Instruction{Op: bytecode.OpStore, Operands: []bytecode.Operand{bytecode.StackOffsetOperand(int32(in.LocalIndex))}})
	case wasm.OpGlobalGet:
		b.emit(bytecode.Instruction{Op: bytecode.OpLoad, Operands: []bytecode.Operand{bytecode.GlobalOperand(int32(in.GlobalIndex))}})
	case wasm.OpGlobalSet:
		b.emit(bytecode.Instruction{Op: bytecode.OpStore, Operands: []bytecode.Operand{bytecode.GlobalOperand(int32(in.GlobalIndex))}})

	case wasm.OpI32Const:
		b.emit(bytecode.Instruction{Op: bytecode.OpPushInt32, Operands: []bytecode.Operand{bytecode.ImmediateOperand(in.I32)}})
	case wasm.OpI64Const:
		b.emit(bytecode.Instruction{Op: bytecode.OpPushInt64, Operands: []bytecode.Operand{bytecode.LargeImmediateOperand(in.I64)}})
	case wasm.OpF32Const:
		bits := int32(math.Float32bits(in.F32))
		b.emit(bytecode.Instruction{Op: bytecode.OpPushFloat32, Operands: []bytecode.Operand{bytecode.ImmediateOperand(bits)}})
	case wasm.OpF64Const:
		bits := int64(math.Float64bits(in.F64))
		b.emit(bytecode.Instruction{Op: bytecode.OpPushFloat64, Operands: []bytecode.Operand{bytecode.LargeImmediateOperand(bits)}})

	case wasm.OpMemorySize, wasm.OpMemoryGrow:
		// Memory bookkeeping ops have no direct bytecode equivalent in this
		// core; both lower to a single Nop. memory.grow's operand is left on
		// the stack in place of its result; memory.size pushes nothing.
		b.emit(bytecode.Instruction{Op: bytecode.OpNop})

	case wasm.OpNumeric:
		return b.translateNumeric(in)

	default:
		return b.translateMemoryOp(in)
	}
	return nil
}

// resolveBranch maps a WASM relative block-depth index to the label of the
// frame it refers to (spec.md §4.9 label resolution).
func (b *builder) resolveBranch(depth uint32) (string, error) {
	idx := len(b.frames) - 1 - int(depth)
	if idx < 0 || idx >= len(b.frames) {
		return "", errs.New(errs.KindFormat, "branch depth out of range").With(map[string]any{"depth": depth})
	}
	return b.frames[idx].branchTarget(), nil
}

// translateBrTable lowers br_table to a linear cascade of equality tests
// against the selector left on the stack by the caller: for each case i it
// computes (selector - i) and jumps to the case label only when that
// difference is exactly zero, falling through to the next case otherwise;
// the selector is dropped before the final default jump.
func (b *builder) translateBrTable(in wasm.Instruction) error {
	for i, depth := range in.LabelIndexes {
		target, err := b.resolveBranch(depth)
		if err != nil {
			return err
		}
		skip := b.newLabel(fmt.Sprintf("brtable_skip%d", i))
		b.emit(bytecode.Instruction{Op: bytecode.OpDup})
		b.emit(bytecode.Instruction{Op: bytecode.OpPushInt32, Operands: []bytecode.Operand{bytecode.ImmediateOperand(int32(i))}})
		b.emit(bytecode.Instruction{Op: bytecode.OpSub})
		b.emit(bytecode.Instruction{Op: bytecode.OpJumpIf, Operands: []bytecode.Operand{bytecode.LabelOperand(skip)}})
		b.emit(bytecode.Instruction{Op: bytecode.OpPop}) // drop selector before taking the match
		b.emit(bytecode.Instruction{Op: bytecode.OpJump, Operands: []bytecode.Operand{bytecode.LabelOperand(target)}})
		b.emitLabelMarker(skip)
	}
	defaultTarget, err := b.resolveBranch(in.DefaultLabel)
	if err != nil {
		return err
	}
	b.emit(bytecode.Instruction{Op: bytecode.OpPop})
	b.emit(bytecode.Instruction{Op: bytecode.OpJump, Operands: []bytecode.Operand{bytecode.LabelOperand(defaultTarget)}})
	return nil
}

// numericOpTable maps a WASM numeric mnemonic suffix (after the value-type
// prefix) to its bytecode opcode. The VM's operand stack is dynamically
// typed (spec.md §3: "elements typed as int64, float64, or string"), so the
// i32/i64/f32/f64 distinction in the mnemonic only matters for picking the
// opcode family, not for choosing a different opcode per width.
var numericOpTable = map[string]bytecode.Opcode{
	"add":    bytecode.OpAdd,
	"sub":    bytecode.OpSub,
	"mul":    bytecode.OpMul,
	"div_s":  bytecode.OpDiv,
	"div_u":  bytecode.OpDiv,
	"div":    bytecode.OpDiv,
	"rem_s":  bytecode.OpMod,
	"rem_u":  bytecode.OpMod,
	"and":    bytecode.OpAnd,
	"or":     bytecode.OpOr,
	"xor":    bytecode.OpXor,
	"shl":    bytecode.OpShl,
	"shr_s":  bytecode.OpShr,
	"shr_u":  bytecode.OpShr,
	"eq":     bytecode.OpEq,
	"ne":     bytecode.OpNe,
	"lt_s":   bytecode.OpLt,
	"lt_u":   bytecode.OpLt,
	"lt":     bytecode.OpLt,
	"gt_s":   bytecode.OpGt,
	"gt_u":   bytecode.OpGt,
	"gt":     bytecode.OpGt,
	"le_s":   bytecode.OpLe,
	"le_u":   bytecode.OpLe,
	"le":     bytecode.OpLe,
	"ge_s":   bytecode.OpGe,
	"ge_u":   bytecode.OpGe,
	"ge":     bytecode.OpGe,
	"neg":    bytecode.OpNeg,
	"eqz":    bytecode.OpNot,
}

// translateNumeric lowers a generically-decoded WASM numeric instruction
// (wasm.OpNumeric, carrying its mnemonic in Raw) to the matching bytecode
// opcode. Conversion opcodes (e.g. "i32.wrap_i64", "f64.convert_i32_s")
// have no narrower bytecode equivalent and lower to a single Convert
// opcode; the execution engine performs the actual coercion based on the
// runtime type of the stack's top value.
func (b *builder) translateNumeric(in wasm.Instruction) error {
	parts := strings.SplitN(in.Raw, ".", 2)
	mnemonic := in.Raw
	if len(parts) == 2 {
		mnemonic = parts[1]
	}
	if op, ok := numericOpTable[mnemonic]; ok {
		b.emit(bytecode.Instruction{Op: op})
		return nil
	}
	if strings.Contains(mnemonic, "convert") || strings.Contains(mnemonic, "wrap") ||
		strings.Contains(mnemonic, "trunc") || strings.Contains(mnemonic, "extend") ||
		strings.Contains(mnemonic, "promote") || strings.Contains(mnemonic, "demote") ||
		strings.Contains(mnemonic, "reinterpret") {
		b.emit(bytecode.Instruction{Op: bytecode.OpConvert})
		return nil
	}
	// Bit-counting and other rarely-used numeric ops (clz/ctz/popcnt,
	// min/max, copysign, ...) are outside this core's opcode surface; they
	// lower to Nop rather than failing translation, matching spec.md's
	// "out-of-order sections are reported as warnings but still processed"
	// tolerance for the analogous case in the parser.
	b.emit(bytecode.Instruction{Op: bytecode.OpNop})
	return nil
}

// translateMemoryOp lowers the Op*Load*/Op*Store* family to generic
// OpLoad/OpStore with a Memory operand carrying the WASM memarg's offset;
// the effective address is offset + the address popped from the stack by
// the engine at execution time (spec.md §4.11 "Memory ops carry their
// (base, offset) and alignment").
func (b *builder) translateMemoryOp(in wasm.Instruction) error {
	switch in.Op {
	case wasm.OpI32Load, wasm.OpI64Load, wasm.OpF32Load, wasm.OpF64Load,
		wasm.OpI32Load8S, wasm.OpI32Load8U, wasm.OpI32Load16S, wasm.OpI32Load16U,
		wasm.OpI64Load8S, wasm.OpI64Load8U, wasm.OpI64Load16S, wasm.OpI64Load16U,
		wasm.OpI64Load32S, wasm.OpI64Load32U:
		b.emit(bytecode.Instruction{Op: bytecode.OpLoad, Operands: []bytecode.Operand{
			bytecode.MemoryOperand(0, int32(in.MemArg.Offset)),
		}})
		return nil
	case wasm.OpI32Store, wasm.OpI64Store, wasm.OpF32Store, wasm.OpF64Store,
		wasm.OpI32Store8, wasm.OpI32Store16, wasm.OpI64Store8, wasm.OpI64Store16, wasm.OpI64Store32:
		b.emit(bytecode.Instruction{Op: bytecode.OpStore, Operands: []bytecode.Operand{
			bytecode.MemoryOperand(0, int32(in.MemArg.Offset)),
		}})
		return nil
	default:
		return errs.New(errs.KindFormat, "unsupported instruction for translation").With(map[string]any{"op": in.Op})
	}
}
