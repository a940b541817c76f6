package translator

import (
	"strings"

	"github.com/synerthink/dotlanth/bytecode"
)

// optimizeFunction runs the configured pipeline over one function's
// instructions in place: constant folding and dead-code elimination
// (independent toggles), then the level-gated passes (spec.md §4.9). Every
// pass preserves every instruction that carries a non-empty Label (a jump
// target) — an optimization may never delete or reorder a branch's
// destination, only the straight-line code between them. Passes never
// alter observable semantics (spec.md §8 "Optimizer transparency").
func optimizeFunction(fn *Function, opts Options) {
	out := fn.Instructions
	if opts.ConstantFolding {
		out = foldConstants(out)
	}
	if opts.DeadCodeElimination {
		out = eliminateDeadCode(out)
	}
	if opts.OptLevel >= 1 {
		out = peephole(out)
	}
	if opts.OptLevel >= 2 {
		fn.RegisterHints = allocateRegisterHints(out)
	}
	if opts.OptLevel >= 3 {
		out = loopInvariantCodeMotion(out)
	}
	fn.Instructions = out
}

// allocateRegisterHints builds a bounded interference-graph coloring over
// every stack-offset/global slot referenced by out: two slots interfere
// when their live ranges (first use to last use) overlap, and colors
// (physical register indices) are assigned greedily in slot order, capped
// at maxHintRegisters (spec.md §4.9 "simple register allocation... bounded
// in size"). Slots beyond the cap share color -1 (no hint, spill to stack).
const maxHintRegisters = 8

func allocateRegisterHints(instrs []bytecode.Instruction) map[int32]int32 {
	type liveRange struct{ first, last int }
	ranges := make(map[int32]*liveRange)
	order := make([]int32, 0)
	for i, in := range instrs {
		for _, op := range in.Operands {
			if op.Kind != bytecode.OperandStackOffset && op.Kind != bytecode.OperandGlobal {
				continue
			}
			r, ok := ranges[op.Imm]
			if !ok {
				r = &liveRange{first: i, last: i}
				ranges[op.Imm] = r
				order = append(order, op.Imm)
			}
			r.last = i
		}
	}

	hints := make(map[int32]int32, len(order))
	for _, slot := range order {
		r := *ranges[slot]
		color := int32(-1)
		for c := 0; c < maxHintRegisters; c++ {
			free := true
			for slot2, r2 := range ranges {
				if slot2 == slot {
					continue
				}
				if assigned, ok := hints[slot2]; ok && assigned == int32(c) && !(r.first > r2.last || r.last < r2.first) {
					free = false
					break
				}
			}
			if free {
				color = int32(c)
				break
			}
		}
		hints[slot] = color
	}
	return hints
}

func isPushImmediate(in bytecode.Instruction) (int64, bool) {
	if len(in.Operands) != 1 {
		return 0, false
	}
	switch in.Op {
	case bytecode.OpPushInt8, bytecode.OpPushInt16, bytecode.OpPushInt32:
		return int64(in.Operands[0].Imm), true
	case bytecode.OpPushInt64:
		return in.Operands[0].LargeImm, true
	default:
		return 0, false
	}
}

// foldConstants collapses a run of [push imm1, push imm2, Add/Sub/Mul] into
// a single push of the computed result, when neither the second push nor the
// operator is a jump target; a label on the first push is carried over to
// the folded push (spec.md §4.9: "Dead-code elimination and constant folding
// are independent toggles").
func foldConstants(in []bytecode.Instruction) []bytecode.Instruction {
	out := make([]bytecode.Instruction, 0, len(in))
	i := 0
	for i < len(in) {
		if i+2 < len(in) {
			a, aOK := isPushImmediate(in[i])
			b, bOK := isPushImmediate(in[i+1])
			op := in[i+2].Op
			if aOK && bOK && in[i+1].Label == "" && in[i+2].Label == "" &&
				(op == bytecode.OpAdd || op == bytecode.OpSub || op == bytecode.OpMul) {
				var result int64
				switch op {
				case bytecode.OpAdd:
					result = a + b
				case bytecode.OpSub:
					result = a - b
				case bytecode.OpMul:
					result = a * b
				}
				out = append(out, bytecode.Instruction{
					Op:       bytecode.OpPushInt64,
					Operands: []bytecode.Operand{bytecode.LargeImmediateOperand(result)},
					Label:    in[i].Label,
				})
				i += 3
				continue
			}
		}
		out = append(out, in[i])
		i++
	}
	return out
}

// eliminateDeadCode drops instructions that follow an unconditional
// terminator (Halt, Return, or an unconditional Jump) up to the next
// label-marked instruction (a possible jump target) or the end of the
// function.
func eliminateDeadCode(in []bytecode.Instruction) []bytecode.Instruction {
	out := make([]bytecode.Instruction, 0, len(in))
	dead := false
	for _, instr := range in {
		if instr.Label != "" {
			dead = false
		}
		if dead {
			continue
		}
		out = append(out, instr)
		switch instr.Op {
		case bytecode.OpHalt, bytecode.OpReturn, bytecode.OpJump:
			dead = true
		}
	}
	return out
}

// peephole implements the level-1 pass: push-then-pop elimination,
// redundant-move (Dup;Pop) removal, and add/sub-with-zero, mul-by-one
// simplification (spec.md §4.9 "L1: peephole").
func peephole(in []bytecode.Instruction) []bytecode.Instruction {
	out := make([]bytecode.Instruction, 0, len(in))
	i := 0
	for i < len(in) {
		if i+1 < len(in) && in[i].Label == "" && in[i+1].Label == "" {
			cur, next := in[i], in[i+1]
			if isPushFamily(cur.Op) && next.Op == bytecode.OpPop {
				i += 2
				continue
			}
			if cur.Op == bytecode.OpDup && next.Op == bytecode.OpPop {
				i += 2
				continue
			}
			if v, ok := isPushImmediate(cur); ok && next.Label == "" {
				if v == 0 && (next.Op == bytecode.OpAdd || next.Op == bytecode.OpSub) {
					i += 2
					continue
				}
				if v == 1 && next.Op == bytecode.OpMul {
					i += 2
					continue
				}
			}
		}
		out = append(out, in[i])
		i++
	}
	return out
}

func isPushFamily(op bytecode.Opcode) bool {
	switch op {
	case bytecode.OpPush, bytecode.OpPushInt8, bytecode.OpPushInt16, bytecode.OpPushInt32,
		bytecode.OpPushInt64, bytecode.OpPushFloat32, bytecode.OpPushFloat64:
		return true
	default:
		return false
	}
}

// loopInvariantCodeMotion hoists a narrowly-scoped, provably safe pattern:
// a loop body whose very first two instructions are a constant push
// immediately followed by a store to a local/global slot that no other
// instruction inside the loop body writes. Since the pushed value never
// changes between iterations and nothing else in the loop can overwrite
// it with something different, re-running the store on every iteration is
// equivalent to running it once on first entry — so it is hoisted to just
// before the loop header, leaving every later iteration's copy removed.
// This is deliberately conservative: it does not attempt the general case
// (arbitrary loop-invariant expressions, aliasing through memory), which
// would need alias analysis this core's IR does not carry.
func loopInvariantCodeMotion(in []bytecode.Instruction) []bytecode.Instruction {
	out := append([]bytecode.Instruction(nil), in...)
	for i := 0; i < len(out); i++ {
		if out[i].Label == "" || !strings.Contains(out[i].Label, ".loop_start") {
			continue
		}
		headerIdx := i
		if headerIdx+2 >= len(out) {
			continue
		}
		push := out[headerIdx+1]
		store := out[headerIdx+2]
		if store.Label != "" || push.Label != "" {
			continue
		}
		if !isPushFamily(push.Op) || store.Op != bytecode.OpStore || len(store.Operands) != 1 {
			continue
		}
		target := store.Operands[0]
		if target.Kind != bytecode.OperandStackOffset && target.Kind != bytecode.OperandGlobal {
			continue
		}
		backEdge := findBackEdge(out, headerIdx, out[headerIdx].Label)
		if backEdge < 0 {
			continue
		}
		if writesSameTarget(out[headerIdx+3:backEdge], target) {
			continue
		}
		// Safe to hoist: move the [push, store] pair before the header.
		hoisted := []bytecode.Instruction{push, store}
		rest := append(append([]bytecode.Instruction{}, out[:headerIdx]...), hoisted...)
		rest = append(rest, out[headerIdx])
		rest = append(rest, out[headerIdx+3:]...)
		out = rest
	}
	return out
}

func findBackEdge(in []bytecode.Instruction, from int, label string) int {
	for i := from + 1; i < len(in); i++ {
		if in[i].Op == bytecode.OpJump && len(in[i].Operands) == 1 && in[i].Operands[0].Label == label {
			return i
		}
	}
	return -1
}

func writesSameTarget(in []bytecode.Instruction, target bytecode.Operand) bool {
	for _, instr := range in {
		if instr.Op != bytecode.OpStore || len(instr.Operands) != 1 {
			continue
		}
		o := instr.Operands[0]
		if o.Kind == target.Kind && o.Imm == target.Imm {
			return true
		}
	}
	return false
}
