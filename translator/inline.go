package translator

import "github.com/synerthink/dotlanth/bytecode"

// maxInlineBody bounds which callees qualify for inlining (spec.md §4.9
// "L3: ...function inlining for small callees").
const maxInlineBody = 8

// inlineSmallCallees replaces Call instructions targeting small,
// straight-line, zero-parameter, non-exported-only-by-accident functions
// with a copy of the callee's body (minus its trailing Return), repeated
// at every call site. Eligibility is deliberately narrow: a callee with
// any internal branch or label, any parameter or local, or a recursive/mutual call
// back into itself is left as a real call, since inlining those safely
// would require the full argument-passing and recursion analysis this
// core's simple stack-offset locals model does not carry (spec.md §4.9
// "Passes never alter observable semantics").
func inlineSmallCallees(m *Module, importedFuncCount uint32) {
	eligible := make(map[uint32][]bytecode.Instruction)
	for i, fn := range m.Functions {
		idx := importedFuncCount + uint32(i)
		if fn.ParamCount != 0 || fn.LocalCount != 0 || len(fn.Instructions) > maxInlineBody {
			continue
		}
		if hasBranchOrCall(fn.Instructions) {
			continue
		}
		body := fn.Instructions
		if n := len(body); n > 0 && body[n-1].Op == bytecode.OpReturn && body[n-1].Label == "" {
			body = body[:n-1]
		}
		eligible[idx] = body
	}

	for fi := range m.Functions {
		selfIdx := importedFuncCount + uint32(fi)
		fn := &m.Functions[fi]
		var out []bytecode.Instruction
		for _, in := range fn.Instructions {
			if in.Op == bytecode.OpCall && len(in.Operands) == 1 && in.Operands[0].Kind == bytecode.OperandImmediate {
				target := uint32(in.Operands[0].Imm)
				if body, ok := eligible[target]; ok && target != selfIdx {
					out = append(out, cloneInstructions(body)...)
					continue
				}
			}
			out = append(out, in)
		}
		fn.Instructions = out
	}
}

func hasBranchOrCall(instrs []bytecode.Instruction) bool {
	for _, in := range instrs {
		switch in.Op {
		case bytecode.OpJump, bytecode.OpJumpIf, bytecode.OpCall:
			return true
		}
		if in.Label != "" {
			return true
		}
	}
	return false
}

func cloneInstructions(in []bytecode.Instruction) []bytecode.Instruction {
	out := make([]bytecode.Instruction, len(in))
	for i, instr := range in {
		ops := append([]bytecode.Operand(nil), instr.Operands...)
		out[i] = bytecode.Instruction{Op: instr.Op, Operands: ops, Label: instr.Label, Source: instr.Source}
	}
	return out
}
