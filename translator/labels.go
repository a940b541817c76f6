package translator

import (
	"github.com/synerthink/dotlanth/bytecode"
	"github.com/synerthink/dotlanth/errs"
)

// resolveLabels runs the single patch pass spec.md §4.9 describes: every
// label emission site (an instruction whose Label field names it) is
// indexed, then every pending OperandLabel reference is rewritten in place
// with the absolute instruction index of its target. Jump targets in this
// core are instruction indices into the function's own Instructions slice
// (the execution engine keeps a function's decoded instructions resident as
// a Go slice rather than re-decoding a byte stream per fetch, so "relative
// target offset" and "absolute index" coincide: pc is always local to one
// function). An unresolved reference fails with LabelResolutionFailed,
// naming the label, per spec.md §4.9.
func resolveLabels(fn *Function) error {
	index := make(map[string]int, len(fn.Instructions))
	for i, in := range fn.Instructions {
		if in.Label != "" {
			index[in.Label] = i
		}
	}
	for i := range fn.Instructions {
		ops := fn.Instructions[i].Operands
		for j := range ops {
			if ops[j].Kind != bytecode.OperandLabel {
				continue
			}
			target, ok := index[ops[j].Label]
			if !ok {
				return errLabelResolutionFailed(ops[j].Label)
			}
			ops[j].Imm = int32(target)
		}
	}
	return nil
}

func errLabelResolutionFailed(label string) *errs.Error {
	return errs.New(errs.KindFormat, "label resolution failed").With(map[string]any{"label": label})
}
