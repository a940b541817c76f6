package assembler

import "github.com/synerthink/dotlanth/bytecode"

// encodeInstruction writes one instruction's 16-bit hashed opcode id
// followed by its operand sequence (spec.md §4.10 "Instruction encoding:
// 16-bit hashed opcode id + operand sequence"). Per spec.md §9 Open
// Question #2 the "hash" is the fixed static opcode table bytecode assigns,
// so the id written here is simply Opcode's stable numeric value.
//
// Label markers and symbolic label references exist only to drive label
// resolution inside the translator; by the time an instruction reaches the
// assembler every OperandLabel operand already carries its target as an
// absolute instruction index in Imm (translator.resolveLabels), so neither
// the instruction's own Label field nor an operand's Label string is
// written — position within the code stream is the only thing a jump
// target needs.
func encodeInstruction(w *writer, in bytecode.Instruction) error {
	w.u16(uint16(in.Op))
	if len(in.Operands) > 255 {
		return errInvalidFormat("too many operands")
	}
	w.u8(uint8(len(in.Operands)))
	for _, op := range in.Operands {
		w.u8(uint8(op.Kind))
		switch op.Kind {
		case bytecode.OperandNone:
		case bytecode.OperandRegister:
			w.u16(uint16(int16(op.Imm)))
		case bytecode.OperandLargeImmediate:
			w.i64(op.LargeImm)
		case bytecode.OperandMemory:
			w.i32(op.MemBase)
			w.i32(op.MemOffset)
		default: // Immediate, Label (resolved), StackOffset, Global
			w.i32(op.Imm)
		}
	}
	return nil
}

// decodeInstruction reads back one instruction written by encodeInstruction.
func decodeInstruction(r *reader) (bytecode.Instruction, error) {
	opVal, err := r.u16()
	if err != nil {
		return bytecode.Instruction{}, err
	}
	op := bytecode.Opcode(opVal)
	if !op.Valid() {
		return bytecode.Instruction{}, errInvalidFormat("unknown opcode id")
	}
	count, err := r.u8()
	if err != nil {
		return bytecode.Instruction{}, err
	}
	// An instruction written with no operands reads back with a nil slice,
	// as it was built, so the round trip is exact.
	var operands []bytecode.Operand
	if count > 0 {
		operands = make([]bytecode.Operand, 0, count)
	}
	for i := 0; i < int(count); i++ {
		kindByte, err := r.u8()
		if err != nil {
			return bytecode.Instruction{}, err
		}
		kind := bytecode.OperandKind(kindByte)
		var operand bytecode.Operand
		operand.Kind = kind
		switch kind {
		case bytecode.OperandNone:
		case bytecode.OperandRegister:
			v, err := r.u16()
			if err != nil {
				return bytecode.Instruction{}, err
			}
			operand.Imm = int32(int16(v))
		case bytecode.OperandLargeImmediate:
			v, err := r.i64()
			if err != nil {
				return bytecode.Instruction{}, err
			}
			operand.LargeImm = v
		case bytecode.OperandMemory:
			base, err := r.i32()
			if err != nil {
				return bytecode.Instruction{}, err
			}
			offset, err := r.i32()
			if err != nil {
				return bytecode.Instruction{}, err
			}
			operand.MemBase = base
			operand.MemOffset = offset
		default:
			v, err := r.i32()
			if err != nil {
				return bytecode.Instruction{}, err
			}
			operand.Imm = v
		}
		operands = append(operands, operand)
	}
	return bytecode.Instruction{Op: op, Operands: operands}, nil
}
