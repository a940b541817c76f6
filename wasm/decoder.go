package wasm

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/synerthink/dotlanth/errs"
)

const (
	magic       uint32 = 0x6d736100 // "\0asm"
	wasmVersion uint32 = 1
)

type sectionID uint8

const (
	secCustom sectionID = iota
	secType
	secImport
	secFunction
	secTable
	secMemory
	secGlobal
	secExport
	secStart
	secElement
	secCode
	secData
)

var canonicalOrder = []sectionID{secType, secImport, secFunction, secTable, secMemory, secGlobal, secExport, secStart, secElement, secCode, secData}

// reader walks a byte slice tracking its absolute offset, so decode errors
// can report a precise byte position (spec.md §4.8).
type reader struct {
	buf []byte
	pos int
}

func (r *reader) offsetErr(msg string) error {
	return errs.New(errs.KindFormat, msg).With(map[string]any{"offset": r.pos})
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, r.offsetErr("truncated stream")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytesN(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, r.offsetErr("truncated stream")
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u32le() (uint32, error) {
	b, err := r.bytesN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// uleb128 decodes an unsigned LEB128 integer.
func (r *reader) uleb128() (uint64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
		if shift > 63 {
			return 0, r.offsetErr("LEB128 overflow")
		}
	}
}

// sleb128 decodes a signed LEB128 integer.
func (r *reader) sleb128() (int64, error) {
	var result int64
	var shift uint
	var b byte
	var err error
	for {
		b, err = r.byte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, nil
}

func (r *reader) u32() (uint32, error) {
	v, err := r.uleb128()
	return uint32(v), err
}

func (r *reader) str() (string, error) {
	n, err := r.uleb128()
	if err != nil {
		return "", err
	}
	b, err := r.bytesN(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) valueType() (ValueType, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	switch b {
	case 0x7f:
		return I32, nil
	case 0x7e:
		return I64, nil
	case 0x7d:
		return F32, nil
	case 0x7c:
		return F64, nil
	case 0x7b:
		return V128, nil
	case 0x70:
		return FuncRef, nil
	case 0x6f:
		return ExternRef, nil
	default:
		return 0, r.offsetErr(fmt.Sprintf("unknown value type 0x%02x", b))
	}
}

// Decode parses a WASM binary into a typed Module (spec.md §4.8).
func Decode(data []byte) (*Module, error) {
	r := &reader{buf: data}
	m, err := r.u32le()
	if err != nil {
		return nil, err
	}
	if m != magic {
		return nil, r.offsetErr("bad WASM magic")
	}
	v, err := r.u32le()
	if err != nil {
		return nil, err
	}
	if v != wasmVersion {
		return nil, r.offsetErr("unsupported WASM version")
	}

	mod := &Module{}
	seenOrder := -1
	for r.pos < len(r.buf) {
		idByte, err := r.byte()
		if err != nil {
			return nil, err
		}
		id := sectionID(idByte)
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		if r.pos+int(size) > len(r.buf) {
			return nil, r.offsetErr("section size exceeds stream length")
		}
		body := r.buf[r.pos : r.pos+int(size)]
		sr := &reader{buf: body}

		if id != secCustom {
			idx := canonicalIndex(id)
			if idx < seenOrder {
				mod.Warnings = append(mod.Warnings, fmt.Sprintf("section %d out of canonical order at offset %d", id, r.pos))
			} else {
				seenOrder = idx
			}
		}

		switch id {
		case secCustom:
			// Skipped: custom sections carry no module semantics here.
		case secType:
			if err := decodeTypeSection(sr, mod); err != nil {
				return nil, err
			}
		case secImport:
			if err := decodeImportSection(sr, mod); err != nil {
				return nil, err
			}
		case secFunction:
			if err := decodeFunctionSection(sr, mod); err != nil {
				return nil, err
			}
		case secTable:
			if err := decodeTableSection(sr, mod); err != nil {
				return nil, err
			}
		case secMemory:
			if err := decodeMemorySection(sr, mod); err != nil {
				return nil, err
			}
		case secGlobal:
			if err := decodeGlobalSection(sr, mod); err != nil {
				return nil, err
			}
		case secExport:
			if err := decodeExportSection(sr, mod); err != nil {
				return nil, err
			}
		case secStart:
			idx, err := sr.u32()
			if err != nil {
				return nil, err
			}
			mod.StartFunction = &idx
		case secElement:
			if err := decodeElementSection(sr, mod); err != nil {
				return nil, err
			}
		case secCode:
			if err := decodeCodeSection(sr, mod); err != nil {
				return nil, err
			}
		case secData:
			if err := decodeDataSection(sr, mod); err != nil {
				return nil, err
			}
		default:
			return nil, r.offsetErr(fmt.Sprintf("unknown section id %d", id))
		}

		r.pos += int(size)
	}
	return mod, nil
}

func canonicalIndex(id sectionID) int {
	for i, c := range canonicalOrder {
		if c == id {
			return i
		}
	}
	return -1
}

func decodeTypeSection(r *reader, m *Module) error {
	count, err := r.uleb128()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		form, err := r.byte()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return r.offsetErr("bad function type form")
		}
		paramCount, err := r.uleb128()
		if err != nil {
			return err
		}
		params := make([]ValueType, paramCount)
		for j := range params {
			if params[j], err = r.valueType(); err != nil {
				return err
			}
		}
		resultCount, err := r.uleb128()
		if err != nil {
			return err
		}
		results := make([]ValueType, resultCount)
		for j := range results {
			if results[j], err = r.valueType(); err != nil {
				return err
			}
		}
		m.Types = append(m.Types, FunctionType{Params: params, Results: results})
	}
	return nil
}

func decodeLimits(r *reader) (min uint32, max *uint32, shared bool, err error) {
	flags, err := r.byte()
	if err != nil {
		return 0, nil, false, err
	}
	minV, err := r.u32()
	if err != nil {
		return 0, nil, false, err
	}
	if flags&0x01 != 0 {
		maxV, err := r.u32()
		if err != nil {
			return 0, nil, false, err
		}
		return minV, &maxV, flags&0x02 != 0, nil
	}
	return minV, nil, flags&0x02 != 0, nil
}

func decodeImportSection(r *reader, m *Module) error {
	count, err := r.uleb128()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		mod, err := r.str()
		if err != nil {
			return err
		}
		name, err := r.str()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		imp := Import{Module: mod, Name: name}
		switch kind {
		case 0x00:
			imp.Kind = ImportFunction
			if imp.TypeIdx, err = r.u32(); err != nil {
				return err
			}
		case 0x01:
			imp.Kind = ImportTable
			et, err := r.valueType()
			if err != nil {
				return err
			}
			min, max, _, err := decodeLimits(r)
			if err != nil {
				return err
			}
			imp.Table = Table{ElementType: et, Initial: min, Maximum: max}
		case 0x02:
			imp.Kind = ImportMemory
			min, max, shared, err := decodeLimits(r)
			if err != nil {
				return err
			}
			imp.Mem = Memory{MinPages: min, MaxPages: max, Shared: shared}
		case 0x03:
			imp.Kind = ImportGlobal
			gt, err := r.valueType()
			if err != nil {
				return err
			}
			mutByte, err := r.byte()
			if err != nil {
				return err
			}
			imp.GType = gt
			imp.GMut = mutByte != 0
		default:
			return r.offsetErr(fmt.Sprintf("unknown import kind %d", kind))
		}
		m.Imports = append(m.Imports, imp)
	}
	return nil
}

func decodeFunctionSection(r *reader, m *Module) error {
	count, err := r.uleb128()
	if err != nil {
		return err
	}
	m.Functions = make([]Function, count)
	for i := uint64(0); i < count; i++ {
		typeIdx, err := r.u32()
		if err != nil {
			return err
		}
		if int(typeIdx) < len(m.Types) {
			m.Functions[i].Signature = m.Types[typeIdx]
		}
	}
	return nil
}

func decodeTableSection(r *reader, m *Module) error {
	count, err := r.uleb128()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		et, err := r.valueType()
		if err != nil {
			return err
		}
		min, max, _, err := decodeLimits(r)
		if err != nil {
			return err
		}
		m.Tables = append(m.Tables, Table{ElementType: et, Initial: min, Maximum: max})
	}
	return nil
}

func decodeMemorySection(r *reader, m *Module) error {
	count, err := r.uleb128()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		min, max, shared, err := decodeLimits(r)
		if err != nil {
			return err
		}
		m.Memories = append(m.Memories, Memory{MinPages: min, MaxPages: max, Shared: shared})
	}
	return nil
}

func decodeGlobalSection(r *reader, m *Module) error {
	count, err := r.uleb128()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		gt, err := r.valueType()
		if err != nil {
			return err
		}
		mutByte, err := r.byte()
		if err != nil {
			return err
		}
		init, err := decodeExpr(r)
		if err != nil {
			return err
		}
		m.Globals = append(m.Globals, Global{Type: gt, Mutable: mutByte != 0, Init: init})
	}
	return nil
}

func decodeExportSection(r *reader, m *Module) error {
	count, err := r.uleb128()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		name, err := r.str()
		if err != nil {
			return err
		}
		kindByte, err := r.byte()
		if err != nil {
			return err
		}
		idx, err := r.u32()
		if err != nil {
			return err
		}
		var kind ExportKind
		switch kindByte {
		case 0x00:
			kind = ExportFunction
		case 0x01:
			kind = ExportTable
		case 0x02:
			kind = ExportMemory
		case 0x03:
			kind = ExportGlobal
		default:
			return r.offsetErr(fmt.Sprintf("unknown export kind %d", kindByte))
		}
		m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Index: idx})
	}
	return nil
}

func decodeElementSection(r *reader, m *Module) error {
	count, err := r.uleb128()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		tableIdx, err := r.u32()
		if err != nil {
			return err
		}
		offset, err := decodeExpr(r)
		if err != nil {
			return err
		}
		n, err := r.uleb128()
		if err != nil {
			return err
		}
		elems := make([]uint32, n)
		for j := range elems {
			if elems[j], err = r.u32(); err != nil {
				return err
			}
		}
		m.ElementSegments = append(m.ElementSegments, ElementSegment{TableIndex: tableIdx, Offset: offset, Elements: elems})
	}
	return nil
}

func decodeDataSection(r *reader, m *Module) error {
	count, err := r.uleb128()
	if err != nil {
		return err
	}
	for i := uint64(0); i < count; i++ {
		memIdx, err := r.u32()
		if err != nil {
			return err
		}
		offset, err := decodeExpr(r)
		if err != nil {
			return err
		}
		n, err := r.uleb128()
		if err != nil {
			return err
		}
		data, err := r.bytesN(int(n))
		if err != nil {
			return err
		}
		m.DataSegments = append(m.DataSegments, DataSegment{MemoryIndex: memIdx, Offset: offset, Data: append([]byte(nil), data...)})
	}
	return nil
}

func decodeCodeSection(r *reader, m *Module) error {
	count, err := r.uleb128()
	if err != nil {
		return err
	}
	if int(count) != len(m.Functions) {
		return r.offsetErr("code section entry count disagrees with function section")
	}
	for i := uint64(0); i < count; i++ {
		bodySize, err := r.uleb128()
		if err != nil {
			return err
		}
		body, err := r.bytesN(int(bodySize))
		if err != nil {
			return err
		}
		br := &reader{buf: body}

		localGroups, err := br.uleb128()
		if err != nil {
			return err
		}
		var locals []ValueType
		for g := uint64(0); g < localGroups; g++ {
			n, err := br.uleb128()
			if err != nil {
				return err
			}
			vt, err := br.valueType()
			if err != nil {
				return err
			}
			for k := uint64(0); k < n; k++ {
				locals = append(locals, vt)
			}
		}
		instrs, err := decodeExpr(br)
		if err != nil {
			return err
		}
		m.Functions[i].Locals = locals
		m.Functions[i].Body = instrs
	}
	return nil
}

// decodeExpr decodes an instruction stream up to and including its
// terminating End opcode (used both for function bodies and constant
// init/offset expressions).
func decodeExpr(r *reader) ([]Instruction, error) {
	var out []Instruction
	depth := 0
	for {
		startPos := r.pos
		op, err := r.byte()
		if err != nil {
			return nil, err
		}
		instr, err := decodeInstruction(r, op, startPos)
		if err != nil {
			return nil, err
		}
		out = append(out, instr)
		switch instr.Op {
		case OpBlock, OpLoop, OpIf:
			depth++
		case OpEnd:
			if depth == 0 {
				return out, nil
			}
			depth--
		}
	}
}

// decodeInstruction decodes one instruction whose opcode byte has already
// been consumed (at startPos). Reserved/unknown opcodes fail with a
// precise-offset InvalidInstruction error (spec.md §4.8).
func decodeInstruction(r *reader, op byte, startPos int) (Instruction, error) {
	switch op {
	case 0x00:
		return Instruction{Op: OpUnreachable}, nil
	case 0x01:
		return Instruction{Op: OpNop}, nil
	case 0x02, 0x03, 0x04:
		bt, err := decodeBlockType(r)
		if err != nil {
			return Instruction{}, err
		}
		kind := map[byte]Op{0x02: OpBlock, 0x03: OpLoop, 0x04: OpIf}[op]
		return Instruction{Op: kind, BlockType: bt}, nil
	case 0x05:
		return Instruction{Op: OpElse}, nil
	case 0x0b:
		return Instruction{Op: OpEnd}, nil
	case 0x0c, 0x0d:
		idx, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		kind := OpBr
		if op == 0x0d {
			kind = OpBrIf
		}
		return Instruction{Op: kind, LabelIndex: idx}, nil
	case 0x0e:
		n, err := r.uleb128()
		if err != nil {
			return Instruction{}, err
		}
		labels := make([]uint32, n)
		for i := range labels {
			if labels[i], err = r.u32(); err != nil {
				return Instruction{}, err
			}
		}
		def, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpBrTable, LabelIndexes: labels, DefaultLabel: def}, nil
	case 0x0f:
		return Instruction{Op: OpReturn}, nil
	case 0x10:
		idx, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpCall, FunctionIndex: idx}, nil
	case 0x11:
		typeIdx, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		tableIdx, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpCallIndirect, TypeIndex: typeIdx, TableIndex: tableIdx}, nil
	case 0x1a:
		return Instruction{Op: OpDrop}, nil
	case 0x1b:
		return Instruction{Op: OpSelect}, nil
	case 0x1c:
		n, err := r.uleb128()
		if err != nil {
			return Instruction{}, err
		}
		types := make([]ValueType, n)
		for i := range types {
			if types[i], err = r.valueType(); err != nil {
				return Instruction{}, err
			}
		}
		return Instruction{Op: OpSelectWithType, SelectTypes: types}, nil
	case 0x20, 0x21, 0x22:
		idx, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		kind := map[byte]Op{0x20: OpLocalGet, 0x21: OpLocalSet, 0x22: OpLocalTee}[op]
		return Instruction{Op: kind, LocalIndex: idx}, nil
	case 0x23, 0x24:
		idx, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		kind := OpGlobalGet
		if op == 0x24 {
			kind = OpGlobalSet
		}
		return Instruction{Op: kind, GlobalIndex: idx}, nil
	case 0x28, 0x29, 0x2a, 0x2b, 0x2c, 0x2d, 0x2e, 0x2f,
		0x30, 0x31, 0x32, 0x33, 0x34, 0x35,
		0x36, 0x37, 0x38, 0x39, 0x3a, 0x3b, 0x3c, 0x3d, 0x3e:
		memarg, err := decodeMemArg(r)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: memOpFor(op), MemArg: memarg}, nil
	case 0x3f, 0x40:
		if _, err := r.byte(); err != nil { // reserved zero byte
			return Instruction{}, err
		}
		kind := OpMemorySize
		if op == 0x40 {
			kind = OpMemoryGrow
		}
		return Instruction{Op: kind}, nil
	case 0x41:
		v, err := r.sleb128()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpI32Const, I32: int32(v)}, nil
	case 0x42:
		v, err := r.sleb128()
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpI64Const, I64: v}, nil
	case 0x43:
		b, err := r.bytesN(4)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpF32Const, F32: math.Float32frombits(binary.LittleEndian.Uint32(b))}, nil
	case 0x44:
		b, err := r.bytesN(8)
		if err != nil {
			return Instruction{}, err
		}
		return Instruction{Op: OpF64Const, F64: math.Float64frombits(binary.LittleEndian.Uint64(b))}, nil
	default:
		if name, ok := numericMnemonics[op]; ok {
			return Instruction{Op: OpNumeric, Raw: name}, nil
		}
		return Instruction{}, errInvalidInstruction(fmt.Sprintf("0x%02x", op), startPos)
	}
}

func decodeBlockType(r *reader) (*ValueType, error) {
	b, err := r.byte()
	if err != nil {
		return nil, err
	}
	if b == 0x40 {
		return nil, nil
	}
	r.pos--
	vt, err := r.valueType()
	if err != nil {
		return nil, err
	}
	return &vt, nil
}

func decodeMemArg(r *reader) (MemArg, error) {
	align, err := r.u32()
	if err != nil {
		return MemArg{}, err
	}
	offset, err := r.uleb128()
	if err != nil {
		return MemArg{}, err
	}
	return MemArg{Offset: offset, Align: align}, nil
}

func memOpFor(op byte) Op {
	table := map[byte]Op{
		0x28: OpI32Load, 0x29: OpI64Load, 0x2a: OpF32Load, 0x2b: OpF64Load,
		0x2c: OpI32Load8S, 0x2d: OpI32Load8U, 0x2e: OpI32Load16S, 0x2f: OpI32Load16U,
		0x30: OpI64Load8S, 0x31: OpI64Load8U, 0x32: OpI64Load16S, 0x33: OpI64Load16U,
		0x34: OpI64Load32S, 0x35: OpI64Load32U,
		0x36: OpI32Store, 0x37: OpI64Store, 0x38: OpF32Store, 0x39: OpF64Store,
		0x3a: OpI32Store8, 0x3b: OpI32Store16, 0x3c: OpI64Store8, 0x3d: OpI64Store16, 0x3e: OpI64Store32,
	}
	return table[op]
}

// numericMnemonics covers the remaining i32/i64/f32/f64 numeric and
// conversion opcodes (spec.md §4.8), decoded generically since they carry
// no operands.
var numericMnemonics = map[byte]string{
	0x45: "i32.eqz", 0x46: "i32.eq", 0x47: "i32.ne", 0x48: "i32.lt_s", 0x49: "i32.lt_u",
	0x4a: "i32.gt_s", 0x4b: "i32.gt_u", 0x4c: "i32.le_s", 0x4d: "i32.le_u", 0x4e: "i32.ge_s", 0x4f: "i32.ge_u",
	0x50: "i64.eqz", 0x51: "i64.eq", 0x52: "i64.ne", 0x53: "i64.lt_s", 0x54: "i64.lt_u",
	0x55: "i64.gt_s", 0x56: "i64.gt_u", 0x57: "i64.le_s", 0x58: "i64.le_u", 0x59: "i64.ge_s", 0x5a: "i64.ge_u",
	0x5b: "f32.eq", 0x5c: "f32.ne", 0x5d: "f32.lt", 0x5e: "f32.gt", 0x5f: "f32.le", 0x60: "f32.ge",
	0x61: "f64.eq", 0x62: "f64.ne", 0x63: "f64.lt", 0x64: "f64.gt", 0x65: "f64.le", 0x66: "f64.ge",
	0x67: "i32.clz", 0x68: "i32.ctz", 0x69: "i32.popcnt",
	0x6a: "i32.add", 0x6b: "i32.sub", 0x6c: "i32.mul", 0x6d: "i32.div_s", 0x6e: "i32.div_u",
	0x6f: "i32.rem_s", 0x70: "i32.rem_u", 0x71: "i32.and", 0x72: "i32.or", 0x73: "i32.xor",
	0x74: "i32.shl", 0x75: "i32.shr_s", 0x76: "i32.shr_u", 0x77: "i32.rotl", 0x78: "i32.rotr",
	0x79: "i64.clz", 0x7a: "i64.ctz", 0x7b: "i64.popcnt",
	0x7c: "i64.add", 0x7d: "i64.sub", 0x7e: "i64.mul", 0x7f: "i64.div_s", 0x80: "i64.div_u",
	0x81: "i64.rem_s", 0x82: "i64.rem_u", 0x83: "i64.and", 0x84: "i64.or", 0x85: "i64.xor",
	0x86: "i64.shl", 0x87: "i64.shr_s", 0x88: "i64.shr_u", 0x89: "i64.rotl", 0x8a: "i64.rotr",
	0x8b: "f32.abs", 0x8c: "f32.neg", 0x8d: "f32.ceil", 0x8e: "f32.floor", 0x8f: "f32.trunc",
	0x90: "f32.nearest", 0x91: "f32.sqrt", 0x92: "f32.add", 0x93: "f32.sub", 0x94: "f32.mul",
	0x95: "f32.div", 0x96: "f32.min", 0x97: "f32.max", 0x98: "f32.copysign",
	0x99: "f64.abs", 0x9a: "f64.neg", 0x9b: "f64.ceil", 0x9c: "f64.floor", 0x9d: "f64.trunc",
	0x9e: "f64.nearest", 0x9f: "f64.sqrt", 0xa0: "f64.add", 0xa1: "f64.sub", 0xa2: "f64.mul",
	0xa3: "f64.div", 0xa4: "f64.min", 0xa5: "f64.max", 0xa6: "f64.copysign",
	0xa7: "i32.wrap_i64", 0xa8: "i32.trunc_f32_s", 0xa9: "i32.trunc_f32_u", 0xaa: "i32.trunc_f64_s", 0xab: "i32.trunc_f64_u",
	0xac: "i64.extend_i32_s", 0xad: "i64.extend_i32_u", 0xae: "i64.trunc_f32_s", 0xaf: "i64.trunc_f32_u",
	0xb0: "i64.trunc_f64_s", 0xb1: "i64.trunc_f64_u",
	0xb2: "f32.convert_i32_s", 0xb3: "f32.convert_i32_u", 0xb4: "f32.convert_i64_s", 0xb5: "f32.convert_i64_u",
	0xb6: "f32.demote_f64",
	0xb7: "f64.convert_i32_s", 0xb8: "f64.convert_i32_u", 0xb9: "f64.convert_i64_s", 0xba: "f64.convert_i64_u",
	0xbb: "f64.promote_f32",
	0xbc: "i32.reinterpret_f32", 0xbd: "i64.reinterpret_f64", 0xbe: "f32.reinterpret_i32", 0xbf: "f64.reinterpret_i64",
}
