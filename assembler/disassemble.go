package assembler

import (
	"math"

	"github.com/synerthink/dotlanth/bytecode"
	"github.com/synerthink/dotlanth/translator"
)

// Disassemble parses the binary layout Assemble produces back into an
// equivalent in-memory Module, satisfying the round-trip law
// parse(serialize(module)) == module (spec.md §8). Malformed input fails
// with InvalidFormat (spec.md §6 "load_bytecode(bytes) parses and validates
// a module; fails with InvalidFormat on malformed input").
func Disassemble(data []byte) (*translator.Module, error) {
	r := &reader{buf: data}

	magicBytes, err := r.bytesN(4)
	if err != nil {
		return nil, err
	}
	for i := range magic {
		if magicBytes[i] != magic[i] {
			return nil, errInvalidFormat("bad magic")
		}
	}
	version, err := r.u16()
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, errInvalidFormat("unsupported format version")
	}
	archByte, err := r.u8()
	if err != nil {
		return nil, err
	}
	arch, err := byteToArch(archByte)
	if err != nil {
		return nil, err
	}
	if _, err := r.u8(); err != nil { // reserved
		return nil, err
	}
	featureFlags, err := r.u32()
	if err != nil {
		return nil, err
	}

	type funcEntry struct {
		nameOffset            uint32
		codeOffset, codeSize  uint32
		paramCount, localCount, flags uint32
	}
	funcCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	funcEntries := make([]funcEntry, funcCount)
	for i := range funcEntries {
		var fe funcEntry
		if fe.nameOffset, err = r.u32(); err != nil {
			return nil, err
		}
		if fe.codeOffset, err = r.u32(); err != nil {
			return nil, err
		}
		if fe.codeSize, err = r.u32(); err != nil {
			return nil, err
		}
		if fe.paramCount, err = r.u32(); err != nil {
			return nil, err
		}
		if fe.localCount, err = r.u32(); err != nil {
			return nil, err
		}
		if fe.flags, err = r.u32(); err != nil {
			return nil, err
		}
		funcEntries[i] = fe
	}
	if err := r.skipAlign(); err != nil {
		return nil, err
	}

	type importEntry struct {
		nameOffset, moduleOffset uint32
		kind                     uint8
		index                    uint32
	}
	importCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	importEntries := make([]importEntry, importCount)
	for i := range importEntries {
		var ie importEntry
		if ie.nameOffset, err = r.u32(); err != nil {
			return nil, err
		}
		if ie.moduleOffset, err = r.u32(); err != nil {
			return nil, err
		}
		if ie.kind, err = r.u8(); err != nil {
			return nil, err
		}
		if _, err := r.bytesN(3); err != nil { // pad
			return nil, err
		}
		if ie.index, err = r.u32(); err != nil {
			return nil, err
		}
		importEntries[i] = ie
	}
	if err := r.skipAlign(); err != nil {
		return nil, err
	}

	type exportEntry struct {
		nameOffset uint32
		kind       uint8
		index      uint32
	}
	exportCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	exportEntries := make([]exportEntry, exportCount)
	for i := range exportEntries {
		var ee exportEntry
		if ee.nameOffset, err = r.u32(); err != nil {
			return nil, err
		}
		if ee.kind, err = r.u8(); err != nil {
			return nil, err
		}
		if _, err := r.bytesN(3); err != nil {
			return nil, err
		}
		if ee.index, err = r.u32(); err != nil {
			return nil, err
		}
		exportEntries[i] = ee
	}
	if err := r.skipAlign(); err != nil {
		return nil, err
	}

	codeSize, err := r.u32()
	if err != nil {
		return nil, err
	}
	codeBlob, err := r.bytesN(int(codeSize))
	if err != nil {
		return nil, err
	}
	if err := r.skipAlign(); err != nil {
		return nil, err
	}

	strSize, err := r.u32()
	if err != nil {
		return nil, err
	}
	strBlob, err := r.bytesN(int(strSize))
	if err != nil {
		return nil, err
	}
	if err := r.skipAlign(); err != nil {
		return nil, err
	}

	debugFuncIdxs, lineEntries, localEntries, err := readDebugInfo(r, strBlob)
	if err != nil {
		return nil, err
	}
	debugByFunc := make(map[uint32]*translator.DebugInfo, len(debugFuncIdxs))
	for _, idx := range debugFuncIdxs {
		debugByFunc[idx] = &translator.DebugInfo{}
	}
	for _, ln := range lineEntries {
		if d, ok := debugByFunc[ln.FunctionIndex]; ok {
			d.Lines = append(d.Lines, ln)
		}
	}
	for _, le := range localEntries {
		if d, ok := debugByFunc[le.funcIdx]; ok {
			d.Locals = append(d.Locals, le.local)
		}
	}

	out := &translator.Module{
		Header: translator.Header{Architecture: arch, FeatureFlags: featureFlags},
	}
	for _, fe := range funcEntries {
		name, err := readString(strBlob, fe.nameOffset)
		if err != nil {
			return nil, err
		}
		if int(fe.codeOffset)+int(fe.codeSize) > len(codeBlob) {
			return nil, errInvalidFormat("function code span out of range")
		}
		fr := &reader{buf: codeBlob[fe.codeOffset : fe.codeOffset+fe.codeSize]}
		localCount, err := fr.u32()
		if err != nil {
			return nil, err
		}
		if localCount != fe.localCount {
			return nil, errInvalidFormat("function prologue local count mismatch")
		}
		var instrs []bytecode.Instruction
		for fr.pos < len(fr.buf) {
			in, err := decodeInstruction(fr)
			if err != nil {
				return nil, err
			}
			instrs = append(instrs, in)
		}
		out.Functions = append(out.Functions, translator.Function{
			Name:         name,
			ParamCount:   int(fe.paramCount),
			LocalCount:   int(fe.localCount),
			Instructions: instrs,
			Exported:     fe.flags&1 != 0,
		})
	}
	for i := range out.Functions {
		if d, ok := debugByFunc[uint32(i)]; ok {
			out.Functions[i].DebugInfo = d
		}
	}

	for _, ie := range importEntries {
		name, err := readString(strBlob, ie.nameOffset)
		if err != nil {
			return nil, err
		}
		module, err := readString(strBlob, ie.moduleOffset)
		if err != nil {
			return nil, err
		}
		out.Imports = append(out.Imports, translator.ImportEntry{
			Module: module, Name: name, Kind: ie.kind, Index: ie.index,
		})
	}
	for _, ee := range exportEntries {
		name, err := readString(strBlob, ee.nameOffset)
		if err != nil {
			return nil, err
		}
		out.Exports = append(out.Exports, translator.ExportEntry{
			Name: name, Kind: ee.kind, Index: ee.index,
		})
	}

	consts, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}
	out.Constants = consts

	return out, nil
}

// readConstantPool reads the trailing constant-pool section writeConstantPool
// produces. A stream that ends before this section fails as truncated; a
// module assembled without Constants carries a zero count and reads back as
// an empty slice.
func readConstantPool(r *reader) ([]bytecode.Constant, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]bytecode.Constant, 0, count)
	for i := uint32(0); i < count; i++ {
		kindByte, err := r.u8()
		if err != nil {
			return nil, err
		}
		kind := bytecode.ConstantKind(kindByte)
		var c bytecode.Constant
		c.Kind = kind
		switch kind {
		case bytecode.ConstInt:
			v, err := r.i64()
			if err != nil {
				return nil, err
			}
			c.I = v
		case bytecode.ConstFloat:
			bits, err := r.i64()
			if err != nil {
				return nil, err
			}
			c.F = math.Float64frombits(uint64(bits))
		case bytecode.ConstString:
			n, err := r.u32()
			if err != nil {
				return nil, err
			}
			b, err := r.bytesN(int(n))
			if err != nil {
				return nil, err
			}
			c.S = string(b)
		default:
			return nil, errInvalidFormat("unknown constant kind")
		}
		out = append(out, c)
	}
	if err := r.skipAlign(); err != nil {
		return nil, err
	}
	return out, nil
}

func readDebugInfo(r *reader, strBlob []byte) ([]uint32, []translator.DebugLine, []struct {
	funcIdx uint32
	local   translator.DebugLocal
}, error) {
	type localEntry = struct {
		funcIdx uint32
		local   translator.DebugLocal
	}

	funcCount, err := r.u32()
	if err != nil {
		return nil, nil, nil, err
	}
	funcIdxs := make([]uint32, funcCount)
	for i := range funcIdxs {
		if funcIdxs[i], err = r.u32(); err != nil {
			return nil, nil, nil, err
		}
	}

	lineCount, err := r.u32()
	if err != nil {
		return nil, nil, nil, err
	}
	lines := make([]translator.DebugLine, lineCount)
	for i := range lines {
		instrIdx, err := r.u32()
		if err != nil {
			return nil, nil, nil, err
		}
		fnIdx, err := r.u32()
		if err != nil {
			return nil, nil, nil, err
		}
		offset, err := r.u32()
		if err != nil {
			return nil, nil, nil, err
		}
		lines[i] = translator.DebugLine{InstructionIndex: int(instrIdx), FunctionIndex: fnIdx, Offset: offset}
	}

	localCount, err := r.u32()
	if err != nil {
		return nil, nil, nil, err
	}
	locals := make([]localEntry, localCount)
	for i := range locals {
		fnIdx, err := r.u32()
		if err != nil {
			return nil, nil, nil, err
		}
		idx, err := r.u32()
		if err != nil {
			return nil, nil, nil, err
		}
		nameOff, err := r.u32()
		if err != nil {
			return nil, nil, nil, err
		}
		name, err := readString(strBlob, nameOff)
		if err != nil {
			return nil, nil, nil, err
		}
		locals[i] = localEntry{funcIdx: fnIdx, local: translator.DebugLocal{Index: int(idx), Name: name}}
	}

	return funcIdxs, lines, locals, nil
}
