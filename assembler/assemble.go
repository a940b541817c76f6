package assembler

import (
	"math"

	"github.com/synerthink/dotlanth/bytecode"
	"github.com/synerthink/dotlanth/translator"
)

// Options configures one assembly run.
type Options struct {
	// MaxSize bounds the total encoded size in bytes; zero means unbounded
	// (spec.md §4.10 "writes that would exceed a configured maximum fail
	// with BytecodeSizeLimitExceeded").
	MaxSize int
}

// Assemble serializes m into the binary layout spec.md §4.10 defines:
// header, function/import/export tables, code section, string table, and
// optional debug info, in that physical order. Each section is padded to
// sectionAlign before the next begins.
func Assemble(m *translator.Module, opts Options) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			if sl, ok := r.(sizeLimitErr); ok {
				err = errBytecodeSizeLimitExceeded(opts.MaxSize, sl.attempted)
				return
			}
			panic(r)
		}
	}()

	pool := newStringPool()
	for i := range m.Functions {
		pool.intern(m.Functions[i].Name)
	}
	for _, imp := range m.Imports {
		pool.intern(imp.Module)
		pool.intern(imp.Name)
	}
	for _, exp := range m.Exports {
		pool.intern(exp.Name)
	}

	// Every function's code is encoded independently first so the Function
	// Table (written before the Code Section) can carry each entry's final
	// code_offset/code_size.
	codeW := newWriter(opts.MaxSize)
	type codeSpan struct{ offset, size uint32 }
	spans := make([]codeSpan, len(m.Functions))
	for i, fn := range m.Functions {
		start := len(codeW.buf)
		codeW.u32(uint32(fn.LocalCount)) // prologue: alloc locals
		for _, in := range fn.Instructions {
			if err := encodeInstruction(codeW, in); err != nil {
				return nil, err
			}
		}
		// epilogue: translateFunction always appends a trailing Return, so
		// no additional bytes are needed here.
		codeW.align()
		spans[i] = codeSpan{offset: uint32(start), size: uint32(len(codeW.buf) - start)}
	}

	w := newWriter(opts.MaxSize)
	w.bytes(magic[:])
	w.u16(formatVersion)
	archByte, err := archToByte(m.Header.Architecture)
	if err != nil {
		return nil, err
	}
	w.u8(archByte)
	w.u8(0) // reserved
	w.u32(m.Header.FeatureFlags)

	w.u32(uint32(len(m.Functions)))
	for i, fn := range m.Functions {
		w.u32(pool.intern(fn.Name))
		w.u32(spans[i].offset)
		w.u32(spans[i].size)
		w.u32(uint32(fn.ParamCount))
		w.u32(uint32(fn.LocalCount))
		var flags uint32
		if fn.Exported {
			flags |= 1
		}
		w.u32(flags)
	}
	w.align()

	w.u32(uint32(len(m.Imports)))
	for _, imp := range m.Imports {
		w.u32(pool.intern(imp.Name))
		w.u32(pool.intern(imp.Module))
		w.u8(imp.Kind)
		w.u8(0)
		w.u8(0)
		w.u8(0)
		w.u32(imp.Index)
	}
	w.align()

	w.u32(uint32(len(m.Exports)))
	for _, exp := range m.Exports {
		w.u32(pool.intern(exp.Name))
		w.u8(exp.Kind)
		w.u8(0)
		w.u8(0)
		w.u8(0)
		w.u32(exp.Index)
	}
	w.align()

	w.u32(uint32(len(codeW.buf)))
	w.bytes(codeW.buf)
	w.align()

	w.u32(uint32(len(pool.blob)))
	w.bytes(pool.blob)
	w.align()

	writeDebugInfo(w, m, pool)
	writeConstantPool(w, m)

	return w.buf, nil
}

// writeConstantPool writes the module's constant pool (spec.md §4.11
// "Push(const_id) ... Loads from constant pool") as a trailing section:
// count, then per-entry {kind byte, payload}. This is an implementer
// extension to the documented layout (spec.md §4.10 enumerates header
// through debug info only) needed to give OpPush's const_id something to
// resolve against; it is additive and placed last so every other section
// offset spec.md §4.10 names is unaffected.
func writeConstantPool(w *writer, m *translator.Module) {
	w.u32(uint32(len(m.Constants)))
	for _, c := range m.Constants {
		w.u8(uint8(c.Kind))
		switch c.Kind {
		case bytecode.ConstInt:
			w.i64(c.I)
		case bytecode.ConstFloat:
			w.i64(int64(math.Float64bits(c.F)))
		case bytecode.ConstString:
			b := []byte(c.S)
			w.u32(uint32(len(b)))
			w.bytes(b)
		}
	}
	w.align()
}

// writeDebugInfo writes the three length-prefixed arrays (functions-with-
// debug-info, line table, local table) spec.md §4.10 names; an entirely
// debug-free module writes three zero counts ("or three zero counts if
// absent").
func writeDebugInfo(w *writer, m *translator.Module, pool *stringPool) {
	var funcIdxs []uint32
	var lines []translator.DebugLine
	type localEntry struct {
		funcIdx uint32
		local   translator.DebugLocal
	}
	var locals []localEntry

	for i := range m.Functions {
		fn := &m.Functions[i]
		if fn.DebugInfo == nil {
			continue
		}
		funcIdxs = append(funcIdxs, uint32(i))
		lines = append(lines, fn.DebugInfo.Lines...)
		for _, loc := range fn.DebugInfo.Locals {
			locals = append(locals, localEntry{funcIdx: uint32(i), local: loc})
		}
	}

	w.u32(uint32(len(funcIdxs)))
	for _, idx := range funcIdxs {
		w.u32(idx)
	}
	w.u32(uint32(len(lines)))
	for _, ln := range lines {
		w.u32(uint32(ln.InstructionIndex))
		w.u32(ln.FunctionIndex)
		w.u32(ln.Offset)
	}
	w.u32(uint32(len(locals)))
	for _, e := range locals {
		w.u32(e.funcIdx)
		w.u32(uint32(e.local.Index))
		w.u32(pool.intern(e.local.Name))
	}
}
