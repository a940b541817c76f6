package assembler

import "encoding/binary"

// writer accumulates a byte stream with a configured maximum size (spec.md
// §4.10 "writers are length-checked; writes that would exceed a configured
// maximum fail with BytecodeSizeLimitExceeded"). Every append method panics
// through a sentinel error type caught at the top of Assemble, keeping the
// call sites below free of per-write error checks.
type writer struct {
	buf     []byte
	maxSize int
}

type sizeLimitErr struct{ attempted int }

func newWriter(maxSize int) *writer {
	return &writer{maxSize: maxSize}
}

func (w *writer) checkLimit(add int) {
	if w.maxSize > 0 && len(w.buf)+add > w.maxSize {
		panic(sizeLimitErr{attempted: len(w.buf) + add})
	}
}

func (w *writer) bytes(b []byte) {
	w.checkLimit(len(b))
	w.buf = append(w.buf, b...)
}

func (w *writer) u8(v uint8) {
	w.checkLimit(1)
	w.buf = append(w.buf, v)
}

func (w *writer) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.bytes(b[:])
}

func (w *writer) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.bytes(b[:])
}

func (w *writer) i32(v int32) { w.u32(uint32(v)) }

func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.bytes(b[:])
}

func (w *writer) i64(v int64) { w.u64(uint64(v)) }

// align pads the buffer to sectionAlign with zero bytes.
func (w *writer) align() {
	if n := padLen(len(w.buf)); n > 0 {
		w.bytes(make([]byte, n))
	}
}

// patchU32At validates offset+4 is within the already-written buffer before
// overwriting it in place (spec.md §4.10 "Patch points are explicit
// (offset + width) and validated before application").
func (w *writer) patchU32At(offset int, v uint32) error {
	if offset < 0 || offset+4 > len(w.buf) {
		return errInvalidFormat("patch point out of range")
	}
	binary.LittleEndian.PutUint32(w.buf[offset:offset+4], v)
	return nil
}
