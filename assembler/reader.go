package assembler

import "encoding/binary"

// reader walks a byte slice tracking its absolute offset, mirroring
// wasm/decoder.go's reader so decode errors report a precise byte position.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) offsetErr(msg string) error {
	return errInvalidFormat(msg).With(map[string]any{"offset": r.pos})
}

func (r *reader) bytesN(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, r.offsetErr("truncated stream")
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.bytesN(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.bytesN(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.bytesN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) u64() (uint64, error) {
	b, err := r.bytesN(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) skipAlign() error {
	if n := padLen(r.pos); n > 0 {
		_, err := r.bytesN(n)
		return err
	}
	return nil
}
