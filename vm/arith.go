package vm

import (
	"github.com/holiman/uint256"
)

// WordWidth is one of the multi-architecture register widths from
// spec.md §3 ("VM Context") and §4.11 ("Architectures").
type WordWidth uint16

const (
	Width32  WordWidth = 32
	Width64  WordWidth = 64
	Width128 WordWidth = 128
	Width256 WordWidth = 256
	Width512 WordWidth = 512
)

// Valid reports whether w is one of the five supported architectures.
func (w WordWidth) Valid() bool {
	switch w {
	case Width32, Width64, Width128, Width256, Width512:
		return true
	default:
		return false
	}
}

// mask returns the bitmask for truncating a uint256 accumulator down to w
// bits, used by compatibility mode (spec.md §4.11: "arithmetic truncates to
// guest width after each operation").
//
// Adapted from the overflow-checked uint256 arithmetic style in
// consensus/misc/eip4844.go's FakeExponential (MulOverflow/AddOverflow
// chains) — here the truncation step that keeps guest arithmetic
// well-defined on a wider host replaces the EIP-4844 fee-market formula.
func mask(w WordWidth) *uint256.Int {
	if w >= Width256 {
		// A 256-bit accumulator already is the widest native type available;
		// widths at or above it get no mask, and truncate leaves the value
		// unchanged.
		return nil
	}
	bits := uint(w)
	one := uint256.NewInt(1)
	shifted := new(uint256.Int).Lsh(one, bits)
	return new(uint256.Int).Sub(shifted, uint256.NewInt(1))
}

// truncate applies compatibility-mode masking to v for a guest of width
// guest running on a host of width host. When guest >= host no truncation
// is necessary (native width or wider, which load rejects at module load
// time instead - see Context.loadModule).
func truncate(v *uint256.Int, guest, host WordWidth) *uint256.Int {
	if guest >= host {
		return v
	}
	m := mask(guest)
	if m == nil {
		return v
	}
	return new(uint256.Int).And(v, m)
}
