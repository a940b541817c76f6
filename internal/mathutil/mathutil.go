// Package mathutil provides overflow-checked integer arithmetic used by the
// WAL and storage engine layers for LSN bookkeeping.
//
// Adapted from erigon-lib/common/math/integer.go: the overflow-checked
// Safe* helpers and the decimal/hex parsing style are kept; everything
// EVM-specific has been dropped.
package mathutil

import (
	"fmt"
	"math/bits"
	"strconv"
)

// SafeAdd returns x+y and reports whether the addition overflowed uint64.
func SafeAdd(x, y uint64) (uint64, bool) {
	sum, carryOut := bits.Add64(x, y, 0)
	return sum, carryOut != 0
}

// SafeMul returns x*y and reports whether the multiplication overflowed uint64.
func SafeMul(x, y uint64) (uint64, bool) {
	hi, lo := bits.Mul64(x, y)
	return lo, hi != 0
}

// LSNLess compares two log sequence numbers. LSNs are unsigned and
// wraparound is not permitted within a single database lifetime (spec.md
// §4.1), so ordinary unsigned comparison is sufficient.
func LSNLess(a, b uint64) bool { return a < b }

// ParseUint64 parses s as an integer in decimal or hexadecimal syntax.
// The empty string parses as zero.
func ParseUint64(s string) (uint64, bool) {
	if s == "" {
		return 0, true
	}
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return v, err == nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}

// MustParseUint64 parses s as an integer and panics if the string is invalid.
func MustParseUint64(s string) uint64 {
	v, ok := ParseUint64(s)
	if !ok {
		panic(fmt.Sprintf("invalid unsigned 64 bit integer: %q", s))
	}
	return v
}

// CeilDiv returns ceil(x/y), or 0 if y is 0.
func CeilDiv(x, y int) int {
	if y == 0 {
		return 0
	}
	return (x + y - 1) / y
}
