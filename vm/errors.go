package vm

import (
	"time"

	"github.com/synerthink/dotlanth/errs"
)

func errStackUnderflow(pc int, op string) *errs.Error {
	return errs.New(errs.KindRuntime, "stack underflow").With(map[string]any{"pc": pc, "opcode": op})
}

func errDivisionByZero(pc int) *errs.Error {
	return errs.New(errs.KindRuntime, "division by zero").With(map[string]any{"pc": pc})
}

func errTypeMismatch(pc int, op string, expected, actual string) *errs.Error {
	return errs.New(errs.KindRuntime, "type mismatch").
		With(map[string]any{"pc": pc, "opcode": op, "expected": expected, "actual": actual})
}

func errInvalidInstruction(pc int) *errs.Error {
	return errs.New(errs.KindRuntime, "invalid instruction").With(map[string]any{"pc": pc})
}

func errTrap(pc int, reason string) *errs.Error {
	return errs.New(errs.KindRuntime, "trap").With(map[string]any{"pc": pc, "reason": reason})
}

func errInstructionCapExceeded(limit uint64) *errs.Error {
	return errs.New(errs.KindResource, "instruction cap exceeded").With(map[string]any{"limit": limit})
}

func errTimeout(timeout time.Duration) *errs.Error {
	return errs.New(errs.KindResource, "execution timed out").
		With(map[string]any{"timeout_ms": timeout.Milliseconds()})
}

func errHostTooNarrow(guest, host WordWidth) *errs.Error {
	return errs.New(errs.KindFormat, "guest architecture wider than host").
		With(map[string]any{"guest": uint16(guest), "host": uint16(host)})
}
