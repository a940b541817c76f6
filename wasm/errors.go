package wasm

import "github.com/synerthink/dotlanth/errs"

// Error constructors below mirror runtime/src/wasm/error.rs's WasmError
// variants onto the shared errs.Error taxonomy, so callers branch on Kind
// plus the Context fields instead of a parallel Go enum.

func errValidation(message string) *errs.Error {
	return errs.New(errs.KindFormat, "validation error: "+message)
}

func errLoading(message string) *errs.Error {
	return errs.New(errs.KindFormat, "loading error: "+message)
}

func errInstantiation(message string) *errs.Error {
	return errs.New(errs.KindRuntime, "instantiation error: "+message)
}

func errExecution(message string) *errs.Error {
	return errs.New(errs.KindRuntime, "execution error: "+message)
}

func errMemory(message string) *errs.Error {
	return errs.New(errs.KindResource, "memory error: "+message)
}

func errStackOverflow(current, max int) *errs.Error {
	return errs.New(errs.KindResource, "stack overflow").
		With(map[string]any{"current": current, "max": max})
}

func errStackUnderflow() *errs.Error {
	return errs.New(errs.KindRuntime, "stack underflow")
}

func errResourceLimitExceeded(resource string, current, limit uint64) *errs.Error {
	return errs.New(errs.KindResource, "resource limit exceeded").
		With(map[string]any{"resource": resource, "current": current, "limit": limit})
}

func errSecurityViolation(message string) *errs.Error {
	return errs.New(errs.KindSecurity, "security violation: "+message)
}

func errFunctionNotFound(name string) *errs.Error {
	return errs.New(errs.KindFormat, "function not found").With(map[string]any{"name": name})
}

func errTypeMismatch(expected, actual string) *errs.Error {
	return errs.New(errs.KindFormat, "type mismatch").
		With(map[string]any{"expected": expected, "actual": actual})
}

// errInvalidInstruction reports a reserved or unrecognized opcode at its
// exact byte offset (spec.md §4.8: "Reserved opcodes fail with
// InvalidInstruction { instruction, offset }").
func errInvalidInstruction(instruction string, offset int) *errs.Error {
	return errs.New(errs.KindFormat, "invalid instruction").
		With(map[string]any{"instruction": instruction, "offset": offset})
}

func errTrap(reason string) *errs.Error {
	return errs.New(errs.KindRuntime, "trap: "+reason)
}

func errTimeout(timeoutMS uint64) *errs.Error {
	return errs.New(errs.KindResource, "timeout").With(map[string]any{"timeout_ms": timeoutMS})
}

func errImportResolution(module, name string) *errs.Error {
	return errs.New(errs.KindFormat, "import resolution failed").
		With(map[string]any{"module": module, "name": name})
}

func errExportNotFound(name string) *errs.Error {
	return errs.New(errs.KindFormat, "export not found").With(map[string]any{"name": name})
}

func errInternal(message string) *errs.Error {
	return errs.New(errs.KindRuntime, "internal error: "+message)
}

// isRecoverable mirrors WasmError::is_recoverable: timeouts, resource limit
// breaches and stack overflows are conditions a caller may retry or budget
// around rather than treat as a hard module fault.
func isRecoverable(e *errs.Error) bool {
	switch e.Kind {
	case errs.KindResource:
		return true
	default:
		return false
	}
}
