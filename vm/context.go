// Package vm implements the bytecode execution engine (spec.md §4.11, C11):
// a fetch/decode/execute loop over one translator.Module, gated per
// instruction by the capability sandbox (C12) and routing DB/crypto opcodes
// to the document layer (C7) and crypto provider (C13).
//
// Grounded on the teacher's own interpreter-shaped components for the
// fetch/dispatch idiom (a switch over a fixed opcode set, structured errors
// surfaced rather than panics) and on vm/arith.go (already present) for
// compatibility-mode truncation; the control-flow/call-frame model itself
// has no direct erigon analog (erigon has no bytecode VM) and follows
// spec.md §3/§4.11 directly.
package vm

import (
	"time"

	"go.uber.org/zap"

	"github.com/synerthink/dotlanth/assembler"
	"github.com/synerthink/dotlanth/bytecode"
	"github.com/synerthink/dotlanth/cryptoprovider"
	"github.com/synerthink/dotlanth/document"
	"github.com/synerthink/dotlanth/errs"
	"github.com/synerthink/dotlanth/sandbox"
	"github.com/synerthink/dotlanth/translator"
)

// flags gates the engine's two optional run modes (spec.md §3 "VM
// Context... flags{debug, step}").
type flags struct {
	debug bool
	step  bool
}

// Config carries every tunable the engine needs at construction time
// (spec.md §2a "plain Go structs with documented defaults").
type Config struct {
	// HostWidth is the native word width this process executes at. A
	// module whose declared architecture is narrower enters compatibility
	// mode (spec.md §4.11); wider fails to load.
	HostWidth WordWidth

	// MaxInstructions bounds total steps per Execute/Step run (spec.md
	// §4.11 "Instruction cap"). Zero means unbounded.
	MaxInstructions uint64

	// Timeout bounds wall-clock execution time (spec.md §5 "every opcode
	// inherits a deadline from the execution context"). Zero means no
	// deadline.
	Timeout time.Duration

	// EntryFunction names the function Execute/Step start from. Empty
	// defaults to "main", falling back to the module's first function if
	// no function named "main" exists.
	EntryFunction string

	// MemoryPages bounds linear memory capacity in 64KiB WASM pages when
	// the loaded module declares none (spec.md §4.11 "Memory | Load
	// addr/Store addr"). Defaults to 1 page.
	MemoryPages uint32

	Logger *zap.Logger
}

func (c Config) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

const wasmPageSize = 65536

// frame is one call-stack entry: the function being executed, its program
// counter, and its local variable slots (spec.md §3 distinguishes locals,
// addressed via StackOffset operands, from the operand stack itself).
type frame struct {
	fn     *translator.Function
	pc     int
	locals []Value
}

// Context is one VM execution context (spec.md §3 "VM Context"): single PC,
// single operand stack, run to completion or suspended at a step boundary.
// A Context is not safe for concurrent use; vm.Pool runs many contexts in
// parallel, each on its own goroutine (spec.md §5).
type Context struct {
	module             *translator.Module
	importedFuncCount  uint32
	globals            []Value
	memory             []byte
	frames             []frame
	st                 stack
	halted             bool
	haltErr            error
	instructionCounter uint64
	flags              flags
	dotID              string

	guard  *sandbox.Sandbox
	crypto *cryptoprovider.Executor
	docs   *document.Store
	cfg    Config
	log    *zap.Logger

	arch      WordWidth
	deadline  time.Time
	endOfCode bool
}

// NewContext builds an unloaded Context for dotID. Call LoadBytecode before
// Execute/Step.
func NewContext(dotID string, guard *sandbox.Sandbox, crypto *cryptoprovider.Executor, docs *document.Store, cfg Config) *Context {
	if cfg.HostWidth == 0 {
		cfg.HostWidth = Width64
	}
	if cfg.MemoryPages == 0 {
		cfg.MemoryPages = 1
	}
	return &Context{dotID: dotID, guard: guard, crypto: crypto, docs: docs, cfg: cfg, log: cfg.logger()}
}

// LoadBytecode parses and validates a serialized module (spec.md §6
// "load_bytecode(bytes) parses and validates a module; fails with
// InvalidFormat on malformed input"), then resets the context to run it
// from its configured entry function.
func (c *Context) LoadBytecode(data []byte) error {
	m, err := assembler.Disassemble(data)
	if err != nil {
		return err
	}
	return c.loadModule(m)
}

// LoadModule installs an already-assembled module directly, skipping the
// binary round-trip; useful for tests and for hosts that keep the
// translator's output resident rather than re-parsing it.
func (c *Context) LoadModule(m *translator.Module) error {
	return c.loadModule(m)
}

func (c *Context) loadModule(m *translator.Module) error {
	guestWidth := WordWidth(m.Header.Architecture)
	if !guestWidth.Valid() {
		return errs.New(errs.KindFormat, "unrecognized architecture").With(map[string]any{"architecture": m.Header.Architecture})
	}
	if guestWidth > c.cfg.HostWidth {
		return errHostTooNarrow(guestWidth, c.cfg.HostWidth)
	}

	entryName := c.cfg.EntryFunction
	if entryName == "" {
		entryName = "main"
	}
	entry := m.FunctionByName(entryName)
	if entry == nil {
		if len(m.Functions) == 0 {
			return errs.New(errs.KindFormat, "module has no functions")
		}
		entry = &m.Functions[0]
	}

	importedFuncCount := uint32(0)
	for _, imp := range m.Imports {
		if imp.Kind == 0 { // translator.ImportKind mirrors wasm.ImportFunction == 0
			importedFuncCount++
		}
	}

	globals := make([]Value, len(m.Globals))
	for i, g := range m.Globals {
		globals[i] = IntValue(g.Init)
	}

	pages := c.cfg.MemoryPages
	if m.Memory.MinPages > 0 {
		pages = m.Memory.MinPages
	}

	c.module = m
	c.arch = guestWidth
	c.importedFuncCount = importedFuncCount
	c.globals = globals
	c.memory = make([]byte, int(pages)*wasmPageSize)
	c.frames = []frame{{fn: entry, pc: 0, locals: make([]Value, entry.LocalCount)}}
	c.st = stack{}
	c.halted = false
	c.haltErr = nil
	c.instructionCounter = 0
	c.deadline = time.Time{}
	c.endOfCode = false
	return nil
}

// EnableDebug turns on debug-mode logging of each executed instruction.
func (c *Context) EnableDebug() { c.flags.debug = true }

// EnableStep sets the step-mode flag and DisableStep clears it. Neither
// Execute nor Step reads the flag: Step always runs exactly one instruction
// and Execute always runs to completion.
func (c *Context) EnableStep()  { c.flags.step = true }
func (c *Context) DisableStep() { c.flags.step = false }

func (c *Context) curFrame() *frame { return &c.frames[len(c.frames)-1] }

// ExecutionResult is Execute's return value (spec.md §6).
type ExecutionResult struct {
	InstructionsExecuted uint64
	ExecutionTime        time.Duration
	FinalStack           []Value
	Halted               bool
	PC                   int
}

// Execute runs the loaded module to completion (or until the instruction
// cap, a timeout, or a fault halts it), ignoring step mode for this call.
func (c *Context) Execute() (*ExecutionResult, error) {
	start := time.Now()
	if c.cfg.Timeout > 0 {
		c.deadline = start.Add(c.cfg.Timeout)
	}
	for !c.halted {
		if _, err := c.stepOnce(); err != nil {
			return nil, err
		}
	}
	return &ExecutionResult{
		InstructionsExecuted: c.instructionCounter,
		ExecutionTime:        time.Since(start),
		FinalStack:           c.st.snapshot(),
		Halted:               c.halted,
		PC:                   c.curFrame().pc,
	}, c.haltErr
}

// StepKind discriminates Step's return variants (spec.md §4.11 "Step mode:
// ...the engine suspends and returns a StepResult variant").
type StepKind uint8

const (
	StepExecuted StepKind = iota
	StepHalted
	StepEndOfCode
)

// StepResult is one Step call's outcome.
type StepResult struct {
	Kind        StepKind
	Instruction bytecode.Instruction
	PC          int
	StackSize   int
}

// Step executes exactly one instruction, regardless of whether step mode is
// enabled (spec.md §6 "step() → StepResult").
func (c *Context) Step() (StepResult, error) {
	if c.halted {
		return StepResult{Kind: StepHalted, PC: c.curFrame().pc, StackSize: c.st.len()}, c.haltErr
	}
	in, err := c.stepOnce()
	if err != nil {
		return StepResult{}, err
	}
	if c.endOfCode {
		return StepResult{Kind: StepEndOfCode, StackSize: c.st.len()}, nil
	}
	if c.halted {
		return StepResult{Kind: StepHalted, Instruction: in, PC: c.curFrame().pc, StackSize: c.st.len()}, c.haltErr
	}
	return StepResult{Kind: StepExecuted, Instruction: in, PC: c.curFrame().pc, StackSize: c.st.len()}, nil
}
