package vm

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/holiman/uint256"

	"github.com/synerthink/dotlanth/bytecode"
	"github.com/synerthink/dotlanth/cryptoprovider"
	"github.com/synerthink/dotlanth/errs"
	"github.com/synerthink/dotlanth/sandbox"
)

// stepOnce fetches, decodes and executes exactly one instruction from the
// currently running frame (spec.md §4.11's per-step loop: fetch, decode,
// authorize, execute, advance pc unless the instruction rewrote it).
//
// Grounded on the control-flow shape of a classic bytecode interpreter loop
// (fetch/decode/dispatch/advance) with no direct erigon analog — erigon has
// no bytecode VM — following spec.md §4.11 directly; the capability check
// ahead of every dispatch and the resource accounting after it are the
// sandbox.Sandbox/cryptoprovider.Executor wiring spec.md §4.12/§4.13
// describe.
func (c *Context) stepOnce() (bytecode.Instruction, error) {
	frameIdx := len(c.frames) - 1
	fr := c.frames[frameIdx]

	if fr.pc >= len(fr.fn.Instructions) {
		if frameIdx > 0 {
			c.frames = c.frames[:frameIdx]
			return c.stepOnce()
		}
		c.halted = true
		c.endOfCode = true
		return bytecode.Instruction{}, nil
	}

	if c.cfg.MaxInstructions > 0 && c.instructionCounter >= c.cfg.MaxInstructions {
		return bytecode.Instruction{}, c.fault(errInstructionCapExceeded(c.cfg.MaxInstructions))
	}
	if !c.deadline.IsZero() && time.Now().After(c.deadline) {
		return bytecode.Instruction{}, c.fault(errTimeout(c.cfg.Timeout))
	}

	in := fr.fn.Instructions[fr.pc]
	if !in.Op.Valid() {
		return bytecode.Instruction{}, c.fault(errInvalidInstruction(fr.pc))
	}

	if c.guard != nil {
		ot := sandbox.OpcodeType{Arch: uint16(c.arch), Category: in.Op.Family()}
		if err := c.guard.Authorize(c.dotID, ot); err != nil {
			return bytecode.Instruction{}, c.fault(err)
		}
		if err := c.guard.Consume(c.dotID, ot, 0, 1, 0, 0); err != nil {
			return bytecode.Instruction{}, c.fault(err)
		}
	}

	nextPC := fr.pc + 1
	var err error
	switch in.Op.Family() {
	case bytecode.FamilyStack:
		err = c.execStack(in, fr.pc)
	case bytecode.FamilyArithmetic:
		err = c.execArithmetic(in, fr.pc)
	case bytecode.FamilyControl:
		nextPC, err = c.execControl(in, frameIdx, nextPC)
	case bytecode.FamilyMemory:
		err = c.execMemory(in, &c.frames[frameIdx], fr.pc)
	case bytecode.FamilyDB:
		err = c.execDB(in, fr.pc)
	case bytecode.FamilyDBLegacy:
		err = c.execDBLegacy(in, fr.pc)
	case bytecode.FamilyCrypto:
		err = c.execCrypto(in, fr.pc)
	}
	if err != nil {
		return bytecode.Instruction{}, c.fault(err)
	}

	c.instructionCounter++
	if c.flags.debug {
		c.log.Debug("vm step", zap.String("op", in.Op.Name()), zap.Int("pc", fr.pc), zap.Int("stack_size", c.st.len()))
	}

	// A Return may have popped frameIdx off c.frames entirely; only the
	// frame that is still present gets its pc advanced.
	if frameIdx < len(c.frames) {
		c.frames[frameIdx].pc = nextPC
	}
	return in, nil
}

// fault records err as the halting cause and stops the context (spec.md §7
// "Opcode-local faults surface to the execution loop, which records them
// and halts the VM context"). State mutated by the failing opcode itself is
// never rolled back here because every handler below either succeeds
// completely or returns before mutating shared state (stack ops push only
// after all pops succeed, DB/crypto ops push their result only after the
// provider call succeeds).
func (c *Context) fault(err error) error {
	c.halted = true
	c.haltErr = err
	return err
}

// execStack implements the Stack opcode family (spec.md §4.11: Push/Dup/
// Swap/Pop).
func (c *Context) execStack(in bytecode.Instruction, pc int) error {
	switch in.Op {
	case bytecode.OpPush:
		idx := int(in.Operands[0].Imm)
		if c.module == nil || idx < 0 || idx >= len(c.module.Constants) {
			return errInvalidInstruction(pc)
		}
		cst := c.module.Constants[idx]
		switch cst.Kind {
		case bytecode.ConstInt:
			c.st.push(IntValue(cst.I))
		case bytecode.ConstFloat:
			c.st.push(FloatValue(cst.F))
		case bytecode.ConstString:
			c.st.push(StringValue(cst.S))
		}
	case bytecode.OpPushInt8, bytecode.OpPushInt16, bytecode.OpPushInt32:
		c.st.push(IntValue(int64(in.Operands[0].Imm)))
	case bytecode.OpPushInt64:
		c.st.push(IntValue(in.Operands[0].LargeImm))
	case bytecode.OpPushFloat32:
		c.st.push(FloatValue(float64(math.Float32frombits(uint32(in.Operands[0].Imm)))))
	case bytecode.OpPushFloat64:
		c.st.push(FloatValue(math.Float64frombits(uint64(in.Operands[0].LargeImm))))
	case bytecode.OpDup:
		v, err := c.st.peek(pc, "Dup")
		if err != nil {
			return err
		}
		c.st.push(v)
	case bytecode.OpSwap:
		b, err := c.st.pop(pc, "Swap")
		if err != nil {
			return err
		}
		a, err := c.st.pop(pc, "Swap")
		if err != nil {
			return err
		}
		c.st.push(b)
		c.st.push(a)
	case bytecode.OpPop:
		if _, err := c.st.pop(pc, "Pop"); err != nil {
			return err
		}
	default:
		return errInvalidInstruction(pc)
	}
	return nil
}

// truncInt applies compatibility-mode masking to an integer arithmetic
// result (spec.md §4.11 "arithmetic truncates to guest width after each
// operation"; spec.md §8 invariant 9).
func (c *Context) truncInt(v int64) int64 {
	if c.arch == 0 || c.arch >= c.cfg.HostWidth {
		return v
	}
	u := new(uint256.Int).SetUint64(uint64(v))
	t := truncate(u, c.arch, c.cfg.HostWidth)
	if t == nil {
		return v
	}
	return int64(t.Uint64())
}

// execArithmetic implements the Arithmetic opcode family (spec.md §4.11):
// integer ops on ints, float ops on floats, and string concatenation only
// for Add; any other cross-type pairing is a TypeMismatch, never a silent
// coercion.
func (c *Context) execArithmetic(in bytecode.Instruction, pc int) error {
	name := in.Op.Name()
	if in.Op == bytecode.OpNeg || in.Op == bytecode.OpNot || in.Op == bytecode.OpConvert {
		return c.execUnaryArithmetic(in, pc)
	}

	b, err := c.st.pop(pc, name)
	if err != nil {
		return err
	}
	a, err := c.st.pop(pc, name)
	if err != nil {
		return err
	}

	if in.Op == bytecode.OpAdd && a.Kind == KindString && b.Kind == KindString {
		c.st.push(StringValue(a.S + b.S))
		return nil
	}
	if a.Kind == KindString || b.Kind == KindString {
		if (in.Op == bytecode.OpEq || in.Op == bytecode.OpNe) && a.Kind == KindString && b.Kind == KindString {
			eq := a.S == b.S
			if in.Op == bytecode.OpNe {
				eq = !eq
			}
			c.st.push(boolValue(eq))
			return nil
		}
		return errTypeMismatch(pc, name, a.kindName(), b.kindName())
	}
	if a.Kind != b.Kind {
		return errTypeMismatch(pc, name, a.kindName(), b.kindName())
	}

	if a.Kind == KindFloat {
		return c.execFloatArithmetic(in.Op, pc, a.F, b.F)
	}
	return c.execIntArithmetic(in.Op, pc, a.I, b.I)
}

func boolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}

func (c *Context) execIntArithmetic(op bytecode.Opcode, pc int, a, b int64) error {
	switch op {
	case bytecode.OpAdd:
		c.st.push(IntValue(c.truncInt(a + b)))
	case bytecode.OpSub:
		c.st.push(IntValue(c.truncInt(a - b)))
	case bytecode.OpMul:
		c.st.push(IntValue(c.truncInt(a * b)))
	case bytecode.OpDiv:
		if b == 0 {
			return errDivisionByZero(pc)
		}
		c.st.push(IntValue(c.truncInt(a / b)))
	case bytecode.OpMod:
		if b == 0 {
			return errDivisionByZero(pc)
		}
		c.st.push(IntValue(c.truncInt(a % b)))
	case bytecode.OpAnd:
		c.st.push(IntValue(a & b))
	case bytecode.OpOr:
		c.st.push(IntValue(a | b))
	case bytecode.OpXor:
		c.st.push(IntValue(a ^ b))
	case bytecode.OpShl:
		c.st.push(IntValue(c.truncInt(a << uint(b&63))))
	case bytecode.OpShr:
		c.st.push(IntValue(a >> uint(b&63)))
	case bytecode.OpEq:
		c.st.push(boolValue(a == b))
	case bytecode.OpNe:
		c.st.push(boolValue(a != b))
	case bytecode.OpLt:
		c.st.push(boolValue(a < b))
	case bytecode.OpGt:
		c.st.push(boolValue(a > b))
	case bytecode.OpLe:
		c.st.push(boolValue(a <= b))
	case bytecode.OpGe:
		c.st.push(boolValue(a >= b))
	default:
		return errInvalidInstruction(pc)
	}
	return nil
}

func (c *Context) execFloatArithmetic(op bytecode.Opcode, pc int, a, b float64) error {
	switch op {
	case bytecode.OpAdd:
		c.st.push(FloatValue(a + b))
	case bytecode.OpSub:
		c.st.push(FloatValue(a - b))
	case bytecode.OpMul:
		c.st.push(FloatValue(a * b))
	case bytecode.OpDiv:
		if b == 0 {
			return errDivisionByZero(pc)
		}
		c.st.push(FloatValue(a / b))
	case bytecode.OpMod:
		if b == 0 {
			return errDivisionByZero(pc)
		}
		c.st.push(FloatValue(math.Mod(a, b)))
	case bytecode.OpEq:
		c.st.push(boolValue(a == b))
	case bytecode.OpNe:
		c.st.push(boolValue(a != b))
	case bytecode.OpLt:
		c.st.push(boolValue(a < b))
	case bytecode.OpGt:
		c.st.push(boolValue(a > b))
	case bytecode.OpLe:
		c.st.push(boolValue(a <= b))
	case bytecode.OpGe:
		c.st.push(boolValue(a >= b))
	default:
		return errTypeMismatch(pc, op.Name(), "int", "float")
	}
	return nil
}

// execUnaryArithmetic handles Neg, Not and Convert, the single-operand
// members of the Arithmetic family. Not implements WASM's eqz test
// (spec.md §4.9 translator comment: "eqz" lowers to OpNot): it pushes 1 when
// the operand is falsy, 0 otherwise, rather than a bitwise complement,
// matching the only caller that emits it.
func (c *Context) execUnaryArithmetic(in bytecode.Instruction, pc int) error {
	a, err := c.st.pop(pc, in.Op.Name())
	if err != nil {
		return err
	}
	switch in.Op {
	case bytecode.OpNeg:
		switch a.Kind {
		case KindInt:
			c.st.push(IntValue(c.truncInt(-a.I)))
		case KindFloat:
			c.st.push(FloatValue(-a.F))
		default:
			return errTypeMismatch(pc, "Neg", "int|float", a.kindName())
		}
	case bytecode.OpNot:
		c.st.push(boolValue(!truthy(a)))
	case bytecode.OpConvert:
		switch a.Kind {
		case KindInt:
			c.st.push(FloatValue(float64(a.I)))
		case KindFloat:
			c.st.push(IntValue(int64(a.F)))
		default:
			return errTypeMismatch(pc, "Convert", "int|float", a.kindName())
		}
	}
	return nil
}

// execControl implements the Control opcode family. It returns the pc the
// executing frame should resume at; for Call/Return it also mutates
// c.frames directly.
func (c *Context) execControl(in bytecode.Instruction, frameIdx, nextPC int) (int, error) {
	pc := c.frames[frameIdx].pc
	switch in.Op {
	case bytecode.OpNop:
		return nextPC, nil
	case bytecode.OpHalt:
		c.halted = true
		return nextPC, nil
	case bytecode.OpJump:
		return int(in.Operands[0].Imm), nil
	case bytecode.OpJumpIf:
		cond, err := c.st.pop(pc, "JumpIf")
		if err != nil {
			return nextPC, err
		}
		if truthy(cond) {
			return int(in.Operands[0].Imm), nil
		}
		return nextPC, nil
	case bytecode.OpReturn:
		if frameIdx == 0 {
			c.halted = true
			return nextPC, nil
		}
		c.frames = c.frames[:frameIdx]
		return nextPC, nil
	case bytecode.OpCall:
		return nextPC, c.execCall(in, pc)
	default:
		return nextPC, errInvalidInstruction(pc)
	}
}

// execCall resolves a Call instruction's target and pushes a new frame
// (spec.md §3 "VM Context" call-frame model). A non-negative immediate
// names a direct callee by global function index; -1 marks a call_indirect,
// whose target the caller left on top of the operand stack at runtime
// (spec.md §4.9 translator comment on OpCallIndirect).
func (c *Context) execCall(in bytecode.Instruction, pc int) error {
	idx := int(in.Operands[0].Imm)
	if idx < 0 {
		v, err := c.st.pop(pc, "Call")
		if err != nil {
			return err
		}
		idx = int(v.I)
	}
	if uint32(idx) < c.importedFuncCount {
		return errTrap(pc, "call to an imported function has no host binding")
	}
	localIdx := idx - int(c.importedFuncCount)
	if localIdx < 0 || localIdx >= len(c.module.Functions) {
		return errInvalidInstruction(pc)
	}
	target := &c.module.Functions[localIdx]
	locals := make([]Value, target.LocalCount)
	for i := target.ParamCount - 1; i >= 0; i-- {
		v, err := c.st.pop(pc, "Call")
		if err != nil {
			return err
		}
		locals[i] = v
	}
	c.frames = append(c.frames, frame{fn: target, pc: 0, locals: locals})
	return nil
}

// execMemory implements Load/Store across the three addressing modes the
// translator emits them with (spec.md §3 operand variants): a local slot
// (OperandStackOffset), a module global (OperandGlobal), or linear memory
// (OperandMemory, address popped from the stack plus a fixed offset).
func (c *Context) execMemory(in bytecode.Instruction, fr *frame, pc int) error {
	op := in.Operands[0]
	switch op.Kind {
	case bytecode.OperandStackOffset:
		idx := int(op.Imm)
		if idx < 0 || idx >= len(fr.locals) {
			return errInvalidInstruction(pc)
		}
		if in.Op == bytecode.OpLoad {
			c.st.push(fr.locals[idx])
		} else {
			v, err := c.st.pop(pc, "Store")
			if err != nil {
				return err
			}
			fr.locals[idx] = v
		}
	case bytecode.OperandGlobal:
		idx := int(op.Imm)
		if idx < 0 || idx >= len(c.globals) {
			return errInvalidInstruction(pc)
		}
		if in.Op == bytecode.OpLoad {
			c.st.push(c.globals[idx])
		} else {
			v, err := c.st.pop(pc, "Store")
			if err != nil {
				return err
			}
			c.globals[idx] = v
		}
	case bytecode.OperandMemory:
		addrVal, err := c.st.pop(pc, "address")
		if err != nil {
			return err
		}
		addr := c.maskAddress(uint64(addrVal.I) + uint64(uint32(op.MemOffset)))
		if addr+8 > uint64(len(c.memory)) {
			return errTrap(pc, "memory access out of bounds")
		}
		if in.Op == bytecode.OpLoad {
			c.st.push(IntValue(int64(binary.LittleEndian.Uint64(c.memory[addr : addr+8]))))
		} else {
			v, err := c.st.pop(pc, "Store")
			if err != nil {
				return err
			}
			binary.LittleEndian.PutUint64(c.memory[addr:addr+8], uint64(v.I))
		}
	default:
		return errInvalidInstruction(pc)
	}
	return nil
}

// maskAddress applies compatibility-mode address masking (spec.md §4.11
// "memory addressing masks to guest width").
func (c *Context) maskAddress(addr uint64) uint64 {
	if c.arch == 0 || c.arch >= c.cfg.HostWidth || c.arch >= Width256 {
		return addr
	}
	u := new(uint256.Int).SetUint64(addr)
	t := truncate(u, c.arch, c.cfg.HostWidth)
	if t == nil {
		return addr
	}
	return t.Uint64()
}

func popString(c *Context, pc int, op string) (string, error) {
	v, err := c.st.pop(pc, op)
	if err != nil {
		return "", err
	}
	if v.Kind != KindString {
		return "", errTypeMismatch(pc, op, "string", v.kindName())
	}
	return v.S, nil
}

// execDBLegacy implements the DbGet/DbPut/DbUpdate/DbDelete/DbList/
// DbCreateCollection/DbDeleteCollection family, routed to the document
// layer (C7) with JSON strings on the stack (spec.md §4.11 DB legacy row).
func (c *Context) execDBLegacy(in bytecode.Instruction, pc int) error {
	if c.docs == nil {
		return errs.New(errs.KindRuntime, "document store not configured").With(map[string]any{"pc": pc})
	}
	switch in.Op {
	case bytecode.OpDbCreateCollection:
		if _, err := popString(c, pc, "DbCreateCollection"); err != nil {
			return err
		}
		c.st.push(IntValue(1))
	case bytecode.OpDbDeleteCollection:
		collection, err := popString(c, pc, "DbDeleteCollection")
		if err != nil {
			return err
		}
		if err := c.docs.DeleteCollection(collection); err != nil {
			return err
		}
		c.st.push(IntValue(1))
	case bytecode.OpDbPut:
		body, err := popString(c, pc, "DbPut")
		if err != nil {
			return err
		}
		collection, err := popString(c, pc, "DbPut")
		if err != nil {
			return err
		}
		id, err := c.docs.InsertJSON(collection, []byte(body))
		if err != nil {
			return err
		}
		c.st.push(StringValue(id))
	case bytecode.OpDbGet:
		id, err := popString(c, pc, "DbGet")
		if err != nil {
			return err
		}
		collection, err := popString(c, pc, "DbGet")
		if err != nil {
			return err
		}
		body, err := c.docs.GetJSON(collection, id)
		if err != nil {
			return err
		}
		c.st.push(StringValue(string(body)))
	case bytecode.OpDbUpdate:
		body, err := popString(c, pc, "DbUpdate")
		if err != nil {
			return err
		}
		id, err := popString(c, pc, "DbUpdate")
		if err != nil {
			return err
		}
		collection, err := popString(c, pc, "DbUpdate")
		if err != nil {
			return err
		}
		if err := c.docs.UpdateJSON(collection, id, []byte(body)); err != nil {
			return err
		}
		c.st.push(IntValue(1))
	case bytecode.OpDbDelete:
		id, err := popString(c, pc, "DbDelete")
		if err != nil {
			return err
		}
		collection, err := popString(c, pc, "DbDelete")
		if err != nil {
			return err
		}
		existed, err := c.docs.Delete(collection, id)
		if err != nil {
			return err
		}
		c.st.push(boolValue(existed))
	case bytecode.OpDbList:
		collection, err := popString(c, pc, "DbList")
		if err != nil {
			return err
		}
		ids, err := c.docs.ListDocumentIDs(collection)
		if err != nil {
			return err
		}
		raw, _ := json.Marshal(ids)
		c.st.push(StringValue(string(raw)))
	default:
		return errInvalidInstruction(pc)
	}
	return nil
}

// execDB implements the newer DbRead/DbWrite/DbQuery/DbTransaction/DbIndex/
// DbStream family. spec.md §4.11 describes these only as "Routes to C7" with
// per-opcode stack shapes left unspecified; DbRead/DbWrite/DbQuery are
// implemented as the obvious get/insert/find_by_field equivalents.
// DbTransaction and DbIndex have no document-layer counterpart to route to
// (spec.md §4.7's Collection has no index or nested-transaction API), so
// DbTransaction is a pass-through boundary marker and DbIndex acknowledges
// without building a real index, matching §4.9's note that index selection
// over find_by_field "remains a linear scan" (see DESIGN.md).
func (c *Context) execDB(in bytecode.Instruction, pc int) error {
	if c.docs == nil {
		return errs.New(errs.KindRuntime, "document store not configured").With(map[string]any{"pc": pc})
	}
	switch in.Op {
	case bytecode.OpDbRead:
		id, err := popString(c, pc, "DbRead")
		if err != nil {
			return err
		}
		collection, err := popString(c, pc, "DbRead")
		if err != nil {
			return err
		}
		body, err := c.docs.GetJSON(collection, id)
		if err != nil {
			return err
		}
		c.st.push(StringValue(string(body)))
	case bytecode.OpDbWrite:
		body, err := popString(c, pc, "DbWrite")
		if err != nil {
			return err
		}
		collection, err := popString(c, pc, "DbWrite")
		if err != nil {
			return err
		}
		id, err := c.docs.InsertJSON(collection, []byte(body))
		if err != nil {
			return err
		}
		c.st.push(StringValue(id))
	case bytecode.OpDbQuery:
		value, err := popString(c, pc, "DbQuery")
		if err != nil {
			return err
		}
		field, err := popString(c, pc, "DbQuery")
		if err != nil {
			return err
		}
		collection, err := popString(c, pc, "DbQuery")
		if err != nil {
			return err
		}
		matches, err := c.docs.FindByField(collection, field, []byte(value))
		if err != nil {
			return err
		}
		raw, _ := json.Marshal(matches)
		c.st.push(StringValue(string(raw)))
	case bytecode.OpDbStream:
		collection, err := popString(c, pc, "DbStream")
		if err != nil {
			return err
		}
		ids, err := c.docs.ListDocumentIDs(collection)
		if err != nil {
			return err
		}
		raw, _ := json.Marshal(ids)
		c.st.push(StringValue(string(raw)))
	case bytecode.OpDbTransaction:
		v, err := c.st.pop(pc, "DbTransaction")
		if err != nil {
			return err
		}
		c.st.push(v)
	case bytecode.OpDbIndex:
		if _, err := popString(c, pc, "DbIndex"); err != nil {
			return err
		}
		if _, err := popString(c, pc, "DbIndex"); err != nil {
			return err
		}
		c.st.push(IntValue(1))
	default:
		return errInvalidInstruction(pc)
	}
	return nil
}

// execCrypto implements the Crypto opcode family, routed to C13 (spec.md
// §4.13). Keys, nonces and ciphertext travel on the operand stack as hex
// strings — the stack's only binary-capable type is string (spec.md §3) —
// and an instruction's single immediate operand selects the algorithm
// where one applies.
func (c *Context) execCrypto(in bytecode.Instruction, pc int) error {
	if c.crypto == nil {
		return errs.New(errs.KindSecurity, "crypto provider not configured").With(map[string]any{"pc": pc})
	}
	switch in.Op {
	case bytecode.OpHash:
		data, err := popString(c, pc, "Hash")
		if err != nil {
			return err
		}
		alg := cryptoprovider.HashAlgorithm(in.Operands[0].Imm)
		sum, err := c.crypto.Hash.Hash(alg, []byte(data))
		if err != nil {
			return err
		}
		c.st.push(StringValue(hex.EncodeToString(sum)))
	case bytecode.OpSecureRandom:
		n, err := c.st.pop(pc, "SecureRandom")
		if err != nil {
			return err
		}
		buf, err := c.crypto.Random.Random(int(n.I))
		if err != nil {
			return err
		}
		c.st.push(StringValue(hex.EncodeToString(buf)))
	case bytecode.OpSign:
		message, err := popString(c, pc, "Sign")
		if err != nil {
			return err
		}
		keyHex, err := popString(c, pc, "Sign")
		if err != nil {
			return err
		}
		keyBytes, err := hex.DecodeString(keyHex)
		if err != nil {
			return errs.Wrap(errs.KindSecurity, "invalid key encoding", err)
		}
		alg := cryptoprovider.SignatureAlgorithm(in.Operands[0].Imm)
		key := cryptoprovider.NewSigningKeyMaterial(alg, keyBytes)
		defer key.Release()
		sig, err := c.crypto.Signature.Sign(key, []byte(message))
		if err != nil {
			return err
		}
		c.st.push(StringValue(hex.EncodeToString(sig)))
	case bytecode.OpVerify:
		sigHex, err := popString(c, pc, "Verify")
		if err != nil {
			return err
		}
		message, err := popString(c, pc, "Verify")
		if err != nil {
			return err
		}
		pubHex, err := popString(c, pc, "Verify")
		if err != nil {
			return err
		}
		sig, err := hex.DecodeString(sigHex)
		if err != nil {
			return errs.Wrap(errs.KindSecurity, "invalid signature encoding", err)
		}
		pub, err := hex.DecodeString(pubHex)
		if err != nil {
			return errs.Wrap(errs.KindSecurity, "invalid key encoding", err)
		}
		alg := cryptoprovider.SignatureAlgorithm(in.Operands[0].Imm)
		ok, err := c.crypto.Signature.Verify(alg, pub, []byte(message), sig)
		if err != nil {
			return err
		}
		c.st.push(boolValue(ok))
	case bytecode.OpEncrypt, bytecode.OpDecrypt:
		return c.execCipher(in, pc)
	case bytecode.OpZkProof:
		witness, err := popString(c, pc, "ZkProof")
		if err != nil {
			return err
		}
		statement, err := popString(c, pc, "ZkProof")
		if err != nil {
			return err
		}
		if c.crypto.ZK == nil {
			return errs.New(errs.KindSecurity, "unsupported algorithm").With(map[string]any{"family": "zk"})
		}
		proof, err := c.crypto.ZK.Prove([]byte(statement), []byte(witness))
		if err != nil {
			return err
		}
		c.st.push(StringValue(hex.EncodeToString(proof)))
	case bytecode.OpZkVerify:
		proofHex, err := popString(c, pc, "ZkVerify")
		if err != nil {
			return err
		}
		statement, err := popString(c, pc, "ZkVerify")
		if err != nil {
			return err
		}
		if c.crypto.ZK == nil {
			return errs.New(errs.KindSecurity, "unsupported algorithm").With(map[string]any{"family": "zk"})
		}
		proof, err := hex.DecodeString(proofHex)
		if err != nil {
			return errs.Wrap(errs.KindSecurity, "invalid proof encoding", err)
		}
		ok, err := c.crypto.ZK.VerifyProof([]byte(statement), proof)
		if err != nil {
			return err
		}
		c.st.push(boolValue(ok))
	default:
		return errInvalidInstruction(pc)
	}
	return nil
}

func (c *Context) execCipher(in bytecode.Instruction, pc int) error {
	name := in.Op.Name()
	additionalHex, err := popString(c, pc, name)
	if err != nil {
		return err
	}
	nonceHex, err := popString(c, pc, name)
	if err != nil {
		return err
	}
	bodyHex, err := popString(c, pc, name)
	if err != nil {
		return err
	}
	keyHex, err := popString(c, pc, name)
	if err != nil {
		return err
	}
	additional, err := hex.DecodeString(additionalHex)
	if err != nil {
		return errs.Wrap(errs.KindSecurity, "invalid additional-data encoding", err)
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return errs.Wrap(errs.KindSecurity, "invalid nonce encoding", err)
	}
	body, err := hex.DecodeString(bodyHex)
	if err != nil {
		return errs.Wrap(errs.KindSecurity, "invalid ciphertext/plaintext encoding", err)
	}
	keyBytes, err := hex.DecodeString(keyHex)
	if err != nil {
		return errs.Wrap(errs.KindSecurity, "invalid key encoding", err)
	}
	alg := cryptoprovider.CipherAlgorithm(in.Operands[0].Imm)
	key := cryptoprovider.NewCipherKeyMaterial(alg, keyBytes)
	defer key.Release()

	if in.Op == bytecode.OpEncrypt {
		out, err := c.crypto.Cipher.Encrypt(key, nonce, body, additional)
		if err != nil {
			return err
		}
		c.st.push(StringValue(hex.EncodeToString(out)))
		return nil
	}
	out, err := c.crypto.Cipher.Decrypt(key, nonce, body, additional)
	if err != nil {
		return err
	}
	c.st.push(StringValue(hex.EncodeToString(out)))
	return nil
}
