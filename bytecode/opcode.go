// Package bytecode holds the instruction and opcode definitions shared by
// the translator (C9), the assembler (C10) and the execution engine (C11).
//
// Per spec.md §9 Open Question #2 ("hash collisions are not handled in the
// source"), opcodes are identified by a fixed static table rather than a
// runtime hash of the mnemonic.
package bytecode

// Opcode identifies a single VM instruction. Values are stable across
// releases: the assembler writes them to disk and the engine decodes them
// back, so renumbering is a breaking format change.
type Opcode uint16

// Opcode family, used by the capability sandbox (C12) to resolve the
// authorization category of an instruction without inspecting its mnemonic.
type Family uint8

const (
	FamilyStack Family = iota
	FamilyArithmetic
	FamilyControl
	FamilyMemory
	FamilyDB
	FamilyDBLegacy
	FamilyCrypto
)

const (
	OpPush Opcode = iota + 1
	OpPushInt8
	OpPushInt16
	OpPushInt32
	OpPushInt64
	OpPushFloat32
	OpPushFloat64
	OpDup
	OpSwap
	OpPop

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpNot
	OpShl
	OpShr
	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpConvert

	OpJump
	OpJumpIf
	OpCall
	OpReturn
	OpHalt
	OpNop

	OpLoad
	OpStore

	OpDbRead
	OpDbWrite
	OpDbQuery
	OpDbTransaction
	OpDbIndex
	OpDbStream

	OpDbGet
	OpDbPut
	OpDbUpdate
	OpDbDelete
	OpDbList
	OpDbCreateCollection
	OpDbDeleteCollection

	OpHash
	OpSign
	OpVerify
	OpEncrypt
	OpDecrypt
	OpSecureRandom
	OpZkProof
	OpZkVerify
)

// opcodeNames and opcodeFamilies are the fixed tables mandated by spec.md
// §9 Open Question #2. Every entry here MUST be present in both maps; tests
// in opcode_test.go enforce that.
var opcodeNames = map[Opcode]string{
	OpPush: "Push", OpPushInt8: "PushInt8", OpPushInt16: "PushInt16",
	OpPushInt32: "PushInt32", OpPushInt64: "PushInt64",
	OpPushFloat32: "PushFloat32", OpPushFloat64: "PushFloat64",
	OpDup: "Dup", OpSwap: "Swap", OpPop: "Pop",
	OpAdd: "Add", OpSub: "Sub", OpMul: "Mul", OpDiv: "Div", OpMod: "Mod",
	OpNeg: "Neg", OpAnd: "And", OpOr: "Or", OpXor: "Xor", OpNot: "Not",
	OpShl: "Shl", OpShr: "Shr",
	OpEq: "Eq", OpNe: "Ne", OpLt: "Lt", OpGt: "Gt", OpLe: "Le", OpGe: "Ge",
	OpConvert: "Convert",
	OpJump: "Jump", OpJumpIf: "JumpIf", OpCall: "Call", OpReturn: "Return",
	OpHalt: "Halt", OpNop: "Nop",
	OpLoad: "Load", OpStore: "Store",
	OpDbRead: "DbRead", OpDbWrite: "DbWrite", OpDbQuery: "DbQuery",
	OpDbTransaction: "DbTransaction", OpDbIndex: "DbIndex", OpDbStream: "DbStream",
	OpDbGet: "DbGet", OpDbPut: "DbPut", OpDbUpdate: "DbUpdate", OpDbDelete: "DbDelete",
	OpDbList: "DbList", OpDbCreateCollection: "DbCreateCollection", OpDbDeleteCollection: "DbDeleteCollection",
	OpHash: "Hash", OpSign: "Sign", OpVerify: "Verify", OpEncrypt: "Encrypt",
	OpDecrypt: "Decrypt", OpSecureRandom: "SecureRandom", OpZkProof: "ZkProof", OpZkVerify: "ZkVerify",
}

var opcodeFamilies = map[Opcode]Family{
	OpPush: FamilyStack, OpPushInt8: FamilyStack, OpPushInt16: FamilyStack,
	OpPushInt32: FamilyStack, OpPushInt64: FamilyStack,
	OpPushFloat32: FamilyStack, OpPushFloat64: FamilyStack,
	OpDup: FamilyStack, OpSwap: FamilyStack, OpPop: FamilyStack,
	OpAdd: FamilyArithmetic, OpSub: FamilyArithmetic, OpMul: FamilyArithmetic,
	OpDiv: FamilyArithmetic, OpMod: FamilyArithmetic, OpNeg: FamilyArithmetic,
	OpAnd: FamilyArithmetic, OpOr: FamilyArithmetic, OpXor: FamilyArithmetic,
	OpNot: FamilyArithmetic, OpShl: FamilyArithmetic, OpShr: FamilyArithmetic,
	OpEq: FamilyArithmetic, OpNe: FamilyArithmetic, OpLt: FamilyArithmetic,
	OpGt: FamilyArithmetic, OpLe: FamilyArithmetic, OpGe: FamilyArithmetic,
	OpConvert: FamilyArithmetic,
	OpJump: FamilyControl, OpJumpIf: FamilyControl, OpCall: FamilyControl,
	OpReturn: FamilyControl, OpHalt: FamilyControl, OpNop: FamilyControl,
	OpLoad: FamilyMemory, OpStore: FamilyMemory,
	OpDbRead: FamilyDB, OpDbWrite: FamilyDB, OpDbQuery: FamilyDB,
	OpDbTransaction: FamilyDB, OpDbIndex: FamilyDB, OpDbStream: FamilyDB,
	OpDbGet: FamilyDBLegacy, OpDbPut: FamilyDBLegacy, OpDbUpdate: FamilyDBLegacy,
	OpDbDelete: FamilyDBLegacy, OpDbList: FamilyDBLegacy,
	OpDbCreateCollection: FamilyDBLegacy, OpDbDeleteCollection: FamilyDBLegacy,
	OpHash: FamilyCrypto, OpSign: FamilyCrypto, OpVerify: FamilyCrypto,
	OpEncrypt: FamilyCrypto, OpDecrypt: FamilyCrypto, OpSecureRandom: FamilyCrypto,
	OpZkProof: FamilyCrypto, OpZkVerify: FamilyCrypto,
}

// nameToOpcode is built once from opcodeNames for the translator's mnemonic lookups.
var nameToOpcode = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

// Name returns the mnemonic for op, or "" if op is not a known opcode.
func (op Opcode) Name() string { return opcodeNames[op] }

// Family returns the authorization/dispatch family for op.
func (op Opcode) Family() Family { return opcodeFamilies[op] }

// Valid reports whether op is present in the fixed opcode table.
func (op Opcode) Valid() bool {
	_, ok := opcodeNames[op]
	return ok
}

// Lookup resolves a mnemonic to its Opcode.
func Lookup(name string) (Opcode, bool) {
	op, ok := nameToOpcode[name]
	return op, ok
}

func (f Family) String() string {
	switch f {
	case FamilyStack:
		return "stack"
	case FamilyArithmetic:
		return "arithmetic"
	case FamilyControl:
		return "control"
	case FamilyMemory:
		return "memory"
	case FamilyDB:
		return "db"
	case FamilyDBLegacy:
		return "db-legacy"
	case FamilyCrypto:
		return "crypto"
	default:
		return "unknown"
	}
}
