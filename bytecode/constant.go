package bytecode

// ConstantKind discriminates the payload carried by one constant-pool
// entry.
type ConstantKind uint8

const (
	ConstInt ConstantKind = iota
	ConstFloat
	ConstString
)

// Constant is one entry of a module's constant pool, the storage
// `Push(const_id)` reads from (spec.md §4.11 stack table: "Push(const_id)
// ... Loads from constant pool"). Distinct from the operand immediates
// PushInt8/PushInt64/etc. carry inline, this pool exists for values that
// don't fit an operand field — string literals chiefly.
type Constant struct {
	Kind ConstantKind
	I    int64
	F    float64
	S    string
}

func IntConstant(v int64) Constant    { return Constant{Kind: ConstInt, I: v} }
func FloatConstant(v float64) Constant { return Constant{Kind: ConstFloat, F: v} }
func StringConstant(v string) Constant { return Constant{Kind: ConstString, S: v} }
