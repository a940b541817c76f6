package translator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synerthink/dotlanth/bytecode"
	"github.com/synerthink/dotlanth/wasm"
)

func addFunctionModule() *wasm.Module {
	return &wasm.Module{
		Types: []wasm.FunctionType{{Params: []wasm.ValueType{wasm.I32, wasm.I32}, Results: []wasm.ValueType{wasm.I32}}},
		Functions: []wasm.Function{{
			Signature: wasm.FunctionType{Params: []wasm.ValueType{wasm.I32, wasm.I32}, Results: []wasm.ValueType{wasm.I32}},
			Body: []wasm.Instruction{
				{Op: wasm.OpLocalGet, LocalIndex: 0},
				{Op: wasm.OpLocalGet, LocalIndex: 1},
				{Op: wasm.OpNumeric, Raw: "i32.add"},
				{Op: wasm.OpEnd},
			},
		}},
		Exports: []wasm.Export{{Name: "add", Kind: wasm.ExportFunction, Index: 0}},
	}
}

func TestTranslateProducesExportedFunction(t *testing.T) {
	m, err := Translate(addFunctionModule(), Options{})
	require.NoError(t, err)
	require.Len(t, m.Functions, 1)
	fn := m.Functions[0]
	require.Equal(t, "add", fn.Name)
	require.True(t, fn.Exported)
	require.Equal(t, 2, fn.ParamCount)

	var sawAdd bool
	for _, in := range fn.Instructions {
		if in.Op == bytecode.OpAdd {
			sawAdd = true
		}
	}
	require.True(t, sawAdd)
}

// TestOptimizerTransparency is spec.md §8 invariant 8: every optimization
// level must leave the exported function's instruction semantics equivalent;
// here it checks only that the Add survives every level and is not the
// function's first instruction.
func TestOptimizerTransparency(t *testing.T) {
	for level := 0; level <= 3; level++ {
		opts := Options{OptLevel: level, DeadCodeElimination: true, ConstantFolding: true}
		m, err := Translate(addFunctionModule(), opts)
		require.NoErrorf(t, err, "level %d", level)
		fn := m.Functions[0]

		addIdx := -1
		for i, in := range fn.Instructions {
			if in.Op == bytecode.OpAdd {
				addIdx = i
			}
		}
		require.Greaterf(t, addIdx, 0, "level %d: Add must be preceded by its operand loads", level)
	}
}

func TestConstantFoldingEvaluatesLiteralArithmetic(t *testing.T) {
	wm := &wasm.Module{
		Functions: []wasm.Function{{
			Body: []wasm.Instruction{
				{Op: wasm.OpI32Const, I32: 2},
				{Op: wasm.OpI32Const, I32: 3},
				{Op: wasm.OpNumeric, Raw: "i32.add"},
				{Op: wasm.OpEnd},
			},
		}},
	}
	m, err := Translate(wm, Options{ConstantFolding: true})
	require.NoError(t, err)
	fn := m.Functions[0]
	for _, in := range fn.Instructions {
		require.NotEqual(t, bytecode.OpAdd, in.Op, "constant folding should have evaluated the literal add at translation time")
	}
}

func TestLabelResolutionFailsOnUnresolvedLabel(t *testing.T) {
	fn := &Function{
		Name: "broken",
		Instructions: []bytecode.Instruction{
			{Op: bytecode.OpJump, Operands: []bytecode.Operand{bytecode.LabelOperand("missing")}},
		},
	}
	err := resolveLabels(fn)
	require.Error(t, err)
}

func TestBranchOnIfElse(t *testing.T) {
	i32 := wasm.I32
	wm := &wasm.Module{
		Functions: []wasm.Function{{
			Body: []wasm.Instruction{
				{Op: wasm.OpLocalGet, LocalIndex: 0},
				{Op: wasm.OpIf, BlockType: &i32},
				{Op: wasm.OpI32Const, I32: 1},
				{Op: wasm.OpElse},
				{Op: wasm.OpI32Const, I32: 0},
				{Op: wasm.OpEnd},
				{Op: wasm.OpEnd},
			},
			Signature: wasm.FunctionType{Params: []wasm.ValueType{wasm.I32}, Results: []wasm.ValueType{wasm.I32}},
		}},
	}
	m, err := Translate(wm, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, m.Functions[0].Instructions)

	var sawJumpIf bool
	for _, in := range m.Functions[0].Instructions {
		if in.Op == bytecode.OpJumpIf {
			sawJumpIf = true
		}
	}
	require.True(t, sawJumpIf)
}
