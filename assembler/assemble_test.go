package assembler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/synerthink/dotlanth/bytecode"
	"github.com/synerthink/dotlanth/translator"
)

func sampleModule() *translator.Module {
	return &translator.Module{
		Header: translator.Header{Architecture: 64, FeatureFlags: 0x1},
		Functions: []translator.Function{
			{
				Name:       "add_and_mul",
				ParamCount: 0,
				LocalCount: 1,
				Exported:   true,
				Instructions: []bytecode.Instruction{
					{Op: bytecode.OpPushInt8, Operands: []bytecode.Operand{bytecode.ImmediateOperand(10)}},
					{Op: bytecode.OpPushInt8, Operands: []bytecode.Operand{bytecode.ImmediateOperand(5)}},
					{Op: bytecode.OpAdd},
					{Op: bytecode.OpStore, Operands: []bytecode.Operand{bytecode.StackOffsetOperand(0)}},
					{Op: bytecode.OpLoad, Operands: []bytecode.Operand{bytecode.StackOffsetOperand(0)}},
					{Op: bytecode.OpReturn},
				},
				DebugInfo: &translator.DebugInfo{
					Locals: []translator.DebugLocal{{Index: 0, Name: "sum"}},
				},
			},
		},
		Exports: []translator.ExportEntry{{Name: "add_and_mul", Kind: 0, Index: 0}},
	}
}

func TestAssembleDisassembleRoundTrip(t *testing.T) {
	m := sampleModule()
	data, err := Assemble(m, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, data)

	got, err := Disassemble(data)
	require.NoError(t, err)

	require.Equal(t, m.Header.Architecture, got.Header.Architecture)
	require.Equal(t, m.Header.FeatureFlags, got.Header.FeatureFlags)
	require.Len(t, got.Functions, 1)
	require.Equal(t, "add_and_mul", got.Functions[0].Name)
	require.True(t, got.Functions[0].Exported)
	require.Equal(t, m.Functions[0].Instructions, got.Functions[0].Instructions)
	require.NotNil(t, got.Functions[0].DebugInfo)
	require.Equal(t, "sum", got.Functions[0].DebugInfo.Locals[0].Name)
	require.Len(t, got.Exports, 1)
	require.Equal(t, "add_and_mul", got.Exports[0].Name)
}

func TestAssembleRejectsBadArchitecture(t *testing.T) {
	m := sampleModule()
	m.Header.Architecture = 17
	_, err := Assemble(m, Options{})
	require.Error(t, err)
}

func TestAssembleSizeLimit(t *testing.T) {
	m := sampleModule()
	_, err := Assemble(m, Options{MaxSize: 4})
	require.Error(t, err)
}

func TestDisassembleRejectsBadMagic(t *testing.T) {
	_, err := Disassemble([]byte{0, 1, 2, 3, 4, 5})
	require.Error(t, err)
}

func TestDisassembleRejectsTruncated(t *testing.T) {
	m := sampleModule()
	data, err := Assemble(m, Options{})
	require.NoError(t, err)
	_, err = Disassemble(data[:len(data)-10])
	require.Error(t, err)
}
