package wasm

import (
	"testing"
)

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}

func sleb(v int64) []byte {
	var out []byte
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			more = false
		} else {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

func section(id byte, body []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint64(len(body)))...)
	return append(out, body...)
}

func nameBytes(s string) []byte {
	out := uleb(uint64(len(s)))
	return append(out, []byte(s)...)
}

// buildAnswerModule assembles a minimal module exporting a zero-arg function
// "answer" that returns the i32 constant 42.
func buildAnswerModule(t *testing.T) []byte {
	t.Helper()

	typeSec := section(1, append(uleb(1), append([]byte{0x60, 0x00, 0x01, 0x7f})...))
	funcSec := section(3, append(uleb(1), uleb(0)...))

	exportBody := uleb(1)
	exportBody = append(exportBody, nameBytes("answer")...)
	exportBody = append(exportBody, 0x00)
	exportBody = append(exportBody, uleb(0)...)
	exportSec := section(7, exportBody)

	fnBody := uleb(0) // zero local decl groups
	fnBody = append(fnBody, 0x41)
	fnBody = append(fnBody, sleb(42)...)
	fnBody = append(fnBody, 0x0b)
	codeEntry := uleb(uint64(len(fnBody)))
	codeEntry = append(codeEntry, fnBody...)
	codeBody := uleb(1)
	codeBody = append(codeBody, codeEntry...)
	codeSec := section(10, codeBody)

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, typeSec...)
	out = append(out, funcSec...)
	out = append(out, exportSec...)
	out = append(out, codeSec...)
	return out
}

func TestDecodeMinimalModule(t *testing.T) {
	data := buildAnswerModule(t)
	m, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Types) != 1 || len(m.Types[0].Results) != 1 || m.Types[0].Results[0] != I32 {
		t.Fatalf("unexpected types: %+v", m.Types)
	}
	if m.FunctionCount() != 1 {
		t.Fatalf("want 1 function got %d", m.FunctionCount())
	}
	if len(m.Exports) != 1 || m.Exports[0].Name != "answer" || m.Exports[0].Kind != ExportFunction {
		t.Fatalf("unexpected exports: %+v", m.Exports)
	}
	fn := m.Functions[0]
	if len(fn.Body) != 2 || fn.Body[0].Op != OpI32Const || fn.Body[0].I32 != 42 || fn.Body[1].Op != OpEnd {
		t.Fatalf("unexpected function body: %+v", fn.Body)
	}
	if len(m.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", m.Warnings)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6e, 0x01, 0x00, 0x00, 0x00}
	if _, err := Decode(data); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00}
	if _, err := Decode(data); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestDecodeOutOfOrderSectionsWarn(t *testing.T) {
	data := buildAnswerModule(t)

	// Reassemble with function and type sections swapped to trigger the
	// out-of-canonical-order warning path while remaining structurally
	// decodable (the function section only reads a type index, it does not
	// require Types to already be populated to parse successfully).
	header := data[:8]
	rest := data[8:]

	typeSec := section(1, append(uleb(1), append([]byte{0x60, 0x00, 0x01, 0x7f})...))
	funcSec := section(3, append(uleb(1), uleb(0)...))

	if len(rest) < len(typeSec)+len(funcSec) {
		t.Fatal("test fixture too short")
	}
	swapped := append([]byte{}, header...)
	swapped = append(swapped, funcSec...)
	swapped = append(swapped, typeSec...)
	swapped = append(swapped, rest[len(typeSec)+len(funcSec):]...)

	m, err := Decode(swapped)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Warnings) == 0 {
		t.Fatal("expected an out-of-order section warning")
	}
}

func TestDecodeReservedOpcodeFails(t *testing.T) {
	// A code section whose body uses an unassigned opcode (0xff) in place of
	// a real instruction.
	typeSec := section(1, append(uleb(1), append([]byte{0x60, 0x00, 0x00})...))
	funcSec := section(3, append(uleb(1), uleb(0)...))

	fnBody := uleb(0)
	fnBody = append(fnBody, 0xff, 0x0b)
	codeEntry := uleb(uint64(len(fnBody)))
	codeEntry = append(codeEntry, fnBody...)
	codeBody := uleb(1)
	codeBody = append(codeBody, codeEntry...)
	codeSec := section(10, codeBody)

	data := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	data = append(data, typeSec...)
	data = append(data, funcSec...)
	data = append(data, codeSec...)

	_, err := Decode(data)
	if err == nil {
		t.Fatal("expected reserved opcode to fail decoding")
	}
}

func TestDecodeTruncatedStreamFails(t *testing.T) {
	data := buildAnswerModule(t)
	if _, err := Decode(data[:len(data)-3]); err == nil {
		t.Fatal("expected truncated stream to fail decoding")
	}
}
