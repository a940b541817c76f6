package bytecode

import "testing"

func TestOpcodeTableComplete(t *testing.T) {
	for op, name := range opcodeNames {
		if name == "" {
			t.Fatalf("opcode %d has empty name", op)
		}
		if _, ok := opcodeFamilies[op]; !ok {
			t.Fatalf("opcode %s (%d) missing from family table", name, op)
		}
		if got, ok := Lookup(name); !ok || got != op {
			t.Fatalf("Lookup(%q) = %d, %v; want %d, true", name, got, ok, op)
		}
	}
}

func TestOpcodeFamilyRouting(t *testing.T) {
	cases := map[Opcode]Family{
		OpAdd:    FamilyArithmetic,
		OpDbGet:  FamilyDBLegacy,
		OpDbRead: FamilyDB,
		OpHash:   FamilyCrypto,
		OpJumpIf: FamilyControl,
		OpLoad:   FamilyMemory,
		OpPush:   FamilyStack,
	}
	for op, want := range cases {
		if got := op.Family(); got != want {
			t.Errorf("%s.Family() = %v, want %v", op.Name(), got, want)
		}
	}
}
