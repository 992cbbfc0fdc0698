package bytecode

import (
	"strings"
	"testing"
)

func TestDisassembleBasic(t *testing.T) {
	a := NewAssembler()
	end := a.NewLabel()
	a.EmitLoadLocal(0)
	a.EmitConstant("GET")
	a.Emit(OpStrEq)
	if err := a.EmitBranch(OpJumpTrue, end); err != nil {
		t.Fatalf("EmitBranch: %v", err)
	}
	a.EmitConstU32(1)
	a.Emit(OpReturn)
	if err := a.Bind(end); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	a.EmitConstU32(0)
	a.Emit(OpReturn)

	chunk, err := a.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	chunk.LocalCount = 1

	listing := chunk.DisassembleWithName("http-method")

	for _, want := range []string{
		"; === http-method ===",
		"; Dispatch Bytecode v1",
		"; Locals: 1 slots",
		`[  0] "GET"`,
		"LOAD_LOCAL 0",
		`CONST 0 ; "GET"`,
		"STR_EQ",
		"JUMP_TRUE",
		"CONST_U32 1",
		"RETURN",
	} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}

func TestDisassembleJumpTarget(t *testing.T) {
	a := NewAssembler()
	end := a.NewLabel()
	if err := a.EmitBranch(OpJump, end); err != nil {
		t.Fatalf("EmitBranch: %v", err)
	}
	a.Emit(OpNop)
	if err := a.Bind(end); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	a.Emit(OpReturnNil)

	chunk, err := a.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	line := chunk.DisassembleInstruction(0)
	if !strings.Contains(line, "JUMP +1 (-> 0004)") {
		t.Errorf("jump line = %q, want target annotation -> 0004", line)
	}
}

func TestDisassembleToLines(t *testing.T) {
	c := NewChunk()
	c.Emit(OpNop)
	c.EmitConstU32(7)
	c.Emit(OpReturn)

	lines := c.DisassembleToLines()
	if len(lines) != 3 {
		t.Fatalf("len(lines) = %d, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "0000") {
		t.Errorf("lines[0] = %q, want 0000 prefix", lines[0])
	}
	if c.InstructionCount() != 3 {
		t.Errorf("InstructionCount() = %d, want 3", c.InstructionCount())
	}
}
