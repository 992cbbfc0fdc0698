package bytecode

import (
	"strings"
	"testing"
)

// run executes code assembled by fn and returns the result.
func run(t *testing.T, locals []Value, fn func(a *Assembler)) Value {
	t.Helper()
	a := NewAssembler()
	fn(a)
	chunk, err := a.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	chunk.LocalCount = uint8(len(locals))
	result, err := Run(chunk, locals)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result
}

// runErr executes code assembled by fn and returns the execution error.
func runErr(t *testing.T, locals []Value, fn func(a *Assembler)) error {
	t.Helper()
	a := NewAssembler()
	fn(a)
	chunk, err := a.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	chunk.LocalCount = uint8(len(locals))
	_, err = Run(chunk, locals)
	if err == nil {
		t.Fatal("Run succeeded, want error")
	}
	return err
}

func TestVMConstants(t *testing.T) {
	result := run(t, nil, func(a *Assembler) {
		a.EmitConstant("hello")
		a.Emit(OpReturn)
	})
	if result.Kind() != KindString || result.Str() != "hello" {
		t.Errorf("result = %s, want \"hello\"", result)
	}

	result = run(t, nil, func(a *Assembler) {
		a.EmitConstNil()
		a.Emit(OpReturn)
	})
	if !result.IsNil() {
		t.Errorf("result = %s, want nil", result)
	}

	result = run(t, nil, func(a *Assembler) {
		a.EmitConstU32(0xCAFEBABE)
		a.Emit(OpReturn)
	})
	if result.Kind() != KindUint32 || result.U32() != 0xCAFEBABE {
		t.Errorf("result = %s, want 3405691582", result)
	}
}

func TestVMLocals(t *testing.T) {
	result := run(t, []Value{StringValue("key")}, func(a *Assembler) {
		a.EmitLoadLocal(0)
		a.Emit(OpReturn)
	})
	if result.Str() != "key" {
		t.Errorf("result = %s, want \"key\"", result)
	}

	// Store then load through a second slot
	result = run(t, []Value{StringValue("key"), NilValue()}, func(a *Assembler) {
		a.EmitLoadLocal(0)
		a.EmitStoreLocal(1)
		a.EmitLoadLocal(1)
		a.Emit(OpReturn)
	})
	if result.Str() != "key" {
		t.Errorf("result after store/load = %s, want \"key\"", result)
	}
}

func TestVMStrEq(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"equal strings", StringValue("abc"), StringValue("abc"), true},
		{"unequal strings", StringValue("abc"), StringValue("abd"), false},
		{"empty vs empty", StringValue(""), StringValue(""), true},
		{"nil vs nil", NilValue(), NilValue(), true},
		{"nil vs empty", NilValue(), StringValue(""), false},
		{"empty vs nil", StringValue(""), NilValue(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := run(t, []Value{tt.a, tt.b}, func(a *Assembler) {
				a.EmitLoadLocal(0)
				a.EmitLoadLocal(1)
				a.Emit(OpStrEq)
				a.Emit(OpReturn)
			})
			if result.Kind() != KindBool || result.Bool() != tt.want {
				t.Errorf("STR_EQ = %s, want %t", result, tt.want)
			}
		})
	}
}

func TestVMU32Comparisons(t *testing.T) {
	tests := []struct {
		op   Opcode
		a, b uint32
		want bool
	}{
		{OpU32Eq, 5, 5, true},
		{OpU32Eq, 5, 6, false},
		{OpU32Lt, 5, 6, true},
		{OpU32Lt, 6, 5, false},
		{OpU32Lt, 5, 5, false},
		{OpU32Lt, 0, 0xFFFFFFFF, true},
		{OpU32Lt, 0xFFFFFFFF, 0, false},
	}

	for _, tt := range tests {
		result := run(t, nil, func(a *Assembler) {
			a.EmitConstU32(tt.a)
			a.EmitConstU32(tt.b)
			a.Emit(tt.op)
			a.Emit(OpReturn)
		})
		if result.Kind() != KindBool || result.Bool() != tt.want {
			t.Errorf("%s(%d, %d) = %s, want %t", tt.op, tt.a, tt.b, result, tt.want)
		}
	}
}

func TestVMHashStr(t *testing.T) {
	result := run(t, nil, func(a *Assembler) {
		a.EmitConstant("GET")
		a.Emit(OpHashStr)
		a.Emit(OpReturn)
	})
	if result.Kind() != KindUint32 || result.U32() != HashString("GET") {
		t.Errorf("HASH_STR(\"GET\") = %s, want %d", result, HashString("GET"))
	}

	// Nil hashes like the empty string
	nilHash := run(t, nil, func(a *Assembler) {
		a.EmitConstNil()
		a.Emit(OpHashStr)
		a.Emit(OpReturn)
	})
	if nilHash.U32() != HashString("") {
		t.Errorf("HASH_STR(nil) = %d, want %d", nilHash.U32(), HashString(""))
	}
}

func TestVMConditionalJumps(t *testing.T) {
	// JUMP_TRUE taken: returns 1; not taken: falls through to return 0.
	for _, cond := range []bool{true, false} {
		result := run(t, []Value{BoolValue(cond)}, func(a *Assembler) {
			taken := a.NewLabel()
			a.EmitLoadLocal(0)
			if err := a.EmitBranch(OpJumpTrue, taken); err != nil {
				t.Fatalf("EmitBranch: %v", err)
			}
			a.EmitConstU32(0)
			a.Emit(OpReturn)
			if err := a.Bind(taken); err != nil {
				t.Fatalf("Bind: %v", err)
			}
			a.EmitConstU32(1)
			a.Emit(OpReturn)
		})
		want := uint32(0)
		if cond {
			want = 1
		}
		if result.U32() != want {
			t.Errorf("cond=%t: result = %d, want %d", cond, result.U32(), want)
		}
	}
}

func TestVMPopDup(t *testing.T) {
	result := run(t, nil, func(a *Assembler) {
		a.EmitConstU32(1)
		a.Emit(OpDup)
		a.Emit(OpPop)
		a.Emit(OpReturn)
	})
	if result.U32() != 1 {
		t.Errorf("result = %s, want 1", result)
	}
}

func TestVMFaults(t *testing.T) {
	tests := []struct {
		name    string
		locals  []Value
		fn      func(a *Assembler)
		wantMsg string
	}{
		{
			"stack underflow",
			nil,
			func(a *Assembler) { a.Emit(OpPop); a.Emit(OpReturnNil) },
			"stack underflow",
		},
		{
			"local out of range",
			nil,
			func(a *Assembler) { a.EmitLoadLocal(3); a.Emit(OpReturn) },
			"out of range",
		},
		{
			"str_eq type fault",
			nil,
			func(a *Assembler) {
				a.EmitConstU32(1)
				a.EmitConstU32(2)
				a.Emit(OpStrEq)
				a.Emit(OpReturn)
			},
			"STR_EQ expects string or nil",
		},
		{
			"u32 type fault",
			nil,
			func(a *Assembler) {
				a.EmitConstant("x")
				a.EmitConstant("y")
				a.Emit(OpU32Eq)
				a.Emit(OpReturn)
			},
			"expects uint32",
		},
		{
			"hash type fault",
			nil,
			func(a *Assembler) {
				a.EmitConstU32(1)
				a.Emit(OpHashStr)
				a.Emit(OpReturn)
			},
			"HASH_STR expects string or nil",
		},
		{
			"missing return",
			nil,
			func(a *Assembler) { a.Emit(OpNop) },
			"out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runErr(t, tt.locals, tt.fn)
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestVMUnknownOpcode(t *testing.T) {
	chunk := NewChunk()
	chunk.Code = append(chunk.Code, 0x99)
	if _, err := Run(chunk, nil); err == nil {
		t.Error("Run with unknown opcode succeeded, want error")
	}
}

func TestVMStepLimit(t *testing.T) {
	// A jump that lands on itself loops forever; the step limit must trip.
	chunk := NewChunk()
	chunk.Emit(OpJump)
	chunk.Code = append(chunk.Code, 0xFF, 0xFD) // delta -3: back to the jump
	_, err := Run(chunk, nil)
	if err == nil || !strings.Contains(err.Error(), "step limit") {
		t.Errorf("error = %v, want step limit fault", err)
	}
}

func TestHashStringMatchesFNV1a(t *testing.T) {
	// Known FNV-1a 32-bit values
	tests := []struct {
		in   string
		want uint32
	}{
		{"", 2166136261},
		{"a", 0xE40C292C},
		{"foobar", 0xBF9CF968},
	}
	for _, tt := range tests {
		if got := HashString(tt.in); got != tt.want {
			t.Errorf("HashString(%q) = 0x%08X, want 0x%08X", tt.in, got, tt.want)
		}
	}
}
