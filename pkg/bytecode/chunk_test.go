package bytecode

import (
	"bytes"
	"testing"
)

func TestNewChunk(t *testing.T) {
	c := NewChunk()

	if c.Version != BytecodeVersion {
		t.Errorf("Version = %d, want %d", c.Version, BytecodeVersion)
	}
	if c.Code == nil {
		t.Error("Code is nil")
	}
	if c.Constants == nil {
		t.Error("Constants is nil")
	}
}

func TestChunkAddConstant(t *testing.T) {
	c := NewChunk()

	// Add first constant
	idx0 := c.AddConstant("hello")
	if idx0 != 0 {
		t.Errorf("First constant index = %d, want 0", idx0)
	}

	// Add second constant
	idx1 := c.AddConstant("world")
	if idx1 != 1 {
		t.Errorf("Second constant index = %d, want 1", idx1)
	}

	// Add duplicate - should return existing index
	idx2 := c.AddConstant("hello")
	if idx2 != 0 {
		t.Errorf("Duplicate constant index = %d, want 0", idx2)
	}

	if c.ConstantCount() != 2 {
		t.Errorf("ConstantCount() = %d, want 2", c.ConstantCount())
	}
	if c.GetConstant(0) != "hello" {
		t.Errorf("GetConstant(0) = %q, want %q", c.GetConstant(0), "hello")
	}
	if c.GetConstant(1) != "world" {
		t.Errorf("GetConstant(1) = %q, want %q", c.GetConstant(1), "world")
	}
}

func TestChunkEmit(t *testing.T) {
	c := NewChunk()

	off0 := c.Emit(OpNop)
	if off0 != 0 {
		t.Errorf("First emit offset = %d, want 0", off0)
	}

	off1 := c.Emit(OpReturnNil)
	if off1 != 1 {
		t.Errorf("Second emit offset = %d, want 1", off1)
	}

	if c.CodeLen() != 2 {
		t.Errorf("CodeLen() = %d, want 2", c.CodeLen())
	}

	if Opcode(c.Code[0]) != OpNop {
		t.Errorf("Code[0] = 0x%02X, want OpNop", c.Code[0])
	}
	if Opcode(c.Code[1]) != OpReturnNil {
		t.Errorf("Code[1] = 0x%02X, want OpReturnNil", c.Code[1])
	}
}

func TestChunkEmitConstant(t *testing.T) {
	c := NewChunk()

	c.EmitConstant("foo")
	c.EmitConstant("bar")
	c.EmitConstant("foo") // Reuses pool entry

	if c.ConstantCount() != 2 {
		t.Errorf("ConstantCount() = %d, want 2", c.ConstantCount())
	}
	if c.CodeLen() != 9 {
		t.Errorf("CodeLen() = %d, want 9", c.CodeLen())
	}

	// Third instruction references index 0 again
	if c.Code[6] != byte(OpConst) || c.Code[7] != 0 || c.Code[8] != 0 {
		t.Errorf("Third CONST = % X, want OpConst 00 00", c.Code[6:9])
	}
}

func TestChunkEmitConstU32(t *testing.T) {
	c := NewChunk()

	c.EmitConstU32(0xDEADBEEF)

	want := []byte{byte(OpConstU32), 0xDE, 0xAD, 0xBE, 0xEF}
	if !bytes.Equal(c.Code, want) {
		t.Errorf("Code = % X, want % X", c.Code, want)
	}
}

func TestChunkSerializeRoundTrip(t *testing.T) {
	c := NewChunk()
	c.EmitWithOperand(OpLoadLocal, 0)
	c.EmitConstant("GET")
	c.Emit(OpStrEq)
	c.EmitConstU32(7)
	c.Emit(OpReturn)
	c.LocalCount = 2

	data, err := c.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if got.Version != c.Version {
		t.Errorf("Version = %d, want %d", got.Version, c.Version)
	}
	if !bytes.Equal(got.Code, c.Code) {
		t.Errorf("Code = % X, want % X", got.Code, c.Code)
	}
	if len(got.Constants) != 1 || got.Constants[0] != "GET" {
		t.Errorf("Constants = %v, want [GET]", got.Constants)
	}
	if got.LocalCount != 2 {
		t.Errorf("LocalCount = %d, want 2", got.LocalCount)
	}
}

func TestDeserializeErrors(t *testing.T) {
	c := NewChunk()
	c.EmitConstant("x")
	c.Emit(OpReturn)
	good, err := c.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte{'D', 'S'}},
		{"bad magic", append([]byte("XXXX"), good[4:]...)},
		{"truncated code", good[:8]},
		{"truncated constants", good[:len(good)-3]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Deserialize(tt.data); err == nil {
				t.Error("Deserialize succeeded, want error")
			}
		})
	}
}

func TestDeserializeNewerVersion(t *testing.T) {
	c := NewChunk()
	c.Emit(OpReturnNil)
	data, err := c.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	// Bump the version field past the supported version
	data[4] = 0xFF
	data[5] = 0xFF

	if _, err := Deserialize(data); err == nil {
		t.Error("Deserialize of newer version succeeded, want error")
	}
}
