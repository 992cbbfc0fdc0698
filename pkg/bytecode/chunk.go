package bytecode

import (
	"encoding/binary"
	"fmt"
)

// BytecodeVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const BytecodeVersion uint16 = 1

// Magic bytes for bytecode blobs: "DSBC" (Dispatch ByteCode)
var BytecodeMagic = []byte{'D', 'S', 'B', 'C'}

// Chunk represents a compiled unit of dispatch code.
// It is the fundamental unit of bytecode that can be serialized and executed.
type Chunk struct {
	// Header
	Version uint16 // Bytecode format version

	// Code section
	Code []byte // Bytecode instructions

	// Constant pool - strings referenced by OpConst
	Constants []string

	// Local variables
	LocalCount uint8 // Number of local variable slots needed
}

// NewChunk creates a new empty chunk with the current version.
func NewChunk() *Chunk {
	return &Chunk{
		Version:   BytecodeVersion,
		Code:      make([]byte, 0, 64),
		Constants: make([]string, 0, 8),
	}
}

// AddConstant adds a string constant to the pool and returns its index.
// If the constant already exists, returns the existing index.
func (c *Chunk) AddConstant(value string) uint16 {
	// Check if constant already exists
	for i, s := range c.Constants {
		if s == value {
			return uint16(i)
		}
	}
	// Add new constant
	idx := uint16(len(c.Constants))
	c.Constants = append(c.Constants, value)
	return idx
}

// GetConstant returns the constant at the given index.
// Panics if the index is out of bounds.
func (c *Chunk) GetConstant(index uint16) string {
	return c.Constants[index]
}

// Emit appends a single-byte opcode to the code section.
func (c *Chunk) Emit(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode with operand bytes.
func (c *Chunk) EmitWithOperand(op Opcode, operands ...byte) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Code = append(c.Code, operands...)
	return offset
}

// EmitConstant emits an OpConst instruction for the given value.
// Adds the constant to the pool if not already present.
func (c *Chunk) EmitConstant(value string) int {
	idx := c.AddConstant(value)
	return c.EmitWithOperand(OpConst, byte(idx>>8), byte(idx))
}

// EmitConstU32 emits an OpConstU32 instruction with an immediate value.
func (c *Chunk) EmitConstU32(value uint32) int {
	return c.EmitWithOperand(OpConstU32,
		byte(value>>24), byte(value>>16), byte(value>>8), byte(value))
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// CodeLen returns the length of the code section.
func (c *Chunk) CodeLen() int {
	return len(c.Code)
}

// ConstantCount returns the number of constants in the pool.
func (c *Chunk) ConstantCount() int {
	return len(c.Constants)
}

// Serialize encodes the chunk to bytes for storage/transport.
// Format:
//
//	[magic:4] [version:2]
//	[code_len:4] [code:...]
//	[const_count:2] [constants:...]
//	[local_count:1]
func (c *Chunk) Serialize() ([]byte, error) {
	estimatedSize := 16 + len(c.Code) + len(c.Constants)*16
	buf := make([]byte, 0, estimatedSize)

	// Magic number: "DSBC"
	buf = append(buf, BytecodeMagic...)

	// Version
	buf = binary.BigEndian.AppendUint16(buf, c.Version)

	// Code section
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Code)))
	buf = append(buf, c.Code...)

	// Constants
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(c.Constants)))
	for _, s := range c.Constants {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
		buf = append(buf, s...)
	}

	// Locals
	buf = append(buf, c.LocalCount)

	return buf, nil
}

// Deserialize decodes a chunk from bytes.
func Deserialize(data []byte) (*Chunk, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("bytecode too short: need at least 6 bytes, got %d", len(data))
	}

	// Check magic
	if string(data[0:4]) != string(BytecodeMagic) {
		return nil, fmt.Errorf("invalid bytecode magic: expected %q, got %q", BytecodeMagic, data[0:4])
	}

	c := &Chunk{
		Version: binary.BigEndian.Uint16(data[4:6]),
	}

	pos := 6

	// Version check
	if c.Version > BytecodeVersion {
		return nil, fmt.Errorf("bytecode version %d is newer than supported version %d", c.Version, BytecodeVersion)
	}

	// Code section
	if pos+4 > len(data) {
		return nil, fmt.Errorf("unexpected end of bytecode reading code length at pos %d", pos)
	}
	codeLen := binary.BigEndian.Uint32(data[pos:])
	pos += 4

	if pos+int(codeLen) > len(data) {
		return nil, fmt.Errorf("unexpected end of bytecode reading code section: need %d bytes at pos %d", codeLen, pos)
	}
	c.Code = make([]byte, codeLen)
	copy(c.Code, data[pos:pos+int(codeLen)])
	pos += int(codeLen)

	// Constants
	if pos+2 > len(data) {
		return nil, fmt.Errorf("unexpected end of bytecode reading constant count")
	}
	constCount := binary.BigEndian.Uint16(data[pos:])
	pos += 2

	c.Constants = make([]string, constCount)
	for i := range c.Constants {
		if pos+2 > len(data) {
			return nil, fmt.Errorf("unexpected end of bytecode reading constant %d length", i)
		}
		strLen := binary.BigEndian.Uint16(data[pos:])
		pos += 2

		if pos+int(strLen) > len(data) {
			return nil, fmt.Errorf("unexpected end of bytecode reading constant %d", i)
		}
		c.Constants[i] = string(data[pos : pos+int(strLen)])
		pos += int(strLen)
	}

	// Locals
	if pos >= len(data) {
		return nil, fmt.Errorf("unexpected end of bytecode reading local count")
	}
	c.LocalCount = data[pos]

	return c, nil
}
