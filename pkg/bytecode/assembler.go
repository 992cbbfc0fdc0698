package bytecode

import (
	"fmt"
	"math"
)

// Label is an opaque branch-target handle allocated by an Assembler.
// A label is bound to exactly one code offset during emission. Branches may
// reference a label before it is bound; references are resolved at Finish.
type Label int

// NoLabel is the zero-ish sentinel for an unallocated label.
const NoLabel Label = -1

const unboundOffset = -1

// labelState tracks one label: its bound offset (unboundOffset until Bind)
// and the code offsets of the 2-byte placeholders that reference it.
type labelState struct {
	offset int
	refs   []int
}

// Assembler builds a Chunk, resolving label references with deferred fixups.
// One assembler produces one chunk; it is not reusable after Finish.
type Assembler struct {
	chunk    *Chunk
	labels   []labelState
	finished bool
}

// NewAssembler creates an assembler with an empty chunk.
func NewAssembler() *Assembler {
	return &Assembler{
		chunk: NewChunk(),
	}
}

// NewLabel allocates a fresh, unbound label.
func (a *Assembler) NewLabel() Label {
	l := Label(len(a.labels))
	a.labels = append(a.labels, labelState{offset: unboundOffset})
	return l
}

// Bind binds the label to the current code offset.
// Binding a label twice is an internal-consistency fault.
func (a *Assembler) Bind(l Label) error {
	if int(l) < 0 || int(l) >= len(a.labels) {
		return fmt.Errorf("bytecode: bind of unknown label %d", l)
	}
	if a.labels[l].offset != unboundOffset {
		return fmt.Errorf("bytecode: label %d bound twice", l)
	}
	a.labels[l].offset = a.chunk.CurrentOffset()
	return nil
}

// Bound reports whether the label has been bound to an offset.
func (a *Assembler) Bound(l Label) bool {
	return int(l) >= 0 && int(l) < len(a.labels) && a.labels[l].offset != unboundOffset
}

// Emit appends a single-byte opcode.
func (a *Assembler) Emit(op Opcode) {
	a.chunk.Emit(op)
}

// EmitConstant emits an OpConst for the given string, pooling the constant.
func (a *Assembler) EmitConstant(value string) {
	a.chunk.EmitConstant(value)
}

// EmitConstNil emits an OpConstNil.
func (a *Assembler) EmitConstNil() {
	a.chunk.Emit(OpConstNil)
}

// EmitConstU32 emits an OpConstU32 with an immediate value.
func (a *Assembler) EmitConstU32(value uint32) {
	a.chunk.EmitConstU32(value)
}

// EmitLoadLocal emits an OpLoadLocal for the given slot.
func (a *Assembler) EmitLoadLocal(slot uint8) {
	a.chunk.EmitWithOperand(OpLoadLocal, slot)
}

// EmitStoreLocal emits an OpStoreLocal for the given slot.
func (a *Assembler) EmitStoreLocal(slot uint8) {
	a.chunk.EmitWithOperand(OpStoreLocal, slot)
}

// EmitBranch emits a jump instruction targeting the given label.
// The 2-byte offset is a placeholder until Finish patches it.
func (a *Assembler) EmitBranch(op Opcode, l Label) error {
	if !op.IsJump() {
		return fmt.Errorf("bytecode: %s is not a branch opcode", op)
	}
	if int(l) < 0 || int(l) >= len(a.labels) {
		return fmt.Errorf("bytecode: branch to unknown label %d", l)
	}
	a.chunk.Emit(op)
	placeholder := a.chunk.CurrentOffset()
	a.chunk.Code = append(a.chunk.Code, 0xFF, 0xFF)
	a.labels[l].refs = append(a.labels[l].refs, placeholder)
	return nil
}

// Chunk returns the chunk under construction. Mainly useful for the
// disassembler and for tests; the chunk is only complete after Finish.
func (a *Assembler) Chunk() *Chunk {
	return a.chunk
}

// Finish resolves all label references and returns the completed chunk.
// A reference to a label that was never bound is an internal-consistency
// fault, as is calling Finish twice.
func (a *Assembler) Finish() (*Chunk, error) {
	if a.finished {
		return nil, fmt.Errorf("bytecode: assembler already finished")
	}
	a.finished = true

	for i, ls := range a.labels {
		if len(ls.refs) == 0 {
			continue
		}
		if ls.offset == unboundOffset {
			return nil, fmt.Errorf("bytecode: label %d referenced but never bound", i)
		}
		for _, placeholder := range ls.refs {
			// Offsets are relative to the end of the 2-byte operand.
			jumpFrom := placeholder + 2
			delta := ls.offset - jumpFrom
			if delta < math.MinInt16 || delta > math.MaxInt16 {
				return nil, fmt.Errorf("bytecode: jump distance %d to label %d exceeds 16-bit range", delta, i)
			}
			a.chunk.Code[placeholder] = byte(uint16(delta) >> 8)
			a.chunk.Code[placeholder+1] = byte(uint16(delta))
		}
	}

	return a.chunk, nil
}
