package bytecode

import (
	"encoding/binary"
	"fmt"
)

// maxSteps bounds evaluation to catch malformed jump graphs in tests.
// Dispatch code is branch-only, so any loop indicates a patching defect.
const maxSteps = 1 << 20

// VM executes a chunk of dispatch code. It is a plain stack machine:
// no message sends, no closures, just constants, locals, comparisons,
// hashing, and branches.
type VM struct {
	chunk  *Chunk
	stack  []Value
	locals []Value
	pc     int
}

// NewVM creates a VM for the given chunk with the given initial locals.
// Missing locals up to the chunk's LocalCount are filled with nil.
func NewVM(chunk *Chunk, locals []Value) *VM {
	allLocals := make([]Value, int(chunk.LocalCount))
	copy(allLocals, locals)
	if len(locals) > len(allLocals) {
		allLocals = append([]Value{}, locals...)
	}
	return &VM{
		chunk:  chunk,
		stack:  make([]Value, 0, 8),
		locals: allLocals,
	}
}

// Run executes the chunk until a return instruction and returns the result.
func Run(chunk *Chunk, locals []Value) (Value, error) {
	return NewVM(chunk, locals).Run()
}

// Run executes until a return instruction and returns the returned value.
func (vm *VM) Run() (Value, error) {
	code := vm.chunk.Code

	for steps := 0; ; steps++ {
		if steps >= maxSteps {
			return NilValue(), fmt.Errorf("vm: step limit exceeded at pc=%04X", vm.pc)
		}
		if vm.pc < 0 || vm.pc >= len(code) {
			return NilValue(), fmt.Errorf("vm: pc %04X out of range (code length %d)", vm.pc, len(code))
		}

		op := Opcode(code[vm.pc])
		operandStart := vm.pc + 1
		if operandStart+op.OperandLen() > len(code) {
			return NilValue(), fmt.Errorf("vm: truncated %s instruction at pc=%04X", op, vm.pc)
		}
		vm.pc += op.InstructionLen()

		switch op {
		case OpNop:
			// nothing

		case OpPop:
			if _, err := vm.pop(op); err != nil {
				return NilValue(), err
			}

		case OpDup:
			v, err := vm.pop(op)
			if err != nil {
				return NilValue(), err
			}
			vm.push(v)
			vm.push(v)

		case OpConst:
			idx := binary.BigEndian.Uint16(code[operandStart:])
			if int(idx) >= len(vm.chunk.Constants) {
				return NilValue(), fmt.Errorf("vm: constant index %d out of range (pool size %d)", idx, len(vm.chunk.Constants))
			}
			vm.push(StringValue(vm.chunk.Constants[idx]))

		case OpConstNil:
			vm.push(NilValue())

		case OpConstU32:
			vm.push(Uint32Value(binary.BigEndian.Uint32(code[operandStart:])))

		case OpLoadLocal:
			slot := code[operandStart]
			if int(slot) >= len(vm.locals) {
				return NilValue(), fmt.Errorf("vm: load of local slot %d out of range (%d slots)", slot, len(vm.locals))
			}
			vm.push(vm.locals[slot])

		case OpStoreLocal:
			slot := code[operandStart]
			if int(slot) >= len(vm.locals) {
				return NilValue(), fmt.Errorf("vm: store to local slot %d out of range (%d slots)", slot, len(vm.locals))
			}
			v, err := vm.pop(op)
			if err != nil {
				return NilValue(), err
			}
			vm.locals[slot] = v

		case OpStrEq:
			b, err := vm.pop(op)
			if err != nil {
				return NilValue(), err
			}
			a, err := vm.pop(op)
			if err != nil {
				return NilValue(), err
			}
			eq, err := strEqual(a, b)
			if err != nil {
				return NilValue(), err
			}
			vm.push(BoolValue(eq))

		case OpU32Eq, OpU32Lt:
			b, err := vm.popU32(op)
			if err != nil {
				return NilValue(), err
			}
			a, err := vm.popU32(op)
			if err != nil {
				return NilValue(), err
			}
			if op == OpU32Eq {
				vm.push(BoolValue(a == b))
			} else {
				vm.push(BoolValue(a < b))
			}

		case OpHashStr:
			v, err := vm.pop(op)
			if err != nil {
				return NilValue(), err
			}
			if v.Kind() != KindNil && v.Kind() != KindString {
				return NilValue(), fmt.Errorf("vm: HASH_STR expects string or nil, got %s", v.Kind())
			}
			vm.push(Uint32Value(HashValue(v)))

		case OpJump:
			delta := int16(binary.BigEndian.Uint16(code[operandStart:]))
			vm.pc += int(delta)

		case OpJumpTrue, OpJumpFalse:
			delta := int16(binary.BigEndian.Uint16(code[operandStart:]))
			v, err := vm.pop(op)
			if err != nil {
				return NilValue(), err
			}
			if v.Kind() != KindBool {
				return NilValue(), fmt.Errorf("vm: %s expects bool, got %s", op, v.Kind())
			}
			if v.Bool() == (op == OpJumpTrue) {
				vm.pc += int(delta)
			}

		case OpReturn:
			return vm.pop(op)

		case OpReturnNil:
			return NilValue(), nil

		default:
			return NilValue(), fmt.Errorf("vm: unknown opcode 0x%02X at pc=%04X", byte(op), vm.pc-1)
		}
	}
}

// strEqual implements OpStrEq: nil equals only nil, strings compare by
// content, anything else is a type fault.
func strEqual(a, b Value) (bool, error) {
	for _, v := range []Value{a, b} {
		if v.Kind() != KindNil && v.Kind() != KindString {
			return false, fmt.Errorf("vm: STR_EQ expects string or nil, got %s", v.Kind())
		}
	}
	if a.IsNil() || b.IsNil() {
		return a.IsNil() && b.IsNil(), nil
	}
	return a.Str() == b.Str(), nil
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop(op Opcode) (Value, error) {
	if len(vm.stack) == 0 {
		return NilValue(), fmt.Errorf("vm: stack underflow in %s", op)
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) popU32(op Opcode) (uint32, error) {
	v, err := vm.pop(op)
	if err != nil {
		return 0, err
	}
	if v.Kind() != KindUint32 {
		return 0, fmt.Errorf("vm: %s expects uint32, got %s", op, v.Kind())
	}
	return v.U32(), nil
}
