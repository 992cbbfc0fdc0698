package bytecode

import "fmt"

// ValueKind identifies the runtime type of a Value.
type ValueKind uint8

const (
	// KindNil is the distinguished nil value.
	KindNil ValueKind = 0

	// KindString is a string value.
	KindString ValueKind = 1

	// KindUint32 is an unsigned 32-bit value (hash codes, dispatch results).
	KindUint32 ValueKind = 2

	// KindBool is a boolean value (comparison results).
	KindBool ValueKind = 3
)

// String returns a human-readable name for ValueKind.
func (k ValueKind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindString:
		return "string"
	case KindUint32:
		return "uint32"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Value is a runtime value on the evaluator stack or in a local slot.
// The zero Value is nil.
type Value struct {
	kind ValueKind
	str  string
	u32  uint32
	b    bool
}

// NilValue returns the distinguished nil value.
func NilValue() Value {
	return Value{kind: KindNil}
}

// StringValue returns a string value.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// Uint32Value returns an unsigned 32-bit value.
func Uint32Value(v uint32) Value {
	return Value{kind: KindUint32, u32: v}
}

// BoolValue returns a boolean value.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Kind returns the runtime type of the value.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNil returns true if the value is nil.
func (v Value) IsNil() bool {
	return v.kind == KindNil
}

// Str returns the string payload. Valid only when Kind is KindString.
func (v Value) Str() string {
	return v.str
}

// U32 returns the unsigned payload. Valid only when Kind is KindUint32.
func (v Value) U32() uint32 {
	return v.u32
}

// Bool returns the boolean payload. Valid only when Kind is KindBool.
func (v Value) Bool() bool {
	return v.b
}

// String returns a display representation of the value.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindUint32:
		return fmt.Sprintf("%d", v.u32)
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	default:
		return fmt.Sprintf("Value(kind=%d)", v.kind)
	}
}
