// Package jumptable lowers switch-on-string constructs into branch graphs.
//
// Given a runtime key operand, an ordered set of (string-or-nil constant,
// branch target) pairs, and a fallthrough target, EmitJumpTable emits code
// that transfers control to the target whose constant equals the runtime
// key, or to fallthrough otherwise.
//
// Two dispatch shapes are produced. Small switches become a sequential
// compare-and-branch chain. Large switches become a two-level scheme: the
// caller precomputes the key's hash into a second operand, an integral
// jump-table collaborator dispatches on that hash to a per-bucket entry
// point, and each bucket resolves its (possibly colliding) constants with a
// short compare chain. ChooseStrategy tells the caller which shape will be
// used, so it knows whether to emit the hash precomputation.
//
// String equality and hashing semantics belong to the source language, not
// to this package; both are injected as function values. The only
// requirement is consistency: constants that are equal under the language's
// rules must hash identically.
package jumptable

import (
	"fmt"

	"github.com/chazu/dispatch/pkg/bytecode"
)

// hashCaseThreshold is the case count at which hash dispatch pays for its
// extra dispatch level. Empirically chosen for the original target; treat
// as a fixed configuration constant, not something to re-derive.
const hashCaseThreshold = 7

// Strategy selects the dispatch shape for one switch.
type Strategy int

const (
	// StrategyLinear is a sequential compare-and-branch chain.
	StrategyLinear Strategy = iota

	// StrategyHash is two-level dispatch on a precomputed key hash.
	StrategyHash
)

// String returns a human-readable name for Strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyLinear:
		return "linear"
	case StrategyHash:
		return "hash"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses the String form back into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "linear":
		return StrategyLinear, nil
	case "hash":
		return StrategyHash, nil
	default:
		return 0, fmt.Errorf("jumptable: unknown strategy %q", s)
	}
}

// ChooseStrategy picks the dispatch shape for a switch with the given case
// count. supportsAuxTypes reports whether the compilation target can host
// the auxiliary constructs hash dispatch needs (per-bucket entry points and
// the integral dispatch table); when false, hash dispatch is never chosen.
func ChooseStrategy(caseCount int, supportsAuxTypes bool) Strategy {
	if caseCount >= hashCaseThreshold && supportsAuxTypes {
		return StrategyHash
	}
	return StrategyLinear
}

// StringConstant is a case constant: a specific string, or the
// distinguished nil value.
type StringConstant struct {
	Null  bool
	Value string // meaningful only when Null is false
}

// NullConstant returns the distinguished nil constant.
func NullConstant() StringConstant {
	return StringConstant{Null: true}
}

// Constant returns a string constant.
func Constant(s string) StringConstant {
	return StringConstant{Value: s}
}

// String returns a display representation of the constant.
func (c StringConstant) String() string {
	if c.Null {
		return "nil"
	}
	return fmt.Sprintf("%q", c.Value)
}

// CaseLabel pairs a case constant with its branch target.
type CaseLabel struct {
	Const  StringConstant
	Target bytecode.Label
}

// CompareAndBranchFunc emits code that transfers control to target iff the
// runtime value in the key slot equals the constant under the source
// language's equality rules, and falls through to the next instruction
// otherwise.
type CompareAndBranchFunc func(asm *bytecode.Assembler, keySlot uint8, c StringConstant, target bytecode.Label) error

// HashFunc computes the 32-bit hash of a case constant. It must be
// consistent with the equality implemented by the CompareAndBranchFunc:
// constants that compare equal must hash identically.
type HashFunc func(c StringConstant) uint32

// DefaultCompareAndBranch emits the target machine's native string
// equality: OpStrEq, under which nil equals only nil.
func DefaultCompareAndBranch(asm *bytecode.Assembler, keySlot uint8, c StringConstant, target bytecode.Label) error {
	asm.EmitLoadLocal(keySlot)
	if c.Null {
		asm.EmitConstNil()
	} else {
		asm.EmitConstant(c.Value)
	}
	asm.Emit(bytecode.OpStrEq)
	return asm.EmitBranch(bytecode.OpJumpTrue, target)
}

// DefaultHash hashes a constant the way the OpHashStr instruction does at
// runtime. Nil hashes like the empty string; since nil and "" are unequal
// under DefaultCompareAndBranch, they simply share a bucket and are told
// apart by the bucket's compare chain.
func DefaultHash(c StringConstant) uint32 {
	if c.Null {
		return bytecode.HashString("")
	}
	return bytecode.HashString(c.Value)
}
