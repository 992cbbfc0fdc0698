package jumptable

import (
	"fmt"
	"sort"

	"github.com/chazu/dispatch/pkg/bytecode"
)

// IntegralCase pairs an unsigned 32-bit constant with its branch target.
type IntegralCase struct {
	Value  uint32
	Target bytecode.Label
}

// IntegralEmitter emits dispatch code over unsigned 32-bit constants: the
// runtime value in the key slot reaches the target of the matching
// constant, or fallThrough if none match. The dispatch shape it picks
// internally is opaque to callers.
type IntegralEmitter interface {
	EmitSwitch(asm *bytecode.Assembler, keySlot uint8, cases []IntegralCase, fallThrough bytecode.Label) error
}

// comparisonTreeLinearLimit is the range size at or below which the tree
// emitter falls back to a plain equality chain.
const comparisonTreeLinearLimit = 3

// ComparisonTree is an IntegralEmitter that emits a balanced binary search
// over the sorted case values, with equality chains at the leaves.
type ComparisonTree struct{}

// NewComparisonTree creates a comparison-tree integral emitter.
func NewComparisonTree() *ComparisonTree {
	return &ComparisonTree{}
}

// EmitSwitch implements IntegralEmitter.
func (t *ComparisonTree) EmitSwitch(asm *bytecode.Assembler, keySlot uint8, cases []IntegralCase, fallThrough bytecode.Label) error {
	if len(cases) == 0 {
		return fmt.Errorf("jumptable: integral switch with no cases")
	}

	sorted := make([]IntegralCase, len(cases))
	copy(sorted, cases)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Value == sorted[i-1].Value {
			return fmt.Errorf("jumptable: duplicate integral constant %d", sorted[i].Value)
		}
	}

	return t.emitRange(asm, keySlot, sorted, fallThrough)
}

// emitRange emits dispatch for a sorted slice of cases. Small ranges become
// an equality chain ending in a jump to fallThrough; larger ranges split on
// a pivot with an unsigned less-than branch.
func (t *ComparisonTree) emitRange(asm *bytecode.Assembler, keySlot uint8, cases []IntegralCase, fallThrough bytecode.Label) error {
	if len(cases) <= comparisonTreeLinearLimit {
		for _, cs := range cases {
			asm.EmitLoadLocal(keySlot)
			asm.EmitConstU32(cs.Value)
			asm.Emit(bytecode.OpU32Eq)
			if err := asm.EmitBranch(bytecode.OpJumpTrue, cs.Target); err != nil {
				return err
			}
		}
		return asm.EmitBranch(bytecode.OpJump, fallThrough)
	}

	mid := len(cases) / 2
	right := asm.NewLabel()

	// key < cases[mid].Value selects the left half.
	asm.EmitLoadLocal(keySlot)
	asm.EmitConstU32(cases[mid].Value)
	asm.Emit(bytecode.OpU32Lt)
	if err := asm.EmitBranch(bytecode.OpJumpFalse, right); err != nil {
		return err
	}

	if err := t.emitRange(asm, keySlot, cases[:mid], fallThrough); err != nil {
		return err
	}

	if err := asm.Bind(right); err != nil {
		return err
	}
	return t.emitRange(asm, keySlot, cases[mid:], fallThrough)
}
