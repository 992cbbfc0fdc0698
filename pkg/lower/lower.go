// Package lower compiles switch definitions into executable dispatch
// chunks. It is the statement-lowering caller of pkg/jumptable: it
// allocates branch targets, decides (via ChooseStrategy) whether to
// precompute the key hash, invokes the jump-table emitter, and binds each
// target to code that returns the target's index.
package lower

import (
	"fmt"

	"github.com/chazu/dispatch/pkg/bytecode"
	"github.com/chazu/dispatch/pkg/jumptable"
	"github.com/chazu/dispatch/pkg/switchdef"
)

// Local slot assignments in compiled dispatch chunks. Slot 0 always holds
// the runtime key; slot 1 holds its precomputed hash under hash dispatch.
const (
	KeySlot     uint8 = 0
	KeyHashSlot uint8 = 1
)

// Compiled is the result of lowering one switch definition. Running the
// chunk with the runtime key in KeySlot returns the index into Targets of
// the reached target; the default target is always present in Targets.
type Compiled struct {
	Name     string
	Strategy jumptable.Strategy
	Targets  []string
	Chunk    *bytecode.Chunk
}

// Compile lowers a definition for a target that supports auxiliary
// dispatch tables.
func Compile(def *switchdef.Definition) (*Compiled, error) {
	return CompileWithCapability(def, true)
}

// CompileWithCapability lowers a definition. supportsAuxTypes is the
// target-capability flag consulted by strategy selection; when false the
// result is always a linear chain.
func CompileWithCapability(def *switchdef.Definition, supportsAuxTypes bool) (*Compiled, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	asm := bytecode.NewAssembler()

	// Distinct target names get one label each; cases may share a target,
	// and the default may coincide with a case target.
	targetLabels := make(map[string]bytecode.Label)
	targetIndex := make(map[string]uint32)
	var targets []string
	targetFor := func(name string) bytecode.Label {
		if l, ok := targetLabels[name]; ok {
			return l
		}
		l := asm.NewLabel()
		targetLabels[name] = l
		targetIndex[name] = uint32(len(targets))
		targets = append(targets, name)
		return l
	}

	labels := make([]jumptable.CaseLabel, 0, len(def.Cases))
	for _, c := range def.Cases {
		constant := jumptable.Constant(c.Match)
		if c.Null {
			constant = jumptable.NullConstant()
		}
		labels = append(labels, jumptable.CaseLabel{
			Const:  constant,
			Target: targetFor(c.Target),
		})
	}
	fallThrough := targetFor(def.Default.Target)

	strategy := jumptable.ChooseStrategy(len(labels), supportsAuxTypes)

	opts := jumptable.Options{
		KeySlot:          KeySlot,
		Labels:           labels,
		FallThrough:      fallThrough,
		CompareAndBranch: jumptable.DefaultCompareAndBranch,
	}

	localCount := uint8(1)
	if strategy == jumptable.StrategyHash {
		// Precompute the key hash into its operand slot. The emitter's hash
		// callback must agree with OpHashStr, which DefaultHash does.
		asm.EmitLoadLocal(KeySlot)
		asm.Emit(bytecode.OpHashStr)
		asm.EmitStoreLocal(KeyHashSlot)

		opts.UseKeyHash = true
		opts.KeyHashSlot = KeyHashSlot
		opts.Hash = jumptable.DefaultHash
		opts.Integral = jumptable.NewComparisonTree()
		localCount = 2
	}

	if err := jumptable.EmitJumpTable(asm, opts); err != nil {
		return nil, fmt.Errorf("lower: %s: %w", def.Switch.Name, err)
	}

	// Target blocks: each returns its index.
	for _, name := range targets {
		if err := asm.Bind(targetLabels[name]); err != nil {
			return nil, fmt.Errorf("lower: %s: %w", def.Switch.Name, err)
		}
		asm.EmitConstU32(targetIndex[name])
		asm.Emit(bytecode.OpReturn)
	}

	chunk, err := asm.Finish()
	if err != nil {
		return nil, fmt.Errorf("lower: %s: %w", def.Switch.Name, err)
	}
	chunk.LocalCount = localCount

	return &Compiled{
		Name:     def.Switch.Name,
		Strategy: strategy,
		Targets:  targets,
		Chunk:    chunk,
	}, nil
}

// Run executes the compiled dispatch for one runtime key and returns the
// name of the reached target.
func (c *Compiled) Run(key bytecode.Value) (string, error) {
	result, err := bytecode.Run(c.Chunk, []bytecode.Value{key})
	if err != nil {
		return "", fmt.Errorf("lower: run %s: %w", c.Name, err)
	}
	if result.Kind() != bytecode.KindUint32 {
		return "", fmt.Errorf("lower: run %s: dispatch returned %s, want uint32", c.Name, result.Kind())
	}
	idx := result.U32()
	if int(idx) >= len(c.Targets) {
		return "", fmt.Errorf("lower: run %s: target index %d out of range (%d targets)", c.Name, idx, len(c.Targets))
	}
	return c.Targets[idx], nil
}

// RunString is a convenience wrapper for string keys.
func (c *Compiled) RunString(key string) (string, error) {
	return c.Run(bytecode.StringValue(key))
}

// RunNil is a convenience wrapper for the nil key.
func (c *Compiled) RunNil() (string, error) {
	return c.Run(bytecode.NilValue())
}
