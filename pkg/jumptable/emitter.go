package jumptable

import (
	"fmt"

	"github.com/chazu/dispatch/pkg/bytecode"
)

// Options configures one EmitJumpTable call. One Options value describes
// exactly one switch statement; nothing is retained across calls.
type Options struct {
	// KeySlot is the local holding the runtime string under test.
	KeySlot uint8

	// UseKeyHash selects hash dispatch. When set, KeyHashSlot must hold the
	// precomputed hash of the runtime key, and Hash must be supplied. The
	// caller decides whether to precompute the hash by consulting
	// ChooseStrategy before emission.
	UseKeyHash  bool
	KeyHashSlot uint8

	// Labels is the ordered case set. Constants must be pairwise distinct
	// under the language's equality rules.
	Labels []CaseLabel

	// FallThrough receives control when no constant matches.
	FallThrough bytecode.Label

	// CompareAndBranch supplies the language's string equality. Required.
	CompareAndBranch CompareAndBranchFunc

	// Hash supplies the language's string hashing. Required when UseKeyHash
	// is set; it must be consistent with CompareAndBranch.
	Hash HashFunc

	// Integral dispatches on the hash value. Defaults to NewComparisonTree.
	Integral IntegralEmitter
}

// EmitJumpTable emits a branch graph for one string switch: control
// reaches the case target whose constant equals the runtime key, or
// FallThrough otherwise. This is the package's single entry point.
//
// All inputs are compiler-internal artifacts; a violated precondition is
// an internal-consistency fault reported as an error, and emission of the
// affected unit must be abandoned.
func EmitJumpTable(asm *bytecode.Assembler, opts Options) error {
	if asm == nil {
		return fmt.Errorf("jumptable: nil assembler")
	}
	if len(opts.Labels) == 0 {
		return fmt.Errorf("jumptable: empty case label set")
	}
	if opts.CompareAndBranch == nil {
		return fmt.Errorf("jumptable: nil compare-and-branch callback")
	}

	e := &emitter{asm: asm, opts: opts}

	if opts.UseKeyHash {
		if opts.Hash == nil {
			return fmt.Errorf("jumptable: hash dispatch requested with nil hash callback")
		}
		if e.opts.Integral == nil {
			e.opts.Integral = NewComparisonTree()
		}
		return e.emitHashDispatch()
	}

	if err := checkDistinctConstants(opts.Labels); err != nil {
		return err
	}
	return e.emitLinear(opts.Labels)
}

// emitter holds the per-invocation state of one jump-table emission.
type emitter struct {
	asm  *bytecode.Assembler
	opts Options
}

// emitLinear emits a sequential compare-and-branch chain over the given
// labels, terminated by an unconditional jump to the fallthrough target.
// It serves both the small-switch path and bucket resolution, where it
// doubles as hash-collision handling.
func (e *emitter) emitLinear(labels []CaseLabel) error {
	for _, label := range labels {
		if err := e.opts.CompareAndBranch(e.asm, e.opts.KeySlot, label.Const, label.Target); err != nil {
			return err
		}
	}
	return e.asm.EmitBranch(bytecode.OpJump, e.opts.FallThrough)
}

// emitHashDispatch emits the two-level scheme: integral dispatch on the
// precomputed key hash to a fresh entry point per distinct hash value,
// then each bucket's compare chain at its entry point.
//
// Bucket blocks are emitted in map iteration order. That order is
// non-deterministic and harmless: each bucket is reachable only through
// its own entry label, which is bound exactly once.
func (e *emitter) emitHashDispatch() error {
	buckets, err := buildBuckets(e.opts.Labels, e.opts.Hash)
	if err != nil {
		return err
	}

	entries := make([]IntegralCase, 0, len(buckets))
	entryLabels := make(map[uint32]bytecode.Label, len(buckets))
	for h := range buckets {
		l := e.asm.NewLabel()
		entryLabels[h] = l
		entries = append(entries, IntegralCase{Value: h, Target: l})
	}

	if err := e.opts.Integral.EmitSwitch(e.asm, e.opts.KeyHashSlot, entries, e.opts.FallThrough); err != nil {
		return err
	}

	for h, bucket := range buckets {
		if err := e.asm.Bind(entryLabels[h]); err != nil {
			return err
		}
		if err := e.emitLinear(bucket.Labels); err != nil {
			return err
		}
	}

	return nil
}

// checkDistinctConstants asserts the no-duplicate-constant precondition
// for the linear path. The hash path gets the same check from bucket
// construction, where hash consistency routes equal constants to one
// bucket.
func checkDistinctConstants(labels []CaseLabel) error {
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			if labels[i].Const == labels[j].Const {
				return fmt.Errorf("jumptable: duplicate case constant %s", labels[i].Const)
			}
		}
	}
	return nil
}
