// Package bytecode provides the instruction layer for dispatch code
// generation: a compact chunk format, an assembler with deferred label
// fixups, a disassembler, and a small evaluator for executing emitted
// dispatch code.
//
// The instruction set is deliberately narrow. It covers exactly what
// lowered switch dispatch needs:
//
//   - String and 32-bit unsigned constants, plus the distinguished nil value
//   - Local variable slots (the runtime key and its precomputed hash live
//     in locals)
//   - String equality, unsigned comparison, and string hashing
//   - Conditional and unconditional branches
//   - Return of the selected dispatch result
//
// # Chunks
//
// A Chunk is a compiled unit: code bytes plus a string constant pool and a
// local slot count. Chunks serialize to the "DSBC" binary format for
// storage or transport, and can additionally be wrapped in a CBOR artifact
// envelope by higher layers.
//
// # Labels
//
// Branch targets are Label handles allocated from an Assembler. A label is
// bound to exactly one code offset; branches may reference a label before
// it is bound. All references are resolved when Finish is called, and a
// reference to a label that was never bound is reported as an error there.
package bytecode
