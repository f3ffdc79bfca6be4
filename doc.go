// Runtime-patchable boolean flags.
//
// Each flag compiles down to one five-byte instruction in a generated
// stub: a testl that falls through on the expected path, or a jmp rel32
// into the cold block. Flipping a flag overwrites that instruction's
// opcode byte while other goroutines may be executing it. The fetch unit
// observes the single-byte store entirely before or entirely after it
// lands, so a concurrent reader always sees a well-formed instruction.
// That is the load-bearing invariant of the whole package. The expected
// path costs one call and touches no data memory.
//
// Limitations:
//   - Only supports amd64 on Unix-like systems
//   - Stubs live outside the Go runtime's knowledge, so they never show
//     up in profiles or tracebacks
//   - Registration allocates executable memory; declare flags in
//     package variables, not per request
package dynflag
