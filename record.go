package dynflag

// record describes one patchable flag use site. A record is immutable
// after registration; the only mutable state it refers to is the opcode
// (or immediate) byte at hook and the counter slot at index.
type record struct {
	// hook is the address of the instruction that is overwritten to
	// flip the flag.
	hook uintptr

	// destination is the address of the slow-path block when the hook
	// is a jump-style instruction, 0 for immediate-style hooks.
	destination uintptr

	// name is "kind:name@file:line". Names are not unique: the same
	// flag declared from a shared helper or a loop body yields one
	// record per instantiation, and duplicates must be tolerated.
	name string
	doc  string
	kind string

	// initialOpcode is the encoding the hook is patched to when the
	// registry initializes, independent of the compiled-in default.
	initialOpcode byte

	// flipped records take the slow path while their flag is disabled.
	flipped bool

	// index of this record's counter slot.
	index int

	// code pins the stub's memory for the life of the record.
	code []byte
}

// counter is one slot per record. The flag is logically on iff
// activation > 0. While unhook > 0 activation is frozen: activate calls
// become no-ops. Both counters saturate instead of wrapping or going
// negative.
type counter struct {
	activation uint64
	unhook     uint64
}
