package dynflag

// Flag is a runtime-patchable boolean bound to the call site that
// declared it. The Enabled hot path is one call into a generated stub:
// no locks, no atomics, no data memory reads.
type Flag struct {
	rec  *record
	eval func() bool
	ref  **byte // pins the funcval cell backing eval
}

// Enabled reports the flag's current value. Safe to call from any
// goroutine at any time, including while the flag is being flipped and
// before the registry initializes (where it reports the compiled-in
// default).
func (f *Flag) Enabled() bool { return f.eval() }

// Name returns the flag's canonical "kind:name@file:line" identity, the
// string that selector patterns match against.
func (f *Flag) Name() string { return f.rec.name }

// FlagOption configures a flag at declaration.
type FlagOption func(*flagOpts)

type flagOpts struct {
	doc string
}

// WithDoc attaches a human-readable description, reported by ListState.
func WithDoc(doc string) FlagOption {
	return func(o *flagOpts) { o.doc = doc }
}

// class fixes a flag kind's compiled-in encoding, the encoding the init
// pass establishes, and whether activate/deactivate polarity is inverted.
type class struct {
	defaultActive bool
	initialActive bool
	flipped       bool
}

var (
	classFeature     = class{defaultActive: false, initialActive: false, flipped: false}
	classDefault     = class{defaultActive: false, initialActive: false, flipped: true}
	classDefaultSlow = class{defaultActive: true, initialActive: true, flipped: false}
	classOpt         = class{defaultActive: true, initialActive: false, flipped: false}
)

// Feature declares a classic feature flag: false by default, false if
// the registry never initializes, and the fast path assumes it is off.
func (r *Registry) Feature(kind, name string, opts ...FlagOption) *Flag {
	return r.newFlag(classFeature, kind, name, 2, opts)
}

// Default declares a flag that is true by default and true if the
// registry never initializes. The fast path assumes it is on: disabling
// it is what takes the patched jump.
func (r *Registry) Default(kind, name string, opts ...FlagOption) *Flag {
	return r.newFlag(classDefault, kind, name, 2, opts)
}

// DefaultSlow declares a flag that is true by default, like Default, but
// whose enabled state is the patched jump: useful when the guarded code
// is expected to be turned off in steady state.
func (r *Registry) DefaultSlow(kind, name string, opts ...FlagOption) *Flag {
	return r.newFlag(classDefaultSlow, kind, name, 2, opts)
}

// Opt declares an opt-in flag: false once the registry initializes, but
// true if it never does. Use it for code that is usually disabled yet
// must always be safe to run.
func (r *Registry) Opt(kind, name string, opts ...FlagOption) *Flag {
	return r.newFlag(classOpt, kind, name, 2, opts)
}
