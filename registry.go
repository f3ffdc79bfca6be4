package dynflag

import (
	"fmt"
	"math"
	"runtime"
	"sync"
)

// Registry owns a set of patch records, their counters, and the machine
// code behind them. Most programs use the package-level functions, which
// share one default registry; separate instances exist so the two hook
// encodings and initialization order can be exercised independently.
//
// One mutex serializes every mutation: stub emission, the lazy one-time
// construction of the counter store, all counter updates, and all
// machine-code writes. Emission must share the lock with patching
// because both toggle page protection on the same arena. The mutex does
// not, and cannot, serialize execution of the patched code; see the
// package comment for why that is safe.
type Registry struct {
	mu     sync.Mutex
	engine engine
	arena  *arena

	records []*record
	kinds   map[string][]*record

	// counts is nil until the first controller call, then one slot per
	// record.
	counts []counter
}

// Option configures a Registry.
type Option func(*Registry)

// WithImmediateStubs selects the immediate-operand hook encoding instead
// of the default jump encoding.
func WithImmediateStubs() Option {
	return func(r *Registry) { r.engine = immEngine{} }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		engine: jumpEngine{},
		arena:  &arena{},
		kinds:  make(map[string][]*record),
	}
	for _, fn := range opts {
		fn(r)
	}
	return r
}

// Init builds the counter store and patches every record to its declared
// initial state. It is idempotent, and every controller call performs
// the same one-time work on demand; calling Init explicitly only fixes
// when the initial patch pass happens. Flags evaluated before Init
// report their compiled-in defaults.
func (r *Registry) Init() {
	r.mu.Lock()
	r.ensureInit()
	r.mu.Unlock()
}

// ensureInit is called with mu held.
func (r *Registry) ensureInit() {
	if r.counts != nil {
		return
	}
	r.counts = make([]counter, len(r.records))

	recs := make([]*record, len(r.records))
	copy(recs, r.records)
	applyRanges(recs, r.engine.hookSize(), r.initialApply)
}

// initialApply sets rec's counter from its declared initial state and
// patches the hook to match. The compiled-in default and the initialized
// state may differ: opt-in flags compile to safe-but-slow and initialize
// to fast. Pages are already writable.
func (r *Registry) initialApply(rec *record) {
	s := r.engine.initialState(rec)

	on := s == stateActive
	if rec.flipped {
		on = !on
	}
	if on {
		r.counts[rec.index].activation = 1
	} else {
		r.counts[rec.index].activation = 0
	}

	r.engine.apply(rec, s)
}

// newFlag emits a stub, registers its patch record and returns the
// caller-facing handle. skip is the runtime.Caller depth of the user
// frame that declared the flag.
func (r *Registry) newFlag(c class, kind, name string, skip int, opts []FlagOption) *Flag {
	var o flagOpts
	for _, fn := range opts {
		fn(&o)
	}

	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		file, line = "unknown", 0
	}
	full := fmt.Sprintf("%s:%s@%s:%d", kind, name, file, line)

	pick := func(active bool) byte {
		if active {
			return r.engine.activeOpcode()
		}
		return r.engine.inactiveOpcode()
	}

	r.mu.Lock()

	// Emission opens a writable window on the arena, so it must hold the
	// same lock as the patch paths: an endMutate racing a batched patch
	// would re-protect pages mid-write.
	s, err := r.engine.emit(r.arena, pick(c.defaultActive), c.flipped)
	if err != nil {
		r.mu.Unlock()
		panic(fmt.Sprintf("dynflag: cannot emit stub for %s: %v", full, err))
	}

	rec := &record{
		hook:          s.hook,
		destination:   s.destination,
		name:          full,
		doc:           o.doc,
		kind:          kind,
		initialOpcode: pick(c.initialActive),
		flipped:       c.flipped,
		code:          s.code,
	}

	rec.index = len(r.records)
	r.records = append(r.records, rec)
	r.kinds[kind] = append(r.kinds[kind], rec)
	if r.counts != nil {
		// The registry already initialized; bring the newcomer to its
		// declared initial state right away.
		r.counts = append(r.counts, counter{})
		applyRanges([]*record{rec}, r.engine.hookSize(), r.initialApply)
	}
	r.mu.Unlock()

	return &Flag{rec: rec, eval: s.eval, ref: s.ref}
}

// Activate increments the activation count of every flag whose full name
// matches pattern and returns the number of matched records. Machine
// code is rewritten only for flags that transition off to on.
func (r *Registry) Activate(pattern string) (int, error) {
	return r.mutate(pattern, r.activateAll)
}

// Deactivate decrements the activation count of every matching flag.
// Counts already at zero stay there.
func (r *Registry) Deactivate(pattern string) (int, error) {
	return r.mutate(pattern, r.deactivateAll)
}

// Unhook suppresses activation for every matching flag: while a flag's
// unhook count is positive, Activate calls leave it untouched.
func (r *Registry) Unhook(pattern string) (int, error) {
	return r.mutate(pattern, r.unhookAll)
}

// Rehook undoes one Unhook for every matching flag.
func (r *Registry) Rehook(pattern string) (int, error) {
	return r.mutate(pattern, r.rehookAll)
}

// ActivateKind is Activate restricted to one kind's records. An empty
// pattern selects the whole kind.
func (r *Registry) ActivateKind(kind, pattern string) (int, error) {
	return r.mutateKind(kind, pattern, r.activateAll)
}

// DeactivateKind is Deactivate restricted to one kind's records. An
// empty pattern selects the whole kind.
func (r *Registry) DeactivateKind(kind, pattern string) (int, error) {
	return r.mutateKind(kind, pattern, r.deactivateAll)
}

func (r *Registry) mutate(pattern string, op func([]*record)) (int, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureInit()

	recs := r.findLocked(re)
	op(recs)
	return len(recs), nil
}

func (r *Registry) mutateKind(kind, pattern string, op func([]*record)) (int, error) {
	re, err := compileKindPattern(pattern)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureInit()

	recs := r.findKindLocked(kind, re)
	op(recs)
	return len(recs), nil
}

func (r *Registry) activateAll(recs []*record) {
	var toPatch []*record
	for _, rec := range recs {
		c := &r.counts[rec.index]
		if c.unhook > 0 {
			continue
		}
		if c.activation != math.MaxUint64 {
			c.activation++
		}
		if c.activation == 1 {
			toPatch = append(toPatch, rec)
		}
	}
	applyRanges(toPatch, r.engine.hookSize(), func(rec *record) {
		r.engine.apply(rec, enabledState(rec, true))
	})
}

func (r *Registry) deactivateAll(recs []*record) {
	var toPatch []*record
	for _, rec := range recs {
		c := &r.counts[rec.index]
		if c.activation == 0 {
			continue
		}
		c.activation--
		if c.activation == 0 {
			toPatch = append(toPatch, rec)
		}
	}
	applyRanges(toPatch, r.engine.hookSize(), func(rec *record) {
		r.engine.apply(rec, enabledState(rec, false))
	})
}

func (r *Registry) unhookAll(recs []*record) {
	for _, rec := range recs {
		c := &r.counts[rec.index]
		if c.unhook != math.MaxUint64 {
			c.unhook++
		}
	}
}

func (r *Registry) rehookAll(recs []*record) {
	for _, rec := range recs {
		c := &r.counts[rec.index]
		if c.unhook > 0 {
			c.unhook--
		}
	}
}

// enabledState maps a flag's logical on/off to the hook encoding,
// honoring inverted-polarity records.
func enabledState(rec *record, on bool) patchState {
	if rec.flipped {
		on = !on
	}
	if on {
		return stateActive
	}
	return stateInactive
}
