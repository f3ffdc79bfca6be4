package dynflag

import (
	"cmp"
	"fmt"
	"slices"
	"unsafe"
)

// patchState selects which of the two encodings a hook holds.
type patchState uint8

const (
	// stateInactive is the fall-through encoding.
	stateInactive patchState = iota
	// stateActive sends execution to the slow path.
	stateActive
)

// engine rewrites hook instructions. All raw-memory access lives behind
// this interface; the registry, finder and counters are platform-agnostic.
type engine interface {
	// emit writes a fresh stub for one flag into the arena. defaultOp is
	// the compiled-in encoding (activeOpcode or inactiveOpcode); flipped
	// inverts the boolean the stub returns for each path.
	emit(a *arena, defaultOp byte, flipped bool) (*stub, error)

	// apply rewrites rec's hook to the requested state. The hook's pages
	// must already be writable. apply panics if the bytes at the hook do
	// not hold one of the two expected encodings: continuing would leave
	// corrupted machine code behind.
	apply(rec *record, s patchState)

	// initialState decodes rec.initialOpcode. Panics on any value other
	// than the engine's active or inactive encoding.
	initialState(rec *record) patchState

	// The two values rec.initialOpcode (and the patched byte) may hold.
	activeOpcode() byte
	inactiveOpcode() byte

	// hookSize is the patched instruction's length in bytes.
	hookSize() uintptr
}

// stub is a freshly emitted flag evaluation function.
type stub struct {
	hook        uintptr
	destination uintptr
	code        []byte
	eval        func() bool
	ref         **byte // pins the funcval cell backing eval
}

// pageRange is a maximal run of records whose hook instructions fit in
// one contiguous set of pages. first and last are inclusive page
// indices; the run covers records[lo:hi] of the sorted input.
type pageRange struct {
	first, last uintptr
	lo, hi      int
}

// planRanges groups records, which must be sorted by hook address, into
// page runs. A record may extend the current run by at most one page on
// either side, so a run never protects a page that no record touches.
//
// first-1 can wrap for hooks on page zero, which is unmappable anyway;
// the wraparound would merely split the run.
func planRanges(records []*record, hookSize, pageSize uintptr) []pageRange {
	var out []pageRange
	cur := pageRange{first: ^uintptr(0), last: 0}

	for i, rec := range records {
		begin := rec.hook / pageSize
		end := (rec.hook + hookSize - 1) / pageSize

		empty := cur.first > cur.last
		extend := cur.first-1 <= begin && end <= cur.last+1
		if empty || extend {
			if begin < cur.first {
				cur.first = begin
			}
			if end > cur.last {
				cur.last = end
			}
			cur.hi = i + 1
		} else {
			out = append(out, cur)
			cur = pageRange{first: begin, last: end, lo: i, hi: i + 1}
		}
	}

	if cur.lo < cur.hi {
		out = append(out, cur)
	}
	return out
}

// applyRanges sorts records by hook address, makes each page run
// writable, applies fn to every record in the run, and restores
// read/execute protection. A pair of mprotect calls per flag would be
// prohibitively slow for large batches; merging adjacent pages amortizes
// the cost while never leaving more memory writable than necessary.
//
// The restore is deferred so a panicking fn cannot leave code pages
// writable.
func applyRanges(records []*record, hookSize uintptr, fn func(*record)) {
	slices.SortFunc(records, func(a, b *record) int {
		return cmp.Compare(a.hook, b.hook)
	})

	for _, pr := range planRanges(records, hookSize, pageSize) {
		if err := protectPages(pr.first, pr.last, protRWX); err != nil {
			panic(fmt.Sprintf("dynflag: cannot make code pages writable: %v", err))
		}
		func() {
			defer func() {
				if err := protectPages(pr.first, pr.last, protRX); err != nil {
					panic(fmt.Sprintf("dynflag: cannot restore code page protection: %v", err))
				}
			}()
			for _, rec := range records[pr.lo:pr.hi] {
				fn(rec)
				cacheflush(hookBytes(rec.hook, hookSize))
			}
		}()
	}
}

func hookBytes(hook, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(hook)), int(size))
}
