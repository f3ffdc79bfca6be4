package dynflag

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

// State is one introspection entry.
type State struct {
	Name string
	Kind string
	Doc  string

	// Activation and Unhook are read without the registry lock; listing
	// is diagnostic only and the reads are best-effort by design.
	Activation uint64
	Unhook     uint64

	Hook        uintptr
	Destination uintptr

	// Duplicate marks every entry after the first with an identical full
	// name, so renderers can collapse inlined instantiations.
	Duplicate bool
}

// ListState visits the records matching pattern in a deterministic,
// human-friendly order: by kind, name and file, then longer docstrings
// first, then ascending line number. visit returns false to stop early.
// ListState returns the number of entries visited.
func (r *Registry) ListState(pattern string, visit func(State) bool) (int, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.ensureInit()
	recs := r.findLocked(re)
	counts := r.counts
	r.mu.Unlock()

	slices.SortFunc(recs, compareAlpha)

	for i, rec := range recs {
		st := State{
			Name: rec.name,
			Kind: rec.kind,
			Doc:  rec.doc,

			// Racy, by design.
			Activation: counts[rec.index].activation,
			Unhook:     counts[rec.index].unhook,

			Hook:        rec.hook,
			Destination: rec.destination,
		}
		if i > 0 && recs[i-1].name == rec.name {
			st.Duplicate = true
		}

		if !visit(st) {
			return i + 1, nil
		}
	}
	return len(recs), nil
}

// compareAlpha orders records for display.
//
// Everything up to the line number (kind, name, file) compares as a
// plain string. For otherwise-identical prefixes, records with longer
// docstrings come first, then the lesser line number.
func compareAlpha(a, b *record) int {
	ai := strings.LastIndexByte(a.name, ':')
	bi := strings.LastIndexByte(b.name, ':')

	// If the prefixes definitely don't match, plain comparison.
	if ai < 0 || bi < 0 || ai != bi {
		return strings.Compare(a.name, b.name)
	}

	if c := strings.Compare(a.name[:ai], b.name[:ai]); c != 0 {
		return c
	}

	// Same kind, name and file. Show longer docstrings first.
	if a.doc != "" || b.doc != "" {
		if a.doc == "" {
			return 1
		}
		if b.doc == "" {
			return -1
		}
		if len(a.doc) != len(b.doc) {
			if len(a.doc) > len(b.doc) {
				return -1
			}
			return 1
		}
	}

	aline, _ := strconv.ParseUint(a.name[ai+1:], 10, 64)
	bline, _ := strconv.ParseUint(b.name[bi+1:], 10, 64)
	switch {
	case aline < bline:
		return -1
	case aline > bline:
		return 1
	}
	return 0
}

// WriteState renders the matching flags to w, one per line:
//
//	kind:name@file:line (3, unhook=1): docstring
//	kind:name@file:line (off)
//
// Duplicate records are skipped. Returns the number of records listed,
// duplicates included.
func (r *Registry) WriteState(w io.Writer, pattern string) (int, error) {
	var werr error
	n, err := r.ListState(pattern, func(st State) bool {
		if st.Duplicate {
			return true
		}

		activation := "off"
		if st.Activation > 0 {
			activation = strconv.FormatUint(st.Activation, 10)
		}
		unhook := ""
		if st.Unhook > 0 {
			unhook = fmt.Sprintf(", unhook=%d", st.Unhook)
		}
		sep := ""
		if st.Doc != "" {
			sep = ": "
		}

		_, werr = fmt.Fprintf(w, "%s (%s%s)%s%s\n", st.Name, activation, unhook, sep, st.Doc)
		return werr == nil
	})
	if err == nil {
		err = werr
	}
	return n, err
}
