package dynflag

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listNames(t *testing.T, r *Registry, pattern string) []string {
	t.Helper()

	var names []string
	_, err := r.ListState(pattern, func(st State) bool {
		names = append(names, st.Name)
		return true
	})
	require.NoError(t, err)
	return names
}

func TestListOrderIsAlphabetical(t *testing.T) {
	r := NewRegistry()
	r.Feature("zeta", "flag")
	r.Feature("alpha", "flag")
	r.Feature("mid", "flag")
	r.Init()

	names := listNames(t, r, ".*")
	require.Len(t, names, 3)
	assert.Contains(t, names[0], "alpha:")
	assert.Contains(t, names[1], "mid:")
	assert.Contains(t, names[2], "zeta:")
}

func TestListOrderByLineNumber(t *testing.T) {
	r := NewRegistry()
	first := r.Feature("line", "order")
	second := r.Feature("line", "order")
	r.Init()

	names := listNames(t, r, "line:")
	require.Len(t, names, 2)
	assert.Equal(t, first.Name(), names[0])
	assert.Equal(t, second.Name(), names[1])
}

func TestListLongerDocstringFirst(t *testing.T) {
	r := NewRegistry()

	// The undocumented record comes from the lesser line; the docstring
	// still wins the tie on the shared kind:name@file prefix.
	undocumented := r.Feature("docorder", "x")
	documented := r.Feature("docorder", "x", WithDoc("this one has a docstring"))
	r.Init()

	names := listNames(t, r, "docorder:")
	require.Len(t, names, 2)
	assert.Equal(t, documented.Name(), names[0])
	assert.Equal(t, undocumented.Name(), names[1])
}

func TestListMarksDuplicates(t *testing.T) {
	r := NewRegistry()
	var flags []*Flag
	for i := 0; i < 3; i++ {
		// Same call site each iteration, so all three records share one
		// full name.
		flags = append(flags, r.Feature("dup", "flag"))
	}
	r.Init()

	var dups []bool
	n, err := r.ListState("dup:", func(st State) bool {
		dups = append(dups, st.Duplicate)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []bool{false, true, true}, dups)
	assert.Equal(t, flags[0].Name(), flags[1].Name())
}

func TestListStateEntries(t *testing.T) {
	r := NewRegistry()
	f := r.Feature("entry", "flag", WithDoc("entry docstring"))
	r.Init()
	_, err := r.Activate("entry:")
	require.NoError(t, err)
	_, err = r.Unhook("entry:")
	require.NoError(t, err)

	st := flagState(t, r, f)
	assert.Equal(t, f.Name(), st.Name)
	assert.Equal(t, "entry", st.Kind)
	assert.Equal(t, "entry docstring", st.Doc)
	assert.Equal(t, uint64(1), st.Activation)
	assert.Equal(t, uint64(1), st.Unhook)
	assert.Equal(t, f.rec.hook, st.Hook)
	assert.Equal(t, f.rec.destination, st.Destination)
	assert.False(t, st.Duplicate)
}

func TestListStateEarlyStop(t *testing.T) {
	r := NewRegistry()
	r.Feature("stop", "a")
	r.Feature("stop", "b")
	r.Feature("stop", "c")
	r.Init()

	n, err := r.ListState("stop:", func(State) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListDeterministic(t *testing.T) {
	// Two identically-declared registries list in the same order.
	r1 := NewRegistry()
	newFixture(r1)
	r1.Init()

	r2 := NewRegistry()
	newFixture(r2)
	r2.Init()

	assert.Equal(t, listNames(t, r1, ".*"), listNames(t, r2, ".*"))
}

func TestWriteStateFormat(t *testing.T) {
	r := NewRegistry()
	f := r.Feature("write", "flag", WithDoc("written out"))
	bare := r.Feature("write", "bare")
	r.Init()

	var buf bytes.Buffer
	n, err := r.WriteState(&buf, "write:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, buf.String(), fmt.Sprintf("%s (off): written out\n", f.Name()))
	assert.Contains(t, buf.String(), fmt.Sprintf("%s (off)\n", bare.Name()))

	_, err = r.Activate("write:flag")
	require.NoError(t, err)
	_, err = r.Unhook("write:flag")
	require.NoError(t, err)

	buf.Reset()
	_, err = r.WriteState(&buf, "write:flag")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), fmt.Sprintf("%s (1, unhook=1): written out\n", f.Name()))
}

func TestWriteStateSkipsDuplicates(t *testing.T) {
	r := NewRegistry()
	var name string
	for i := 0; i < 2; i++ {
		name = r.Feature("wdup", "flag").Name()
	}
	r.Init()

	var buf bytes.Buffer
	n, err := r.WriteState(&buf, "wdup:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte(name)))
}
