package dynflag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	r := NewRegistry()
	alpha := r.Feature("cfg", "alpha")
	beta := r.Default("cfg", "beta")
	gamma := r.Feature("cfg", "gamma")
	r.Init()

	cfg := `
# enable alpha, shut beta down, park gamma
+cfg:alpha
-cfg:beta

!cfg:gamma
+cfg:gamma
`
	n, err := r.LoadConfig(strings.NewReader(cfg))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.True(t, alpha.Enabled())
	assert.False(t, beta.Enabled())
	assert.False(t, gamma.Enabled(), "unhooked before the activate line")
	assert.Equal(t, uint64(1), flagState(t, r, gamma).Unhook)

	// Directives apply in textual order: rehook first, then activate.
	n, err = r.LoadConfig(strings.NewReader("?cfg:gamma\n+cfg:gamma\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, gamma.Enabled())
}

func TestLoadConfigUnknownDirective(t *testing.T) {
	r := NewRegistry()
	r.Feature("cfgerr", "flag")
	r.Init()

	n, err := r.LoadConfig(strings.NewReader("+cfgerr:flag\n*cfgerr:flag\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, 1, n, "directives before the bad line stay applied")
}

func TestLoadConfigInvalidPattern(t *testing.T) {
	r := NewRegistry()
	r.Init()

	n, err := r.LoadConfig(strings.NewReader("+([\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidPattern)
	assert.Zero(t, n)
}
