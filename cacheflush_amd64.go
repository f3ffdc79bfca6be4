//go:build amd64

package dynflag

// The instruction cache is coherent with stores on amd64; nothing to do
// beyond the write itself.
func cacheflush(buf []byte) {}
