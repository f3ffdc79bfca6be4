//go:build unix

package dynflag

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	protRX  = unix.PROT_READ | unix.PROT_EXEC
	protRWX = unix.PROT_READ | unix.PROT_WRITE | unix.PROT_EXEC
)

var pageSize = uintptr(os.Getpagesize())

// protectPages changes the protection of the inclusive page-index range
// [first, last].
func protectPages(first, last uintptr, prot int) error {
	region := unsafe.Slice((*byte)(unsafe.Pointer(first*pageSize)), int((last-first+1)*pageSize))
	return unix.Mprotect(region, prot)
}
