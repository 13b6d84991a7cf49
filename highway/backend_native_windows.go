//go:build windows

package highway

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// nativeBackend mirrors vm/malloc_windows.go's mapVM: a direct
// VirtualAlloc reserve+commit, sized to a single lane. Like
// heapBackend, it carries no lock of its own: distinct fragments'
// windows never overlap, so concurrent I/O across them needs no
// backend-level synchronization (spec §4.2, §5).
type nativeBackend struct {
	addr uintptr
	size int
}

func newNativeBackend(capacity int) (*nativeBackend, error) {
	if capacity <= 0 {
		return nil, newErr(InvalidArgument, "capacity must be positive", nil)
	}
	addr, err := windows.VirtualAlloc(0, uintptr(capacity), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, newErr(BackendFault, "VirtualAlloc native region", err)
	}
	return &nativeBackend{addr: addr, size: capacity}, nil
}

func (n *nativeBackend) bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(n.addr)), n.size)
}

func (n *nativeBackend) capacity() int {
	return n.size
}

func (n *nativeBackend) writeAt(off int, src []byte) error {
	if n.addr == 0 {
		return newErr(DisposedAccess, "write to disposed native backend", nil)
	}
	if err := boundsCheck(n.size, off, len(src)); err != nil {
		return err
	}
	copy(n.bytes()[off:], src)
	return nil
}

func (n *nativeBackend) readAt(off int, dst []byte) (int, error) {
	if n.addr == 0 {
		return 0, newErr(DisposedAccess, "read from disposed native backend", nil)
	}
	if err := boundsCheck(n.size, off, len(dst)); err != nil {
		return 0, err
	}
	return copy(dst, n.bytes()[off:off+len(dst)]), nil
}

func (n *nativeBackend) span(off, ln int) ([]byte, error) {
	if n.addr == 0 {
		return nil, newErr(DisposedAccess, "span of disposed native backend", nil)
	}
	if err := boundsCheck(n.size, off, ln); err != nil {
		return nil, err
	}
	return n.bytes()[off : off+ln : off+ln], nil
}

func (n *nativeBackend) dispose() error {
	if n.addr == 0 {
		return nil
	}
	err := windows.VirtualFree(n.addr, 0, windows.MEM_RELEASE)
	n.addr = 0
	if err != nil {
		return newErr(BackendFault, "VirtualFree native region", err)
	}
	return nil
}
