//go:build linux || darwin

package highway

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// nativeBackend is one unmanaged allocation obtained directly from the
// OS virtual memory manager via an anonymous private mmap, mirroring
// vm/malloc_linux.go and vm/malloc_darwin.go's mapVM, but sized to a
// single lane rather than the VM's fixed 4GiB reservation. Like
// heapBackend, it carries no lock of its own: distinct fragments'
// windows never overlap, so concurrent I/O across them needs no
// backend-level synchronization (spec §4.2, §5).
type nativeBackend struct {
	mem []byte
}

func newNativeBackend(capacity int) (*nativeBackend, error) {
	if capacity <= 0 {
		return nil, newErr(InvalidArgument, "capacity must be positive", nil)
	}
	mem, err := syscall.Mmap(-1, 0, capacity, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_PRIVATE|syscall.MAP_ANON)
	if err != nil {
		return nil, newErr(BackendFault, "mmap anonymous native region", err)
	}
	return &nativeBackend{mem: mem}, nil
}

func (n *nativeBackend) capacity() int {
	return len(n.mem)
}

func (n *nativeBackend) writeAt(off int, src []byte) error {
	if n.mem == nil {
		return newErr(DisposedAccess, "write to disposed native backend", nil)
	}
	if err := boundsCheck(len(n.mem), off, len(src)); err != nil {
		return err
	}
	copy(n.mem[off:], src)
	return nil
}

func (n *nativeBackend) readAt(off int, dst []byte) (int, error) {
	if n.mem == nil {
		return 0, newErr(DisposedAccess, "read from disposed native backend", nil)
	}
	if err := boundsCheck(len(n.mem), off, len(dst)); err != nil {
		return 0, err
	}
	return copy(dst, n.mem[off:off+len(dst)]), nil
}

func (n *nativeBackend) span(off, n2 int) ([]byte, error) {
	if n.mem == nil {
		return nil, newErr(DisposedAccess, "span of disposed native backend", nil)
	}
	if err := boundsCheck(len(n.mem), off, n2); err != nil {
		return nil, err
	}
	return n.mem[off : off+n2 : off+n2], nil
}

func (n *nativeBackend) dispose() error {
	if n.mem == nil {
		return nil
	}
	// hint the kernel that this region is reclaimable before unmapping,
	// matching vm.Free's MADV_FREE use ahead of releasing the bitmap
	// slot; here we simply drop the whole region immediately after.
	_ = unix.Madvise(n.mem, unix.MADV_FREE)
	err := syscall.Munmap(n.mem)
	n.mem = nil
	if err != nil {
		return newErr(BackendFault, "munmap native region", err)
	}
	return nil
}
