package highway

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dchest/siphash"
)

// mappedFileKey provides the fixed key siphash needs; it has no
// secrecy requirement here since the hash is only used to derive a
// short, deterministic, collision-resistant file name, not to
// authenticate anything.
var mappedFileKey = [2]uint64{0x6d656d6869676877, 0x61792d6c616e6573} // "memhighway-lanes"

// mappedFileName derives the deterministic file name required by
// spec.md §6: a name that is a pure function of (pid, highwayID,
// laneID), so re-running the same process/highway/lane triple always
// names the same backing file. github.com/dchest/siphash is the
// teacher's own (otherwise-unused in the retrieved subset) hashing
// dependency; it is well suited to deriving a short fixed-width name
// from a handful of integers.
func mappedFileName(pid int, highwayID string, laneID int) string {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(pid))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(laneID))
	sum := siphash.Hash(mappedFileKey[0], mappedFileKey[1], append(buf[:], highwayID...))
	return fmt.Sprintf("memhighway-%016x.lane", sum)
}

// mappedBackend is a file created in a temp directory, sized to
// capacity, memory-mapped read/write. On dispose, the mapping is
// unmapped and the file is deleted. Grounded on
// tenant/dcache/file_linux.go (mmap/resize/unmap) and
// ion/blockfmt/mmap_linux.go, generalized to a read-write mapping
// sized up front rather than a read-through cache. Like heapBackend,
// it carries no lock of its own: distinct fragments' windows never
// overlap, so concurrent I/O across them needs no backend-level
// synchronization (spec §4.2, §5).
type mappedBackend struct {
	file *os.File
	mem  []byte
	path string
	size int
}

func newMappedBackend(dir string, pid int, highwayID string, laneID, capacity int) (*mappedBackend, error) {
	if capacity <= 0 {
		return nil, newErr(InvalidArgument, "capacity must be positive", nil)
	}
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, mappedFileName(pid, highwayID, laneID))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, newErr(BackendFault, "create mapped lane file", err)
	}
	if err := resizeMapped(f, int64(capacity)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, newErr(BackendFault, "size mapped lane file", err)
	}
	mem, err := mmapFile(f, capacity)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, newErr(BackendFault, "mmap lane file", err)
	}
	return &mappedBackend{file: f, mem: mem, path: path, size: capacity}, nil
}

func (m *mappedBackend) capacity() int {
	return m.size
}

func (m *mappedBackend) writeAt(off int, src []byte) error {
	if m.mem == nil {
		return newErr(DisposedAccess, "write to disposed mapped backend", nil)
	}
	if err := boundsCheck(m.size, off, len(src)); err != nil {
		return err
	}
	copy(m.mem[off:], src)
	return nil
}

func (m *mappedBackend) readAt(off int, dst []byte) (int, error) {
	if m.mem == nil {
		return 0, newErr(DisposedAccess, "read from disposed mapped backend", nil)
	}
	if err := boundsCheck(m.size, off, len(dst)); err != nil {
		return 0, err
	}
	return copy(dst, m.mem[off:off+len(dst)]), nil
}

func (m *mappedBackend) span(off, n int) ([]byte, error) {
	if m.mem == nil {
		return nil, newErr(DisposedAccess, "span of disposed mapped backend", nil)
	}
	if err := boundsCheck(m.size, off, n); err != nil {
		return nil, err
	}
	return m.mem[off : off+n : off+n], nil
}

func (m *mappedBackend) dispose() error {
	if m.mem == nil {
		return nil
	}
	err := unmapFile(m.file, m.mem)
	m.mem = nil
	closeErr := m.file.Close()
	removeErr := os.Remove(m.path)
	switch {
	case err != nil:
		return newErr(BackendFault, "munmap lane file", err)
	case closeErr != nil:
		return newErr(BackendFault, "close lane file", closeErr)
	case removeErr != nil && !os.IsNotExist(removeErr):
		return newErr(BackendFault, "remove lane file", removeErr)
	}
	return nil
}
