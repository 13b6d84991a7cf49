//go:build linux || darwin

package highway

import (
	"os"
	"syscall"
)

func resizeMapped(f *os.File, size int64) error {
	return f.Truncate(size)
}

func mmapFile(f *os.File, size int) ([]byte, error) {
	return syscall.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
}

func unmapFile(_ *os.File, mem []byte) error {
	return syscall.Munmap(mem)
}
