//go:build windows

package highway

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

func resizeMapped(f *os.File, size int64) error {
	return f.Truncate(size)
}

func mmapFile(f *os.File, size int) ([]byte, error) {
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READWRITE, 0, uint32(size), nil)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(h)
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func unmapFile(_ *os.File, mem []byte) error {
	addr := uintptr(unsafe.Pointer(&mem[0]))
	return windows.UnmapViewOfFile(addr)
}
