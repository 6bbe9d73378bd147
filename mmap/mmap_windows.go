//go:build windows

package mmap

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// allocationGranularity is the alignment MapViewOfFile requires for offsets.
const allocationGranularity = 64 * 1024

// Granularity returns the alignment required for mapping offsets.
func Granularity() int {
	return allocationGranularity
}

// New creates a read-only mapping of length bytes of the file handle fd
// starting at offset. The offset must be a multiple of Granularity().
func New(fd int, offset int64, length int) (*Map, error) {
	if length <= 0 {
		return nil, ErrInvalidSize
	}
	if offset < 0 || offset%int64(Granularity()) != 0 {
		return nil, ErrInvalidOffset
	}

	handle := windows.Handle(fd)

	// A zero maximum size maps up to the current end of the file.
	mapping, err := windows.CreateFileMapping(handle, nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, &Error{Op: "CreateFileMapping", Err: err}
	}

	offsetHigh := uint32(uint64(offset) >> 32)
	offsetLow := uint32(offset)

	addr, err := windows.MapViewOfFile(mapping, windows.FILE_MAP_READ, offsetHigh, offsetLow, uintptr(length))
	if err != nil {
		windows.CloseHandle(mapping)
		return nil, &Error{Op: "MapViewOfFile", Err: err}
	}

	return &Map{
		data:    unsafe.Slice((*byte)(unsafe.Pointer(addr)), length),
		offset:  offset,
		size:    int64(length),
		mapping: uintptr(mapping),
	}, nil
}

// Close releases the memory mapping.
// The mapping is considered gone even if the unmap fails.
func (m *Map) Close() error {
	if m.data == nil {
		return nil
	}

	addr := uintptr(unsafe.Pointer(&m.data[0]))
	err := windows.UnmapViewOfFile(addr)

	if m.mapping != 0 {
		windows.CloseHandle(windows.Handle(m.mapping))
		m.mapping = 0
	}

	m.data = nil
	m.size = 0
	if err != nil {
		return &Error{Op: "UnmapViewOfFile", Err: err}
	}
	return nil
}

// Advise provides hints to the kernel about memory usage patterns.
// Windows doesn't have madvise, so these are no-ops.
func (m *Map) Advise(advice Advice) error {
	if m.data == nil {
		return ErrNotMapped
	}
	return nil
}
