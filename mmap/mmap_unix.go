//go:build unix

package mmap

import (
	"golang.org/x/sys/unix"
)

// Granularity returns the alignment required for mapping offsets.
func Granularity() int {
	return unix.Getpagesize()
}

// New creates a read-only shared mapping of length bytes of fd starting at
// offset. The offset must be a multiple of Granularity().
func New(fd int, offset int64, length int) (*Map, error) {
	if length <= 0 {
		return nil, ErrInvalidSize
	}
	if offset < 0 || offset%int64(Granularity()) != 0 {
		return nil, ErrInvalidOffset
	}

	data, err := unix.Mmap(fd, offset, length, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, &Error{Op: "mmap", Err: err}
	}

	return &Map{
		data:   data,
		offset: offset,
		size:   int64(length),
	}, nil
}

// Close releases the memory mapping.
// The mapping is considered gone even if munmap fails.
func (m *Map) Close() error {
	if m.data == nil {
		return nil
	}

	err := unix.Munmap(m.data)
	m.data = nil
	m.size = 0
	if err != nil {
		return &Error{Op: "munmap", Err: err}
	}
	return nil
}

// Advise provides hints to the kernel about memory usage patterns.
func (m *Map) Advise(advice Advice) error {
	if m.data == nil {
		return ErrNotMapped
	}
	var flag int
	switch advice {
	case AdviceNone:
		return nil
	case AdviceSequential:
		flag = unix.MADV_SEQUENTIAL
	case AdviceRandom:
		flag = unix.MADV_RANDOM
	case AdviceWillNeed:
		flag = unix.MADV_WILLNEED
	case AdviceDontNeed:
		flag = unix.MADV_DONTNEED
	default:
		return &Error{Op: "advise " + advice.String()}
	}
	if err := unix.Madvise(m.data, flag); err != nil {
		return &Error{Op: "madvise", Err: err}
	}
	return nil
}
