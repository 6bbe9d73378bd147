// Package mmap provides read-only memory mapping of file ranges.
package mmap

// Map represents a read-only memory-mapped file region.
// This type wraps platform-specific mmap implementations.
type Map struct {
	data   []byte // Mapped memory region
	offset int64  // File offset of data[0], a multiple of Granularity()
	size   int64  // Mapped size
	// Windows-specific handle (only used on Windows, zero on Unix)
	mapping uintptr
}

// Data returns the mapped byte slice.
func (m *Map) Data() []byte {
	return m.data
}

// Size returns the mapped size.
func (m *Map) Size() int64 {
	return m.size
}

// Offset returns the file offset at which the mapping starts.
func (m *Map) Offset() int64 {
	return m.offset
}

// Mapped reports whether the region is still mapped.
func (m *Map) Mapped() bool {
	return m.data != nil
}

// Advice is an access pattern hint passed to the kernel for a mapping.
type Advice int

const (
	// AdviceNone leaves the kernel default in place.
	AdviceNone Advice = iota
	// AdviceSequential hints that pages will be accessed sequentially.
	AdviceSequential
	// AdviceRandom hints that pages will be accessed randomly.
	AdviceRandom
	// AdviceWillNeed hints that pages will be needed soon.
	AdviceWillNeed
	// AdviceDontNeed hints that pages won't be needed soon.
	AdviceDontNeed
)

func (a Advice) String() string {
	switch a {
	case AdviceNone:
		return "none"
	case AdviceSequential:
		return "sequential"
	case AdviceRandom:
		return "random"
	case AdviceWillNeed:
		return "willneed"
	case AdviceDontNeed:
		return "dontneed"
	}
	return "unknown"
}

// AlignDown splits offset into the nearest lower multiple of
// Granularity() and the remainder between the two.
func AlignDown(offset int64) (aligned, remainder int64) {
	g := int64(Granularity())
	remainder = offset % g
	return offset - remainder, remainder
}

// Error represents an mmap error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return "mmap: " + e.Op + ": " + e.Err.Error()
	}
	return "mmap: " + e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Common errors
var (
	ErrInvalidSize   = &Error{Op: "invalid size"}
	ErrInvalidOffset = &Error{Op: "offset not aligned"}
	ErrNotMapped     = &Error{Op: "not mapped"}
)
