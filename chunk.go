package filestruct

import (
	"math"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Giulio2002/filestruct/mmap"
)

// mapping is one OS mapping shared by a directly mapped chunk and every
// chunk derived from it. It is unmapped when the last of them is torn down.
type mapping struct {
	id   uint32
	m    *mmap.Map
	file *File
	refs atomic.Int32
}

func (mp *mapping) acquire() {
	mp.refs.Add(1)
}

// release drops one reference and unmaps on the last one.
func (mp *mapping) release() error {
	if mp.refs.Add(-1) != 0 {
		return nil
	}
	mp.file.untrack(mp)
	return mp.m.Close()
}

// Chunk is a bounds-known view over a contiguous byte range of a File,
// addressed like a C struct.
//
// A chunk made by File.Map owns an OS mapping. A chunk made by Derive
// borrows the bytes of its parent and shares the parent's mapping. The
// mapping is reference counted: it is released when the last chunk using
// it is torn down, so tearing down a parent before its derived chunks is
// safe. Every chunk must be torn down exactly once for the mapping to be
// released; a derived chunk that is never torn down keeps the whole
// mapping alive.
//
// Chunks are not safe for concurrent use.
type Chunk struct {
	file   *File
	size   int64
	offset int64 // absolute offset in file
	data   []byte

	mapping *mapping // nil for zero-size chunks
	owner   bool     // holds the reference taken by File.Map
	torn    bool
}

// Map maps size bytes of the file starting at offset.
// The whole range must lie inside the file; nothing is clamped.
func (fl *File) Map(size, offset int64) (*Chunk, error) {
	if fl == nil || fl.f == nil {
		return nil, invalidError("file is closed")
	}
	if offset < 0 || size < 0 || offset > fl.size-size {
		fl.log.WithFields(logrus.Fields{
			"offset": offset,
			"size":   size,
			"limit":  fl.size,
		}).Error("requesting struct chunk outside of file")
		return nil, rangeError(ErrOutOfFileRange, offset, size, fl.size)
	}

	if size == 0 {
		return &Chunk{file: fl, offset: offset, data: []byte{}}, nil
	}

	aligned, remainder := mmap.AlignDown(offset)
	length := remainder + size
	if length > math.MaxInt {
		return nil, invalidError("mapping of %d bytes does not fit in memory", length)
	}

	m, err := mmap.New(fl.fd(), aligned, int(length))
	if err != nil {
		fl.log.WithError(err).WithFields(logrus.Fields{
			"offset": offset,
			"size":   size,
		}).Error("could not map file range")
		return nil, WrapError(ErrMapping, err)
	}
	if fl.opts.advice != mmap.AdviceNone {
		if err := m.Advise(fl.opts.advice); err != nil {
			fl.log.WithError(err).WithField("advice", fl.opts.advice).Warn("madvise failed")
		}
	}

	mp := fl.track(m)
	end := remainder + size
	fl.log.WithFields(logrus.Fields{
		"mapping": mp.id,
		"offset":  offset,
		"size":    size,
		"aligned": aligned,
	}).Debug("mapped struct chunk")

	return &Chunk{
		file:    fl,
		size:    size,
		offset:  offset,
		data:    m.Data()[remainder:end:end],
		mapping: mp,
		owner:   true,
	}, nil
}

// MapLayout maps l.Size() bytes of the file starting at offset.
func (fl *File) MapLayout(l *Layout, offset int64) (*Chunk, error) {
	if l == nil {
		return nil, invalidError("nil layout")
	}
	return fl.Map(l.Size(), offset)
}

// Derive returns a view of size bytes starting subOffset bytes into c.
// No system call is made.
func (c *Chunk) Derive(size, subOffset int64) (*Chunk, error) {
	if !c.Valid() {
		return nil, invalidError("derive from torn-down chunk")
	}
	if subOffset < 0 || size < 0 || subOffset > c.size-size {
		c.file.log.WithFields(logrus.Fields{
			"offset": subOffset,
			"size":   size,
			"limit":  c.size,
		}).Error("requesting struct chunk outside of struct")
		return nil, rangeError(ErrOutOfStructRange, subOffset, size, c.size)
	}

	if c.mapping != nil {
		c.mapping.acquire()
	}
	end := subOffset + size
	return &Chunk{
		file:    c.file,
		size:    size,
		offset:  c.offset + subOffset,
		data:    c.data[subOffset:end:end],
		mapping: c.mapping,
	}, nil
}

// DeriveMember returns a view of the named member of the l-shaped struct
// stored at the start of c.
func (c *Chunk) DeriveMember(l *Layout, member string) (*Chunk, error) {
	if l == nil {
		return nil, invalidError("nil layout")
	}
	m, err := l.Member(member)
	if err != nil {
		return nil, err
	}
	return c.Derive(m.Size, m.Offset)
}

// DeriveElement returns a view of element index of an array of l-shaped
// records stored at the start of c.
func (c *Chunk) DeriveElement(l *Layout, index int) (*Chunk, error) {
	if l == nil {
		return nil, invalidError("nil layout")
	}
	off, err := c.elementOffset(index, l.Size(), 0)
	if err != nil {
		return nil, err
	}
	return c.Derive(l.Size(), off)
}

// elementOffset returns index*stride+off for an array of stride-byte
// records at the start of c. The index is checked before multiplying so a
// huge index cannot wrap around into range; the exact bounds are left to
// the caller's range check.
func (c *Chunk) elementOffset(index int, stride, off int64) (int64, error) {
	if !c.Valid() {
		return 0, invalidError("index into torn-down chunk")
	}
	if index < 0 || stride > 0 && int64(index) > c.size/stride {
		c.file.log.WithFields(logrus.Fields{
			"index":  index,
			"stride": stride,
			"limit":  c.size,
		}).Error("requesting array element outside of struct chunk")
		return 0, elementError(index, stride, c.size)
	}
	return int64(index)*stride + off, nil
}

// Teardown releases c. The OS mapping is unmapped once no other chunk
// uses it. Tearing down twice is a no-op. An unmap failure is returned as
// ErrUnmap; the chunk is torn down regardless.
func (c *Chunk) Teardown() error {
	if c == nil || c.torn {
		return nil
	}

	var err error
	if c.mapping != nil {
		id := c.mapping.id
		if uerr := c.mapping.release(); uerr != nil {
			c.file.log.WithError(uerr).WithField("mapping", id).Warn("unable to unmap struct chunk")
			err = WrapError(ErrUnmap, uerr)
		}
	}

	c.torn = true
	c.data = nil
	c.file = nil
	c.mapping = nil
	return err
}

// Valid reports whether c can still be read.
func (c *Chunk) Valid() bool {
	return c != nil && !c.torn
}

// Size returns the length of the chunk in bytes.
func (c *Chunk) Size() int64 {
	return c.size
}

// Offset returns the absolute offset of the chunk in its file.
func (c *Chunk) Offset() int64 {
	return c.offset
}

// Bytes returns the chunk's bytes, or nil once torn down.
// The slice aliases the mapping and must not be used after teardown.
func (c *Chunk) Bytes() []byte {
	return c.data
}

// File returns the file the chunk was mapped from, or nil once torn down.
func (c *Chunk) File() *File {
	return c.file
}

// OwnsMapping reports whether c made the OS mapping it reads from, rather
// than being derived from another chunk. Zero-size chunks own nothing.
func (c *Chunk) OwnsMapping() bool {
	return c.owner && !c.torn
}

// section returns the n bytes at offset, bounds checked.
func (c *Chunk) section(offset, n int64) ([]byte, error) {
	if !c.Valid() {
		return nil, invalidError("read from torn-down chunk")
	}
	if offset < 0 || offset > c.size-n {
		return nil, rangeError(ErrOutOfStructRange, offset, n, c.size)
	}
	return c.data[offset : offset+n], nil
}

// Uint8 reads the byte at offset.
func (c *Chunk) Uint8(offset int64) (uint8, error) {
	b, err := c.section(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 reads a 2-byte integer stored in order at offset.
func (c *Chunk) Uint16(offset int64, order Order) (uint16, error) {
	b, err := c.section(offset, 2)
	if err != nil {
		return 0, err
	}
	return order.ByteOrder().Uint16(b), nil
}

// Uint32 reads a 4-byte integer stored in order at offset.
func (c *Chunk) Uint32(offset int64, order Order) (uint32, error) {
	b, err := c.section(offset, 4)
	if err != nil {
		return 0, err
	}
	return order.ByteOrder().Uint32(b), nil
}

// Uint64 reads an 8-byte integer stored in order at offset.
func (c *Chunk) Uint64(offset int64, order Order) (uint64, error) {
	b, err := c.section(offset, 8)
	if err != nil {
		return 0, err
	}
	return order.ByteOrder().Uint64(b), nil
}
