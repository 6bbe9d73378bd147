package filestruct

import (
	"bytes"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Giulio2002/filestruct/mmap"
)

func TestMapOutOfFileRange(t *testing.T) {
	f, hook := openTestFile(t, defaultFileBytes())

	tests := []struct {
		name         string
		size, offset int64
	}{
		// The struct starts in the file but is too large.
		{"chunk too large", defaultFileSize, firstNumberStart},
		// The struct starts after the file.
		{"chunk out of range", longIntSize, defaultFileSize + 1},
		{"one byte past end", 1, defaultFileSize},
		{"negative offset", longIntSize, -1},
		{"negative size", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook.Reset()
			c, err := f.Map(tt.size, tt.offset)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, IsOutOfFileRange(err), "got %v", err)

			var fe *Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.offset, fe.Offset)
			assert.Equal(t, tt.size, fe.Size)
			assert.Equal(t, int64(defaultFileSize), fe.Limit)

			assert.Zero(t, f.LiveMappings(), "no mapping may be made")
			assert.True(t, hasEntry(hook, logrus.ErrorLevel))
		})
	}
}

func TestMapWholeFile(t *testing.T) {
	data := defaultFileBytes()
	f, _ := openTestFile(t, data)

	c := mapTestChunk(t, f, int64(len(data)), 0)
	assert.True(t, bytes.Equal(data, c.Bytes()))
	assert.True(t, c.OwnsMapping())
	assert.Same(t, f, c.File())
}

func TestMapUnalignedOffsets(t *testing.T) {
	g := mmap.Granularity()
	data := make([]byte, 3*g)
	for i := range data {
		data[i] = byte(i * 7)
	}
	f, _ := openTestFile(t, data)

	offsets := []int64{1, 0x10, int64(g) - 4, int64(g), int64(g) + 3, 2*int64(g) - 1}
	for _, off := range offsets {
		// Ranges straddling a page boundary must be fully readable.
		size := int64(16)
		if off+size > int64(len(data)) {
			size = int64(len(data)) - off
		}
		c, err := f.Map(size, off)
		require.NoError(t, err, "offset %d", off)
		assert.Equal(t, off, c.Offset())
		assert.Equal(t, size, c.Size())
		assert.True(t, bytes.Equal(data[off:off+size], c.Bytes()), "offset %d", off)
		require.NoError(t, c.Teardown())
	}
	assert.Zero(t, f.LiveMappings())
}

func TestMapZeroSize(t *testing.T) {
	f, _ := openTestFile(t, defaultFileBytes())

	c, err := f.Map(0, firstNumberStart)
	require.NoError(t, err)
	assert.Zero(t, c.Size())
	assert.NotNil(t, c.Bytes())
	assert.Empty(t, c.Bytes())
	assert.Zero(t, f.LiveMappings(), "zero-size chunks make no mapping")
	assert.False(t, c.OwnsMapping(), "zero-size chunks own no mapping")

	// The end of the file is a valid place for an empty chunk.
	end, err := f.Map(0, defaultFileSize)
	require.NoError(t, err)

	d, err := c.Derive(0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(firstNumberStart), d.Offset())

	require.NoError(t, d.Teardown())
	require.NoError(t, c.Teardown())
	require.NoError(t, end.Teardown())
}

func TestOverlappingMappingsAreIndependent(t *testing.T) {
	data := defaultFileBytes()
	f, _ := openTestFile(t, data)

	a := mapTestChunk(t, f, structSize, firstNumberStart)
	b := mapTestChunk(t, f, longIntSize, firstNumberStart)
	assert.Equal(t, 2, f.LiveMappings())

	require.NoError(t, a.Teardown())
	assert.Equal(t, 1, f.LiveMappings())
	assert.True(t, bytes.Equal(data[firstNumberStart:secondNumberStart], b.Bytes()))
}

func TestDerive(t *testing.T) {
	data := defaultFileBytes()
	f, _ := openTestFile(t, data)
	c := mapTestChunk(t, f, structSize, firstNumberStart)

	d, err := c.Derive(halfIntSize, longIntSize)
	require.NoError(t, err)
	defer d.Teardown()

	assert.Equal(t, int64(secondNumberStart), d.Offset())
	assert.Equal(t, int64(halfIntSize), d.Size())
	assert.False(t, d.OwnsMapping())
	assert.True(t, bytes.Equal(data[secondNumberStart:stringStart], d.Bytes()))
	assert.Equal(t, 1, f.LiveMappings(), "derivation makes no mapping")

	v, err := d.Uint16(0, LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, secondIntValue, v)
}

func TestDeriveOutOfStructRange(t *testing.T) {
	f, _ := openTestFile(t, defaultFileBytes())
	c := mapTestChunk(t, f, structSize, firstNumberStart)

	tests := []struct {
		name            string
		size, subOffset int64
	}{
		{"too large", structSize + 1, 0},
		{"starts past end", 1, structSize},
		{"straddles end", longIntSize, structSize - 4},
		{"negative offset", 1, -1},
		{"negative size", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := c.Derive(tt.size, tt.subOffset)
			assert.Nil(t, d)
			assert.True(t, IsOutOfStructRange(err), "got %v", err)
		})
	}

	// The exact full range and an empty range at the end are fine.
	d, err := c.Derive(structSize, 0)
	require.NoError(t, err)
	require.NoError(t, d.Teardown())
	d, err = c.Derive(0, structSize)
	require.NoError(t, err)
	require.NoError(t, d.Teardown())
}

func TestDeriveComposes(t *testing.T) {
	data := make([]byte, 4096+2048)
	for i := range data {
		data[i] = byte(i ^ 0x5a)
	}
	f, _ := openTestFile(t, data)
	a := mapTestChunk(t, f, 1024, 4000)

	for _, tt := range []struct{ bOff, bSize, cOff, cSize int64 }{
		{0, 1024, 0, 1024},
		{10, 500, 7, 100},
		{96, 200, 0, 0},
		{512, 512, 511, 1},
	} {
		b, err := a.Derive(tt.bSize, tt.bOff)
		require.NoError(t, err)
		viaB, err := b.Derive(tt.cSize, tt.cOff)
		require.NoError(t, err)
		direct, err := a.Derive(tt.cSize, tt.bOff+tt.cOff)
		require.NoError(t, err)

		assert.Equal(t, direct.Offset(), viaB.Offset())
		assert.Equal(t, direct.Size(), viaB.Size())
		assert.True(t, bytes.Equal(direct.Bytes(), viaB.Bytes()))
		assert.Equal(t, a.Offset()+tt.bOff+tt.cOff, viaB.Offset())

		require.NoError(t, viaB.Teardown())
		require.NoError(t, direct.Teardown())
		require.NoError(t, b.Teardown())
	}
}

func TestTeardownIdempotent(t *testing.T) {
	f, _ := openTestFile(t, defaultFileBytes())
	c, err := f.Map(structSize, firstNumberStart)
	require.NoError(t, err)
	d, err := c.Derive(longIntSize, 0)
	require.NoError(t, err)

	require.NoError(t, d.Teardown())
	require.NoError(t, d.Teardown())
	assert.Equal(t, 1, f.LiveMappings(), "derived teardown must not unmap")

	require.NoError(t, c.Teardown())
	require.NoError(t, c.Teardown())
	assert.Zero(t, f.LiveMappings())

	assert.False(t, c.Valid())
	assert.Nil(t, c.Bytes())
	assert.Nil(t, c.File())
	assert.False(t, c.OwnsMapping())

	var nilChunk *Chunk
	assert.NoError(t, nilChunk.Teardown())
}

// Tearing down the owner first keeps the mapping alive for derived chunks.
func TestTeardownOwnerBeforeDerived(t *testing.T) {
	data := defaultFileBytes()
	f, _ := openTestFile(t, data)
	c, err := f.Map(structSize, firstNumberStart)
	require.NoError(t, err)
	d, err := c.Derive(nChars, stringStart-firstNumberStart)
	require.NoError(t, err)
	e, err := d.Derive(4, 0)
	require.NoError(t, err)

	require.NoError(t, c.Teardown())
	assert.Equal(t, 1, f.LiveMappings())
	assert.Equal(t, stringValue, string(d.Bytes()))

	require.NoError(t, d.Teardown())
	assert.Equal(t, 1, f.LiveMappings())
	assert.Equal(t, stringValue[:4], string(e.Bytes()))

	require.NoError(t, e.Teardown())
	assert.Zero(t, f.LiveMappings())
}

func TestDeriveFromTornDownChunk(t *testing.T) {
	f, _ := openTestFile(t, defaultFileBytes())
	c, err := f.Map(structSize, firstNumberStart)
	require.NoError(t, err)
	require.NoError(t, c.Teardown())

	_, err = c.Derive(1, 0)
	assert.True(t, IsInvalid(err), "got %v", err)

	_, err = c.Uint8(0)
	assert.True(t, IsInvalid(err), "got %v", err)
}

func TestChunkTypedReaders(t *testing.T) {
	f, _ := openTestFile(t, defaultFileBytes())
	c := mapTestChunk(t, f, structSize, firstNumberStart)

	v64, err := c.Uint64(0, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, firstIntValue, v64)

	v16, err := c.Uint16(longIntSize, LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, secondIntValue, v16)

	v32, err := c.Uint32(stringStart-firstNumberStart, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x30313233), v32)

	v8, err := c.Uint8(structSize - 1)
	require.NoError(t, err)
	assert.Equal(t, uint8('f'), v8)

	_, err = c.Uint64(structSize-4, BigEndian)
	assert.True(t, IsOutOfStructRange(err))
	_, err = c.Uint8(-1)
	assert.True(t, IsOutOfStructRange(err))
}

func TestMapWithAdvice(t *testing.T) {
	f, hook := openTestFile(t, defaultFileBytes(), WithAdvice(mmap.AdviceSequential))
	c := mapTestChunk(t, f, structSize, firstNumberStart)

	v, err := c.Uint64(0, BigEndian)
	require.NoError(t, err)
	assert.Equal(t, firstIntValue, v)
	assert.False(t, hasEntry(hook, logrus.WarnLevel))
}

func TestMapLayoutAndDeriveHelpers(t *testing.T) {
	type inner struct {
		A uint16
		B uint16
	}
	type outer struct {
		Tag   uint32
		Inner inner
		Items [3]inner
	}
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i)
	}
	f, _ := openTestFile(t, data)
	l := MustLayoutOf((*outer)(nil))
	il := MustLayoutOf((*inner)(nil))

	c, err := f.MapLayout(l, 8)
	require.NoError(t, err)
	defer c.Teardown()
	assert.Equal(t, l.Size(), c.Size())

	in, err := c.DeriveMember(l, "Inner")
	require.NoError(t, err)
	defer in.Teardown()
	assert.Equal(t, int64(8+4), in.Offset())
	assert.Equal(t, il.Size(), in.Size())

	items, err := c.DeriveMember(l, "Items")
	require.NoError(t, err)
	defer items.Teardown()

	second, err := items.DeriveElement(il, 1)
	require.NoError(t, err)
	defer second.Teardown()
	assert.Equal(t, int64(8+8+4), second.Offset())
	assert.True(t, bytes.Equal(data[20:24], second.Bytes()))

	_, err = items.DeriveElement(il, 3)
	assert.True(t, IsOutOfStructRange(err), "got %v", err)
	_, err = items.DeriveElement(il, -1)
	assert.True(t, IsOutOfStructRange(err), "got %v", err)

	// An index whose offset wraps around to 0 is still past the end.
	wrapped := int(math.MaxUint64/uint64(il.Size()) + 1)
	assert.Zero(t, int64(wrapped)*il.Size(), "index must wrap to offset 0")
	_, err = items.DeriveElement(il, wrapped)
	assert.True(t, IsOutOfStructRange(err), "got %v", err)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, int64(-1), fe.Offset)
	assert.Contains(t, err.Error(), "requested element")
	_, err = c.DeriveMember(l, "Missing")
	assert.Equal(t, ErrLayout, Code(err))
	_, err = f.MapLayout(nil, 0)
	assert.True(t, IsInvalid(err))
}
