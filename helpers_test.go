package filestruct

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// Layout of the "default" test file: an 8-byte big-endian integer, a
// 2-byte little-endian integer and 16 characters, with two 8-byte
// integers of padding before and after.
const (
	longIntSize       = 8
	halfIntSize       = 2
	nChars            = 0x10
	firstNumberStart  = 0x10
	secondNumberStart = firstNumberStart + longIntSize
	stringStart       = secondNumberStart + halfIntSize
	structEnd         = stringStart + nChars
	structSize        = structEnd - firstNumberStart
	defaultFileSize   = structEnd + longIntSize*2
)

const (
	firstIntValue  uint64 = 0x0001020304050607
	secondIntValue uint16 = 0x0123
	stringValue           = "0123456789abcdef"
)

// testStruct mirrors the struct stored in the default test file.
type testStruct struct {
	FirstInt  uint64
	SecondInt uint16
	String    [nChars]byte
}

func defaultFileBytes() []byte {
	data := make([]byte, defaultFileSize)
	for i := 0; i < firstNumberStart; i++ {
		data[i] = 0xee
	}
	binary.BigEndian.PutUint64(data[firstNumberStart:], firstIntValue)
	binary.LittleEndian.PutUint16(data[secondNumberStart:], secondIntValue)
	copy(data[stringStart:], stringValue)
	for i := structEnd; i < defaultFileSize; i++ {
		data[i] = 0xdd
	}
	return data
}

// writeTestFile writes data to a fresh file and returns its path.
func writeTestFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test_input")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// openTestFile opens a file holding data with a captured logger and closes
// it at the end of the test.
func openTestFile(t *testing.T, data []byte, opts ...Option) (*File, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts = append([]Option{WithLogger(logger)}, opts...)

	f, err := Open(writeTestFile(t, data), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f, hook
}

// mapTestChunk maps a chunk and tears it down at the end of the test.
func mapTestChunk(t *testing.T, f *File, size, offset int64) *Chunk {
	t.Helper()
	c, err := f.Map(size, offset)
	require.NoError(t, err)
	t.Cleanup(func() { c.Teardown() })
	return c
}

// hasEntry reports whether hook saw an entry at level.
func hasEntry(hook *test.Hook, level logrus.Level) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			return true
		}
	}
	return false
}
