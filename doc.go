// Package filestruct reads fixed-layout structs out of binary files without
// parsing them: it memory-maps byte ranges of a file ("chunks") and copies
// struct members out of them, converting byte order on the way.
//
// The Go struct a member is copied into is assumed to mirror the struct in
// the file member for member at the same offsets; only the byte order of
// each scalar may differ. Layouts are derived from Go struct types once and
// cached.
//
// Chunks are either mapped directly from a File or derived from another
// chunk as a narrower view of the same bytes. Derivation never makes a
// system call. The OS mapping behind a family of chunks is released when
// the last chunk of the family is torn down.
//
// Lifetime hazard: the byte slices returned by Chunk.Bytes alias the
// mapping. Reading them after the chunk they came from has been torn down,
// or from another goroutine while chunks are being torn down, is undefined.
// Copy the data out with the Copy functions instead.
//
// Basic usage:
//
//	type record struct {
//	    ID    uint64
//	    Kind  uint16
//	    Label [16]byte
//	}
//
//	f, err := filestruct.Open("/path/to/file")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	l := filestruct.MustLayoutOf((*record)(nil))
//	c, err := f.MapLayout(l, 0x10)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Teardown()
//
//	var r record
//	if err := filestruct.CopyMember(&r, c, "ID", filestruct.BigEndian); err != nil {
//	    log.Fatal(err)
//	}
//	if err := filestruct.CopyMember(&r, c, "Kind", filestruct.LittleEndian); err != nil {
//	    log.Fatal(err)
//	}
//	if err := filestruct.CopyMemberMachineOrder(&r, c, "Label"); err != nil {
//	    log.Fatal(err)
//	}
package filestruct
