package filestruct

import (
	"reflect"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// CopySection copies size bytes at offset in src to the same offset in dst,
// converting from order to machine order. dst holds a struct laid out like
// the one in the chunk, so source and destination offsets are the same.
//
// The range must lie inside src (ErrOutOfStructRange) and inside dst
// (ErrInvalid). After a failed copy the contents of dst are undefined.
func CopySection(dst []byte, src *Chunk, offset, size int64, order Order) error {
	if !src.Valid() {
		return invalidError("copy from torn-down chunk")
	}
	if offset < 0 || size < 0 || offset > src.size-size {
		src.file.log.WithFields(logrus.Fields{
			"offset": offset,
			"size":   size,
			"limit":  src.size,
		}).Error("requesting data outside of struct chunk")
		return rangeError(ErrOutOfStructRange, offset, size, src.size)
	}
	if offset+size > int64(len(dst)) {
		return invalidError("destination holds %d bytes, copy needs %d", len(dst), offset+size)
	}

	OrderAwareCopy(dst[offset:offset+size], src.data[offset:offset+size], order)
	return nil
}

// CopyMember copies the named member of the struct dst points to out of
// src, converting it from order. Nested members use dotted paths.
func CopyMember(dst any, src *Chunk, member string, order Order) error {
	b, l, err := structBytes(dst)
	if err != nil {
		return err
	}
	m, err := l.Member(member)
	if err != nil {
		return err
	}
	return CopySection(b, src, m.Offset, m.Size, order)
}

// CopyMemberMachineOrder copies the named member without any byte
// reordering, for data such as characters.
func CopyMemberMachineOrder(dst any, src *Chunk, member string) error {
	return CopyMember(dst, src, member, MachineOrder())
}

// CopyArrayMember copies an array member element by element, each element
// converted from order on its own. Arrays of structs are converted scalar by
// scalar. It stops at the first element that fails.
func CopyArrayMember(dst any, src *Chunk, member string, order Order) error {
	b, l, err := structBytes(dst)
	if err != nil {
		return err
	}
	m, err := l.Member(member)
	if err != nil {
		return err
	}
	leaves := l.leavesIn(m.Offset, m.Offset+m.Size)
	if len(leaves) == 0 {
		// Zero-length arrays still have to lie inside the chunk.
		return CopySection(b, src, m.Offset, m.Size, order)
	}
	for _, lf := range leaves {
		if err := CopySection(b, src, lf.offset, lf.size, order); err != nil {
			return err
		}
	}
	return nil
}

// CopyMemberInArray copies one member of element index of an array of
// structs. dst is a pointer to an array of structs, a slice of structs or a
// pointer to such a slice; src holds the same array starting at offset 0.
func CopyMemberInArray(dst any, src *Chunk, index int, member string, order Order) error {
	b, l, err := arrayBytes(dst)
	if err != nil {
		return err
	}
	m, err := l.Member(member)
	if err != nil {
		return err
	}
	off, err := src.elementOffset(index, l.Size(), m.Offset)
	if err != nil {
		return err
	}
	return CopySection(b, src, off, m.Size, order)
}

// CopyStruct copies every member of the struct dst points to, with every
// scalar converted from order.
func CopyStruct(dst any, src *Chunk, order Order) error {
	b, l, err := structBytes(dst)
	if err != nil {
		return err
	}
	if !src.Valid() {
		return invalidError("copy from torn-down chunk")
	}
	if l.Size() > src.Size() {
		return rangeError(ErrOutOfStructRange, 0, l.Size(), src.Size())
	}
	for _, lf := range l.leaves {
		if err := CopySection(b, src, lf.offset, lf.size, order); err != nil {
			return err
		}
	}
	return nil
}

// structBytes returns the memory of the struct dst points to.
func structBytes(dst any) ([]byte, *Layout, error) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, nil, invalidError("destination must be a non-nil pointer to a struct, got %T", dst)
	}
	l, err := layoutOfType(rv.Type().Elem())
	if err != nil {
		return nil, nil, err
	}
	return unsafe.Slice((*byte)(rv.UnsafePointer()), l.Size()), l, nil
}

// arrayBytes returns the memory of the array or slice of structs dst refers to.
func arrayBytes(dst any) ([]byte, *Layout, error) {
	rv := reflect.ValueOf(dst)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Slice {
		rv = rv.Elem()
	}

	var (
		elem reflect.Type
		n    int
	)
	switch {
	case rv.Kind() == reflect.Slice:
		elem, n = rv.Type().Elem(), rv.Len()
	case rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Array:
		elem, n = rv.Type().Elem().Elem(), rv.Elem().Len()
	default:
		return nil, nil, invalidError("destination must be an array or slice of structs, got %T", dst)
	}

	l, err := layoutOfType(elem)
	if err != nil {
		return nil, nil, err
	}
	if n == 0 || l.Size() == 0 {
		return []byte{}, l, nil
	}
	return unsafe.Slice((*byte)(rv.UnsafePointer()), int64(n)*l.Size()), l, nil
}
