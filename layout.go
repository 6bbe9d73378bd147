package filestruct

import (
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Member describes where a struct member lives inside its struct.
type Member struct {
	Name     string       // dotted path from the outermost struct
	Offset   int64        // byte offset from the start of the outermost struct
	Size     int64        // total byte width
	Len      int          // number of elements for arrays, 0 otherwise
	ElemSize int64        // element width for arrays, Size otherwise
	Type     reflect.Type // Go type of the member
}

// IsArray reports whether the member is an array.
func (m Member) IsArray() bool {
	return m.Type.Kind() == reflect.Array
}

// leaf is one scalar that is byte-order converted on its own.
type leaf struct {
	offset int64
	size   int64
}

// Layout is the byte layout of a Go struct type that mirrors a struct
// stored in a file: same members, same offsets, same widths. It replaces
// offsetof/sizeof arithmetic with a table built once per type.
//
// Only types with a fixed, machine-independent width are accepted:
// sized integers, floats, bool, arrays of those, nested structs and
// arrays of structs. Padding between members is part of Size but is
// never copied.
type Layout struct {
	typ     reflect.Type
	size    int64
	members []Member          // top-level members in declaration order
	index   map[string]Member // every member by dotted path
	leaves  []leaf            // every scalar, sorted by offset
}

var layouts sync.Map // reflect.Type -> *Layout

// LayoutOf returns the layout of v's struct type. v may be a struct, a
// pointer to a struct (nil is fine) or a reflect.Type of either.
func LayoutOf(v any) (*Layout, error) {
	if v == nil {
		return nil, layoutError("nil value has no layout")
	}
	t, ok := v.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(v)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return layoutOfType(t)
}

// LayoutFor returns the layout of T, which must be a struct type.
func LayoutFor[T any]() (*Layout, error) {
	return layoutOfType(reflect.TypeOf((*T)(nil)).Elem())
}

// MustLayoutOf is like LayoutOf but panics on error.
// It is meant for package-level layout variables.
func MustLayoutOf(v any) *Layout {
	l, err := LayoutOf(v)
	if err != nil {
		panic(err)
	}
	return l
}

func layoutOfType(t reflect.Type) (*Layout, error) {
	if cached, ok := layouts.Load(t); ok {
		return cached.(*Layout), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, layoutError("%s is not a struct", t)
	}

	l := &Layout{
		typ:   t,
		size:  int64(t.Size()),
		index: make(map[string]Member),
	}
	if err := l.addFields(t, "", 0, true); err != nil {
		return nil, err
	}
	sort.Slice(l.leaves, func(i, j int) bool {
		return l.leaves[i].offset < l.leaves[j].offset
	})

	actual, _ := layouts.LoadOrStore(t, l)
	return actual.(*Layout), nil
}

// addFields indexes the fields of struct type t placed at base.
func (l *Layout) addFields(t reflect.Type, prefix string, base int64, top bool) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		path := prefix + f.Name
		off := base + int64(f.Offset)

		if f.Name == "_" {
			// Explicit padding: validated, never copied.
			if err := l.checkKind(f.Type, path); err != nil {
				return err
			}
			continue
		}
		if top {
			if err := l.addLeaves(f.Type, path, off); err != nil {
				return err
			}
		}

		m := Member{
			Name:     path,
			Offset:   off,
			Size:     int64(f.Type.Size()),
			ElemSize: int64(f.Type.Size()),
			Type:     f.Type,
		}
		if f.Type.Kind() == reflect.Array {
			m.Len = f.Type.Len()
			m.ElemSize = int64(f.Type.Elem().Size())
		}
		l.index[path] = m
		if top {
			l.members = append(l.members, m)
		}
		if f.Type.Kind() == reflect.Struct {
			if err := l.addFields(f.Type, path+".", off, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// addLeaves records every scalar of type t placed at off, rejecting types
// whose width depends on the platform or that hold references.
func (l *Layout) addLeaves(t reflect.Type, path string, off int64) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		l.leaves = append(l.leaves, leaf{offset: off, size: int64(t.Size())})
		return nil
	case reflect.Array:
		es := int64(t.Elem().Size())
		for i := 0; i < t.Len(); i++ {
			if err := l.addLeaves(t.Elem(), path, off+int64(i)*es); err != nil {
				return err
			}
		}
		if t.Len() == 0 {
			// Still validate the element type of empty arrays.
			return l.checkKind(t.Elem(), path)
		}
		return nil
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			var err error
			if f.Name == "_" {
				err = l.checkKind(f.Type, path+"._")
			} else {
				err = l.addLeaves(f.Type, path+"."+f.Name, off+int64(f.Offset))
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	return layoutError("member %s of %s has unsupported type %s", path, l.typ, t)
}

func (l *Layout) checkKind(t reflect.Type, path string) error {
	saved := len(l.leaves)
	err := l.addLeaves(t, path, 0)
	l.leaves = l.leaves[:saved]
	return err
}

// Type returns the Go struct type the layout was built from.
func (l *Layout) Type() reflect.Type {
	return l.typ
}

// Size returns the size of the struct in bytes, padding included.
func (l *Layout) Size() int64 {
	return l.size
}

// Members returns the top-level members in declaration order.
func (l *Layout) Members() []Member {
	return append([]Member(nil), l.members...)
}

// Member looks up a member by name. Members of nested structs are named
// by dotted paths such as "Header.Magic".
func (l *Layout) Member(name string) (Member, error) {
	m, ok := l.index[strings.TrimSpace(name)]
	if !ok {
		return Member{}, layoutError("%s has no member %q", l.typ, name)
	}
	return m, nil
}

// leavesIn returns the scalars lying inside [lo, hi).
func (l *Layout) leavesIn(lo, hi int64) []leaf {
	i := sort.Search(len(l.leaves), func(i int) bool { return l.leaves[i].offset >= lo })
	j := sort.Search(len(l.leaves), func(j int) bool { return l.leaves[j].offset >= hi })
	return l.leaves[i:j]
}
