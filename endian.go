package filestruct

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unsafe"
)

// Order is the byte order of a value as stored in a file.
type Order int

const (
	// BigEndian stores the most significant byte first.
	BigEndian Order = iota
	// LittleEndian stores the least significant byte first.
	LittleEndian
)

// endianTesterPattern is stored in machine order to find the machine order;
// its high byte comes first only on big-endian machines.
const endianTesterPattern uint16 = 0x0001

var machineOrder = detectMachineOrder()

func detectMachineOrder() Order {
	tester := endianTesterPattern
	first := *(*byte)(unsafe.Pointer(&tester))
	if first == byte(endianTesterPattern>>8) {
		return BigEndian
	}
	return LittleEndian
}

// MachineOrder returns the byte order of the running machine.
func MachineOrder() Order {
	return machineOrder
}

// Opposite returns the other byte order.
func (o Order) Opposite() Order {
	if o == BigEndian {
		return LittleEndian
	}
	return BigEndian
}

// ByteOrder returns the encoding/binary equivalent of o.
func (o Order) ByteOrder() binary.ByteOrder {
	if o == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (o Order) String() string {
	switch o {
	case BigEndian:
		return "big-endian"
	case LittleEndian:
		return "little-endian"
	}
	return fmt.Sprintf("Order(%d)", int(o))
}

// ParseOrder parses "big", "be", "little", "le", "native" or "machine".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "big", "be", "big-endian":
		return BigEndian, nil
	case "little", "le", "little-endian":
		return LittleEndian, nil
	case "native", "machine":
		return MachineOrder(), nil
	}
	return 0, invalidError("unknown byte order %q", s)
}

// OrderAwareCopy copies min(len(dst), len(src)) bytes from src to dst.
// One side is in machine order and the other in order: the bytes are
// copied as they are when order is the machine order and reversed
// otherwise. The same call converts in either direction.
func OrderAwareCopy(dst, src []byte, order Order) int {
	n := min(len(dst), len(src))
	if order == machineOrder {
		return copy(dst[:n], src[:n])
	}
	reverseCopy(dst[:n], src[:n])
	return n
}

// reverseCopy writes src into dst with byte i of src at position n-1-i.
// dst and src must have the same length.
func reverseCopy(dst, src []byte) {
	n := len(src)
	for i := 0; i < n; i++ {
		dst[i] = src[n-1-i]
	}
}
