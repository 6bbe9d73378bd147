package filestruct

import (
	"errors"
	"fmt"
)

// Error represents a filestruct error with an error code
type Error struct {
	Code    ErrorCode
	Message string
	Err     error // wrapped error, usually the OS error

	// Offset, Size and Limit describe the rejected range for
	// ErrOutOfFileRange and ErrOutOfStructRange. Offset is -1 when an
	// array element index was rejected before it became an offset.
	Offset int64
	Size   int64
	Limit  int64
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("filestruct: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("filestruct: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error carrying the same code, so the package-level
// error values below work as errors.Is targets.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// ErrorCode identifies the kind of failure.
type ErrorCode int

const (
	// Success indicates the operation completed successfully
	Success ErrorCode = 0

	// ErrIO indicates opening, sizing or closing the source file failed
	ErrIO ErrorCode = -1

	// ErrOutOfFileRange indicates a mapping request beyond the end of the file
	ErrOutOfFileRange ErrorCode = -2

	// ErrMapping indicates the mmap call failed
	ErrMapping ErrorCode = -3

	// ErrOutOfStructRange indicates a sub-range, member or array element
	// beyond the end of a chunk
	ErrOutOfStructRange ErrorCode = -4

	// ErrUnmap indicates the munmap call failed during teardown
	ErrUnmap ErrorCode = -5

	// ErrInvalid indicates misuse: a torn-down chunk, a closed file,
	// a nil argument or a destination too small for the copy
	ErrInvalid ErrorCode = -6

	// ErrLayout indicates a Go type that cannot describe a file struct,
	// or an unknown member name
	ErrLayout ErrorCode = -7
)

var errorMessages = map[ErrorCode]string{
	Success:             "success",
	ErrIO:               "file I/O failed",
	ErrOutOfFileRange:   "range outside of file",
	ErrMapping:          "memory mapping failed",
	ErrOutOfStructRange: "range outside of struct chunk",
	ErrUnmap:            "memory unmapping failed",
	ErrInvalid:          "invalid argument",
	ErrLayout:           "unsupported struct layout",
}

func (c ErrorCode) String() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return fmt.Sprintf("unknown error code %d", int(c))
}

// NewError creates a new Error with the given code
func NewError(code ErrorCode) *Error {
	return &Error{Code: code, Message: code.String()}
}

// WrapError creates a new Error wrapping another error
func WrapError(code ErrorCode, err error) *Error {
	e := NewError(code)
	e.Err = err
	return e
}

// rangeError reports a rejected [offset, offset+size) request against limit.
func rangeError(code ErrorCode, offset, size, limit int64) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf("%s: requested %d-%d, data only up to %d", code, offset, offset+size, limit),
		Offset:  offset,
		Size:    size,
		Limit:   limit,
	}
}

// elementError reports element index of an array of stride-byte records
// that does not fit in limit bytes.
func elementError(index int, stride, limit int64) *Error {
	return &Error{
		Code: ErrOutOfStructRange,
		Message: fmt.Sprintf("%s: requested element %d of %d bytes, data only up to %d",
			ErrOutOfStructRange, index, stride, limit),
		Offset: -1,
		Size:   stride,
		Limit:  limit,
	}
}

// invalidError is an ErrInvalid carrying a specific message.
func invalidError(format string, args ...any) *Error {
	return &Error{Code: ErrInvalid, Message: fmt.Sprintf(format, args...)}
}

// layoutError is an ErrLayout carrying a specific message.
func layoutError(format string, args ...any) *Error {
	return &Error{Code: ErrLayout, Message: fmt.Sprintf(format, args...)}
}

// Common error values for use with errors.Is
var (
	ErrIOError               = NewError(ErrIO)
	ErrOutOfFileRangeError   = NewError(ErrOutOfFileRange)
	ErrMappingError          = NewError(ErrMapping)
	ErrOutOfStructRangeError = NewError(ErrOutOfStructRange)
	ErrUnmapError            = NewError(ErrUnmap)
	ErrInvalidError          = NewError(ErrInvalid)
	ErrLayoutError           = NewError(ErrLayout)
)

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsOutOfFileRange returns true if the error is ErrOutOfFileRange
func IsOutOfFileRange(err error) bool {
	return hasCode(err, ErrOutOfFileRange)
}

// IsOutOfStructRange returns true if the error is ErrOutOfStructRange
func IsOutOfStructRange(err error) bool {
	return hasCode(err, ErrOutOfStructRange)
}

// IsOutOfRange returns true for either range error.
func IsOutOfRange(err error) bool {
	return IsOutOfFileRange(err) || IsOutOfStructRange(err)
}

// IsIO returns true if the error is ErrIO
func IsIO(err error) bool {
	return hasCode(err, ErrIO)
}

// IsInvalid returns true if the error is ErrInvalid
func IsInvalid(err error) bool {
	return hasCode(err, ErrInvalid)
}

// Code returns the error code from an error, or ErrInvalid if not a filestruct error
func Code(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInvalid
}
