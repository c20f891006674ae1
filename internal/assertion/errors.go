// Package assertion defines the failure vocabulary shared by the wiring layer.
//
// Every precondition failure carries a stable numeric Code and a Kind. The
// Code identifies the violated rule; the Kind groups codes so that callers
// can branch with errors.Is without knowing individual codes.
package assertion

import (
	"errors"
	"fmt"
)

// Code identifies a violated precondition. Values are stable and shared with
// diagnostic output.
type Code int

const (
	// CodeUnique: an element was added twice to a unique collection.
	CodeUnique Code = 3
	// CodeConnectable: a connection endpoint has no input or output bag.
	CodeConnectable Code = 4
	// CodeConnectionID: a connection key has an empty id.
	CodeConnectionID Code = 5
	// CodeConnectionMode: a connection key names an unknown or unsupported mode.
	CodeConnectionMode Code = 6
	// CodeConnectionKey: a connection was built without a key.
	CodeConnectionKey Code = 7
	// CodeKeyFunction: a connector was built without a key function.
	CodeKeyFunction Code = 8
	// CodeOrganName: an organ name is empty.
	CodeOrganName Code = 9
)

// Kind sentinels. Match with errors.Is.
var (
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrNotConnectable        = errors.New("not connectable")
	ErrInvalidConnectionMode = errors.New("invalid connection mode")
)

// Error is a precondition failure.
type Error struct {
	Code    Code
	Kind    error
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("assertion failed (code %d): %s", e.Code, e.Message)
}

// Unwrap exposes the kind so errors.Is(err, ErrNotConnectable) works.
func (e *Error) Unwrap() error {
	return e.Kind
}

// New creates an Error of the given kind.
func New(code Code, kind error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidArgument creates an ErrInvalidArgument failure.
func InvalidArgument(code Code, format string, args ...any) *Error {
	return New(code, ErrInvalidArgument, format, args...)
}

// NotConnectable creates an ErrNotConnectable failure.
func NotConnectable(format string, args ...any) *Error {
	return New(CodeConnectable, ErrNotConnectable, format, args...)
}

// InvalidConnectionMode creates an ErrInvalidConnectionMode failure.
func InvalidConnectionMode(format string, args ...any) *Error {
	return New(CodeConnectionMode, ErrInvalidConnectionMode, format, args...)
}

// CodeOf returns the code of the first assertion Error in err's chain.
// Returns 0 when there is none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return 0
}

// IsCode reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
