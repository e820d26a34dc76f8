package types

import (
	"errors"
	"fmt"
)

// Error kinds shared across the room, lobby, and store packages. Handlers
// match on these with errors.Is to pick a transport-level response (HTTP
// status code or a targeted room-error event); the message carried by the
// wrapping Error is what the client sees.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("upstream failure")
	ErrTransient    = errors.New("transient failure")
	ErrInvalid      = errors.New("invalid request")
)

// Error pairs a taxonomy kind with a user-facing message. Error() returns
// only the message, so what reaches the client stays clean while errors.Is
// still resolves the kind through Unwrap.
type Error struct {
	kind error
	msg  string
}

// NewError wraps msg as an Error of the given kind.
func NewError(kind error, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// NewErrorf is NewError with fmt.Sprintf formatting.
func NewErrorf(kind error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }
