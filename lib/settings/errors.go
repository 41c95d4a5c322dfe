package settings

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is returned by every operation of the settings core. Code classifies
// the failure, Key names the offending key if there is one and Err holds the
// cause reported by a backend or observer.
type Error struct {
	Code RetCode
	Key  string
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("SettingsError (code %s): %s", e.Code, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code. This makes the
// sentinel values below usable with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Msg == "" || t.Msg == e.Msg)
}

// NewError creates a new Error with the given code and formatted message.
func NewError(code RetCode, format string, args ...any) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// keyError creates an Error naming key.
func keyError(code RetCode, key string, format string, args ...any) *Error {
	e := NewError(code, format, args...)
	e.Key = key
	return e
}

// wrapError creates an Error with a cause.
func wrapError(code RetCode, cause error, format string, args ...any) *Error {
	e := NewError(code, format, args...)
	e.Err = cause
	return e
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess         RetCode = iota // 0: operation succeeded
	RetCBadInput                       // 1: invalid name, key or argument
	RetCFailedSaving                   // 2: key has no category or a write was rejected
	RetCFailedUpdating                 // 3: a backend rejected a change
	RetCFailedLoading                  // 4: a backend failed to load or fetch
	RetCFailedInserting                // 5: value does not fit the observer's type
	RetCInternalError                  // 6: unexpected internal state
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCBadInput:
		return "BadInput"
	case RetCFailedSaving:
		return "FailedSaving"
	case RetCFailedUpdating:
		return "FailedUpdating"
	case RetCFailedLoading:
		return "FailedLoading"
	case RetCFailedInserting:
		return "FailedInserting"
	case RetCInternalError:
		return "InternalError"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is.
var (
	ErrBadInput        = &Error{Code: RetCBadInput}
	ErrFailedSaving    = &Error{Code: RetCFailedSaving}
	ErrFailedUpdating  = &Error{Code: RetCFailedUpdating}
	ErrFailedLoading   = &Error{Code: RetCFailedLoading}
	ErrFailedInserting = &Error{Code: RetCFailedInserting}
)
