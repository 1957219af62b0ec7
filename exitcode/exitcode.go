// Package exitcode defines the host-visible failure taxonomy of the registry.
package exitcode

import (
	"errors"
	"fmt"
)

type Code uint32

const (
	Ok                 Code = 0
	AlreadyInitialized Code = 10001
	AlreadyVoted       Code = 10002
	CannotDeserialize  Code = 10003
	NotOwner           Code = 10004
	NotExists          Code = 10005
	NotCaller          Code = 10006
	Storage            Code = 10007
	UnhandledMethod    Code = 10008
)

var codeNames = map[Code]string{
	Ok:                 "Ok",
	AlreadyInitialized: "AlreadyInitialized",
	AlreadyVoted:       "AlreadyVoted",
	CannotDeserialize:  "CannotDeserialize",
	NotOwner:           "NotOwner",
	NotExists:          "NotExists",
	NotCaller:          "NotCaller",
	Storage:            "Storage",
	UnhandledMethod:    "UnhandledMethod",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", uint32(c))
}

// Error is a typed failure. Two errors match under errors.Is when their codes are equal.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrAlreadyInitialized = &Error{Code: AlreadyInitialized, Msg: "registry already initialized"}
	ErrAlreadyVoted       = &Error{Code: AlreadyVoted, Msg: "reporter already voted in the active window"}
	ErrCannotDeserialize  = &Error{Code: CannotDeserialize, Msg: "cannot deserialize parameters"}
	ErrNotOwner           = &Error{Code: NotOwner, Msg: "caller is not the owner of the record"}
	ErrNotExists          = &Error{Code: NotExists, Msg: "record does not exist"}
	ErrNotCaller          = &Error{Code: NotCaller, Msg: "caller is not a registered checker"}
	ErrUnhandledMethod    = &Error{Code: UnhandledMethod, Msg: "unhandled method"}
)

// Wrap attaches a cause to a code.
func Wrap(code Code, msg string, err error) error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// Storagef wraps a persistence failure. Errors that already carry a code are returned as-is.
func Storagef(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Code: Storage, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf maps any error to a code. Untyped errors are treated as storage failures.
func CodeOf(err error) Code {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Storage
}
