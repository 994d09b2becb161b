// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package core

import (
	"errors"
	"fmt"
)

// Kind classifies an Error
type Kind string

// all error kinds
const (
	// KindConnection means the database is unreachable. Fatal at startup.
	KindConnection Kind = "connection"
	// KindSchema means reflection produced no usable tables. Fatal at startup.
	KindSchema Kind = "schema"
	// KindNotFound is an unknown table or a missing row
	KindNotFound Kind = "not_found"
	// KindValidation is a bad payload, a bad identifier or a bad parameter
	KindValidation Kind = "validation"
	// KindConflict is a uniqueness or constraint violation reported by the store
	KindConflict Kind = "conflict"
	// KindInternal is everything else
	KindInternal Kind = "internal"
)

// Error is an error with a kind. The message is meant for clients, the wrapped
// error (if any) is meant for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. This makes
// errors.Is(err, &Error{Kind: KindNotFound}) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

func newError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFound returns a KindNotFound error
func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, nil, format, args...)
}

// Validation returns a KindValidation error
func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, nil, format, args...)
}

// Conflict returns a KindConflict error wrapping err
func Conflict(err error, format string, args ...interface{}) *Error {
	return newError(KindConflict, err, format, args...)
}

// ConnectionFailed returns a KindConnection error wrapping err
func ConnectionFailed(err error, format string, args ...interface{}) *Error {
	return newError(KindConnection, err, format, args...)
}

// SchemaFailed returns a KindSchema error wrapping err. err may be nil.
func SchemaFailed(err error, format string, args ...interface{}) *Error {
	return newError(KindSchema, err, format, args...)
}

// Internal returns a KindInternal error wrapping err
func Internal(err error, format string, args ...interface{}) *Error {
	return newError(KindInternal, err, format, args...)
}

// KindOf returns the kind of err. Errors which are not an *Error are
// KindInternal, nil has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind returns true if err is an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
