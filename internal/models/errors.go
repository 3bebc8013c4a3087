package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies caller-visible failures.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindState      ErrorKind = "state"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
)

// Error carries a kind and a human readable reason.
type Error struct {
	Kind   ErrorKind
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// Is matches any *Error of the same kind, so callers can use the sentinels
// below with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation = &Error{Kind: KindValidation, Reason: "validation failed"}
	ErrState      = &Error{Kind: KindState, Reason: "invalid state transition"}
	ErrConflict   = &Error{Kind: KindConflict, Reason: "conflict"}
	ErrNotFound   = &Error{Kind: KindNotFound, Reason: "not found"}
)

func newError(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) error {
	return newError(KindValidation, format, args...)
}

func Statef(format string, args ...any) error {
	return newError(KindState, format, args...)
}

func Conflictf(format string, args ...any) error {
	return newError(KindConflict, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return newError(KindNotFound, format, args...)
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
