package ffmpeg

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable class of a transform failure.
type Kind string

const (
	KindInvalidDirective Kind = "invalid_directive"
	KindInvalidInput     Kind = "invalid_input"
	KindProcessFailure   Kind = "process_failure"
	KindMissingOutput    Kind = "missing_output"
	KindResourceError    Kind = "resource_error"
	KindOverloaded       Kind = "overloaded"
	KindUnauthorized     Kind = "unauthorized"
	KindNotFound         Kind = "not_found"
	KindInvalidState     Kind = "invalid_state"
	KindInternal         Kind = "internal_error"
)

// MissingOutputDetail is reported when ffmpeg exits 0 without a usable artifact.
const MissingOutputDetail = "output artifact missing or empty"

// Error carries a Kind alongside a human-readable detail.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError returns an *Error of the given kind.
func NewError(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf classifies err. Errors that do not carry a Kind are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// DetailOf returns the caller-facing detail of err. Internal errors never
// expose their text.
func DetailOf(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "internal server error"
	}
	if e.Detail != "" {
		return e.Detail
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}
