// Package apperr holds the error taxonomy shared by the order and stock packages.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation              Kind = "validation"
	KindNotFound                Kind = "not_found"
	KindConflict                Kind = "conflict"
	KindInvalidStatus           Kind = "invalid_status"
	KindInsufficientStock       Kind = "insufficient_stock"
	KindInsufficientReservation Kind = "insufficient_reservation"
)

// Kinded is implemented by every error that belongs to the taxonomy.
type Kinded interface {
	error
	ErrKind() Kind
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) ErrKind() Kind { return e.Kind }

func newf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error { return newf(KindValidation, format, args...) }

func NotFound(format string, args ...any) *Error { return newf(KindNotFound, format, args...) }

func Conflict(format string, args ...any) *Error { return newf(KindConflict, format, args...) }

func InvalidStatus(format string, args ...any) *Error { return newf(KindInvalidStatus, format, args...) }

// KindOf returns the taxonomy kind of err, or "" for unexpected failures.
func KindOf(err error) Kind {
	var k Kinded
	if errors.As(err, &k) {
		return k.ErrKind()
	}
	return ""
}

func Is(err error, k Kind) bool { return err != nil && KindOf(err) == k }
