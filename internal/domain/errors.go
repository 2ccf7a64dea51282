package domain

import (
	"errors"
	"os"
)

// Base error kinds. Entity specific sentinels wrap one of these so that a
// result code can be derived with errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrAlreadyExists   = errors.New("already exists")
	ErrUnavailable     = errors.New("unavailable")
)

// CodeOf maps err onto a ResultCode.
func CodeOf(err error) ResultCode {
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, os.ErrNotExist):
		return CodeNotFound
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, ErrUnavailable):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

// ErrorForCode rebuilds an error from a code and message received from a
// remote service, so that CodeOf(ErrorForCode(c, m)) == c for known codes.
func ErrorForCode(code ResultCode, message string) error {
	var base error

	switch code {
	case CodeUnauthenticated:
		base = ErrUnauthenticated
	case CodeForbidden:
		base = ErrForbidden
	case CodeNotFound:
		base = ErrNotFound
	case CodeInvalidArgument:
		base = ErrInvalidArgument
	case CodeAlreadyExists:
		base = ErrAlreadyExists
	case CodeUnavailable:
		base = ErrUnavailable
	default:
		return errors.New(message) //nolint:err113
	}

	return &remoteError{base: base, message: message}
}

type remoteError struct {
	base    error
	message string
}

func (e *remoteError) Error() string { return e.message }
func (e *remoteError) Unwrap() error { return e.base }
