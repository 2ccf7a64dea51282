package domain

import (
	"context"
	"errors"
)

// ResultCode is a machine-readable tag carried by failed results.
type ResultCode string

const (
	CodeNone            ResultCode = ""
	CodeUnauthenticated ResultCode = "unauthenticated"
	CodeForbidden       ResultCode = "forbidden"
	CodeNotFound        ResultCode = "not_found"
	CodeInvalidArgument ResultCode = "invalid_argument"
	CodeAlreadyExists   ResultCode = "already_exists"
	CodeUnavailable     ResultCode = "unavailable"
	CodeInternal        ResultCode = "internal"
)

type resultState uint8

const (
	stateLoading resultState = iota
	stateSuccess
	stateError
)

// ErrResultFailed is returned by Result.Err for error results built from a bare message.
var ErrResultFailed = errors.New("operation failed")

// Result is the tri-state outcome of an asynchronous operation: exactly one of
// Success, Error or Loading. The zero value is Loading.
type Result[T any] struct {
	state   resultState
	value   T
	message string
	code    ResultCode
	cause   error
}

// Success builds a successful result holding value.
func Success[T any](value T) Result[T] {
	return Result[T]{state: stateSuccess, value: value}
}

// Loading builds an interim result for an operation still in flight.
func Loading[T any]() Result[T] {
	return Result[T]{}
}

// Failure builds an error result from err. The code is derived from the
// sentinel errors err wraps.
func Failure[T any](err error) Result[T] {
	if err == nil {
		err = ErrResultFailed
	}

	return Result[T]{
		state:   stateError,
		message: err.Error(),
		code:    CodeOf(err),
		cause:   err,
	}
}

// FailureCode builds an error result with an explicit message and code.
func FailureCode[T any](code ResultCode, message string) Result[T] {
	return Result[T]{state: stateError, message: message, code: code}
}

// ResultOf converts a Go (value, error) pair into a terminal Result.
func ResultOf[T any](value T, err error) Result[T] {
	if err != nil {
		return Failure[T](err)
	}

	return Success(value)
}

// MapResult converts the value of a successful result, passing error and
// loading results through unchanged.
func MapResult[T, U any](res Result[T], fn func(T) U) Result[U] {
	switch res.state {
	case stateSuccess:
		return Success(fn(res.value))
	case stateError:
		return Result[U]{state: stateError, message: res.message, code: res.code, cause: res.cause}
	default:
		return Loading[U]()
	}
}

func (r Result[T]) IsSuccess() bool { return r.state == stateSuccess }
func (r Result[T]) IsError() bool   { return r.state == stateError }
func (r Result[T]) IsLoading() bool { return r.state == stateLoading }

// ValueOr returns the held value of a successful result, or def otherwise.
func (r Result[T]) ValueOr(def T) T {
	if r.state != stateSuccess {
		return def
	}

	return r.value
}

// MessageOr returns the error message of an error result, or def otherwise.
func (r Result[T]) MessageOr(def string) string {
	if r.state != stateError {
		return def
	}

	return r.message
}

// Code returns the machine code of an error result, or CodeNone.
func (r Result[T]) Code() ResultCode {
	if r.state != stateError {
		return CodeNone
	}

	return r.code
}

// Err returns the error carried by an error result, or nil for any other variant.
func (r Result[T]) Err() error {
	if r.state != stateError {
		return nil
	}

	if r.cause != nil {
		return r.cause
	}

	return errors.Join(ErrResultFailed, errors.New(r.message))
}

// Match calls exactly one of the handlers depending on the active variant.
// All three handlers are required.
func (r Result[T]) Match(
	onSuccess func(T),
	onError func(message string, code ResultCode),
	onLoading func(),
) {
	switch r.state {
	case stateSuccess:
		onSuccess(r.value)
	case stateError:
		onError(r.message, r.code)
	case stateLoading:
		onLoading()
	}
}

// Stream runs fn in its own goroutine and returns a channel that yields
// Loading followed by the terminal result of fn, then closes.
// If ctx is cancelled first, the terminal result is an unavailable error.
func Stream[T any](ctx context.Context, fn func(ctx context.Context) Result[T]) <-chan Result[T] {
	ch := make(chan Result[T], 2)
	ch <- Loading[T]()

	go func() {
		defer close(ch)

		done := make(chan Result[T], 1)

		go func() { done <- fn(ctx) }()

		select {
		case res := <-done:
			ch <- res
		case <-ctx.Done():
			ch <- Failure[T](errors.Join(ErrUnavailable, ctx.Err()))
		}
	}()

	return ch
}

// Await drains a result stream and returns its terminal result.
func Await[T any](ch <-chan Result[T]) Result[T] {
	last := Loading[T]()

	for res := range ch {
		last = res
	}

	return last
}
