package bridge

import (
	"errors"
	"fmt"

	"github.com/joeycumines/go-rxloop/eventloop"
)

var (
	// ErrBackpressureViolation indicates a source kept emitting after being
	// paused, until the bounded buffer of the adapter was exhausted.
	ErrBackpressureViolation = errors.New("bridge: source emitted past its pause, buffer exhausted")

	// ErrDoubleCompletion indicates a single-shot callback was invoked more
	// than once. It is only ever logged: the extra invocation is ignored.
	ErrDoubleCompletion = errors.New("bridge: completion callback invoked more than once")

	// ErrAlreadySubscribed is the error a unicast stream fails any subscriber
	// but the first with.
	ErrAlreadySubscribed = errors.New("bridge: stream already subscribed")

	// ErrGoexit is the error a future started by [Go] fails with if its
	// function exits via runtime.Goexit.
	ErrGoexit = errors.New("bridge: goroutine exited via runtime.Goexit")
)

// PanicError wraps a value recovered from a panicking function, see [Go].
type PanicError = eventloop.PanicError

// IOError is an UnderlyingIOFailure: the wrapped operation failed, with the
// native error Err. It supports [errors.Is] and [errors.As] via Unwrap.
type IOError struct {
	Err error
	Op  string
}

func (e *IOError) Error() string {
	if e.Op == `` {
		return fmt.Sprintf("bridge: underlying I/O failure: %v", e.Err)
	}
	return fmt.Sprintf("bridge: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// wrapIOError wraps err as an [IOError], unless it already is one.
func wrapIOError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*IOError); ok {
		return err
	}
	return &IOError{Op: op, Err: err}
}
