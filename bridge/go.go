package bridge

import (
	"context"
	"errors"
)

// Go runs fn on a new goroutine, returning a future completed with its
// result. Use it to bridge blocking operations onto the loop of e.
//
// If ctx is already done, fn is not called. A panic in fn fails the future
// with a [PanicError], and runtime.Goexit with [ErrGoexit]. If the loop has
// terminated by the time fn returns, the future is completed directly.
func Go[T any](e Executor, ctx context.Context, fn func(ctx context.Context) (T, error), opts ...Option) *Future[T] {
	if fn == nil {
		panic("bridge: nil function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	x, cb := NewFuture[T](e, opts...)
	go func() {
		var (
			value     T
			err       error
			completed bool
		)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				cb(zero, PanicError{Value: r})
				return
			}
			if !completed {
				var zero T
				cb(zero, ErrGoexit)
			}
		}()

		select {
		case <-ctx.Done():
			err = ctx.Err()
		default:
			value, err = fn(ctx)
		}
		completed = true
		cb(value, err)
	}()
	return x
}

// IsCanceled reports whether err is the result of context cancellation or
// deadline, of a future started by [Go].
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
