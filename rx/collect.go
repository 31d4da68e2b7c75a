package rx

import (
	"context"
	"errors"
)

// ErrNoElements is returned by [First] if the stream completes without
// emitting a value.
var ErrNoElements = errors.New("rx: stream completed without elements")

// Collect subscribes to s, requesting unbounded demand, and blocks until it
// terminates, returning every value received. If ctx is done first, the
// subscription is canceled, and ctx.Err() returned.
//
// Collect must not be called from the goroutine delivering the signals of s
// (e.g. an event loop), as it would deadlock.
func Collect[T any](ctx context.Context, s Stream[T]) ([]T, error) {
	var (
		values []T
		err    error
		done   = make(chan struct{})
	)
	sub := s.Subscribe(ObserverFuncs[T]{
		Next: func(value T) { values = append(values, value) },
		Error: func(e error) {
			err = e
			close(done)
		},
		Complete: func() { close(done) },
	})
	sub.Request(Unbounded)

	select {
	case <-done:
		return values, err
	case <-ctx.Done():
		sub.Cancel()
		return nil, ctx.Err()
	}
}

// First subscribes to s, requesting a single value, and blocks until it is
// received (the subscription is then canceled), or the stream terminates.
// Returns ErrNoElements if s completes empty.
//
// See also [Collect], which has the same restrictions.
func First[T any](ctx context.Context, s Stream[T]) (T, error) {
	type result struct {
		value T
		err   error
	}
	var (
		ch   = make(chan result, 1)
		sent bool
	)
	send := func(r result) {
		if !sent {
			sent = true
			ch <- r
		}
	}
	sub := s.Subscribe(ObserverFuncs[T]{
		Next:     func(value T) { send(result{value: value}) },
		Error:    func(err error) { send(result{err: err}) },
		Complete: func() { send(result{err: ErrNoElements}) },
	})
	sub.Request(1)

	select {
	case r := <-ch:
		sub.Cancel()
		return r.value, r.err
	case <-ctx.Done():
		sub.Cancel()
		var zero T
		return zero, ctx.Err()
	}
}
