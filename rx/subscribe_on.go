package rx

import (
	"sync/atomic"
)

// Executor runs tasks in a serialized context, e.g. an event loop. Execute
// may run the task inline, if the caller is already in that context.
type Executor interface {
	Execute(task func()) error
}

// SubscribeOn returns a stream that performs Subscribe, Request and Cancel on
// s via e, making it safe to consume s from any goroutine, as long as s
// itself delivers its signals within e.
//
// No signal delivery starts after Cancel returns, though one already in
// progress within e may still finish. If e rejects the subscription, the observer receives the error
// from e.
func SubscribeOn[T any](s Stream[T], e Executor) Stream[T] {
	return StreamFunc[T](func(o Observer[T]) Subscription {
		x := &subscribeOn[T]{o: o, e: e}
		if err := e.Execute(func() {
			if x.canceled.Load() {
				return
			}
			x.upstream = s.Subscribe(x)
		}); err != nil {
			o.OnError(err)
			x.canceled.Store(true)
		}
		return x
	})
}

type subscribeOn[T any] struct {
	o        Observer[T]
	e        Executor
	upstream Subscription // accessed only within e
	canceled atomic.Bool
}

func (x *subscribeOn[T]) OnNext(value T) {
	if !x.canceled.Load() {
		x.o.OnNext(value)
	}
}

func (x *subscribeOn[T]) OnError(err error) {
	if !x.canceled.Load() {
		x.o.OnError(err)
	}
}

func (x *subscribeOn[T]) OnComplete() {
	if !x.canceled.Load() {
		x.o.OnComplete()
	}
}

func (x *subscribeOn[T]) Request(n int64) {
	if x.canceled.Load() {
		return
	}
	if err := x.e.Execute(func() {
		if x.upstream != nil && !x.canceled.Load() {
			x.upstream.Request(n)
		}
	}); err != nil && !x.canceled.Swap(true) {
		x.o.OnError(err)
	}
}

func (x *subscribeOn[T]) Cancel() {
	if x.canceled.Swap(true) {
		return
	}
	_ = x.e.Execute(func() {
		if x.upstream != nil {
			x.upstream.Cancel()
		}
	})
}
