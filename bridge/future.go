package bridge

import (
	"sync/atomic"

	"github.com/joeycumines/go-rxloop/rx"
)

type (
	// Callback is the single-shot completion handler of a callback-style
	// operation. It may be called from any goroutine. Only the first call has
	// any effect: subsequent calls are logged and ignored.
	Callback[T any] func(value T, err error)

	// Outcome is the immutable result of a completed [Future].
	Outcome[T any] struct {
		Value T
		Err   error
	}

	// Future is a memoized, multicast bridge to a single callback-style
	// operation. The operation is started exactly once, when the future is
	// created, regardless of how many observers subscribe (it is "hot"). Every
	// subscriber, whether it subscribed before or after completion, observes
	// the same outcome: a value then completion, or a failure.
	//
	// Signals are delivered on the loop of the future's [Executor].
	Future[T any] struct {
		e       Executor
		outcome atomic.Pointer[Outcome[T]]
		done    chan struct{}
		op      string
		// fields below are accessed only on the loop
		waiters []*futureSubscription[T]
		state   State
	}

	futureSubscription[T any] struct {
		f         *Future[T]
		o         rx.Observer[T]
		outcome   *Outcome[T]
		canceled  atomic.Bool // checked before each delivery starts
		requested bool
		done      bool
	}
)

var (
	_ rx.Stream[any]   = (*Future[any])(nil)
	_ rx.Subscription = (*futureSubscription[any])(nil)
)

// NewFuture returns a pending future, and the callback that completes it.
func NewFuture[T any](e Executor, opts ...Option) (*Future[T], Callback[T]) {
	if e == nil {
		panic("bridge: nil executor")
	}
	cfg := resolveOptions(opts)
	x := &Future[T]{
		e:     e,
		done:  make(chan struct{}),
		op:    cfg.operation,
		state: StateActive,
	}
	return x, x.complete
}

// Bridge wraps a callback-style operation. The operation is started
// immediately, on the calling goroutine, and handed the completion
// callback.
func Bridge[T any](e Executor, op func(cb Callback[T]), opts ...Option) *Future[T] {
	if op == nil {
		panic("bridge: nil operation")
	}
	x, cb := NewFuture[T](e, opts...)
	op(cb)
	return x
}

// Resolved returns a future already completed with value.
func Resolved[T any](e Executor, value T) *Future[T] {
	x, cb := NewFuture[T](e)
	cb(value, nil)
	return x
}

// Done returns a channel that is closed once the future completes.
func (x *Future[T]) Done() <-chan struct{} {
	return x.done
}

// Outcome returns the outcome, and true, if the future has completed.
// Safe to call from any goroutine.
func (x *Future[T]) Outcome() (Outcome[T], bool) {
	if o := x.outcome.Load(); o != nil {
		return *o, true
	}
	return Outcome[T]{}, false
}

// Subscribe attaches o. If the future has already completed, the outcome is
// replayed (the value, subject to demand), otherwise o is registered, and
// notified on completion.
func (x *Future[T]) Subscribe(o rx.Observer[T]) rx.Subscription {
	s := &futureSubscription[T]{f: x, o: o}
	if err := x.e.Execute(s.attach); err != nil {
		if x.outcome.Load() == nil {
			// the loop is gone, and the future can no longer complete
			s.done = true
			o.OnError(err)
			return s
		}
		s.attach()
	}
	return s
}

func (x *Future[T]) complete(value T, err error) {
	if x.e.IsLoopThread() {
		x.settle(value, err)
		return
	}
	if submitErr := x.e.Submit(func() { x.settle(value, err) }); submitErr != nil {
		x.settle(value, err)
	}
}

func (x *Future[T]) settle(value T, err error) {
	var to State
	if err != nil {
		err = wrapIOError(x.op, err)
		to = StateFailed
	} else {
		to = StateCompleted
	}
	if !x.state.terminate(to) {
		logDoubleCompletion(x.e.Logger(), x.op)
		return
	}

	o := &Outcome[T]{Value: value, Err: err}
	x.outcome.Store(o)
	close(x.done)

	waiters := x.waiters
	x.waiters = nil
	for _, s := range waiters {
		s.deliver(o)
	}
}

func (x *Future[T]) removeWaiter(s *futureSubscription[T]) {
	for i, w := range x.waiters {
		if w == s {
			x.waiters = append(x.waiters[:i], x.waiters[i+1:]...)
			return
		}
	}
}

func (x *futureSubscription[T]) attach() {
	if x.canceled.Load() || x.done {
		return
	}
	if o := x.f.outcome.Load(); o != nil {
		x.deliver(o)
		return
	}
	x.f.waiters = append(x.f.waiters, x)
}

func (x *futureSubscription[T]) deliver(o *Outcome[T]) {
	x.outcome = o
	x.flush()
}

func (x *futureSubscription[T]) flush() {
	if x.done || x.outcome == nil || x.canceled.Load() {
		return
	}
	if err := x.outcome.Err; err != nil {
		x.done = true
		x.o.OnError(err)
		return
	}
	if !x.requested {
		return
	}
	x.done = true
	x.o.OnNext(x.outcome.Value)
	if !x.canceled.Load() {
		x.o.OnComplete()
	}
}

func (x *futureSubscription[T]) Request(n int64) {
	if x.canceled.Load() {
		return
	}
	confine(x.f.e, func() {
		if x.done {
			return
		}
		if n <= 0 {
			x.done = true
			x.f.removeWaiter(x)
			x.o.OnError(rx.InvalidRequestError(n))
			return
		}
		x.requested = true
		x.flush()
	})
}

func (x *futureSubscription[T]) Cancel() {
	if x.canceled.Swap(true) {
		return
	}
	confine(x.f.e, func() {
		x.f.removeWaiter(x)
	})
}
