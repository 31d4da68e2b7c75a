package bridge

import (
	"sync/atomic"

	"github.com/gammazero/deque"
	"github.com/joeycumines/go-rxloop/rx"
)

// Source is a push-style producer with pause/resume flow control, and an
// explicit release. All methods are called on the loop, and the source must
// invoke its handlers on the loop.
//
// A source starts paused, and begins emitting only once resumed. After
// Pause, a source may still deliver a few values already in flight, which
// the adapter buffers, up to its buffer size.
type Source[T any] interface {
	// Handler sets the function receiving each value.
	Handler(fn func(value T))

	// EndHandler sets the function called once, at end of data.
	EndHandler(fn func())

	// ExceptionHandler sets the function called once, on failure.
	ExceptionHandler(fn func(err error))

	Pause()
	Resume()

	// Close releases the source. It is called exactly once, by the adapter.
	Close() error
}

type (
	sourceStream[T any] struct {
		e          Executor
		src        Source[T]
		op         string
		bufferSize int
		subscribed bool // loop-confined
	}

	sourceSubscription[T any] struct {
		stream     *sourceStream[T]
		o          rx.Observer[T]
		buffer     deque.Deque
		pendingEnd bool
		canceled   atomic.Bool // checked before each delivery starts
		// fields below are accessed only on the loop
		requested int64
		state     State
		owner     bool
		paused    bool
		draining  bool
		released  bool
	}
)

var _ rx.Subscription = (*sourceSubscription[any])(nil)

// FromSource adapts src to a pull-based stream, with backpressure. The
// source is resumed on the first request, and paused whenever outstanding
// demand falls to zero, or values are buffered. The source is closed exactly
// once, on whichever terminal transition happens first: end of data,
// failure, or cancellation.
//
// The returned stream is unicast, as the source is consumed: subscribers
// after the first fail with [ErrAlreadySubscribed].
//
// Values delivered while paused are buffered, up to [WithBufferSize]. A
// source exceeding that fails the stream with [ErrBackpressureViolation].
// Failure of the source is delivered immediately, discarding any buffered
// values, as an [IOError]. End of data is delivered only once the buffer
// has drained.
func FromSource[T any](e Executor, src Source[T], opts ...Option) rx.Stream[T] {
	if e == nil {
		panic("bridge: nil executor")
	}
	if src == nil {
		panic("bridge: nil source")
	}
	cfg := resolveOptions(opts)
	return &sourceStream[T]{
		e:          e,
		src:        src,
		op:         cfg.operation,
		bufferSize: cfg.bufferSize,
	}
}

func (x *sourceStream[T]) Subscribe(o rx.Observer[T]) rx.Subscription {
	s := &sourceSubscription[T]{stream: x, o: o, paused: true}
	if err := x.e.Execute(s.start); err != nil {
		s.canceled.Store(true)
		o.OnError(err)
	}
	return s
}

func (x *sourceSubscription[T]) start() {
	if x.stream.subscribed {
		x.state = StateFailed
		if !x.canceled.Load() {
			x.o.OnError(ErrAlreadySubscribed)
		}
		return
	}
	x.stream.subscribed = true
	x.owner = true
	if x.canceled.Load() {
		x.state.terminate(StateCancelled)
		x.release()
	}
}

func (x *sourceSubscription[T]) Request(n int64) {
	if x.canceled.Load() {
		return
	}
	confine(x.stream.e, func() { x.request(n) })
}

func (x *sourceSubscription[T]) request(n int64) {
	if x.state.Terminal() || x.canceled.Load() {
		return
	}
	if n <= 0 {
		x.fail(rx.InvalidRequestError(n))
		return
	}
	x.requested = rx.AddDemand(x.requested, n)
	if x.state.activate() {
		src := x.stream.src
		src.Handler(x.handleValue)
		src.EndHandler(x.handleEnd)
		src.ExceptionHandler(x.handleError)
	}
	x.drain()
	x.updateFlow()
}

func (x *sourceSubscription[T]) Cancel() {
	if x.canceled.Swap(true) {
		return
	}
	confine(x.stream.e, func() {
		if x.owner && x.state.terminate(StateCancelled) {
			x.buffer.Clear()
			x.release()
		}
	})
}

func (x *sourceSubscription[T]) handleValue(value T) {
	if x.state.Terminal() {
		return
	}
	if x.buffer.Len() >= x.stream.bufferSize {
		x.fail(ErrBackpressureViolation)
		return
	}
	x.buffer.PushBack(value)
	x.drain()
	x.updateFlow()
}

func (x *sourceSubscription[T]) handleEnd() {
	if x.state.Terminal() {
		return
	}
	x.pendingEnd = true
	x.drain()
}

func (x *sourceSubscription[T]) handleError(err error) {
	if x.state.Terminal() {
		return
	}
	x.buffer.Clear()
	x.fail(wrapIOError(x.stream.op, err))
}

// drain delivers buffered values against outstanding demand, then end of
// data, if pending and the buffer is empty. Requests made from within OnNext
// only add demand, which the outermost drain then satisfies.
func (x *sourceSubscription[T]) drain() {
	if x.draining {
		return
	}
	x.draining = true
	defer func() { x.draining = false }()

	for !x.state.Terminal() && !x.canceled.Load() && x.requested > 0 && x.buffer.Len() > 0 {
		value, _ := x.buffer.PopFront().(T) // nil for interface types holding nil
		if x.requested != rx.Unbounded {
			x.requested--
		}
		x.o.OnNext(value)
	}

	if x.pendingEnd && x.buffer.Len() == 0 && x.state.terminate(StateCompleted) {
		x.release()
		if !x.canceled.Load() {
			x.o.OnComplete()
		}
	}
}

// updateFlow pauses the source while it cannot deliver, and resumes it once
// it can.
func (x *sourceSubscription[T]) updateFlow() {
	if x.state.Terminal() || x.draining {
		return
	}
	src := x.stream.src
	if x.requested == 0 || x.buffer.Len() != 0 {
		if !x.paused {
			x.paused = true
			src.Pause()
		}
	} else if x.paused {
		x.paused = false
		src.Resume()
	}
}

func (x *sourceSubscription[T]) fail(err error) {
	if !x.state.terminate(StateFailed) {
		return
	}
	x.release()
	if !x.canceled.Load() {
		x.o.OnError(err)
	}
}

func (x *sourceSubscription[T]) release() {
	if x.released || !x.owner {
		return
	}
	x.released = true
	if err := x.stream.src.Close(); err != nil {
		logCloseError(x.stream.e.Logger(), x.stream.op, err)
	}
}
